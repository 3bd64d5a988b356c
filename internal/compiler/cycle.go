package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/actionplan/internal/schema"
)

// CycleKind names the graph a cycle was found in.
type CycleKind string

const (
	CycleRef          CycleKind = "ref"
	CycleAlias        CycleKind = "alias"
	CycleSubscription CycleKind = "subscription"
)

const (
	LevelError   = "error"
	LevelWarning = "warning"
)

// CycleWarning represents a cycle among declarations.
//
// Recursive types (a record field borrowing its own record) are warnings:
// values are finite, so validation terminates. Refs that point only at each
// other never reach a concrete type, and subscription loops would plan
// forever; both are errors.
type CycleWarning struct {
	Kind    CycleKind `json:"kind"`
	Path    []string  `json:"path"` // e.g. ["A", "B", "A"]
	Message string    `json:"message"`
	Level   string    `json:"level"`
}

// AnalyzeCycles detects cycles in the ref, alias and subscription graphs
// of a bundle using Tarjan's algorithm. An acyclic bundle returns an empty
// list. Results are sorted for stable output.
func AnalyzeCycles(b *Bundle) []CycleWarning {
	refs, aliases := buildRefGraphs(b)

	warnings := []CycleWarning{}
	aliasCycles := make(map[string]bool)
	for _, scc := range cycles(aliases) {
		for _, n := range scc {
			aliasCycles[n] = true
		}
		warnings = append(warnings, toWarning(CycleAlias, scc, aliases, LevelError,
			"ref alias cycle never reaches a concrete type"))
	}
	for _, scc := range cycles(refs) {
		if !slices.ContainsFunc(scc, func(n string) bool { return !aliasCycles[n] }) {
			continue
		}
		warnings = append(warnings, toWarning(CycleRef, scc, refs, LevelWarning, "recursive schema"))
	}
	subs := buildSubscriptionGraph(b)
	for _, scc := range cycles(subs) {
		warnings = append(warnings, toWarning(CycleSubscription, scc, subs, LevelError, "subscription cycle"))
	}
	return warnings
}

// graph maps a node to its successors.
type graph map[string][]string

// buildRefGraphs returns the graph of every ref reachable from each named
// schema and the subgraph of refs that are the whole schema.
func buildRefGraphs(b *Bundle) (refs, aliases graph) {
	refs, aliases = make(graph), make(graph)
	add := func(name string, t *schema.Type) {
		if t == nil {
			return
		}
		refs[name] = collectRefs(t, nil)
		if t.Kind == schema.KindRef {
			aliases[name] = []string{t.Ref}
		}
	}
	for _, as := range b.Actions {
		add(as.Name+".input", as.Input)
		add(as.Name+".output", as.Output)
	}
	for _, nt := range b.Types {
		add(nt.Name, nt.Type)
	}
	return refs, aliases
}

func collectRefs(t *schema.Type, acc []string) []string {
	if t == nil {
		return acc
	}
	switch t.Kind {
	case schema.KindRef:
		if !slices.Contains(acc, t.Ref) {
			acc = append(acc, t.Ref)
		}
	case schema.KindArray:
		acc = collectRefs(t.Elem, acc)
	case schema.KindRecord:
		for _, f := range t.Fields {
			acc = collectRefs(f.Type, acc)
		}
	}
	return acc
}

// buildSubscriptionGraph links each trigger to its subscribers.
func buildSubscriptionGraph(b *Bundle) graph {
	g := make(graph)
	for _, as := range b.Actions {
		if g[as.Name] == nil {
			g[as.Name] = []string{}
		}
		for _, trigger := range as.Subscribe {
			g[trigger] = append(g[trigger], as.Name)
		}
	}
	return g
}

// cycles returns the SCCs of g that form a cycle: more than one node, or
// one node with a self-loop. Each SCC is sorted, and the list is sorted by
// first node.
func cycles(g graph) [][]string {
	var out [][]string
	for _, scc := range tarjanSCC(g) {
		if len(scc) > 1 || slices.Contains(g[scc[0]], scc[0]) {
			slices.Sort(scc)
			out = append(out, scc)
		}
	}
	slices.SortFunc(out, func(a, b []string) int { return strings.Compare(a[0], b[0]) })
	return out
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order so results do not depend on map order.
func tarjanSCC(g graph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(g))
	for n := range g {
		nodes = append(nodes, n)
	}
	slices.Sort(nodes)
	for _, n := range nodes {
		if _, visited := indices[n]; !visited {
			strongConnect(n)
		}
	}
	return sccs
}

func toWarning(kind CycleKind, scc []string, g graph, level, what string) CycleWarning {
	path := cyclePath(scc, g)
	return CycleWarning{
		Kind:    kind,
		Path:    path,
		Message: fmt.Sprintf("%s: %s", what, strings.Join(path, " -> ")),
		Level:   level,
	}
}

// cyclePath walks edges inside the SCC from its first node until it
// returns there.
func cyclePath(scc []string, g graph) []string {
	in := make(map[string]bool, len(scc))
	for _, n := range scc {
		in[n] = true
	}
	start := scc[0]
	path := []string{start}
	visited := map[string]bool{start: true}
	cur := start
	for {
		next := ""
		for _, w := range g[cur] {
			if w == start {
				next = w
				break
			}
			if in[w] && !visited[w] && next == "" {
				next = w
			}
		}
		if next == "" {
			return path
		}
		path = append(path, next)
		if next == start {
			return path
		}
		visited[next] = true
		cur = next
	}
}
