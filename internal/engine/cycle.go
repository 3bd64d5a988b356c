package engine

import (
	"fmt"
	"slices"
	"strings"
)

// SubscriptionCycle is a loop in the trigger → subscriber graph. Planning
// any member would plan subscribers forever; the planner refuses the
// closing step at runtime, and Registry.Validate reports it up front.
type SubscriptionCycle struct {
	Path    []string `json:"path"` // e.g. ["A", "B", "A"]
	Message string   `json:"message"`
}

// subscriptionGraph maps trigger name → subscriber names.
type subscriptionGraph map[string][]string

// AnalyzeSubscriptions finds subscription cycles.
//
// The algorithm:
//  1. Build the trigger → subscriber graph
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop as a cycle
//
// Nodes are visited in sorted order so the result is deterministic.
func AnalyzeSubscriptions(r *Registry) []SubscriptionCycle {
	graph := make(subscriptionGraph)
	for _, d := range r.Definitions() {
		if graph[d.Name] == nil {
			graph[d.Name] = []string{}
		}
		for _, trigger := range d.Subscribe {
			graph[trigger] = append(graph[trigger], d.Name)
		}
	}

	var cycles []SubscriptionCycle
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			cycles = append(cycles, sccToCycle(scc, graph))
		}
	}
	return cycles
}

func hasSelfLoop(node string, graph subscriptionGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
func tarjanSCC(graph subscriptionGraph) [][]string {
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

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack into an SCC
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
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for n := range graph {
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

// sccToCycle walks edges inside the SCC from its first member until it
// returns to the start.
func sccToCycle(scc []string, graph subscriptionGraph) SubscriptionCycle {
	start := scc[0]
	if len(scc) == 1 {
		return SubscriptionCycle{
			Path:    []string{start, start},
			Message: fmt.Sprintf("%s subscribes to itself", start),
		}
	}

	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}

	path := []string{start}
	visited := map[string]bool{}
	for current := start; ; {
		visited[current] = true
		next := ""
		for _, w := range graph[current] {
			if members[w] && (!visited[w] || w == start) {
				next = w
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return SubscriptionCycle{
		Path:    path,
		Message: fmt.Sprintf("subscription cycle %s", strings.Join(path, " → ")),
	}
}
