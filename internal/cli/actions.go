package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/actionplan/internal/engine"
)

// ActionInfo describes one registered action definition.
type ActionInfo struct {
	Name         string   `json:"name"`
	Capabilities string   `json:"capabilities"`
	Subscribe    []string `json:"subscribe,omitempty"`
	Subscribers  []string `json:"subscribers,omitempty"`
	Input        string   `json:"input,omitempty"`
	Output       string   `json:"output,omitempty"`
}

// NewActionsCommand creates the actions command.
func NewActionsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "actions",
		Short: "List registered action definitions",
		Long: `List every action definition the engine can plan, in registration
order, with its capabilities, trigger subscriptions and schemas.

Examples:
  actionplan actions
  actionplan actions --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := rootOpts.Registry()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to build registry", err)
			}
			infos := describeActions(reg)
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: infos})
			}
			outputActionsText(cmd.OutOrStdout(), infos)
			return nil
		},
	}
}

func describeActions(reg *engine.Registry) []ActionInfo {
	defs := reg.Definitions()
	infos := make([]ActionInfo, 0, len(defs))
	for _, d := range defs {
		info := ActionInfo{
			Name:         d.Name,
			Capabilities: d.Capabilities().String(),
			Subscribe:    d.Subscribe,
		}
		for _, sub := range reg.Subscribers(d.Name) {
			info.Subscribers = append(info.Subscribers, sub.Name)
		}
		if d.Input != nil {
			info.Input = d.Input.String()
		}
		if d.Output != nil {
			info.Output = d.Output.String()
		}
		infos = append(infos, info)
	}
	return infos
}

func outputActionsText(w io.Writer, infos []ActionInfo) {
	for _, a := range infos {
		fmt.Fprintf(w, "%-20s %s\n", a.Name, a.Capabilities)
		if a.Input != "" {
			fmt.Fprintf(w, "  input:  %s\n", a.Input)
		}
		if a.Output != "" {
			fmt.Fprintf(w, "  output: %s\n", a.Output)
		}
		if len(a.Subscribe) > 0 {
			fmt.Fprintf(w, "  subscribes to: %s\n", strings.Join(a.Subscribe, ", "))
		}
		if len(a.Subscribers) > 0 {
			fmt.Fprintf(w, "  triggers: %s\n", strings.Join(a.Subscribers, ", "))
		}
	}
	fmt.Fprintf(w, "\n%d actions\n", len(infos))
}
