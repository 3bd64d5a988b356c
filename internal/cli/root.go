package cli

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roach88/actionplan/internal/codeflow"
	"github.com/roach88/actionplan/internal/config"
	"github.com/roach88/actionplan/internal/engine"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	NoColor    bool

	// Config is loaded from ConfigPath before any subcommand runs.
	Config config.Config

	// Registry supplies the action definitions commands run against.
	// Defaults to the built-in codeflow catalog.
	Registry func() (*engine.Registry, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the actionplan CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{
		Registry: func() (*engine.Registry, error) { return codeflow.NewRegistry() },
	}

	cmd := &cobra.Command{
		Use:   "actionplan",
		Short: "Plan and execute action trees",
		Long: `actionplan plans trees of actions with explicit data dependencies,
runs them concurrently, finalizes them in order, and journals every phase
transition to SQLite.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.NoColor {
				color.NoColor = true
			}
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			opts.Config = cfg
			configureLogging(opts)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML engine config")
	cmd.PersistentFlags().BoolVar(&opts.NoColor, "no-color", false, "disable colored output")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewActionsCommand(opts))

	return cmd
}

// configureLogging installs a text handler on stderr. --verbose wins over
// the configured level.
func configureLogging(opts *RootOptions) {
	level := opts.Config.Level()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
