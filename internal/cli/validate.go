package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/actionplan/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Actions  int                        `json:"actions"`
	Types    int                        `json:"types"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning    `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <schemas-dir>",
		Short: "Validate CUE action schemas",
		Long: `Compile and check the CUE action schemas in a directory.

Reports compile errors (floats, malformed @ref attributes, non-record
inputs), undefined refs, unknown subscriptions, invalid enums, alias
cycles and subscription cycles. Recursive record types are reported as
warnings.

Examples:
  actionplan validate ./schemas
  actionplan validate ./schemas --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	result, errs := ValidateSchemasDir(dir)
	if result == nil {
		var loadErr *LoadError
		if errors.As(errs, &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, errs.Error(), nil)
	}

	formatter.VerboseLog("Compiled %d action(s) and %d type(s) from %s", result.Actions, result.Types, dir)
	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// ValidateSchemasDir compiles and validates every schema in dir. A nil
// result means the directory could not be loaded at all; err says why.
func ValidateSchemasDir(dir string) (*ValidationResult, error) {
	loaded, loadErrs := LoadSchemas(dir, LoadModeCollectAll)
	if loaded == nil {
		return nil, loadErrs[0]
	}

	result := &ValidationResult{
		Actions: len(loaded.Bundle.Actions),
		Types:   len(loaded.Bundle.Types),
	}
	for _, err := range loadErrs {
		var loadErr *LoadError
		if !errors.As(err, &loadErr) {
			loadErr = &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
		}
		result.Errors = append(result.Errors, compiler.ValidationError{
			Field:   "load",
			Message: loadErr.Message,
			Code:    loadErr.Code,
			Line:    lineOf(loadErr),
		})
	}

	result.Errors = append(result.Errors, compiler.Validate(loaded.Bundle)...)
	for _, w := range compiler.AnalyzeCycles(loaded.Bundle) {
		if w.Level == compiler.LevelWarning {
			result.Warnings = append(result.Warnings, w)
		}
	}
	result.Valid = len(result.Errors) == 0
	return result, nil
}

func lineOf(e *LoadError) int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

func outputValidateSuccess(formatter *OutputFormatter, result *ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "%s All schemas valid (%d actions, %d types)\n", mark(true), result.Actions, result.Types)
	for _, w := range result.Warnings {
		fmt.Fprintf(formatter.Writer, "  warning: %s\n", w.Message)
	}
	return nil
}

// outputValidateError outputs a single load error. These are command
// errors (exit code 2).
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs all validation errors (exit code 1).
func outputValidationErrors(formatter *OutputFormatter, result *ValidationResult) error {
	errs := result.Errors
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintf(formatter.Writer, "%s Validation failed\n", mark(false))
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
