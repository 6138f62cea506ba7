package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/viper"

	"segmentation-tracker/pkg/errors"
	"segmentation-tracker/pkg/logger"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
	out     io.Writer
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
		out:     os.Stderr,
	}
}

// HandleError prints err and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("Command failed")

	if appErr, ok := errors.AsAppError(err); ok {
		return h.handleAppError(appErr)
	}
	return h.handleGenericError(err)
}

func (h *CLIErrorHandler) handleAppError(err *errors.AppError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for key := range err.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(h.out, "\nContext:\n")
		for _, key := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", key, err.Context[key])
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(h.out, "\n%s\n", getCategoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

func (h *CLIErrorHandler) handleGenericError(err error) int {
	switch {
	case isFileNotFoundError(err):
		fmt.Fprintf(h.out, "Error: File not found: %v\n", err)
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	case isPermissionError(err):
		fmt.Fprintf(h.out, "Error: Permission denied: %v\n", err)
		fmt.Fprintf(h.out, "Suggestion: Check file permissions\n")
		return 2
	case isDiskFullError(err):
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 2
	}

	// cobra usage errors land here: unknown flags, wrong argument counts
	fmt.Fprintf(h.out, "Error: %v\n", err)
	fmt.Fprintf(h.out, "Run 'segtracker --help' for usage.\n")
	return 1
}

func getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryStore:
		return `Store error help:
• Check that MongoDB is running and reachable at the configured uri
• Verify stores.<name>.uri, database and collection in your config
• Use --driver memory to try the command without a database`

	case errors.CategoryNotFound:
		return `Not found help:
• List existing batches with 'segtracker batch list'
• Batch identifiers are case-sensitive (batch_12, not Batch_12)`

	case errors.CategoryConflict:
		return `Conflict help:
• The identifier is already taken; choose another one
• Omit --id on 'batch create' to get the next free batch_<n>`

	case errors.CategoryValidation:
		return `Validation error help:
• Status must be NS, FS or S
• Dates use YYYY-MM-DD
• Assignees must be roster members ('segtracker roster list')`

	case errors.CategoryParse:
		return `Parse error help:
• Seed files are JSON ({"batches": [...]}), YAML or CSV
• CSV files need an id column; other columns are optional
• Ensure the file uses UTF-8 encoding`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Environment variables use the SEGTRACKER_ prefix (SEGTRACKER_STORE_DRIVER)
• Try --profile demo to run with in-memory stores`

	default:
		return `For more help:
• Use 'segtracker --help' for general help
• Use 'segtracker <command> --help' for command-specific help
• Run with --verbose for the underlying error`
	}
}

func isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory")
}

func isPermissionError(err error) bool {
	return os.IsPermission(err) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func isDiskFullError(err error) bool {
	if err == syscall.ENOSPC {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "device full")
}
