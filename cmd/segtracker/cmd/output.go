package cmd

import (
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"segmentation-tracker/internal/reporter"
	"segmentation-tracker/pkg/errors"
)

// writeReport renders result in the configured format to --output-file
// or the command's stdout.
func writeReport(cmd *cobra.Command, result interface{}) error {
	generator, err := reporter.NewSafeReportGenerator(appConfig.ReportConfig(""), nil)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if path := appConfig.Output.File; path != "" {
		file, err := os.Create(path)
		if err != nil {
			return errors.ConfigurationError(errors.CodeInvalidConfig, "output.file", path, err).
				WithSuggestion("check that the output directory exists and is writable")
		}
		defer file.Close()
		out = file
	}

	return generator.GenerateReportSafely(result, out)
}

// cleanList trims items and drops blanks. The result is never nil so an
// explicitly empty flag stays distinguishable from an absent one.
func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
