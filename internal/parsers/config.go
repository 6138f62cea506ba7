package parsers

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format names a seed file format
type Format string

const (
	FormatAuto Format = "auto"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// DetectFormat infers the format from a file extension
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("cannot infer seed format from %q; use .json, .yaml or .csv", path)
	}
}

// SeedParserConfig holds configuration for seed parsing
type SeedParserConfig struct {
	Format Format `json:"format" mapstructure:"format"`

	// MaxErrors stops parsing after this many rejected records; 0 means no limit
	MaxErrors int `json:"max_errors" mapstructure:"max_errors"`

	// TaskSeparator splits the CSV tasks column
	TaskSeparator string `json:"task_separator" mapstructure:"task_separator"`

	// ColumnAliases maps standard CSV column names to the names used in the file
	ColumnAliases map[string]string `json:"column_aliases,omitempty" mapstructure:"column_aliases"`

	CSV *ParseConfig `json:"-" mapstructure:"-"`
}

// DefaultSeedParserConfig returns a configuration with standard defaults
func DefaultSeedParserConfig() *SeedParserConfig {
	return &SeedParserConfig{
		Format:        FormatAuto,
		MaxErrors:     0,
		TaskSeparator: ";",
		CSV:           DefaultParseConfig(),
	}
}

// Validate checks if the seed parser configuration is valid
func (c *SeedParserConfig) Validate() error {
	switch c.Format {
	case FormatAuto, FormatJSON, FormatYAML, FormatCSV:
	default:
		return fmt.Errorf("unsupported seed format %q", c.Format)
	}
	if c.MaxErrors < 0 {
		return fmt.Errorf("max errors cannot be negative: %d", c.MaxErrors)
	}
	if c.TaskSeparator == "" {
		return fmt.Errorf("task separator cannot be empty")
	}
	for standard, alias := range c.ColumnAliases {
		if strings.TrimSpace(alias) == "" {
			return fmt.Errorf("alias for column %q cannot be empty", standard)
		}
	}
	return nil
}

// GetColumnName returns the actual column name, checking aliases first
func (c *SeedParserConfig) GetColumnName(standardName string) string {
	if alias, exists := c.ColumnAliases[standardName]; exists {
		return alias
	}
	return standardName
}

// Standard CSV columns. Only id is required.
const (
	ColumnID            = "id"
	ColumnAssignee      = "assignee"
	ColumnStatus        = "status"
	ColumnFolder        = "folder"
	ColumnTasks         = "tasks"
	ColumnAssignedAt    = "assigned_at"
	ColumnDueDate       = "due_date"
	ColumnPriority      = "priority"
	ColumnMongoUploaded = "mongo_uploaded"
	ColumnComments      = "comments"
)
