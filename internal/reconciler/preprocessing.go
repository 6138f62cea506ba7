package reconciler

import (
	"strings"

	"segmentation-tracker/internal/models"
)

// BatchPreprocessor normalizes batch records coming from the store or a seed
// file before they are matched or written.
type BatchPreprocessor struct {
	config *PreprocessingConfig
	stats  PreprocessingStats
}

// PreprocessingConfig contains configuration for batch normalization
type PreprocessingConfig struct {
	TrimWhitespace   bool
	DefaultStatus    models.Status
	DefaultPriority  string
	FillDefaultTasks bool
	DefaultFolders   bool
}

// DefaultPreprocessingConfig returns a default preprocessing configuration
func DefaultPreprocessingConfig() *PreprocessingConfig {
	return &PreprocessingConfig{
		TrimWhitespace:   true,
		DefaultStatus:    models.StatusNotSegmented,
		DefaultPriority:  models.DefaultPriority,
		FillDefaultTasks: true,
		DefaultFolders:   true,
	}
}

// PreprocessingStats counts what normalization changed
type PreprocessingStats struct {
	Processed         int `json:"processed"`
	AssigneesCleared  int `json:"assignees_cleared"`
	StatusesDefaulted int `json:"statuses_defaulted"`
	Rejected          int `json:"rejected"`
}

// NewBatchPreprocessor creates a new batch preprocessor
func NewBatchPreprocessor(config *PreprocessingConfig) *BatchPreprocessor {
	if config == nil {
		config = DefaultPreprocessingConfig()
	}
	return &BatchPreprocessor{config: config}
}

// Normalize fixes up a single batch in place and validates it
func (bp *BatchPreprocessor) Normalize(b *models.Batch) error {
	bp.stats.Processed++

	if bp.config.TrimWhitespace {
		b.ID = strings.TrimSpace(b.ID)
		b.Folder = strings.TrimSpace(b.Folder)
		b.Metadata.AssignedAt = strings.TrimSpace(b.Metadata.AssignedAt)
		b.Metadata.DueDate = strings.TrimSpace(b.Metadata.DueDate)
	}

	if b.Assignee != nil && models.IsUnassigned(b.Assignee) {
		bp.stats.AssigneesCleared++
	}
	b.Assignee = models.NormalizeAssignee(b.Assignee)

	if strings.TrimSpace(string(b.Status)) == "" && bp.config.DefaultStatus != "" {
		b.Status = bp.config.DefaultStatus
		bp.stats.StatusesDefaulted++
	} else if parsed, err := models.ParseStatus(string(b.Status)); err == nil {
		b.Status = parsed
	}

	if b.Metadata.Priority == "" {
		b.Metadata.Priority = bp.config.DefaultPriority
	}
	if bp.config.FillDefaultTasks && len(b.Tasks) == 0 {
		b.Tasks = models.DefaultTasks()
	}
	if bp.config.DefaultFolders && b.Folder == "" && b.ID != "" {
		b.Folder = "/data/" + b.ID
	}

	if err := b.Validate(); err != nil {
		bp.stats.Rejected++
		return err
	}
	return nil
}

// Stats returns counters accumulated since creation
func (bp *BatchPreprocessor) Stats() PreprocessingStats {
	return bp.stats
}
