package store

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"segmentation-tracker/internal/models"
	apperrors "segmentation-tracker/pkg/errors"
)

func TestBatchPatchApply(t *testing.T) {
	b := models.NewBatch("batch_1")
	b.Assignee = models.StringPtr("Flor")
	reviewed := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	patch := &BatchPatch{
		AssigneeSet:   true,
		Assignee:      models.StringPtr("   "),
		Priority:      models.StringPtr("high"),
		ReviewedAt:    &reviewed,
		ReviewedAtSet: true,
	}
	assert.False(t, patch.IsEmpty())
	patch.Apply(b)

	assert.Nil(t, b.Assignee, "blank assignee must unassign")
	assert.Equal(t, "high", b.Metadata.Priority)
	assert.Equal(t, reviewed, *b.Metadata.ReviewedAt)
	assert.Equal(t, models.StatusNotSegmented, b.Status, "untouched fields keep their value")

	assert.True(t, (&BatchPatch{}).IsEmpty())
}

func TestFileInfoPatch(t *testing.T) {
	patch := FileInfoPatch(&models.FileInfo{FileCount: 2, HasFiles: true, Files: []string{"a", "b"}})
	b := models.NewBatch("batch_1")
	patch.Apply(b)

	assert.True(t, b.MongoUploaded)
	assert.Equal(t, b.MongoUploaded, b.FileInfo.HasFiles)
	assert.Equal(t, 2, b.FileInfo.FileCount)
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind apperrors.ErrorCode
	}{
		{"not found", fmt.Errorf("get: %w", ErrNotFound), apperrors.CodeBatchNotFound},
		{"duplicate", ErrDuplicate, apperrors.CodeDuplicateIdentifier},
		{"unavailable", ErrUnavailable, apperrors.CodeStoreUnavailable},
		{"driver error", errors.New("server selection timeout"), apperrors.CodeStoreUnavailable},
		{"already typed", apperrors.InvalidFilter("from", "x", nil), apperrors.CodeInvalidFilter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, apperrors.Kind(Translate(BatchStoreName, "batch_1", tt.err)))
		})
	}

	assert.NoError(t, Translate(BatchStoreName, "x", nil))
}
