// Package store defines the three logical stores the tracker depends on:
// batch records, the uploaded-mask file catalog, and the team roster.
package store

import (
	"context"
	"errors"
	"time"

	"segmentation-tracker/internal/models"
	apperrors "segmentation-tracker/pkg/errors"
)

// Logical store names, used in configuration and error reports
const (
	BatchStoreName  = "batches"
	CatalogName     = "catalog"
	RosterStoreName = "roster"
)

var (
	// ErrNotFound is returned when the referenced record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write would violate identifier uniqueness
	ErrDuplicate = errors.New("duplicate identifier")
	// ErrUnavailable is returned when the backing store cannot be reached
	ErrUnavailable = errors.New("store unavailable")
)

// BatchStore is CRUD over batch records keyed by id
type BatchStore interface {
	// List returns every batch ordered by id
	List(ctx context.Context) ([]*models.Batch, error)
	// ListPage returns one page ordered by id plus the total count
	ListPage(ctx context.Context, offset, limit int) ([]*models.Batch, int, error)
	Get(ctx context.Context, id string) (*models.Batch, error)
	Insert(ctx context.Context, batch *models.Batch) error
	Update(ctx context.Context, id string, patch *BatchPatch) error
	Rename(ctx context.Context, oldID, newID string) error
	// Delete removes the batch and returns it as it was before removal
	Delete(ctx context.Context, id string) (*models.Batch, error)
	DeleteAll(ctx context.Context) (int, error)
	Count(ctx context.Context) (int, error)
}

// FileCatalog is read-only enumeration of uploaded files
type FileCatalog interface {
	ListFiles(ctx context.Context) ([]models.CatalogEntry, error)
}

// RosterStore persists team members keyed by name
type RosterStore interface {
	// ListMembers returns members in the order they were added
	ListMembers(ctx context.Context) ([]models.TeamMember, error)
	AddMember(ctx context.Context, member models.TeamMember) error
}

// Pinger is implemented by stores that can check connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// BatchPatch is a partial update of a batch. Nil pointers leave the field
// untouched; the *Set flags distinguish "set to null" from "leave alone".
type BatchPatch struct {
	Assignee    *string
	AssigneeSet bool

	Status   *models.Status
	Folder   *string
	Tasks    []string
	Comments *string

	AssignedAt *string
	DueDate    *string
	Priority   *string

	ReviewedAt    *time.Time
	ReviewedAtSet bool

	MongoUploaded *bool
	FileInfo      *models.FileInfo
}

// IsEmpty reports whether the patch changes nothing
func (p *BatchPatch) IsEmpty() bool {
	return !p.AssigneeSet && p.Status == nil && p.Folder == nil && p.Tasks == nil &&
		p.Comments == nil && p.AssignedAt == nil && p.DueDate == nil && p.Priority == nil &&
		!p.ReviewedAtSet && p.MongoUploaded == nil && p.FileInfo == nil
}

// Apply writes the patch onto b
func (p *BatchPatch) Apply(b *models.Batch) {
	if p.AssigneeSet {
		b.Assignee = models.NormalizeAssignee(p.Assignee)
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.Folder != nil {
		b.Folder = *p.Folder
	}
	if p.Tasks != nil {
		b.Tasks = append([]string(nil), p.Tasks...)
	}
	if p.Comments != nil {
		b.Comments = *p.Comments
	}
	if p.AssignedAt != nil {
		b.Metadata.AssignedAt = *p.AssignedAt
	}
	if p.DueDate != nil {
		b.Metadata.DueDate = *p.DueDate
	}
	if p.Priority != nil {
		b.Metadata.Priority = *p.Priority
	}
	if p.ReviewedAtSet {
		b.Metadata.ReviewedAt = p.ReviewedAt
	}
	if p.MongoUploaded != nil {
		b.MongoUploaded = *p.MongoUploaded
	}
	if p.FileInfo != nil {
		fi := *p.FileInfo
		b.FileInfo = &fi
	}
}

// FileInfoPatch builds the patch written by a reconciliation pass
func FileInfoPatch(info *models.FileInfo) *BatchPatch {
	uploaded := info.HasFiles
	return &BatchPatch{MongoUploaded: &uploaded, FileInfo: info}
}

// Translate maps store sentinel errors onto application error kinds.
// id names the batch or member the operation referenced.
func Translate(storeName, id string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return apperrors.BatchNotFound(id)
	case errors.Is(err, ErrDuplicate):
		return apperrors.DuplicateIdentifier(id)
	default:
		if _, ok := apperrors.AsAppError(err); ok {
			return err
		}
		return apperrors.StoreUnavailable(storeName, err)
	}
}
