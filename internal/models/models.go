package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the layout of assigned_at values and range filters
const DateLayout = "2006-01-02"

// DefaultPriority is applied to batches created without a priority
const DefaultPriority = "medium"

// DefaultTasks returns the task list given to new batches
func DefaultTasks() []string {
	return []string{"segment", "upload_masks", "review"}
}

// Status is the segmentation state of a batch
type Status string

const (
	// StatusNotSegmented marks a batch nobody has started
	StatusNotSegmented Status = "NS"
	// StatusInProgress marks a batch under follow-up segmentation
	StatusInProgress Status = "FS"
	// StatusSegmented marks a completed batch
	StatusSegmented Status = "S"
)

func (s Status) String() string {
	return string(s)
}

// IsValid checks if the status is one of the known codes
func (s Status) IsValid() bool {
	return s == StatusNotSegmented || s == StatusInProgress || s == StatusSegmented
}

// Label returns a human-readable name for the status
func (s Status) Label() string {
	switch s {
	case StatusNotSegmented:
		return "not segmented"
	case StatusInProgress:
		return "in progress"
	case StatusSegmented:
		return "segmented"
	default:
		return "unknown"
	}
}

// ParseStatus parses a status code, accepting any letter case
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", fmt.Errorf("invalid status: %q (expected NS, FS or S)", s)
	}
	return status, nil
}

// Metadata holds the scheduling attributes of a batch
type Metadata struct {
	AssignedAt string     `json:"assigned_at" bson:"assigned_at" yaml:"assigned_at"`
	DueDate    string     `json:"due_date" bson:"due_date" yaml:"due_date"`
	Priority   string     `json:"priority" bson:"priority" yaml:"priority"`
	ReviewedAt *time.Time `json:"reviewed_at" bson:"reviewed_at" yaml:"reviewed_at"`
}

// FileInfo summarizes the catalog files matched to a batch
type FileInfo struct {
	FileCount      int        `json:"file_count" bson:"file_count"`
	LastFileUpload *time.Time `json:"last_file_upload" bson:"last_file_upload"`
	HasFiles       bool       `json:"has_files" bson:"has_files"`
	Files          []string   `json:"files" bson:"files"`
}

// Equal compares two file summaries, treating timestamps at millisecond
// precision since that is what the store keeps.
func (f *FileInfo) Equal(other *FileInfo) bool {
	if f == nil || other == nil {
		return f == other
	}
	if f.FileCount != other.FileCount || f.HasFiles != other.HasFiles || len(f.Files) != len(other.Files) {
		return false
	}
	for i := range f.Files {
		if f.Files[i] != other.Files[i] {
			return false
		}
	}
	switch {
	case f.LastFileUpload == nil || other.LastFileUpload == nil:
		return f.LastFileUpload == nil && other.LastFileUpload == nil
	default:
		return f.LastFileUpload.Truncate(time.Millisecond).Equal(other.LastFileUpload.Truncate(time.Millisecond))
	}
}

// Batch is a unit of segmentation work
type Batch struct {
	ID            string    `json:"id" bson:"id" yaml:"id"`
	Assignee      *string   `json:"assignee" bson:"assignee" yaml:"assignee"`
	Folder        string    `json:"folder" bson:"folder" yaml:"folder"`
	Tasks         []string  `json:"tasks" bson:"tasks" yaml:"tasks"`
	Status        Status    `json:"status" bson:"status" yaml:"status"`
	Metadata      Metadata  `json:"metadata" bson:"metadata" yaml:"metadata"`
	MongoUploaded bool      `json:"mongo_uploaded" bson:"mongo_uploaded" yaml:"mongo_uploaded"`
	FileInfo      *FileInfo `json:"file_info,omitempty" bson:"file_info,omitempty" yaml:"-"`
	Comments      string    `json:"comments" bson:"comments" yaml:"comments"`
}

// NewBatch returns a batch carrying the defaults for a freshly created record
func NewBatch(id string) *Batch {
	return &Batch{
		ID:       id,
		Folder:   "/data/" + id,
		Tasks:    DefaultTasks(),
		Status:   StatusNotSegmented,
		Metadata: Metadata{Priority: DefaultPriority},
	}
}

// Validate performs basic validation on the Batch
func (b *Batch) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return fmt.Errorf("batch ID cannot be empty")
	}

	if !b.Status.IsValid() {
		return fmt.Errorf("invalid status for batch %s: %q", b.ID, b.Status)
	}

	if b.Metadata.AssignedAt != "" && !ValidDate(b.Metadata.AssignedAt) {
		return fmt.Errorf("invalid assigned_at for batch %s: %q", b.ID, b.Metadata.AssignedAt)
	}

	return nil
}

// AssigneeName returns the assignee or "" when unassigned
func (b *Batch) AssigneeName() string {
	if IsUnassigned(b.Assignee) {
		return ""
	}
	return *b.Assignee
}

// Clone returns a deep copy of the batch
func (b *Batch) Clone() *Batch {
	if b == nil {
		return nil
	}
	c := *b
	if b.Assignee != nil {
		c.Assignee = StringPtr(*b.Assignee)
	}
	if b.Tasks != nil {
		c.Tasks = append([]string(nil), b.Tasks...)
	}
	if b.Metadata.ReviewedAt != nil {
		t := *b.Metadata.ReviewedAt
		c.Metadata.ReviewedAt = &t
	}
	if b.FileInfo != nil {
		fi := *b.FileInfo
		fi.Files = append([]string(nil), b.FileInfo.Files...)
		if b.FileInfo.LastFileUpload != nil {
			t := *b.FileInfo.LastFileUpload
			fi.LastFileUpload = &t
		}
		c.FileInfo = &fi
	}
	return &c
}

func (b *Batch) String() string {
	return fmt.Sprintf("Batch{ID: %s, Assignee: %q, Status: %s, Uploaded: %t}",
		b.ID, b.AssigneeName(), b.Status, b.MongoUploaded)
}

// CatalogMetadata is the uploader-supplied metadata of a catalog file
type CatalogMetadata struct {
	UploadedBy string `json:"uploaded_by" bson:"uploaded_by"`
}

// CatalogEntry is one file in the uploaded-masks catalog
type CatalogEntry struct {
	Filename   string           `json:"filename" bson:"filename"`
	UploadDate time.Time        `json:"upload_date" bson:"uploadDate"`
	Metadata   *CatalogMetadata `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Length     int64            `json:"length" bson:"length"`
}

// UploadedBy returns the uploader or "" when the entry carries no metadata
func (e CatalogEntry) UploadedBy() string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata.UploadedBy
}

// SizeMB returns the file size in megabytes rounded to two decimals
func (e CatalogEntry) SizeMB() float64 {
	mb := float64(e.Length) / (1024 * 1024)
	return float64(int64(mb*100+0.5)) / 100
}

// DefaultRole is given to roster members added without a role
const DefaultRole = "Segmentador General"

// TeamMember is one entry of the roster
type TeamMember struct {
	Name    string    `json:"name" bson:"name"`
	Role    string    `json:"role" bson:"role"`
	Email   string    `json:"email" bson:"email"`
	Active  bool      `json:"active" bson:"active"`
	AddedAt time.Time `json:"added_at" bson:"added_at"`
}

// Utility functions

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}

// IsUnassigned reports whether an assignee value means "nobody"
func IsUnassigned(assignee *string) bool {
	return assignee == nil || strings.TrimSpace(*assignee) == ""
}

// NormalizeAssignee trims the assignee and maps blank values to nil
func NormalizeAssignee(assignee *string) *string {
	if IsUnassigned(assignee) {
		return nil
	}
	return StringPtr(strings.TrimSpace(*assignee))
}

// ValidDate reports whether s is a YYYY-MM-DD calendar date
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

var batchPrefix = regexp.MustCompile(`(?i)^batch_`)

// BatchSuffix strips the leading batch_ prefix (any capitalization)
func BatchSuffix(id string) string {
	return batchPrefix.ReplaceAllString(strings.TrimSpace(id), "")
}

// NumericSuffix returns N for identifiers of the form batch_N with N all digits
func NumericSuffix(id string) (int, bool) {
	suffix := BatchSuffix(id)
	if suffix == id || suffix == "" {
		return 0, false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, false
	}
	return n, true
}
