package models

import (
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		input    string
		expected Status
		wantErr  bool
	}{
		{"NS", StatusNotSegmented, false},
		{"fs", StatusInProgress, false},
		{" S ", StatusSegmented, false},
		{"done", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			status, err := ParseStatus(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStatus(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if status != tt.expected {
				t.Errorf("ParseStatus(%q) = %s, want %s", tt.input, status, tt.expected)
			}
		})
	}
}

func TestNewBatchDefaults(t *testing.T) {
	b := NewBatch("batch_12")

	if b.Folder != "/data/batch_12" {
		t.Errorf("expected default folder, got %s", b.Folder)
	}
	if len(b.Tasks) != 3 || b.Tasks[0] != "segment" {
		t.Errorf("unexpected default tasks %v", b.Tasks)
	}
	if b.Status != StatusNotSegmented {
		t.Errorf("expected NS status, got %s", b.Status)
	}
	if b.Metadata.Priority != "medium" {
		t.Errorf("expected medium priority, got %s", b.Metadata.Priority)
	}
	if b.Assignee != nil || b.MongoUploaded || b.FileInfo != nil {
		t.Error("expected new batch to be unassigned with no files")
	}
	if err := b.Validate(); err != nil {
		t.Errorf("expected default batch to validate, got %v", err)
	}
}

func TestBatchValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(b *Batch)
		wantErr bool
	}{
		{"valid", func(b *Batch) {}, false},
		{"empty id", func(b *Batch) { b.ID = "  " }, true},
		{"bad status", func(b *Batch) { b.Status = "DONE" }, true},
		{"bad date", func(b *Batch) { b.Metadata.AssignedAt = "15/01/2025" }, true},
		{"good date", func(b *Batch) { b.Metadata.AssignedAt = "2025-01-15" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBatch("batch_1")
			tt.mutate(b)
			if err := b.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAssigneeHelpers(t *testing.T) {
	tests := []struct {
		name       string
		assignee   *string
		unassigned bool
		normalized *string
	}{
		{"nil", nil, true, nil},
		{"empty", StringPtr(""), true, nil},
		{"whitespace", StringPtr("   "), true, nil},
		{"name", StringPtr(" Ceci "), false, StringPtr("Ceci")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if IsUnassigned(tt.assignee) != tt.unassigned {
				t.Errorf("IsUnassigned = %v, want %v", !tt.unassigned, tt.unassigned)
			}
			got := NormalizeAssignee(tt.assignee)
			if (got == nil) != (tt.normalized == nil) || (got != nil && *got != *tt.normalized) {
				t.Errorf("NormalizeAssignee = %v, want %v", got, tt.normalized)
			}
		})
	}
}

func TestBatchSuffix(t *testing.T) {
	tests := []struct {
		id      string
		suffix  string
		number  int
		numeric bool
	}{
		{"batch_42", "42", 42, true},
		{"Batch_7", "7", 7, true},
		{"batch_000040F", "000040F", 0, false},
		{"batch_T000054", "T000054", 0, false},
		{"other", "other", 0, false},
		{"batch_", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := BatchSuffix(tt.id); got != tt.suffix {
				t.Errorf("BatchSuffix(%q) = %q, want %q", tt.id, got, tt.suffix)
			}
			n, ok := NumericSuffix(tt.id)
			if ok != tt.numeric || n != tt.number {
				t.Errorf("NumericSuffix(%q) = %d,%v want %d,%v", tt.id, n, ok, tt.number, tt.numeric)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Now()
	b := NewBatch("batch_3")
	b.Assignee = StringPtr("Flor")
	b.FileInfo = &FileInfo{FileCount: 1, HasFiles: true, Files: []string{"a"}, LastFileUpload: &now}

	c := b.Clone()
	*c.Assignee = "Maggie"
	c.Tasks[0] = "changed"
	c.FileInfo.Files[0] = "b"

	if *b.Assignee != "Flor" || b.Tasks[0] != "segment" || b.FileInfo.Files[0] != "a" {
		t.Error("mutating the clone changed the original")
	}
	if !b.FileInfo.Equal(b.Clone().FileInfo) {
		t.Error("expected clone file info to be equal")
	}
}

func TestFileInfoEqual(t *testing.T) {
	ts := time.Date(2025, 3, 1, 10, 0, 0, 123456789, time.UTC)
	truncated := ts.Truncate(time.Millisecond)

	a := &FileInfo{FileCount: 1, HasFiles: true, Files: []string{"x"}, LastFileUpload: &ts}
	b := &FileInfo{FileCount: 1, HasFiles: true, Files: []string{"x"}, LastFileUpload: &truncated}

	if !a.Equal(b) {
		t.Error("expected millisecond-equal timestamps to compare equal")
	}
	if a.Equal(nil) {
		t.Error("expected non-nil not to equal nil")
	}
	if !(*FileInfo)(nil).Equal(nil) {
		t.Error("expected nil to equal nil")
	}
}

func TestCatalogEntryHelpers(t *testing.T) {
	e := CatalogEntry{Filename: "masks_batch_1.zip", Length: 3 * 1024 * 1024}
	if e.UploadedBy() != "" {
		t.Error("expected empty uploader without metadata")
	}
	if e.SizeMB() != 3 {
		t.Errorf("expected 3 MB, got %v", e.SizeMB())
	}
	e.Metadata = &CatalogMetadata{UploadedBy: "Ignacio"}
	if e.UploadedBy() != "Ignacio" {
		t.Errorf("expected uploader Ignacio, got %s", e.UploadedBy())
	}
}
