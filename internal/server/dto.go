package server

import (
	"time"

	"segmentation-tracker/internal/batches"
	"segmentation-tracker/internal/matcher"
	"segmentation-tracker/internal/models"
	"segmentation-tracker/internal/parsers"
	"segmentation-tracker/internal/reconciler"
	apperrors "segmentation-tracker/pkg/errors"
)

// Request payloads

type CreateBatchRequest struct {
	ID            string   `json:"id,omitempty"`
	Assignee      *string  `json:"assignee,omitempty" nullable:"true"`
	Folder        string   `json:"folder,omitempty"`
	Tasks         []string `json:"tasks,omitempty"`
	Status        string   `json:"status,omitempty" example:"NS"`
	AssignedAt    string   `json:"assigned_at,omitempty" example:"2025-03-14"`
	DueDate       string   `json:"due_date,omitempty"`
	Priority      string   `json:"priority,omitempty" example:"medium"`
	MongoUploaded bool     `json:"mongo_uploaded,omitempty"`
	Comments      string   `json:"comments,omitempty"`
}

type MetadataRequest struct {
	_          struct{}   `json:"-" additionalProperties:"true"`
	AssignedAt *string    `json:"assigned_at,omitempty"`
	DueDate    *string    `json:"due_date,omitempty"`
	Priority   *string    `json:"priority,omitempty"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty" nullable:"true"`
}

// UpdateBatchRequest accepts the batch object the UI edits, so unknown
// fields such as file_info are tolerated and ignored.
type UpdateBatchRequest struct {
	_             struct{}         `json:"-" additionalProperties:"true"`
	Assignee      *string          `json:"assignee,omitempty" nullable:"true"`
	Status        *string          `json:"status,omitempty" example:"FS"`
	Folder        *string          `json:"folder,omitempty"`
	Tasks         []string         `json:"tasks,omitempty"`
	Comments      *string          `json:"comments,omitempty"`
	MongoUploaded *bool            `json:"mongo_uploaded,omitempty"`
	Metadata      *MetadataRequest `json:"metadata,omitempty"`
	AssignedAt    *string          `json:"assigned_at,omitempty"`
	DueDate       *string          `json:"due_date,omitempty"`
	Priority      *string          `json:"priority,omitempty"`
}

type ChangeIDRequest struct {
	NewID string `json:"new_id" example:"batch_12"`
}

type AddMemberRequest struct {
	Name  string `json:"name" example:"Flor"`
	Role  string `json:"role,omitempty" example:"Segmentador General"`
	Email string `json:"email,omitempty"`
}

type SyncRequest struct {
	AutoCreate bool `json:"auto_create,omitempty"`
	DryRun     bool `json:"dry_run,omitempty"`
}

type SeedRequest struct {
	Force bool `json:"force,omitempty"`
}

// Response payloads

type HealthResponse struct {
	Status string            `json:"status" example:"ok"`
	Stores map[string]string `json:"stores"`
}

type FailureResponse struct {
	RecordID string `json:"record_id"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	Source   string `json:"source,omitempty"`
	Line     int    `json:"line,omitempty"`
}

type BatchResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Batch   *models.Batch `json:"batch"`
}

type DeleteBatchResponse struct {
	Success      bool                  `json:"success"`
	Message      string                `json:"message"`
	DeletedBatch *batches.DeletedBatch `json:"deleted_batch"`
}

type SyncResponse struct {
	Success          bool                      `json:"success"`
	Message          string                    `json:"message"`
	RunID            string                    `json:"run_id"`
	DryRun           bool                      `json:"dry_run"`
	TotalBatches     int                       `json:"total_batches"`
	BatchesUpdated   int                       `json:"batches_updated"`
	BatchesFailed    int                       `json:"batches_failed"`
	BatchesWithFiles int                       `json:"batches_with_files"`
	CatalogFiles     int                       `json:"catalog_files"`
	DurationMS       int64                     `json:"duration_ms"`
	Results          []reconciler.BatchOutcome `json:"results"`
	Failures         []FailureResponse         `json:"failures,omitempty"`
	Anomalies        *matcher.AnomalyReport    `json:"anomalies,omitempty"`
	AutoCreate       *AutoCreateResponse       `json:"auto_create,omitempty"`
}

type AutoCreateResponse struct {
	Success        bool              `json:"success"`
	Message        string            `json:"message"`
	CreatedBatches int               `json:"created_batches"`
	TotalFound     int               `json:"total_found"`
	FilesScanned   int               `json:"files_scanned"`
	Created        []string          `json:"created"`
	Existing       []string          `json:"existing"`
	Unnamed        []string          `json:"unnamed,omitempty"`
	Failures       []FailureResponse `json:"failures,omitempty"`
}

type SeedResponse struct {
	Success       bool              `json:"success"`
	Message       string            `json:"message"`
	Loaded        bool              `json:"loaded"`
	ExistingCount int               `json:"existing_count"`
	Removed       int               `json:"removed"`
	LoadedCount   int               `json:"loaded_count"`
	TotalInFile   int               `json:"total_in_file"`
	Skipped       []string          `json:"skipped,omitempty"`
	Failures      []FailureResponse `json:"failures,omitempty"`
	ParseErrors   []FailureResponse `json:"parse_errors,omitempty"`
}

type RecentFileResponse struct {
	Filename   string    `json:"filename"`
	UploadDate time.Time `json:"uploadDate"`
	SizeMB     float64   `json:"size_mb"`
	UploadedBy string    `json:"uploaded_by,omitempty"`
}

type CatalogResponse struct {
	Success       bool                 `json:"success"`
	TotalFiles    int                  `json:"total_files"`
	Stats         matcher.IndexStats   `json:"stats"`
	RecentFiles   []RecentFileResponse `json:"recent_files"`
	BatchPatterns map[string][]string  `json:"batch_patterns"`
	Unnamed       []string             `json:"unnamed,omitempty"`
}

type RosterResponse struct {
	Success       bool                `json:"success"`
	Segmentadores []string            `json:"segmentadores"`
	Members       []models.TeamMember `json:"members"`
	Total         int                 `json:"total"`
}

type AddMemberResponse struct {
	Success     bool               `json:"success"`
	Message     string             `json:"message"`
	Segmentador *models.TeamMember `json:"segmentador"`
	TeamSize    int                `json:"team_size"`
}

type MissingResponse struct {
	Success       bool     `json:"success"`
	Missing       []string `json:"missing"`
	Count         int      `json:"count"`
	ExpectedTotal int      `json:"expected_total"`
}

func mapFailures(items []*apperrors.RecordError) []FailureResponse {
	if len(items) == 0 {
		return nil
	}
	out := make([]FailureResponse, len(items))
	for i, f := range items {
		out[i] = FailureResponse{
			RecordID: f.RecordID,
			Kind:     string(f.Code),
			Message:  f.AppError.Error(),
			Source:   f.Source,
			Line:     f.Line,
		}
	}
	return out
}

func mapParseErrors(stats *parsers.ParseStats) []FailureResponse {
	if stats == nil {
		return nil
	}
	return mapFailures(stats.Errors)
}

func mapAutoCreate(r *reconciler.AutoCreateResult) *AutoCreateResponse {
	if r == nil {
		return nil
	}
	return &AutoCreateResponse{
		Success:        len(r.Failures) == 0,
		Message:        autoCreateMessage(r),
		CreatedBatches: len(r.Created),
		TotalFound:     len(r.Created) + len(r.Existing),
		FilesScanned:   r.FilesScanned,
		Created:        r.Created,
		Existing:       r.Existing,
		Unnamed:        r.Unnamed,
		Failures:       mapFailures(r.Failures),
	}
}

func mapSync(r *reconciler.SyncResult, dryRun bool) *SyncResponse {
	rep := r.Reconciliation
	resp := &SyncResponse{
		Success:          rep.Success(),
		DryRun:           dryRun,
		RunID:            rep.RunID,
		TotalBatches:     rep.TotalBatches,
		BatchesUpdated:   rep.BatchesUpdated,
		BatchesFailed:    rep.BatchesFailed,
		BatchesWithFiles: rep.BatchesWithFiles,
		CatalogFiles:     rep.CatalogFiles,
		DurationMS:       r.Duration.Milliseconds(),
		Results:          rep.Results,
		Failures:         mapFailures(rep.Failures),
		Anomalies:        rep.Anomalies,
		AutoCreate:       mapAutoCreate(r.AutoCreate),
	}
	if resp.Results == nil {
		resp.Results = []reconciler.BatchOutcome{}
	}
	if dryRun {
		resp.Message = "Dry run: " + syncMessage(rep)
	} else {
		resp.Message = syncMessage(rep)
	}
	return resp
}

func mapCatalog(c *reconciler.CatalogInspection) *CatalogResponse {
	resp := &CatalogResponse{
		Success:       true,
		TotalFiles:    c.Stats.TotalEntries,
		Stats:         c.Stats,
		RecentFiles:   make([]RecentFileResponse, len(c.RecentFiles)),
		BatchPatterns: make(map[string][]string, len(c.Groups)),
		Unnamed:       c.Unnamed,
	}
	for i, f := range c.RecentFiles {
		resp.RecentFiles[i] = RecentFileResponse{
			Filename:   f.Filename,
			UploadDate: f.UploadDate,
			SizeMB:     f.SizeMB,
			UploadedBy: f.UploadedBy,
		}
	}
	for _, g := range c.Groups {
		resp.BatchPatterns[g.BatchID] = g.Filenames
	}
	return resp
}

func mapSeed(r *batches.SeedResult, stats *parsers.ParseStats) *SeedResponse {
	resp := &SeedResponse{
		Success:       len(r.Failures) == 0,
		Loaded:        r.Loaded,
		ExistingCount: r.ExistingCount,
		Removed:       r.Removed,
		LoadedCount:   r.LoadedCount,
		TotalInFile:   r.TotalInFile,
		Skipped:       r.Skipped,
		Failures:      mapFailures(r.Failures),
		ParseErrors:   mapParseErrors(stats),
	}
	if r.Loaded {
		resp.Message = pluralize(r.LoadedCount, "batch", "batches") + " loaded from seed file"
	} else {
		resp.Message = "Store already holds " + pluralize(r.ExistingCount, "batch", "batches") + "; use force to reload"
	}
	return resp
}
