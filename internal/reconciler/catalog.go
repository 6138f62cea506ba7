package reconciler

import (
	"context"
	"fmt"
	"time"

	"segmentation-tracker/internal/matcher"
	"segmentation-tracker/internal/models"
	"segmentation-tracker/internal/store"
	apperrors "segmentation-tracker/pkg/errors"
	"segmentation-tracker/pkg/logger"
)

// AutoCreateComment is stored on batches created from catalog files
const AutoCreateComment = "Auto-created from uploaded catalog files"

// AutoCreateResult reports what auto-creation did
type AutoCreateResult struct {
	FilesScanned int                      `json:"files_scanned"`
	Created      []string                 `json:"created"`
	Existing     []string                 `json:"existing"`
	Unnamed      []string                 `json:"unnamed,omitempty"`
	Failures     []*apperrors.RecordError `json:"failures,omitempty"`
}

// CatalogFile is the display form of a catalog entry
type CatalogFile struct {
	Filename   string    `json:"filename"`
	UploadDate time.Time `json:"upload_date"`
	SizeMB     float64   `json:"size_mb"`
	UploadedBy string    `json:"uploaded_by,omitempty"`
}

func catalogFile(e models.CatalogEntry) CatalogFile {
	return CatalogFile{
		Filename:   e.Filename,
		UploadDate: e.UploadDate,
		SizeMB:     e.SizeMB(),
		UploadedBy: e.UploadedBy(),
	}
}

// CatalogInspection summarizes the catalog contents
type CatalogInspection struct {
	Stats       matcher.IndexStats       `json:"stats"`
	RecentFiles []CatalogFile            `json:"recent_files"`
	Groups      []matcher.ExtractedGroup `json:"groups"`
	Unnamed     []string                 `json:"unnamed,omitempty"`
}

// BatchFilesReport lists the catalog files matching one batch
type BatchFilesReport struct {
	BatchID        string        `json:"batch_id"`
	TotalFiles     int           `json:"total_files"`
	TotalSizeMB    float64       `json:"total_size_mb"`
	LastFileUpload *time.Time    `json:"last_file_upload"`
	MongoUploaded  bool          `json:"mongo_uploaded"`
	InSync         bool          `json:"in_sync"`
	Files          []CatalogFile `json:"files"`
}

// AutoCreate creates a batch for every identifier extracted from catalog
// filenames that has no batch yet. The new batch carries the match summary
// computed with the same rules as a reconciliation pass.
func (rs *ReconciliationService) AutoCreate(ctx context.Context) (*AutoCreateResult, error) {
	op := logger.NewOperationLogger("auto_create", rs.logger)

	var assignee *string
	if name := rs.config.DefaultAssignee; name != "" {
		if rs.roster != nil {
			ok, err := rs.roster.Contains(ctx, name)
			if err != nil {
				return nil, store.Translate(store.RosterStoreName, name, err)
			}
			if !ok {
				return nil, apperrors.ValidationError(apperrors.CodeInvalidAssignee, "default_assignee", name, nil).
					WithSuggestion("add the assignee to the roster or clear autocreate.default_assignee")
			}
		}
		assignee = models.StringPtr(name)
	}

	batches, catalog, err := rs.load(ctx)
	if err != nil {
		op.Error(err, "Auto-create aborted: stores unreachable")
		return nil, err
	}

	known := make(map[string]bool, len(batches))
	for _, b := range batches {
		known[b.ID] = true
	}

	index := matcher.NewCatalogIndex(catalog)
	groups, unnamed := matcher.GroupByExtractedID(index)
	result := &AutoCreateResult{
		FilesScanned: index.Len(),
		Created:      []string{},
		Existing:     []string{},
		Unnamed:      unnamed,
	}
	collector := apperrors.NewRecordErrorCollector(0)
	today := rs.now().Format(models.DateLayout)
	limit := rs.matcher.Config().FileListLimit

	for _, group := range groups {
		if known[group.BatchID] {
			result.Existing = append(result.Existing, group.BatchID)
			continue
		}

		b := models.NewBatch(group.BatchID)
		b.Assignee = assignee
		b.Metadata.AssignedAt = today
		b.Comments = AutoCreateComment
		info := rs.matcher.ComputeMatches(group.BatchID, index).FileInfo(limit)
		b.FileInfo = info
		b.MongoUploaded = info.HasFiles

		if err := rs.preprocessor.Normalize(b); err != nil {
			collector.Add(apperrors.NewRecordError(group.BatchID,
				apperrors.ValidationError(apperrors.CodeMissingField, "id", group.BatchID, err)))
			continue
		}

		if err := rs.batches.Insert(ctx, b); err != nil {
			translated := store.Translate(store.BatchStoreName, b.ID, err)
			if apperrors.IsKind(translated, apperrors.CodeDuplicateIdentifier) {
				result.Existing = append(result.Existing, b.ID)
				continue
			}
			collector.Add(apperrors.NewRecordError(b.ID, translated))
			rs.logger.WithError(err).WithField("batch_id", b.ID).Error("Failed to create batch")
			continue
		}

		known[b.ID] = true
		result.Created = append(result.Created, b.ID)
		rs.logger.WithFields(logger.Fields{
			"batch_id": b.ID,
			"files":    len(group.Filenames),
		}).Info("Created batch from catalog files")
	}

	result.Failures = collector.Errors()
	op.WithField("created", len(result.Created)).WithField("existing", len(result.Existing))
	op.Success("Auto-create finished")
	return result, nil
}

// InspectCatalog returns catalog statistics, the limit most recent uploads and
// the batch identifiers that can be extracted from filenames.
func (rs *ReconciliationService) InspectCatalog(ctx context.Context, limit int) (*CatalogInspection, error) {
	if limit < 0 {
		return nil, apperrors.InvalidFilter("limit", limit, fmt.Errorf("limit cannot be negative"))
	}

	catalog, err := rs.catalog.ListFiles(ctx)
	if err != nil {
		return nil, store.Translate(store.CatalogName, "", err)
	}

	index := matcher.NewCatalogIndex(catalog)
	recent := index.Recent(limit)
	inspection := &CatalogInspection{
		Stats:       index.Stats(),
		RecentFiles: make([]CatalogFile, len(recent)),
	}
	for i, e := range recent {
		inspection.RecentFiles[i] = catalogFile(e)
	}
	inspection.Groups, inspection.Unnamed = matcher.GroupByExtractedID(index)

	return inspection, nil
}

// BatchFiles lists every catalog file that matches an existing batch, most
// recent first.
func (rs *ReconciliationService) BatchFiles(ctx context.Context, batchID string) (*BatchFilesReport, error) {
	b, err := rs.batches.Get(ctx, batchID)
	if err != nil {
		return nil, store.Translate(store.BatchStoreName, batchID, err)
	}

	catalog, err := rs.catalog.ListFiles(ctx)
	if err != nil {
		return nil, store.Translate(store.CatalogName, "", err)
	}

	result := rs.matcher.ComputeMatches(b.ID, matcher.NewCatalogIndex(catalog))
	report := &BatchFilesReport{
		BatchID:        b.ID,
		TotalFiles:     result.FileCount,
		LastFileUpload: result.LastFileUpload,
		MongoUploaded:  b.MongoUploaded,
		InSync:         b.MongoUploaded == result.HasFiles,
		Files:          make([]CatalogFile, len(result.Files)),
	}
	for i, e := range result.Files {
		report.Files[i] = catalogFile(e)
	}
	report.TotalSizeMB = models.CatalogEntry{Length: result.TotalBytes()}.SizeMB()

	return report, nil
}
