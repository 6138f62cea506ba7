package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"segmentation-tracker/internal/models"
	"segmentation-tracker/internal/store/memstore"
	apperrors "segmentation-tracker/pkg/errors"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func catalogEntry(name string, minutesAgo int) models.CatalogEntry {
	return models.CatalogEntry{
		Filename:   name,
		UploadDate: fixedNow.Add(-time.Duration(minutesAgo) * time.Minute),
		Length:     2 * 1024 * 1024,
		Metadata:   &models.CatalogMetadata{UploadedBy: "Flor"},
	}
}

func uploadedBatch(id string) *models.Batch {
	b := models.NewBatch(id)
	b.MongoUploaded = true
	b.FileInfo = &models.FileInfo{FileCount: 1, HasFiles: true, Files: []string{"stale.zip"}}
	return b
}

func newTestService(t *testing.T, batches *memstore.BatchStore, catalog *memstore.FileCatalog, config *Config) *ReconciliationService {
	t.Helper()
	rs, err := NewReconciliationService(batches, catalog, nil, config)
	if err != nil {
		t.Fatalf("NewReconciliationService failed: %v", err)
	}
	rs.now = func() time.Time { return fixedNow }
	return rs
}

func mustGet(t *testing.T, s *memstore.BatchStore, id string) *models.Batch {
	t.Helper()
	b, err := s.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%s) failed: %v", id, err)
	}
	return b
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"negative interval", func(c *Config) { c.ProgressLogInterval = -time.Second }, true},
		{"padded assignee", func(c *Config) { c.DefaultAssignee = " Flor" }, true},
		{"assignee", func(c *Config) { c.DefaultAssignee = "Flor" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewReconciliationServiceRejectsMissingStores(t *testing.T) {
	_, err := NewReconciliationService(nil, memstore.NewFileCatalog(), nil, nil)
	if !apperrors.IsKind(err, apperrors.CodeMissingField) {
		t.Errorf("expected missing_field, got %v", err)
	}
}

func TestReconcileAllUpdatesStaleBatches(t *testing.T) {
	batches := memstore.NewBatchStore(models.NewBatch("batch_5"), uploadedBatch("batch_6"), models.NewBatch("batch_7"))
	catalog := memstore.NewFileCatalog(
		catalogEntry("masks_batch_5.tar.xz", 10),
		catalogEntry("Batch_5 (2).zip", 20),
		catalogEntry("readme.txt", 5),
	)
	rs := newTestService(t, batches, catalog, nil)

	report, err := rs.ReconcileAll(context.Background())
	if err != nil {
		t.Fatalf("ReconcileAll failed: %v", err)
	}

	if report.TotalBatches != 3 || report.BatchesUpdated != 3 || report.BatchesFailed != 0 {
		t.Errorf("unexpected counts: %+v", report)
	}
	if report.RunID == "" || report.CatalogFiles != 3 {
		t.Errorf("report missing run metadata: %+v", report)
	}

	b5 := mustGet(t, batches, "batch_5")
	if !b5.MongoUploaded || b5.FileInfo.FileCount != 2 {
		t.Errorf("batch_5 should be uploaded with 2 files, got %+v", b5.FileInfo)
	}
	if b5.FileInfo.Files[0] != "masks_batch_5.tar.xz" {
		t.Errorf("expected most recent file first, got %v", b5.FileInfo.Files)
	}
	if !b5.FileInfo.LastFileUpload.Equal(fixedNow.Add(-10 * time.Minute)) {
		t.Errorf("unexpected last upload %v", b5.FileInfo.LastFileUpload)
	}

	b6 := mustGet(t, batches, "batch_6")
	if b6.MongoUploaded || b6.FileInfo.HasFiles || b6.FileInfo.FileCount != 0 {
		t.Errorf("batch_6 has no files in the catalog and must be reset, got %+v", b6.FileInfo)
	}

	if report.Anomalies == nil || len(report.Anomalies.Orphans) != 1 {
		t.Errorf("expected readme.txt reported as orphan, got %+v", report.Anomalies)
	}
}

func TestReconcileAllIsIdempotent(t *testing.T) {
	batches := memstore.NewBatchStore(models.NewBatch("batch_1"), uploadedBatch("batch_2"))
	catalog := memstore.NewFileCatalog(catalogEntry("batch_1.zip", 1))
	rs := newTestService(t, batches, catalog, &Config{RefreshFileInfo: true})

	first, err := rs.ReconcileAll(context.Background())
	if err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	if first.BatchesUpdated != 2 {
		t.Fatalf("expected 2 updates on first pass, got %d", first.BatchesUpdated)
	}

	second, err := rs.ReconcileAll(context.Background())
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if second.BatchesUpdated != 0 {
		t.Errorf("expected no updates on unchanged data, got %d", second.BatchesUpdated)
	}
}

func TestReconcileAllRefreshFileInfo(t *testing.T) {
	ctx := context.Background()
	batches := memstore.NewBatchStore(models.NewBatch("batch_1"))
	catalog := memstore.NewFileCatalog(catalogEntry("batch_1.zip", 30))

	lazy := newTestService(t, batches, catalog, nil)
	if _, err := lazy.ReconcileAll(ctx); err != nil {
		t.Fatalf("initial pass failed: %v", err)
	}

	catalog.Add(catalogEntry("masks_batch_1.tar.xz", 1))

	report, err := lazy.ReconcileAll(ctx)
	if err != nil {
		t.Fatalf("pass failed: %v", err)
	}
	if report.BatchesUpdated != 0 {
		t.Errorf("verdict unchanged, expected no write without refresh, got %d", report.BatchesUpdated)
	}

	eager := newTestService(t, batches, catalog, &Config{RefreshFileInfo: true})
	report, err = eager.ReconcileAll(ctx)
	if err != nil {
		t.Fatalf("refresh pass failed: %v", err)
	}
	if report.BatchesUpdated != 1 {
		t.Errorf("expected refreshed file info to be written, got %d updates", report.BatchesUpdated)
	}
	if got := mustGet(t, batches, "batch_1").FileInfo.FileCount; got != 2 {
		t.Errorf("expected file count 2 after refresh, got %d", got)
	}
}

func TestReconcileAllContinuesAfterRecordFailure(t *testing.T) {
	batches := memstore.NewBatchStore(models.NewBatch("batch_1"), models.NewBatch("batch_2"), models.NewBatch("batch_3"))
	batches.Fail = func(op, id string) error {
		if op == "update" && id == "batch_2" {
			return errors.New("write concern timeout")
		}
		return nil
	}
	catalog := memstore.NewFileCatalog(catalogEntry("batch_1.zip", 1), catalogEntry("batch_2.zip", 2), catalogEntry("batch_3.zip", 3))
	rs := newTestService(t, batches, catalog, nil)

	report, err := rs.ReconcileAll(context.Background())
	if err != nil {
		t.Fatalf("record failures must not abort the pass: %v", err)
	}

	if report.BatchesUpdated != 2 || report.BatchesFailed != 1 || report.Success() {
		t.Errorf("unexpected counts: updated=%d failed=%d", report.BatchesUpdated, report.BatchesFailed)
	}
	if len(report.Failures) != 1 || report.Failures[0].RecordID != "batch_2" {
		t.Fatalf("expected a single failure for batch_2, got %v", report.Failures)
	}
	if !apperrors.IsKind(report.Failures[0], apperrors.CodeUpdateFailed) {
		t.Errorf("expected update_failed, got %v", apperrors.Kind(report.Failures[0]))
	}

	if !mustGet(t, batches, "batch_3").MongoUploaded {
		t.Error("batch_3 after the failed record must still be updated")
	}
	if mustGet(t, batches, "batch_2").MongoUploaded {
		t.Error("failed batch must keep its stored state")
	}
}

func TestReconcileAllCatalogFailureIsFatal(t *testing.T) {
	batches := memstore.NewBatchStore(models.NewBatch("batch_1"))
	catalog := memstore.NewFileCatalog(catalogEntry("batch_1.zip", 1))
	catalog.Fail = func(op, id string) error { return errors.New("connection refused") }
	rs := newTestService(t, batches, catalog, nil)

	report, err := rs.ReconcileAll(context.Background())
	if report != nil {
		t.Errorf("expected no report, got %+v", report)
	}
	if !apperrors.IsKind(err, apperrors.CodeStoreUnavailable) {
		t.Fatalf("expected store_unavailable, got %v", err)
	}
	if mustGet(t, batches, "batch_1").FileInfo != nil {
		t.Error("no batch may be written when the catalog cannot be read")
	}
}

func TestReconcileAllKeepsUploadFlagConsistent(t *testing.T) {
	stale := uploadedBatch("batch_4")
	stale.FileInfo.HasFiles = false
	batches := memstore.NewBatchStore(stale, models.NewBatch("batch_5"), uploadedBatch("batch_6"))
	catalog := memstore.NewFileCatalog(catalogEntry("batch_4.tar", 1), catalogEntry("batch_6.tar", 2))
	rs := newTestService(t, batches, catalog, nil)

	if _, err := rs.ReconcileAll(context.Background()); err != nil {
		t.Fatalf("ReconcileAll failed: %v", err)
	}

	all, _ := batches.List(context.Background())
	for _, b := range all {
		if b.FileInfo == nil {
			t.Errorf("%s has no file_info after a pass", b.ID)
			continue
		}
		if b.MongoUploaded != b.FileInfo.HasFiles {
			t.Errorf("%s: mongo_uploaded=%t but has_files=%t", b.ID, b.MongoUploaded, b.FileInfo.HasFiles)
		}
		if b.FileInfo.HasFiles != (b.FileInfo.FileCount > 0) {
			t.Errorf("%s: has_files disagrees with file_count", b.ID)
		}
	}
}

func TestReconcileAllRepairsStaleFileInfo(t *testing.T) {
	stale := models.NewBatch("batch_4")
	stale.MongoUploaded = true
	stale.FileInfo = &models.FileInfo{HasFiles: false, FileCount: 0}
	batches := memstore.NewBatchStore(stale)
	catalog := memstore.NewFileCatalog(catalogEntry("batch_4.tar", 1))
	rs := newTestService(t, batches, catalog, nil)

	report, err := rs.ReconcileAll(context.Background())
	if err != nil {
		t.Fatalf("ReconcileAll failed: %v", err)
	}
	if report.BatchesUpdated != 1 {
		t.Errorf("expected 1 update, got %d", report.BatchesUpdated)
	}

	got := mustGet(t, batches, "batch_4")
	if !got.MongoUploaded || got.FileInfo == nil || !got.FileInfo.HasFiles || got.FileInfo.FileCount != 1 {
		t.Errorf("expected repaired file_info, got mongo_uploaded=%t file_info=%+v", got.MongoUploaded, got.FileInfo)
	}

	again, err := rs.ReconcileAll(context.Background())
	if err != nil {
		t.Fatalf("second ReconcileAll failed: %v", err)
	}
	if again.BatchesUpdated != 0 {
		t.Errorf("expected no writes on the second pass, got %d", again.BatchesUpdated)
	}
}

func TestReconcileAllWritesBackToStoredID(t *testing.T) {
	batches := memstore.NewBatchStore(models.NewBatch(" batch_8 "))
	catalog := memstore.NewFileCatalog(catalogEntry("batch_8.zip", 1))
	rs := newTestService(t, batches, catalog, nil)

	report, err := rs.ReconcileAll(context.Background())
	if err != nil {
		t.Fatalf("ReconcileAll failed: %v", err)
	}
	if report.BatchesFailed != 0 || report.BatchesUpdated != 1 {
		t.Fatalf("expected 1 update and no failures, got %d updated, %d failed", report.BatchesUpdated, report.BatchesFailed)
	}
	if got := mustGet(t, batches, " batch_8 "); !got.MongoUploaded {
		t.Error("expected the padded batch to match batch_8.zip")
	}
}

func TestReconcileAllProgressCallbacks(t *testing.T) {
	batches := memstore.NewBatchStore(models.NewBatch("batch_1"), models.NewBatch("batch_2"))
	rs := newTestService(t, batches, memstore.NewFileCatalog(), nil)

	var seen []ReconciliationProgress
	rs.AddProgressCallback(func(p *ReconciliationProgress) { seen = append(seen, *p) })
	rs.AddProgressCallback(nil)

	if _, err := rs.ReconcileAll(context.Background()); err != nil {
		t.Fatalf("ReconcileAll failed: %v", err)
	}

	if len(seen) != 3 {
		t.Fatalf("expected one callback per batch plus completion, got %d", len(seen))
	}
	if seen[0].Processed != 1 || seen[0].Done {
		t.Errorf("unexpected first snapshot %+v", seen[0])
	}
	last := seen[len(seen)-1]
	if !last.Done || last.Processed != 2 || last.PercentComplete != 100 || last.Updated != 2 {
		t.Errorf("unexpected final snapshot %+v", last)
	}
}

func TestReconcileDoesNotMutate(t *testing.T) {
	b := models.NewBatch("batch_5")
	report := Reconcile([]*models.Batch{b}, []models.CatalogEntry{catalogEntry("batch_5.zip", 1)})

	if report.BatchesUpdated != 1 || !report.Results[0].Updated || !report.Results[0].MongoUploaded {
		t.Errorf("expected a planned update, got %+v", report.Results[0])
	}
	if b.MongoUploaded || b.FileInfo != nil {
		t.Error("planning must not modify the batch")
	}
}
