package reconciler

import (
	"context"
	"errors"
	"testing"

	"segmentation-tracker/internal/models"
	"segmentation-tracker/internal/store/memstore"
	apperrors "segmentation-tracker/pkg/errors"
)

type rosterStub map[string]bool

func (r rosterStub) Contains(ctx context.Context, name string) (bool, error) {
	return r[name], nil
}

func TestAutoCreate(t *testing.T) {
	batches := memstore.NewBatchStore(models.NewBatch("batch_7"))
	catalog := memstore.NewFileCatalog(
		catalogEntry("masks_batch_7.tar.xz", 1),
		catalogEntry("Batch_8 (2).zip", 2),
		catalogEntry("batch_T000054.tar.gz", 3),
		catalogEntry("notes.txt", 4),
	)
	rs := newTestService(t, batches, catalog, nil)

	result, err := rs.AutoCreate(context.Background())
	if err != nil {
		t.Fatalf("AutoCreate failed: %v", err)
	}

	if len(result.Created) != 2 || result.Created[0] != "batch_8" || result.Created[1] != "batch_T000054" {
		t.Errorf("unexpected created batches %v", result.Created)
	}
	if len(result.Existing) != 1 || result.Existing[0] != "batch_7" {
		t.Errorf("unexpected existing batches %v", result.Existing)
	}
	if len(result.Unnamed) != 1 || result.Unnamed[0] != "notes.txt" {
		t.Errorf("unexpected unnamed files %v", result.Unnamed)
	}
	if result.FilesScanned != 4 {
		t.Errorf("expected 4 scanned files, got %d", result.FilesScanned)
	}

	b := mustGet(t, batches, "batch_8")
	if b.Assignee != nil || b.Status != models.StatusNotSegmented || b.Comments != AutoCreateComment {
		t.Errorf("unexpected auto-created batch %+v", b)
	}
	if b.Metadata.AssignedAt != "2025-03-14" || b.Folder != "/data/batch_8" {
		t.Errorf("unexpected metadata %+v folder %s", b.Metadata, b.Folder)
	}
	if !b.MongoUploaded || b.FileInfo == nil || !b.FileInfo.HasFiles {
		t.Errorf("auto-created batch should carry its match summary, got %+v", b.FileInfo)
	}

	again, err := rs.AutoCreate(context.Background())
	if err != nil {
		t.Fatalf("second AutoCreate failed: %v", err)
	}
	if len(again.Created) != 0 || len(again.Existing) != 3 {
		t.Errorf("second run must create nothing, got %+v", again)
	}
}

func TestAutoCreateDefaultAssignee(t *testing.T) {
	catalog := memstore.NewFileCatalog(catalogEntry("batch_9.zip", 1))

	rs := newTestService(t, memstore.NewBatchStore(), catalog, &Config{DefaultAssignee: "Nadie"})
	rs.WithRoster(rosterStub{"Flor": true})
	if _, err := rs.AutoCreate(context.Background()); !apperrors.IsKind(err, apperrors.CodeInvalidAssignee) {
		t.Fatalf("expected invalid_assignee, got %v", err)
	}

	batches := memstore.NewBatchStore()
	rs = newTestService(t, batches, catalog, &Config{DefaultAssignee: "Flor"})
	rs.WithRoster(rosterStub{"Flor": true})
	if _, err := rs.AutoCreate(context.Background()); err != nil {
		t.Fatalf("AutoCreate failed: %v", err)
	}
	if got := mustGet(t, batches, "batch_9").AssigneeName(); got != "Flor" {
		t.Errorf("expected default assignee Flor, got %q", got)
	}
}

func TestAutoCreateRecordsInsertFailures(t *testing.T) {
	batches := memstore.NewBatchStore()
	batches.Fail = func(op, id string) error {
		if op == "insert" && id == "batch_1" {
			return errors.New("disk full")
		}
		return nil
	}
	catalog := memstore.NewFileCatalog(catalogEntry("batch_1.zip", 1), catalogEntry("batch_2.zip", 2))
	rs := newTestService(t, batches, catalog, nil)

	result, err := rs.AutoCreate(context.Background())
	if err != nil {
		t.Fatalf("AutoCreate failed: %v", err)
	}
	if len(result.Failures) != 1 || result.Failures[0].RecordID != "batch_1" {
		t.Errorf("expected one failure for batch_1, got %v", result.Failures)
	}
	if len(result.Created) != 1 || result.Created[0] != "batch_2" {
		t.Errorf("expected batch_2 to be created, got %v", result.Created)
	}
}

func TestInspectCatalog(t *testing.T) {
	catalog := memstore.NewFileCatalog(
		catalogEntry("batch_1.zip", 30),
		catalogEntry("batch_2.zip", 10),
		catalogEntry("batch_1.zip", 5),
		catalogEntry("other.bin", 1),
	)
	rs := newTestService(t, memstore.NewBatchStore(), catalog, nil)

	inspection, err := rs.InspectCatalog(context.Background(), 2)
	if err != nil {
		t.Fatalf("InspectCatalog failed: %v", err)
	}

	if inspection.Stats.TotalEntries != 4 || inspection.Stats.DuplicatedFilenames != 1 {
		t.Errorf("unexpected stats %+v", inspection.Stats)
	}
	if len(inspection.RecentFiles) != 2 || inspection.RecentFiles[0].Filename != "other.bin" {
		t.Errorf("unexpected recent files %+v", inspection.RecentFiles)
	}
	if inspection.RecentFiles[0].UploadedBy != "Flor" || inspection.RecentFiles[0].SizeMB != 2 {
		t.Errorf("unexpected file view %+v", inspection.RecentFiles[0])
	}
	if len(inspection.Groups) != 2 || inspection.Groups[0].BatchID != "batch_1" {
		t.Errorf("unexpected groups %+v", inspection.Groups)
	}

	if _, err := rs.InspectCatalog(context.Background(), -1); !apperrors.IsKind(err, apperrors.CodeInvalidFilter) {
		t.Errorf("expected invalid_filter for negative limit, got %v", err)
	}
}

func TestBatchFiles(t *testing.T) {
	batches := memstore.NewBatchStore(models.NewBatch("batch_3"))
	catalog := memstore.NewFileCatalog(
		catalogEntry("batch_3.zip", 20),
		catalogEntry("masks_batch_3.tar.xz", 2),
		catalogEntry("batch_4.zip", 1),
	)
	rs := newTestService(t, batches, catalog, nil)

	report, err := rs.BatchFiles(context.Background(), "batch_3")
	if err != nil {
		t.Fatalf("BatchFiles failed: %v", err)
	}
	if report.TotalFiles != 2 || report.Files[0].Filename != "masks_batch_3.tar.xz" {
		t.Errorf("unexpected files %+v", report.Files)
	}
	if report.InSync || report.MongoUploaded {
		t.Error("stored flag is false while files exist, report must show it out of sync")
	}
	if report.TotalSizeMB != 4 {
		t.Errorf("expected 4 MB total, got %v", report.TotalSizeMB)
	}

	if _, err := rs.BatchFiles(context.Background(), "batch_99"); !apperrors.IsKind(err, apperrors.CodeBatchNotFound) {
		t.Errorf("expected batch_not_found, got %v", err)
	}
}

func TestSyncOrchestrator(t *testing.T) {
	batches := memstore.NewBatchStore(models.NewBatch("batch_1"))
	catalog := memstore.NewFileCatalog(catalogEntry("batch_1.zip", 1), catalogEntry("batch_2.zip", 2))
	orchestrator := NewSyncOrchestrator(newTestService(t, batches, catalog, nil))

	dry, err := orchestrator.Sync(context.Background(), SyncOptions{AutoCreate: true, DryRun: true})
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if dry.AutoCreate != nil || dry.Reconciliation.BatchesUpdated != 1 {
		t.Errorf("unexpected dry run result %+v", dry.Reconciliation)
	}
	if mustGet(t, batches, "batch_1").MongoUploaded {
		t.Fatal("dry run must not write")
	}

	var done bool
	orchestrator.AddProgressCallback(func(p *ReconciliationProgress) { done = done || p.Done })

	result, err := orchestrator.Sync(context.Background(), SyncOptions{AutoCreate: true})
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(result.AutoCreate.Created) != 1 || result.AutoCreate.Created[0] != "batch_2" {
		t.Errorf("unexpected auto-create result %+v", result.AutoCreate)
	}
	if result.Reconciliation.TotalBatches != 2 || result.Reconciliation.BatchesUpdated != 1 {
		t.Errorf("auto-created batch already carries file info, expected 1 update: %+v", result.Reconciliation)
	}
	if !done {
		t.Error("expected a completion callback")
	}
}

func TestBatchPreprocessor(t *testing.T) {
	bp := NewBatchPreprocessor(nil)

	b := &models.Batch{ID: "  batch_2 ", Assignee: models.StringPtr("  "), Status: "s"}
	if err := bp.Normalize(b); err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if b.ID != "batch_2" || b.Assignee != nil || b.Status != models.StatusSegmented {
		t.Errorf("unexpected normalized batch %+v", b)
	}
	if b.Folder != "/data/batch_2" || b.Metadata.Priority != models.DefaultPriority || len(b.Tasks) == 0 {
		t.Errorf("defaults not filled: %+v", b)
	}

	empty := &models.Batch{ID: "batch_4"}
	if err := bp.Normalize(empty); err != nil {
		t.Fatalf("empty status should default, got %v", err)
	}
	if empty.Status != models.StatusNotSegmented {
		t.Errorf("expected default status NS, got %s", empty.Status)
	}

	if err := bp.Normalize(&models.Batch{ID: "batch_3", Status: "DONE"}); err == nil {
		t.Error("expected invalid status to be rejected")
	}

	stats := bp.Stats()
	if stats.Processed != 3 || stats.AssigneesCleared != 1 || stats.Rejected != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}
