package reconciler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"segmentation-tracker/internal/matcher"
	"segmentation-tracker/internal/models"
	"segmentation-tracker/internal/store"
	apperrors "segmentation-tracker/pkg/errors"
	"segmentation-tracker/pkg/logger"
)

// Config holds configuration options for the reconciliation service
type Config struct {
	// RefreshFileInfo also rewrites records whose stored file_info differs from
	// the fresh match even when mongo_uploaded is already correct.
	RefreshFileInfo bool `json:"refresh_file_info" mapstructure:"refresh_file_info"`

	// DetectAnomalies attaches duplicate/ambiguous/orphan analysis to reports
	DetectAnomalies bool `json:"detect_anomalies" mapstructure:"detect_anomalies"`

	// DefaultAssignee is given to batches auto-created from the catalog.
	// Empty leaves them unassigned.
	DefaultAssignee string `json:"default_assignee" mapstructure:"default_assignee"`

	// ProgressLogInterval throttles progress log lines during a pass
	ProgressLogInterval time.Duration `json:"progress_log_interval" mapstructure:"progress_log_interval"`
}

// DefaultConfig returns a default configuration for the reconciliation service
func DefaultConfig() *Config {
	return &Config{
		RefreshFileInfo:     false,
		DetectAnomalies:     true,
		DefaultAssignee:     "",
		ProgressLogInterval: 2 * time.Second,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.ProgressLogInterval < 0 {
		return fmt.Errorf("progress log interval cannot be negative: %s", c.ProgressLogInterval)
	}
	if c.DefaultAssignee != strings.TrimSpace(c.DefaultAssignee) {
		return fmt.Errorf("default assignee %q has surrounding whitespace", c.DefaultAssignee)
	}
	return nil
}

// BatchOutcome reports what a pass did for one batch
type BatchOutcome struct {
	BatchID       string     `json:"batch_id"`
	FilesFound    int        `json:"files_found"`
	MongoUploaded bool       `json:"mongo_uploaded"`
	LatestUpload  *time.Time `json:"latest_upload"`
	Updated       bool       `json:"updated"`
	Error         string     `json:"error,omitempty"`

	fileInfo *models.FileInfo
}

// ReconciliationReport is the result of one reconciliation pass
type ReconciliationReport struct {
	RunID            string                   `json:"run_id"`
	StartedAt        time.Time                `json:"started_at"`
	Duration         time.Duration            `json:"duration"`
	TotalBatches     int                      `json:"total_batches"`
	BatchesUpdated   int                      `json:"batches_updated"`
	BatchesFailed    int                      `json:"batches_failed"`
	BatchesWithFiles int                      `json:"batches_with_files"`
	CatalogFiles     int                      `json:"catalog_files"`
	Results          []BatchOutcome           `json:"results"`
	Failures         []*apperrors.RecordError `json:"failures,omitempty"`
	Anomalies        *matcher.AnomalyReport   `json:"anomalies,omitempty"`
}

// Success reports whether every record was handled without error
func (r *ReconciliationReport) Success() bool {
	return r.BatchesFailed == 0
}

// ReconciliationService runs reconciliation passes against the live stores
type ReconciliationService struct {
	batches      store.BatchStore
	catalog      store.FileCatalog
	matcher      *matcher.Matcher
	detector     *matcher.AnomalyDetector
	preprocessor *BatchPreprocessor
	roster       RosterChecker
	config       *Config
	logger       logger.Logger
	now          func() time.Time

	progress *progressNotifier
}

// RosterChecker validates assignee names against the roster
type RosterChecker interface {
	Contains(ctx context.Context, name string) (bool, error)
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(
	batches store.BatchStore,
	catalog store.FileCatalog,
	matchingConfig *matcher.MatchingConfig,
	config *Config,
) (*ReconciliationService, error) {
	if batches == nil || catalog == nil {
		return nil, apperrors.ValidationError(apperrors.CodeMissingField, "store", nil, nil).
			WithSuggestion("provide both a batch store and a file catalog")
	}

	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "reconciler", config, err)
	}

	m, err := matcher.NewMatcher(matchingConfig)
	if err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "matcher", matchingConfig, err)
	}

	return &ReconciliationService{
		batches:      batches,
		catalog:      catalog,
		matcher:      m,
		detector:     matcher.NewAnomalyDetector(m.Config()),
		preprocessor: NewBatchPreprocessor(nil),
		config:       config,
		logger:       logger.WithComponent("reconciler"),
		now:          time.Now,
		progress:     &progressNotifier{},
	}, nil
}

// WithRoster makes auto-creation validate the default assignee
func (rs *ReconciliationService) WithRoster(roster RosterChecker) *ReconciliationService {
	rs.roster = roster
	return rs
}

// Matcher exposes the matcher used by the service
func (rs *ReconciliationService) Matcher() *matcher.Matcher {
	return rs.matcher
}

// AddProgressCallback registers a callback invoked after each batch and
// once more when the pass completes.
func (rs *ReconciliationService) AddProgressCallback(callback ProgressCallback) {
	rs.progress.add(callback)
}

// needsUpdate decides whether a freshly computed summary must be written.
// A stored file_info that disagrees with mongo_uploaded or with its own
// file_count is always rewritten.
func needsUpdate(b *models.Batch, info *models.FileInfo, refresh bool) bool {
	if b.FileInfo == nil || info.HasFiles != b.MongoUploaded {
		return true
	}
	if b.FileInfo.HasFiles != b.MongoUploaded || b.FileInfo.HasFiles != (b.FileInfo.FileCount > 0) {
		return true
	}
	return refresh && !b.FileInfo.Equal(info)
}

// plan computes outcomes for every batch without touching the store
func (rs *ReconciliationService) plan(batches []*models.Batch, index *matcher.CatalogIndex) ([]BatchOutcome, []*matcher.MatchResult) {
	limit := rs.matcher.Config().FileListLimit
	outcomes := make([]BatchOutcome, len(batches))
	results := make([]*matcher.MatchResult, len(batches))

	for i, b := range batches {
		result := rs.matcher.ComputeMatches(strings.TrimSpace(b.ID), index)
		info := result.FileInfo(limit)
		results[i] = result
		outcomes[i] = BatchOutcome{
			BatchID:       b.ID,
			FilesFound:    result.FileCount,
			MongoUploaded: result.HasFiles,
			LatestUpload:  result.LastFileUpload,
			Updated:       needsUpdate(b, info, rs.config.RefreshFileInfo),
			fileInfo:      info,
		}
	}
	return outcomes, results
}

// Plan is the side-effect free form of a pass: Updated reports whether the
// record would be written.
func (rs *ReconciliationService) Plan(batches []*models.Batch, catalog []models.CatalogEntry) *ReconciliationReport {
	start := rs.now()
	index := matcher.NewCatalogIndex(catalog)
	outcomes, results := rs.plan(batches, index)

	report := &ReconciliationReport{
		RunID:        uuid.NewString(),
		StartedAt:    start,
		TotalBatches: len(batches),
		CatalogFiles: index.Len(),
		Results:      outcomes,
	}
	for _, o := range outcomes {
		if o.Updated {
			report.BatchesUpdated++
		}
		if o.MongoUploaded {
			report.BatchesWithFiles++
		}
	}
	if rs.config.DetectAnomalies {
		report.Anomalies = rs.detector.Analyze(index, results)
	}
	report.Duration = rs.now().Sub(start)
	return report
}

// load reads the batch set and the catalog concurrently. Either failure is
// fatal to the pass.
func (rs *ReconciliationService) load(ctx context.Context) ([]*models.Batch, []models.CatalogEntry, error) {
	var batches []*models.Batch
	var catalog []models.CatalogEntry

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if batches, err = rs.batches.List(gctx); err != nil {
			return store.Translate(store.BatchStoreName, "", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if catalog, err = rs.catalog.ListFiles(gctx); err != nil {
			return store.Translate(store.CatalogName, "", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return batches, catalog, nil
}

// ReconcileAll runs a pass: every batch whose upload verdict changed, whose
// file_info is missing or inconsistent, gets its mongo_uploaded and file_info
// rewritten. A
// failed write is recorded and the pass moves on.
func (rs *ReconciliationService) ReconcileAll(ctx context.Context) (*ReconciliationReport, error) {
	runID := uuid.NewString()
	log := rs.logger.WithField("run_id", runID)
	op := logger.NewOperationLogger("reconcile_all", log)

	batches, catalog, err := rs.load(ctx)
	if err != nil {
		op.Error(err, "Reconciliation aborted: stores unreachable")
		return nil, err
	}
	op.WithField("batches", len(batches)).WithField("catalog_files", len(catalog))

	report := rs.Plan(batches, catalog)
	report.RunID = runID

	tracker := logger.NewProgressTracker(logger.ProgressConfig{
		Operation:   "reconcile_all",
		Total:       len(batches),
		LogInterval: rs.config.ProgressLogInterval,
		Logger:      log,
	})
	progress := newProgress(runID, len(batches), report.StartedAt)
	collector := apperrors.NewRecordErrorCollector(0)
	report.BatchesUpdated = 0

	for i := range report.Results {
		outcome := &report.Results[i]

		if outcome.Updated {
			if err := rs.batches.Update(ctx, outcome.BatchID, store.FileInfoPatch(outcome.fileInfo)); err != nil {
				recErr := apperrors.NewRecordError(outcome.BatchID, apperrors.UpdateFailed(outcome.BatchID, err))
				collector.Add(recErr)
				outcome.Updated = false
				outcome.Error = err.Error()
				log.WithError(err).WithField("batch_id", outcome.BatchID).Error("Failed to update batch file info")
			} else {
				report.BatchesUpdated++
				log.WithFields(logger.Fields{
					"batch_id":       outcome.BatchID,
					"files_found":    outcome.FilesFound,
					"mongo_uploaded": outcome.MongoUploaded,
				}).Debug("Updated batch file info")
			}
		}

		tracker.Increment()
		progress.record(outcome, rs.now())
		rs.progress.notify(progress.snapshot())
	}

	report.Failures = collector.Errors()
	report.BatchesFailed = len(report.Failures)
	report.Duration = rs.now().Sub(report.StartedAt)

	progress.finish(rs.now())
	rs.progress.notify(progress.snapshot())

	if report.BatchesFailed > 0 {
		tracker.CompleteWithError(collector.Summary())
	} else {
		tracker.Complete()
	}
	op.WithField("updated", report.BatchesUpdated).WithField("failed", report.BatchesFailed)
	op.Success("Reconciliation pass finished")

	return report, nil
}

// Reconcile computes a report for a batch set and catalog snapshot with the
// default configuration. Nothing is written.
func Reconcile(batches []*models.Batch, catalog []models.CatalogEntry) *ReconciliationReport {
	m := matcher.NewDefaultMatcher()
	rs := &ReconciliationService{
		matcher:  m,
		detector: matcher.NewAnomalyDetector(m.Config()),
		config:   DefaultConfig(),
		now:      time.Now,
	}
	return rs.Plan(batches, catalog)
}
