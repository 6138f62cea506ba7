// Package reconciler keeps the batch store consistent with the file catalog.
//
// A reconciliation pass loads every batch and the full catalog, computes the
// matching files for each batch and rewrites mongo_uploaded and file_info
// where they disagree with what the catalog holds. The package also creates
// batches for files that name an unknown batch and answers catalog
// inspection queries.
//
// Example usage:
//
//	service, _ := reconciler.NewReconciliationService(batches, catalog, nil, nil)
//	orchestrator := reconciler.NewSyncOrchestrator(service)
//	orchestrator.AddProgressCallback(func(p *reconciler.ReconciliationProgress) {
//		fmt.Printf("%.1f%% %s\n", p.PercentComplete, p.CurrentBatch)
//	})
//
//	result, err := orchestrator.Sync(ctx, reconciler.SyncOptions{AutoCreate: true})
package reconciler

import (
	"context"
	"sync"
	"time"

	"segmentation-tracker/pkg/logger"
)

// ReconciliationProgress describes how far a pass has got
type ReconciliationProgress struct {
	RunID           string        `json:"run_id"`
	Total           int           `json:"total"`
	Processed       int           `json:"processed"`
	Updated         int           `json:"updated"`
	Failed          int           `json:"failed"`
	CurrentBatch    string        `json:"current_batch"`
	PercentComplete float64       `json:"percent_complete"`
	Elapsed         time.Duration `json:"elapsed"`
	Done            bool          `json:"done"`
}

// ProgressCallback is invoked with a snapshot of the pass progress
type ProgressCallback func(progress *ReconciliationProgress)

type progressNotifier struct {
	mutex     sync.Mutex
	callbacks []ProgressCallback
}

func (pn *progressNotifier) add(callback ProgressCallback) {
	if callback == nil {
		return
	}
	pn.mutex.Lock()
	pn.callbacks = append(pn.callbacks, callback)
	pn.mutex.Unlock()
}

func (pn *progressNotifier) notify(progress *ReconciliationProgress) {
	pn.mutex.Lock()
	callbacks := append([]ProgressCallback(nil), pn.callbacks...)
	pn.mutex.Unlock()

	for _, callback := range callbacks {
		callback(progress)
	}
}

type progressState struct {
	current ReconciliationProgress
	started time.Time
}

func newProgress(runID string, total int, started time.Time) *progressState {
	return &progressState{
		current: ReconciliationProgress{RunID: runID, Total: total},
		started: started,
	}
}

func (ps *progressState) record(outcome *BatchOutcome, now time.Time) {
	ps.current.Processed++
	ps.current.CurrentBatch = outcome.BatchID
	if outcome.Updated {
		ps.current.Updated++
	}
	if outcome.Error != "" {
		ps.current.Failed++
	}
	ps.current.Elapsed = now.Sub(ps.started)
	if ps.current.Total > 0 {
		ps.current.PercentComplete = float64(ps.current.Processed) / float64(ps.current.Total) * 100
	}
}

func (ps *progressState) finish(now time.Time) {
	ps.current.Done = true
	ps.current.CurrentBatch = ""
	ps.current.PercentComplete = 100
	ps.current.Elapsed = now.Sub(ps.started)
}

func (ps *progressState) snapshot() *ReconciliationProgress {
	p := ps.current
	return &p
}

// SyncOptions selects the steps of a sync run
type SyncOptions struct {
	// AutoCreate creates batches for catalog files naming unknown batches
	// before reconciling.
	AutoCreate bool
	// DryRun computes the reconciliation plan without writing anything.
	DryRun bool
}

// SyncResult combines the outputs of the steps that ran
type SyncResult struct {
	AutoCreate     *AutoCreateResult     `json:"auto_create,omitempty"`
	Reconciliation *ReconciliationReport `json:"reconciliation"`
	Duration       time.Duration         `json:"duration"`
}

// SyncOrchestrator sequences auto-creation and reconciliation into one run
type SyncOrchestrator struct {
	service *ReconciliationService
	logger  logger.Logger
}

// NewSyncOrchestrator creates an orchestrator over the given service
func NewSyncOrchestrator(service *ReconciliationService) *SyncOrchestrator {
	return &SyncOrchestrator{
		service: service,
		logger:  logger.WithComponent("sync"),
	}
}

// AddProgressCallback forwards to the underlying service
func (so *SyncOrchestrator) AddProgressCallback(callback ProgressCallback) {
	so.service.AddProgressCallback(callback)
}

// Sync runs the requested steps. Auto-creation runs first so newly created
// batches are part of the same reconciliation pass.
func (so *SyncOrchestrator) Sync(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	start := time.Now()
	result := &SyncResult{}

	if opts.AutoCreate && !opts.DryRun {
		so.logger.Info("Step 1: Creating batches for unknown catalog files")
		created, err := so.service.AutoCreate(ctx)
		if err != nil {
			return nil, err
		}
		result.AutoCreate = created
	}

	if opts.DryRun {
		so.logger.Info("Step 2: Planning reconciliation (dry run)")
		batches, catalog, err := so.service.load(ctx)
		if err != nil {
			return nil, err
		}
		result.Reconciliation = so.service.Plan(batches, catalog)
	} else {
		so.logger.Info("Step 2: Reconciling batches against the catalog")
		report, err := so.service.ReconcileAll(ctx)
		if err != nil {
			return nil, err
		}
		result.Reconciliation = report
	}

	result.Duration = time.Since(start)
	so.logger.WithFields(logger.Fields{
		"updated":  result.Reconciliation.BatchesUpdated,
		"failed":   result.Reconciliation.BatchesFailed,
		"duration": result.Duration.String(),
	}).Info("Sync completed")

	return result, nil
}
