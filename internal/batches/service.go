// Package batches implements batch record management on top of the batch
// store: paginated listing, creation with auto-numbering, partial updates,
// identifier changes, deletion, seed loading and assignee analysis.
package batches

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"segmentation-tracker/internal/models"
	"segmentation-tracker/internal/reconciler"
	"segmentation-tracker/internal/store"
	apperrors "segmentation-tracker/pkg/errors"
	"segmentation-tracker/pkg/logger"
)

// Config holds pagination limits
type Config struct {
	DefaultPerPage int `json:"default_per_page" mapstructure:"default_per_page"`
	MinPerPage     int `json:"min_per_page" mapstructure:"min_per_page"`
	MaxPerPage     int `json:"max_per_page" mapstructure:"max_per_page"`
}

// DefaultConfig returns the standard pagination limits
func DefaultConfig() *Config {
	return &Config{DefaultPerPage: 50, MinPerPage: 5, MaxPerPage: 200}
}

// Validate checks that the limits are ordered
func (c *Config) Validate() error {
	if c.MinPerPage <= 0 {
		return fmt.Errorf("min_per_page must be positive, got %d", c.MinPerPage)
	}
	if c.MaxPerPage < c.MinPerPage {
		return fmt.Errorf("max_per_page %d is below min_per_page %d", c.MaxPerPage, c.MinPerPage)
	}
	if c.DefaultPerPage < c.MinPerPage || c.DefaultPerPage > c.MaxPerPage {
		return fmt.Errorf("default_per_page %d outside [%d, %d]", c.DefaultPerPage, c.MinPerPage, c.MaxPerPage)
	}
	return nil
}

// RosterSource supplies roster names for assignee validation
type RosterSource interface {
	Names(ctx context.Context) ([]string, error)
}

// Pagination describes one page of a listing
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Page is a page of batches sorted by identifier
type Page struct {
	Batches    []*models.Batch `json:"batches"`
	Pagination Pagination      `json:"pagination"`
}

// CreateInput carries the fields accepted when creating a batch. Empty
// fields take the defaults of models.NewBatch.
type CreateInput struct {
	ID            string        `json:"id,omitempty"`
	Assignee      *string       `json:"assignee,omitempty"`
	Folder        string        `json:"folder,omitempty"`
	Tasks         []string      `json:"tasks,omitempty"`
	Status        models.Status `json:"status,omitempty"`
	AssignedAt    string        `json:"assigned_at,omitempty"`
	DueDate       string        `json:"due_date,omitempty"`
	Priority      string        `json:"priority,omitempty"`
	MongoUploaded bool          `json:"mongo_uploaded,omitempty"`
	Comments      string        `json:"comments,omitempty"`
}

// DeletedBatch summarizes a removed batch
type DeletedBatch struct {
	ID       string        `json:"id"`
	Assignee *string       `json:"assignee"`
	Status   models.Status `json:"status"`
}

// SeedResult reports the outcome of LoadSeed
type SeedResult struct {
	Loaded        bool                     `json:"loaded"`
	ExistingCount int                      `json:"existing_count"`
	Removed       int                      `json:"removed"`
	LoadedCount   int                      `json:"loaded_count"`
	TotalInFile   int                      `json:"total_in_file"`
	Skipped       []string                 `json:"skipped,omitempty"`
	Failures      []*apperrors.RecordError `json:"failures,omitempty"`
}

// AssigneeCount is the number of batches held by one assignee
type AssigneeCount struct {
	Assignee string `json:"assignee"`
	Count    int    `json:"count"`
}

// AssigneeAnalysis splits the batch distribution by roster membership
type AssigneeAnalysis struct {
	TotalBatches    int             `json:"total_batches"`
	Unassigned      int             `json:"unassigned"`
	RosterMembers   []AssigneeCount `json:"roster_members"`
	NonMembers      []AssigneeCount `json:"non_members"`
	AssignedMembers int             `json:"assigned_to_members"`
	AssignedOthers  int             `json:"assigned_to_non_members"`
}

// Service manages batch records
type Service struct {
	store        store.BatchStore
	roster       RosterSource
	preprocessor *reconciler.BatchPreprocessor
	config       *Config
	logger       logger.Logger
	now          func() time.Time
}

// NewService creates a batch service. roster may be nil, in which case
// assignees are not checked against it.
func NewService(batchStore store.BatchStore, roster RosterSource, config *Config) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "batches", config, err)
	}
	return &Service{
		store:        batchStore,
		roster:       roster,
		preprocessor: reconciler.NewBatchPreprocessor(nil),
		config:       config,
		logger:       logger.WithComponent("batches"),
		now:          time.Now,
	}, nil
}

func (s *Service) clampPerPage(perPage int) int {
	if perPage == 0 {
		return s.config.DefaultPerPage
	}
	if perPage < s.config.MinPerPage {
		return s.config.MinPerPage
	}
	if perPage > s.config.MaxPerPage {
		return s.config.MaxPerPage
	}
	return perPage
}

// List returns one page of batches. page is 1-based and values below 1 are
// treated as 1; perPage is clamped to the configured limits.
func (s *Service) List(ctx context.Context, page, perPage int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	perPage = s.clampPerPage(perPage)

	items, total, err := s.store.ListPage(ctx, (page-1)*perPage, perPage)
	if err != nil {
		return nil, store.Translate(store.BatchStoreName, "", err)
	}
	if items == nil {
		items = []*models.Batch{}
	}

	return &Page{
		Batches: items,
		Pagination: Pagination{
			Page:       page,
			PerPage:    perPage,
			Total:      total,
			TotalPages: (total + perPage - 1) / perPage,
		},
	}, nil
}

// Get returns a single batch
func (s *Service) Get(ctx context.Context, id string) (*models.Batch, error) {
	b, err := s.store.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, store.Translate(store.BatchStoreName, id, err)
	}
	return b, nil
}

func (s *Service) checkAssignee(ctx context.Context, assignee *string) error {
	if s.roster == nil || models.IsUnassigned(assignee) {
		return nil
	}
	name := strings.TrimSpace(*assignee)
	names, err := s.roster.Names(ctx)
	if err != nil {
		return store.Translate(store.RosterStoreName, "", err)
	}
	for _, n := range names {
		if n == name {
			return nil
		}
	}
	return apperrors.ValidationError(apperrors.CodeInvalidAssignee, "assignee", name, nil).
		WithSuggestion("add the person to the roster first")
}

func checkDate(field, value string) error {
	if value != "" && !models.ValidDate(value) {
		return apperrors.ValidationError(apperrors.CodeInvalidDate, field, value, nil)
	}
	return nil
}

// nextID returns batch_<max+1> over identifiers with an all-digit suffix
func nextID(existing []*models.Batch) string {
	highest := 0
	for _, b := range existing {
		if n, ok := models.NumericSuffix(b.ID); ok && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("batch_%d", highest+1)
}

// Create inserts a new batch. Without an ID the next free batch_N is used.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.Batch, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		existing, err := s.store.List(ctx)
		if err != nil {
			return nil, store.Translate(store.BatchStoreName, "", err)
		}
		id = nextID(existing)
	}

	b := models.NewBatch(id)
	b.Assignee = models.NormalizeAssignee(input.Assignee)
	b.Status = input.Status
	b.MongoUploaded = input.MongoUploaded
	b.Comments = input.Comments
	b.Metadata.AssignedAt = input.AssignedAt
	b.Metadata.DueDate = input.DueDate
	if input.Folder != "" {
		b.Folder = input.Folder
	}
	if len(input.Tasks) > 0 {
		b.Tasks = append([]string(nil), input.Tasks...)
	}
	if input.Priority != "" {
		b.Metadata.Priority = input.Priority
	}
	if b.Metadata.AssignedAt == "" {
		b.Metadata.AssignedAt = s.now().Format(models.DateLayout)
	}

	if b.Status != "" {
		status, err := models.ParseStatus(string(b.Status))
		if err != nil {
			return nil, apperrors.ValidationError(apperrors.CodeInvalidStatus, "status", input.Status, err)
		}
		b.Status = status
	}
	if err := checkDate("assigned_at", b.Metadata.AssignedAt); err != nil {
		return nil, err
	}
	if err := checkDate("due_date", b.Metadata.DueDate); err != nil {
		return nil, err
	}
	if err := s.checkAssignee(ctx, b.Assignee); err != nil {
		return nil, err
	}
	if err := s.preprocessor.Normalize(b); err != nil {
		return nil, apperrors.ValidationError(apperrors.CodeMissingField, "id", id, err)
	}

	if err := s.store.Insert(ctx, b); err != nil {
		return nil, store.Translate(store.BatchStoreName, id, err)
	}

	s.logger.WithFields(logger.Fields{"batch_id": id, "assignee": b.AssigneeName()}).Info("Created batch")
	return b, nil
}

// Update applies a partial update and returns the stored result. A patch
// that sets a blank assignee unassigns the batch.
func (s *Service) Update(ctx context.Context, id string, patch *store.BatchPatch) (*models.Batch, error) {
	id = strings.TrimSpace(id)
	if patch == nil || patch.IsEmpty() {
		return s.Get(ctx, id)
	}

	if patch.Status != nil {
		status, err := models.ParseStatus(string(*patch.Status))
		if err != nil {
			return nil, apperrors.ValidationError(apperrors.CodeInvalidStatus, "status", *patch.Status, err)
		}
		patch.Status = &status
	}
	if patch.AssignedAt != nil {
		if err := checkDate("assigned_at", *patch.AssignedAt); err != nil {
			return nil, err
		}
	}
	if patch.DueDate != nil {
		if err := checkDate("due_date", *patch.DueDate); err != nil {
			return nil, err
		}
	}
	if patch.AssigneeSet {
		patch.Assignee = models.NormalizeAssignee(patch.Assignee)
		if err := s.checkAssignee(ctx, patch.Assignee); err != nil {
			return nil, err
		}
	}

	if err := s.store.Update(ctx, id, patch); err != nil {
		return nil, store.Translate(store.BatchStoreName, id, err)
	}

	s.logger.WithField("batch_id", id).Info("Updated batch")
	return s.Get(ctx, id)
}

// Rename changes a batch identifier
func (s *Service) Rename(ctx context.Context, oldID, newID string) (*models.Batch, error) {
	oldID = strings.TrimSpace(oldID)
	newID = strings.TrimSpace(newID)
	if newID == "" {
		return nil, apperrors.ValidationError(apperrors.CodeMissingField, "new_id", newID, nil)
	}
	if newID == oldID {
		return s.Get(ctx, oldID)
	}

	if err := s.store.Rename(ctx, oldID, newID); err != nil {
		translated := store.Translate(store.BatchStoreName, oldID, err)
		if apperrors.IsKind(translated, apperrors.CodeDuplicateIdentifier) {
			return nil, apperrors.DuplicateIdentifier(newID)
		}
		return nil, translated
	}

	s.logger.WithFields(logger.Fields{"old_id": oldID, "new_id": newID}).Info("Renamed batch")
	return s.Get(ctx, newID)
}

// Delete removes a batch and returns a summary of what was removed
func (s *Service) Delete(ctx context.Context, id string) (*DeletedBatch, error) {
	id = strings.TrimSpace(id)
	b, err := s.store.Delete(ctx, id)
	if err != nil {
		return nil, store.Translate(store.BatchStoreName, id, err)
	}

	s.logger.WithField("batch_id", id).Info("Deleted batch")
	return &DeletedBatch{ID: b.ID, Assignee: b.Assignee, Status: b.Status}, nil
}

// LoadSeed inserts seed batches. Nothing is loaded when the store already
// holds batches unless force is set, in which case the store is emptied
// first. Identifiers already present are skipped.
func (s *Service) LoadSeed(ctx context.Context, seed []*models.Batch, force bool) (*SeedResult, error) {
	op := logger.NewOperationLogger("load_seed", s.logger).WithField("force", force)

	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, store.Translate(store.BatchStoreName, "", err)
	}

	result := &SeedResult{ExistingCount: count, TotalInFile: len(seed)}
	if count > 0 && !force {
		op.WithField("existing", count).Success("Batches already initialized, skipping seed")
		return result, nil
	}

	if force && count > 0 {
		removed, err := s.store.DeleteAll(ctx)
		if err != nil {
			return nil, store.Translate(store.BatchStoreName, "", err)
		}
		result.Removed = removed
		op.Step(fmt.Sprintf("removed %d existing batches", removed))
	}

	collector := apperrors.NewRecordErrorCollector(0)
	for _, b := range seed {
		b = b.Clone()
		if err := s.preprocessor.Normalize(b); err != nil {
			collector.Add(apperrors.NewRecordError(b.ID, apperrors.ValidationError(apperrors.CodeMissingField, "batch", b.ID, err)))
			continue
		}
		if err := s.store.Insert(ctx, b); err != nil {
			translated := store.Translate(store.BatchStoreName, b.ID, err)
			if apperrors.IsKind(translated, apperrors.CodeDuplicateIdentifier) {
				result.Skipped = append(result.Skipped, b.ID)
				continue
			}
			collector.Add(apperrors.NewRecordError(b.ID, translated))
			continue
		}
		result.LoadedCount++
	}

	result.Loaded = true
	result.Failures = collector.Errors()
	op.WithField("loaded", result.LoadedCount).WithField("skipped", len(result.Skipped)).
		Success("Seed loaded")
	return result, nil
}

// AnalyzeAssignees reports how batches are distributed across roster
// members, people outside the roster and nobody.
func (s *Service) AnalyzeAssignees(ctx context.Context) (*AssigneeAnalysis, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, store.Translate(store.BatchStoreName, "", err)
	}

	members := make(map[string]bool)
	if s.roster != nil {
		names, err := s.roster.Names(ctx)
		if err != nil {
			return nil, store.Translate(store.RosterStoreName, "", err)
		}
		for _, n := range names {
			members[n] = true
		}
	}

	counts := make(map[string]int)
	analysis := &AssigneeAnalysis{
		TotalBatches:  len(all),
		RosterMembers: []AssigneeCount{},
		NonMembers:    []AssigneeCount{},
	}
	for _, b := range all {
		if models.IsUnassigned(b.Assignee) {
			analysis.Unassigned++
			continue
		}
		counts[*b.Assignee]++
	}

	for name, n := range counts {
		entry := AssigneeCount{Assignee: name, Count: n}
		if members[name] {
			analysis.RosterMembers = append(analysis.RosterMembers, entry)
			analysis.AssignedMembers += n
		} else {
			analysis.NonMembers = append(analysis.NonMembers, entry)
			analysis.AssignedOthers += n
		}
	}
	sortCounts(analysis.RosterMembers)
	sortCounts(analysis.NonMembers)

	return analysis, nil
}

// most batches first, then by name
func sortCounts(counts []AssigneeCount) {
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Assignee < counts[j].Assignee
	})
}

// Missing returns the expected identifiers that have no batch record, in
// the order given.
func (s *Service) Missing(ctx context.Context, expected []string) ([]string, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, store.Translate(store.BatchStoreName, "", err)
	}

	present := make(map[string]bool, len(all))
	for _, b := range all {
		present[b.ID] = true
	}

	missing := []string{}
	seen := make(map[string]bool, len(expected))
	for _, id := range expected {
		id = strings.TrimSpace(id)
		if id == "" || present[id] || seen[id] {
			continue
		}
		seen[id] = true
		missing = append(missing, id)
	}
	return missing, nil
}
