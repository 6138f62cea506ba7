// Package memstore provides in-memory implementations of the store
// interfaces for tests and local demos.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"segmentation-tracker/internal/models"
	"segmentation-tracker/internal/store"
)

// FailFunc lets tests inject failures. It is called with the operation name
// and the record id (empty for whole-collection operations); a non-nil
// return aborts the operation with that error.
type FailFunc func(op, id string) error

// BatchStore keeps batch records in a map guarded by a RWMutex
type BatchStore struct {
	mu      sync.RWMutex
	batches map[string]*models.Batch
	Fail    FailFunc
}

// NewBatchStore creates a store holding copies of the given batches
func NewBatchStore(batches ...*models.Batch) *BatchStore {
	s := &BatchStore{batches: make(map[string]*models.Batch)}
	for _, b := range batches {
		s.batches[b.ID] = b.Clone()
	}
	return s
}

func (s *BatchStore) fail(op, id string) error {
	if s.Fail == nil {
		return nil
	}
	if err := s.Fail(op, id); err != nil {
		return fmt.Errorf("%s %s: %w", op, id, err)
	}
	return nil
}

func (s *BatchStore) sorted() []*models.Batch {
	out := make([]*models.Batch, 0, len(s.batches))
	for _, b := range s.batches {
		out = append(out, b.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// List returns every batch sorted by id
func (s *BatchStore) List(ctx context.Context) ([]*models.Batch, error) {
	if err := s.fail("list", ""); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(), nil
}

// ListPage returns one page of the sorted batches and the total count
func (s *BatchStore) ListPage(ctx context.Context, offset, limit int) ([]*models.Batch, int, error) {
	if err := s.fail("list", ""); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.sorted()
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

// Get returns a copy of the batch with the given id
func (s *BatchStore) Get(ctx context.Context, id string) (*models.Batch, error) {
	if err := s.fail("get", id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return b.Clone(), nil
}

// Insert stores a copy of a new batch
func (s *BatchStore) Insert(ctx context.Context, batch *models.Batch) error {
	if err := s.fail("insert", batch.ID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.batches[batch.ID]; ok {
		return store.ErrDuplicate
	}
	s.batches[batch.ID] = batch.Clone()
	return nil
}

// Update applies a partial patch in place
func (s *BatchStore) Update(ctx context.Context, id string, patch *store.BatchPatch) error {
	if err := s.fail("update", id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[id]
	if !ok {
		return store.ErrNotFound
	}
	patch.Apply(b)
	return nil
}

// Rename re-keys a batch under newID
func (s *BatchStore) Rename(ctx context.Context, oldID, newID string) error {
	if err := s.fail("rename", oldID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[oldID]
	if !ok {
		return store.ErrNotFound
	}
	if oldID == newID {
		return nil
	}
	if _, taken := s.batches[newID]; taken {
		return store.ErrDuplicate
	}
	delete(s.batches, oldID)
	b.ID = newID
	s.batches[newID] = b
	return nil
}

// Delete removes a batch and returns it
func (s *BatchStore) Delete(ctx context.Context, id string) (*models.Batch, error) {
	if err := s.fail("delete", id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	delete(s.batches, id)
	return b, nil
}

// DeleteAll empties the store
func (s *BatchStore) DeleteAll(ctx context.Context) (int, error) {
	if err := s.fail("delete_all", ""); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.batches)
	s.batches = make(map[string]*models.Batch)
	return n, nil
}

// Count returns the number of stored batches
func (s *BatchStore) Count(ctx context.Context) (int, error) {
	if err := s.fail("count", ""); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.batches), nil
}

// Ping succeeds unless an injected failure says otherwise
func (s *BatchStore) Ping(ctx context.Context) error {
	return s.fail("ping", "")
}

// FileCatalog is a fixed, replaceable list of catalog entries
type FileCatalog struct {
	mu      sync.RWMutex
	entries []models.CatalogEntry
	Fail    FailFunc
}

// NewFileCatalog creates a catalog with the given entries
func NewFileCatalog(entries ...models.CatalogEntry) *FileCatalog {
	return &FileCatalog{entries: append([]models.CatalogEntry(nil), entries...)}
}

// Add appends entries, as an upload would
func (c *FileCatalog) Add(entries ...models.CatalogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entries...)
}

// ListFiles returns a copy of the entries in insertion order
func (c *FileCatalog) ListFiles(ctx context.Context) ([]models.CatalogEntry, error) {
	if c.Fail != nil {
		if err := c.Fail("list_files", ""); err != nil {
			return nil, err
		}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.CatalogEntry(nil), c.entries...), nil
}

// Ping succeeds unless an injected failure says otherwise
func (c *FileCatalog) Ping(ctx context.Context) error {
	if c.Fail != nil {
		return c.Fail("ping", "")
	}
	return nil
}

// RosterStore keeps members in insertion order
type RosterStore struct {
	mu      sync.RWMutex
	members []models.TeamMember
	Fail    FailFunc
}

// NewRosterStore creates a roster with the given members
func NewRosterStore(members ...models.TeamMember) *RosterStore {
	return &RosterStore{members: append([]models.TeamMember(nil), members...)}
}

// ListMembers returns members in insertion order
func (r *RosterStore) ListMembers(ctx context.Context) ([]models.TeamMember, error) {
	if r.Fail != nil {
		if err := r.Fail("list_members", ""); err != nil {
			return nil, err
		}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.TeamMember(nil), r.members...), nil
}

// AddMember appends a member, rejecting duplicate names
func (r *RosterStore) AddMember(ctx context.Context, member models.TeamMember) error {
	if r.Fail != nil {
		if err := r.Fail("add_member", member.Name); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.members {
		if m.Name == member.Name {
			return store.ErrDuplicate
		}
	}
	r.members = append(r.members, member)
	return nil
}

// Ping succeeds unless an injected failure says otherwise
func (r *RosterStore) Ping(ctx context.Context) error {
	if r.Fail != nil {
		return r.Fail("ping", "")
	}
	return nil
}
