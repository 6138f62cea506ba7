package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"segmentation-tracker/internal/models"
	"segmentation-tracker/internal/store"
)

var (
	_ store.BatchStore  = (*BatchStore)(nil)
	_ store.FileCatalog = (*FileCatalog)(nil)
	_ store.RosterStore = (*RosterStore)(nil)
	_ store.Pinger      = (*BatchStore)(nil)
)

func TestBatchStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewBatchStore(models.NewBatch("batch_2"), models.NewBatch("batch_1"))

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "batch_1", all[0].ID)

	require.ErrorIs(t, s.Insert(ctx, models.NewBatch("batch_1")), store.ErrDuplicate)
	require.NoError(t, s.Insert(ctx, models.NewBatch("batch_3")))

	status := models.StatusSegmented
	require.NoError(t, s.Update(ctx, "batch_3", &store.BatchPatch{Status: &status, AssigneeSet: true, Assignee: models.StringPtr(" Ceci ")}))
	got, err := s.Get(ctx, "batch_3")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSegmented, got.Status)
	assert.Equal(t, "Ceci", got.AssigneeName())

	got.Status = models.StatusNotSegmented
	again, _ := s.Get(ctx, "batch_3")
	assert.Equal(t, models.StatusSegmented, again.Status, "Get must return a copy")

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, "missing", &store.BatchPatch{}), store.ErrNotFound)
}

func TestBatchStoreRenameAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewBatchStore(models.NewBatch("batch_1"), models.NewBatch("batch_2"))

	assert.ErrorIs(t, s.Rename(ctx, "batch_1", "batch_2"), store.ErrDuplicate)
	assert.ErrorIs(t, s.Rename(ctx, "nope", "batch_9"), store.ErrNotFound)
	require.NoError(t, s.Rename(ctx, "batch_1", "batch_10"))

	_, err := s.Get(ctx, "batch_1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	deleted, err := s.Delete(ctx, "batch_10")
	require.NoError(t, err)
	assert.Equal(t, "batch_10", deleted.ID)

	n, err := s.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, _ := s.Count(ctx)
	assert.Zero(t, count)
}

func TestBatchStorePaging(t *testing.T) {
	ctx := context.Background()
	s := NewBatchStore(models.NewBatch("a"), models.NewBatch("b"), models.NewBatch("c"))

	page, total, err := s.ListPage(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].ID)

	page, _, err = s.ListPage(ctx, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestFailureInjection(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	s := NewBatchStore(models.NewBatch("batch_1"))
	s.Fail = func(op, id string) error {
		if op == "update" && id == "batch_1" {
			return boom
		}
		return nil
	}

	assert.ErrorIs(t, s.Update(ctx, "batch_1", &store.BatchPatch{}), boom)
	_, err := s.List(ctx)
	assert.NoError(t, err)

	c := NewFileCatalog()
	c.Fail = func(op, id string) error { return store.ErrUnavailable }
	_, err = c.ListFiles(ctx)
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestRosterStore(t *testing.T) {
	ctx := context.Background()
	r := NewRosterStore(models.TeamMember{Name: "Maggie"})

	require.NoError(t, r.AddMember(ctx, models.TeamMember{Name: "maggie"}))
	assert.ErrorIs(t, r.AddMember(ctx, models.TeamMember{Name: "Maggie"}), store.ErrDuplicate)

	members, err := r.ListMembers(ctx)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Maggie", members[0].Name)
	assert.Equal(t, "maggie", members[1].Name)
}
