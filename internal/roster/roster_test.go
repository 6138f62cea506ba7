package roster

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"segmentation-tracker/internal/models"
	"segmentation-tracker/internal/store/memstore"
	apperrors "segmentation-tracker/pkg/errors"
)

func TestMembersSeedsDefaultsOnce(t *testing.T) {
	ctx := context.Background()
	backing := memstore.NewRosterStore()
	svc, err := NewService(backing, nil)
	require.NoError(t, err)

	names, err := svc.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Mauricio", "Maggie", "Ceci", "Flor", "Ignacio"}, names)

	stored, _ := backing.ListMembers(ctx)
	assert.Len(t, stored, 5, "defaults are persisted, not held in memory")
	assert.Equal(t, models.DefaultRole, stored[0].Role)

	_, err = svc.Names(ctx)
	require.NoError(t, err)
	stored, _ = backing.ListMembers(ctx)
	assert.Len(t, stored, 5)
}

func TestMembersUsesExistingStore(t *testing.T) {
	ctx := context.Background()
	svc, err := NewService(memstore.NewRosterStore(models.TeamMember{Name: "Alice"}), nil)
	require.NoError(t, err)

	names, err := svc.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice"}, names)
}

func TestAdd(t *testing.T) {
	ctx := context.Background()
	backing := memstore.NewRosterStore(models.TeamMember{Name: "Alice"})
	svc, err := NewService(backing, nil)
	require.NoError(t, err)

	member, err := svc.Add(ctx, "  Bob  ", "", "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Bob", member.Name)
	assert.Equal(t, models.DefaultRole, member.Role)
	assert.True(t, member.Active)

	_, err = svc.Add(ctx, "Bob", "Reviewer", "")
	assert.Equal(t, apperrors.CodeDuplicateIdentifier, apperrors.Kind(err))

	_, err = svc.Add(ctx, "   ", "", "")
	assert.Equal(t, apperrors.CodeMissingField, apperrors.Kind(err))

	ok, err := svc.Contains(ctx, "Bob")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = svc.Contains(ctx, "bob")
	assert.False(t, ok, "names are case-sensitive")

	_, err = svc.Add(ctx, "bob", "", "")
	assert.NoError(t, err)
}

func TestRosterReadsAlwaysHitStore(t *testing.T) {
	ctx := context.Background()
	backing := memstore.NewRosterStore(models.TeamMember{Name: "Alice"})
	svc, err := NewService(backing, nil)
	require.NoError(t, err)

	_, _ = svc.Names(ctx)
	require.NoError(t, backing.AddMember(ctx, models.TeamMember{Name: "Zed"}))

	names, err := svc.Names(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "Zed")
}

func TestStoreUnavailable(t *testing.T) {
	backing := memstore.NewRosterStore()
	backing.Fail = func(op, id string) error { return errors.New("no route to host") }
	svc, err := NewService(backing, nil)
	require.NoError(t, err)

	_, err = svc.Names(context.Background())
	assert.Equal(t, apperrors.CodeStoreUnavailable, apperrors.Kind(err))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, (&Config{Defaults: []string{"A", " "}}).Validate())
	assert.Error(t, (&Config{Defaults: []string{"A", "A"}}).Validate())

	_, err := NewService(memstore.NewRosterStore(), &Config{Defaults: []string{""}})
	assert.Equal(t, apperrors.CodeInvalidConfig, apperrors.Kind(err))
}
