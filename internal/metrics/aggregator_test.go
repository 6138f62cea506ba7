package metrics

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

func batch(id string, status models.Status, assignee *string, assignedAt string) *models.Batch {
	b := models.NewBatch(id)
	b.Status = status
	b.Assignee = assignee
	b.Metadata.AssignedAt = assignedAt
	return b
}

func alice() *string { return models.StringPtr("Alice") }

func scenarioBatches() []*models.Batch {
	return []*models.Batch{
		batch("batch_1", models.StatusSegmented, alice(), ""),
		batch("batch_2", models.StatusNotSegmented, models.StringPtr(""), ""),
		batch("batch_3", models.StatusInProgress, alice(), ""),
	}
}

func findMember(t *testing.T, stats []TeamMemberStats, name string) TeamMemberStats {
	t.Helper()
	for _, s := range stats {
		if s.Assignee == name {
			return s
		}
	}
	t.Fatalf("assignee %q missing from %+v", name, stats)
	return TeamMemberStats{}
}

func TestRate(t *testing.T) {
	tests := []struct {
		num, den int
		expected float64
	}{
		{1, 3, 33.3},
		{2, 3, 66.7},
		{1, 2, 50},
		{0, 0, 0},
		{5, 0, 0},
		{3, 3, 100},
		{1, 80, 1.2},
		{3, 80, 3.8},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Rate(tt.num, tt.den), "Rate(%d, %d)", tt.num, tt.den)
	}
}

func TestOverviewScenario(t *testing.T) {
	stats := ComputeOverview(scenarioBatches())

	assert.Equal(t, 3, stats.TotalBatches)
	assert.Equal(t, 1, stats.CompletedBatches)
	assert.Equal(t, 1, stats.InProgressBatches)
	assert.Equal(t, 1, stats.PendingBatches)
	assert.Equal(t, 1, stats.UnassignedBatches)
	assert.Equal(t, 33.3, stats.CompletionRate)
	assert.Equal(t, map[string]int{"S": 1, "FS": 1, "NS": 1}, stats.ByStatus)
}

func TestOverviewEmpty(t *testing.T) {
	stats := ComputeOverview(nil)

	assert.Zero(t, stats.TotalBatches)
	assert.Zero(t, stats.CompletionRate)
}

func TestOverviewPartition(t *testing.T) {
	var batches []*models.Batch
	statuses := []models.Status{models.StatusSegmented, models.StatusInProgress, models.StatusNotSegmented}
	for i := 0; i < 31; i++ {
		batches = append(batches, batch("b", statuses[i%3], nil, ""))
	}

	stats := ComputeOverview(batches)
	assert.Equal(t, stats.TotalBatches, stats.CompletedBatches+stats.InProgressBatches+stats.PendingBatches)
	assert.Equal(t, 31, stats.UnassignedBatches)
	assert.GreaterOrEqual(t, stats.CompletionRate, 0.0)
	assert.LessOrEqual(t, stats.CompletionRate, 100.0)
}

func TestTeamMetricsScenario(t *testing.T) {
	stats := ComputeTeamMetrics(scenarioBatches(), []string{"Alice", "Bob"})

	require.Len(t, stats, 3)
	assert.Equal(t, []string{"Alice", "Bob", "Unassigned"}, []string{stats[0].Assignee, stats[1].Assignee, stats[2].Assignee})

	a := findMember(t, stats, "Alice")
	assert.Equal(t, 2, a.Total)
	assert.Equal(t, 1, a.Completed)
	assert.Equal(t, 1, a.InProgress)
	assert.Equal(t, 50.0, a.CompletionRate)
	assert.Equal(t, 50.0, a.Efficiency)
	assert.True(t, a.InRoster)

	b := findMember(t, stats, "Bob")
	assert.Zero(t, b.Total)
	assert.Zero(t, b.CompletionRate)
	assert.Zero(t, b.Efficiency)
	assert.NotNil(t, b.RecentBatches)
	assert.Empty(t, b.RecentBatches)

	u := findMember(t, stats, "Unassigned")
	assert.Equal(t, 1, u.Total)
	assert.Equal(t, 1, u.Pending)
	assert.False(t, u.InRoster)
}

func TestTeamMetricsSingleUnassignedBucket(t *testing.T) {
	batches := []*models.Batch{
		batch("batch_1", models.StatusNotSegmented, nil, ""),
		batch("batch_2", models.StatusNotSegmented, models.StringPtr(""), ""),
		batch("batch_3", models.StatusNotSegmented, models.StringPtr("   "), ""),
	}

	stats := ComputeTeamMetrics(batches, nil)

	require.Len(t, stats, 1)
	assert.Equal(t, "Unassigned", stats[0].Assignee)
	assert.Equal(t, 3, stats[0].Total)
}

func TestTeamMetricsPassesNamesThrough(t *testing.T) {
	batches := []*models.Batch{
		batch("batch_1", models.StatusSegmented, models.StringPtr("alice"), ""),
		batch("batch_2", models.StatusSegmented, models.StringPtr("Alice"), ""),
	}

	stats := ComputeTeamMetrics(batches, []string{"Alice"})

	require.Len(t, stats, 2)
	assert.Equal(t, "Alice", stats[0].Assignee, "case-sensitive ordering puts upper case first")
	assert.Equal(t, "alice", stats[1].Assignee)
	assert.False(t, stats[1].InRoster)
}

func TestTeamMetricsRecentBatches(t *testing.T) {
	batches := []*models.Batch{
		batch("batch_1", models.StatusSegmented, alice(), "2025-01-01"),
		batch("batch_2", models.StatusSegmented, alice(), ""),
		batch("batch_3", models.StatusSegmented, alice(), "2025-01-05"),
		batch("batch_4", models.StatusSegmented, alice(), "2025-01-05"),
		batch("batch_5", models.StatusSegmented, alice(), "2024-12-31"),
	}

	stats := ComputeTeamMetrics(batches, nil)

	require.Len(t, stats, 1)
	assert.Equal(t, []string{"batch_4", "batch_3", "batch_1"}, stats[0].RecentBatches)

	agg, err := NewAggregator(&Config{RecentLimit: 10, MissingDateSentinel: "0000-00-00", UnassignedLabel: "Unassigned"})
	require.NoError(t, err)
	all := agg.TeamMetrics(batches, nil)
	assert.Equal(t, "batch_2", all[0].RecentBatches[4], "undated batches sort last")
}

func TestTeamMetricsEfficiencyIgnoresPending(t *testing.T) {
	batches := []*models.Batch{
		batch("batch_1", models.StatusSegmented, alice(), ""),
		batch("batch_2", models.StatusNotSegmented, alice(), ""),
		batch("batch_3", models.StatusNotSegmented, alice(), ""),
		batch("batch_4", models.StatusNotSegmented, alice(), ""),
	}

	a := ComputeTeamMetrics(batches, nil)[0]
	assert.Equal(t, 25.0, a.CompletionRate)
	assert.Equal(t, 100.0, a.Efficiency)
}

func timeSeriesBatches() []*models.Batch {
	return []*models.Batch{
		batch("batch_1", models.StatusSegmented, alice(), "2025-01-02"),
		batch("batch_2", models.StatusNotSegmented, models.StringPtr("Bob"), "2025-01-02"),
		batch("batch_3", models.StatusInProgress, alice(), "2025-01-31"),
		batch("batch_4", models.StatusSegmented, alice(), "2025-02-01"),
		batch("batch_5", models.StatusSegmented, alice(), "2024-12-31"),
		batch("batch_6", models.StatusSegmented, nil, "2025-01-15"),
		batch("batch_7", models.StatusSegmented, alice(), ""),
	}
}

func TestTimeSeriesUnfiltered(t *testing.T) {
	points, err := ComputeTimeSeries(timeSeriesBatches(), nil)
	require.NoError(t, err)

	dates := make([]string, len(points))
	for i, p := range points {
		dates[i] = p.Date
	}
	assert.Equal(t, []string{"2024-12-31", "2025-01-02", "2025-01-15", "2025-01-31", "2025-02-01"}, dates)

	jan2 := points[1]
	assert.Equal(t, 2, jan2.Total)
	assert.Equal(t, 1, jan2.Completed)
	assert.Equal(t, 1, jan2.Pending)
	assert.Equal(t, 50.0, jan2.CompletionRate)
}

func TestTimeSeriesDateRange(t *testing.T) {
	points, err := ComputeTimeSeries(timeSeriesBatches(), &TimeSeriesFilter{From: "2025-01-01", To: "2025-01-31"})
	require.NoError(t, err)

	require.Len(t, points, 3)
	for _, p := range points {
		assert.GreaterOrEqual(t, p.Date, "2025-01-01")
		assert.LessOrEqual(t, p.Date, "2025-01-31")
	}
	assert.Equal(t, "2025-01-31", points[2].Date, "range is inclusive")
}

func TestTimeSeriesAssigneeFilter(t *testing.T) {
	points, err := ComputeTimeSeries(timeSeriesBatches(), &TimeSeriesFilter{Assignees: []string{"Bob", "Unassigned"}})
	require.NoError(t, err)

	require.Len(t, points, 2)
	assert.Equal(t, "2025-01-02", points[0].Date)
	assert.Equal(t, 1, points[0].Total)
	assert.Equal(t, "2025-01-15", points[1].Date)
}

func TestTimeSeriesInvalidFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter *TimeSeriesFilter
	}{
		{"malformed from", &TimeSeriesFilter{From: "2025-1-1"}},
		{"malformed to", &TimeSeriesFilter{To: "yesterday"}},
		{"inverted range", &TimeSeriesFilter{From: "2025-02-01", To: "2025-01-01"}},
		{"empty assignees", &TimeSeriesFilter{Assignees: []string{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeTimeSeries(timeSeriesBatches(), tt.filter)
			require.Error(t, err)
			assert.Equal(t, apperrors.CodeInvalidFilter, apperrors.Kind(err))
		})
	}
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, (&Config{RecentLimit: -1, UnassignedLabel: "U"}).Validate())
	assert.Error(t, (&Config{RecentLimit: 3, UnassignedLabel: " "}).Validate())
	assert.Error(t, (&Config{RecentLimit: 3, UnassignedLabel: "U", MissingDateSentinel: "2020-01-01"}).Validate())
}

type staticRoster []string

func (r staticRoster) Names(ctx context.Context) ([]string, error) { return r, nil }

func TestServiceReadsStore(t *testing.T) {
	ctx := context.Background()
	batches := memstore.NewBatchStore(scenarioBatches()...)

	svc, err := NewService(batches, staticRoster{"Alice", "Bob"}, nil)
	require.NoError(t, err)

	overview, err := svc.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, overview.TotalBatches)

	team, err := svc.TeamMetrics(ctx)
	require.NoError(t, err)
	assert.Len(t, team, 3)

	_, err = svc.TimeSeries(ctx, &TimeSeriesFilter{Assignees: []string{}})
	assert.Equal(t, apperrors.CodeInvalidFilter, apperrors.Kind(err))
}

func TestServiceStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	batches := memstore.NewBatchStore(scenarioBatches()...)
	batches.Fail = func(op, id string) error { return errors.New("connection refused") }

	svc, err := NewService(batches, staticRoster{"Alice"}, nil)
	require.NoError(t, err)

	overview, err := svc.Overview(ctx)
	assert.Nil(t, overview)
	assert.Equal(t, apperrors.CodeStoreUnavailable, apperrors.Kind(err))

	team, err := svc.TeamMetrics(ctx)
	assert.Nil(t, team)
	assert.Equal(t, apperrors.CodeStoreUnavailable, apperrors.Kind(err))

	points, err := svc.TimeSeries(ctx, nil)
	assert.Nil(t, points)
	assert.Equal(t, apperrors.CodeStoreUnavailable, apperrors.Kind(err))
}
