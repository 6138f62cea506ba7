package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"segmentation-tracker/internal/models"
	apperrors "segmentation-tracker/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// Rate returns num/den as a percentage rounded half-to-even to one decimal,
// or 0 when den is 0.
func Rate(num, den int) float64 {
	if den <= 0 {
		return 0
	}
	pct := decimal.NewFromInt(int64(num)).Mul(hundred).Div(decimal.NewFromInt(int64(den))).RoundBank(1)
	f, _ := pct.Float64()
	return f
}

// StatusCounts are the per-status tallies shared by every view
type StatusCounts struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	InProgress int `json:"in_progress"`
	Pending    int `json:"pending"`
}

func (c *StatusCounts) add(status models.Status) {
	c.Total++
	switch status {
	case models.StatusSegmented:
		c.Completed++
	case models.StatusInProgress:
		c.InProgress++
	case models.StatusNotSegmented:
		c.Pending++
	}
}

// CompletionRate is completed/total as a percentage
func (c StatusCounts) CompletionRate() float64 {
	return Rate(c.Completed, c.Total)
}

// Efficiency is completed/(completed+in_progress) as a percentage; batches
// nobody has touched do not count against it.
func (c StatusCounts) Efficiency() float64 {
	return Rate(c.Completed, c.Completed+c.InProgress)
}

// OverviewStats is the global summary
type OverviewStats struct {
	TotalBatches      int            `json:"total_batches"`
	CompletedBatches  int            `json:"completed_batches"`
	InProgressBatches int            `json:"in_progress_batches"`
	PendingBatches    int            `json:"pending_batches"`
	UnassignedBatches int            `json:"unassigned_batches"`
	UploadedBatches   int            `json:"uploaded_batches"`
	CompletionRate    float64        `json:"completion_rate"`
	ByStatus          map[string]int `json:"by_status"`
}

// TeamMemberStats is the rollup for one assignee group
type TeamMemberStats struct {
	Assignee       string   `json:"assignee"`
	Total          int      `json:"total"`
	Completed      int      `json:"completed"`
	InProgress     int      `json:"in_progress"`
	Pending        int      `json:"pending"`
	CompletionRate float64  `json:"completion_rate"`
	Efficiency     float64  `json:"efficiency"`
	RecentBatches  []string `json:"recent_batches"`
	InRoster       bool     `json:"in_roster"`
}

// DatePoint is one day of the progress series
type DatePoint struct {
	Date           string  `json:"date"`
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	InProgress     int     `json:"in_progress"`
	Pending        int     `json:"pending"`
	CompletionRate float64 `json:"completion_rate"`
}

// TimeSeriesFilter restricts the progress series. A nil Assignees slice
// means no assignee filter; an empty non-nil slice is rejected.
type TimeSeriesFilter struct {
	From      string   `json:"from,omitempty"`
	To        string   `json:"to,omitempty"`
	Assignees []string `json:"assignees,omitempty"`
}

// Validate reports malformed dates, inverted ranges and empty assignee lists
func (f *TimeSeriesFilter) Validate() error {
	if f == nil {
		return nil
	}
	if f.From != "" && !models.ValidDate(f.From) {
		return apperrors.InvalidFilter("from", f.From, nil)
	}
	if f.To != "" && !models.ValidDate(f.To) {
		return apperrors.InvalidFilter("to", f.To, nil)
	}
	if f.From != "" && f.To != "" && f.From > f.To {
		return apperrors.InvalidFilter("from", f.From, fmt.Errorf("from %s is after to %s", f.From, f.To))
	}
	if f.Assignees != nil && len(f.Assignees) == 0 {
		return apperrors.InvalidFilter("assignees", "[]", nil)
	}
	return nil
}

// Aggregator computes the three views with a fixed configuration
type Aggregator struct {
	config *Config
}

// NewAggregator creates an aggregator; a nil config uses the defaults
func NewAggregator(config *Config) (*Aggregator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid metrics configuration: %w", err)
	}
	return &Aggregator{config: config}, nil
}

func defaultAggregator() *Aggregator {
	return &Aggregator{config: DefaultConfig()}
}

// ComputeOverview summarizes batches with the default configuration
func ComputeOverview(batches []*models.Batch) *OverviewStats {
	return defaultAggregator().Overview(batches)
}

// ComputeTeamMetrics rolls batches up per assignee with the default configuration
func ComputeTeamMetrics(batches []*models.Batch, roster []string) []TeamMemberStats {
	return defaultAggregator().TeamMetrics(batches, roster)
}

// ComputeTimeSeries builds the progress series with the default configuration
func ComputeTimeSeries(batches []*models.Batch, filter *TimeSeriesFilter) ([]DatePoint, error) {
	return defaultAggregator().TimeSeries(batches, filter)
}

// Overview groups all batches by status
func (a *Aggregator) Overview(batches []*models.Batch) *OverviewStats {
	var counts StatusCounts
	stats := &OverviewStats{ByStatus: make(map[string]int)}

	for _, b := range batches {
		counts.add(b.Status)
		stats.ByStatus[string(b.Status)]++
		if models.IsUnassigned(b.Assignee) {
			stats.UnassignedBatches++
		}
		if b.MongoUploaded {
			stats.UploadedBatches++
		}
	}

	stats.TotalBatches = counts.Total
	stats.CompletedBatches = counts.Completed
	stats.InProgressBatches = counts.InProgress
	stats.PendingBatches = counts.Pending
	stats.CompletionRate = counts.CompletionRate()
	return stats
}

// groupKey maps blank assignees to the unassigned label and passes every
// other value through unchanged.
func (a *Aggregator) groupKey(b *models.Batch) string {
	if models.IsUnassigned(b.Assignee) {
		return a.config.UnassignedLabel
	}
	return *b.Assignee
}

// TeamMetrics rolls batches up per assignee. Every roster member appears even
// without batches; output is ordered by assignee name.
func (a *Aggregator) TeamMetrics(batches []*models.Batch, roster []string) []TeamMemberStats {
	groups := make(map[string][]*models.Batch)
	for _, b := range batches {
		key := a.groupKey(b)
		groups[key] = append(groups[key], b)
	}

	inRoster := make(map[string]bool, len(roster))
	for _, name := range roster {
		inRoster[name] = true
		if _, ok := groups[name]; !ok {
			groups[name] = nil
		}
	}

	out := make([]TeamMemberStats, 0, len(groups))
	for name, members := range groups {
		var counts StatusCounts
		for _, b := range members {
			counts.add(b.Status)
		}
		out = append(out, TeamMemberStats{
			Assignee:       name,
			Total:          counts.Total,
			Completed:      counts.Completed,
			InProgress:     counts.InProgress,
			Pending:        counts.Pending,
			CompletionRate: counts.CompletionRate(),
			Efficiency:     counts.Efficiency(),
			RecentBatches:  a.recent(members),
			InRoster:       inRoster[name],
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Assignee < out[j].Assignee })
	return out
}

func (a *Aggregator) recent(batches []*models.Batch) []string {
	sorted := append([]*models.Batch(nil), batches...)
	dateOf := func(b *models.Batch) string {
		if d := strings.TrimSpace(b.Metadata.AssignedAt); d != "" {
			return d
		}
		return a.config.MissingDateSentinel
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		di, dj := dateOf(sorted[i]), dateOf(sorted[j])
		if di != dj {
			return di > dj
		}
		return sorted[i].ID > sorted[j].ID
	})

	n := a.config.RecentLimit
	if n > len(sorted) {
		n = len(sorted)
	}
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = sorted[i].ID
	}
	return ids
}

// TimeSeries buckets dated batches by assigned_at. Assignee membership is
// checked against the same normalized value TeamMetrics groups by, so the
// unassigned label selects unassigned batches.
func (a *Aggregator) TimeSeries(batches []*models.Batch, filter *TimeSeriesFilter) ([]DatePoint, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if filter == nil {
		filter = &TimeSeriesFilter{}
	}

	var allowed map[string]bool
	if filter.Assignees != nil {
		allowed = make(map[string]bool, len(filter.Assignees))
		for _, name := range filter.Assignees {
			allowed[name] = true
		}
	}

	buckets := make(map[string]*StatusCounts)
	for _, b := range batches {
		date := b.Metadata.AssignedAt
		if strings.TrimSpace(date) == "" {
			continue
		}
		if filter.From != "" && date < filter.From {
			continue
		}
		if filter.To != "" && date > filter.To {
			continue
		}
		if allowed != nil && !allowed[a.groupKey(b)] {
			continue
		}
		c, ok := buckets[date]
		if !ok {
			c = &StatusCounts{}
			buckets[date] = c
		}
		c.add(b.Status)
	}

	points := make([]DatePoint, 0, len(buckets))
	for date, c := range buckets {
		points = append(points, DatePoint{
			Date:           date,
			Total:          c.Total,
			Completed:      c.Completed,
			InProgress:     c.InProgress,
			Pending:        c.Pending,
			CompletionRate: c.CompletionRate(),
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })

	return points, nil
}
