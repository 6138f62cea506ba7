package metrics

import (
	"context"

	"segmentation-tracker/internal/models"
	"segmentation-tracker/internal/store"
	"segmentation-tracker/pkg/logger"
)

// RosterSource supplies the current roster names
type RosterSource interface {
	Names(ctx context.Context) ([]string, error)
}

// Service computes metrics over the live batch store. Nothing is cached
// between calls; a store failure fails the whole request.
type Service struct {
	batches    store.BatchStore
	roster     RosterSource
	aggregator *Aggregator
	logger     logger.Logger
}

// NewService creates a metrics service
func NewService(batches store.BatchStore, roster RosterSource, config *Config) (*Service, error) {
	aggregator, err := NewAggregator(config)
	if err != nil {
		return nil, err
	}
	return &Service{
		batches:    batches,
		roster:     roster,
		aggregator: aggregator,
		logger:     logger.WithComponent("metrics"),
	}, nil
}

func (s *Service) load(ctx context.Context) ([]*models.Batch, error) {
	batches, err := s.batches.List(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load batches for metrics")
		return nil, store.Translate(store.BatchStoreName, "", err)
	}
	return batches, nil
}

// Overview returns global status counts
func (s *Service) Overview(ctx context.Context) (*OverviewStats, error) {
	batches, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return s.aggregator.Overview(batches), nil
}

// TeamMetrics returns the per-assignee rollup including idle roster members
func (s *Service) TeamMetrics(ctx context.Context) ([]TeamMemberStats, error) {
	batches, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	names, err := s.roster.Names(ctx)
	if err != nil {
		return nil, store.Translate(store.RosterStoreName, "", err)
	}
	return s.aggregator.TeamMetrics(batches, names), nil
}

// TimeSeries returns the dated progress series. The filter is validated
// before the store is read.
func (s *Service) TimeSeries(ctx context.Context, filter *TimeSeriesFilter) ([]DatePoint, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	batches, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return s.aggregator.TimeSeries(batches, filter)
}
