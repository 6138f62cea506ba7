// Package roster manages the team members batches may be assigned to.
// The roster store is the only source of truth; nothing is cached.
package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"segmentation-tracker/internal/models"
	"segmentation-tracker/internal/store"
	apperrors "segmentation-tracker/pkg/errors"
	"segmentation-tracker/pkg/logger"
)

// Config holds roster settings
type Config struct {
	// Defaults seed an empty roster store on first use
	Defaults []string `json:"defaults" mapstructure:"defaults"`
}

// DefaultConfig returns the original team
func DefaultConfig() *Config {
	return &Config{Defaults: []string{"Mauricio", "Maggie", "Ceci", "Flor", "Ignacio"}}
}

// Validate checks for blank or repeated default names
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Defaults))
	for _, name := range c.Defaults {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("roster defaults contain a blank name")
		}
		if seen[name] {
			return fmt.Errorf("roster defaults repeat %q", name)
		}
		seen[name] = true
	}
	return nil
}

// Service reads and extends the roster
type Service struct {
	store  store.RosterStore
	config *Config
	now    func() time.Time
	logger logger.Logger
}

// NewService creates a roster service
func NewService(rosterStore store.RosterStore, config *Config) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "roster.defaults", config.Defaults, err)
	}
	return &Service{
		store:  rosterStore,
		config: config,
		now:    time.Now,
		logger: logger.WithComponent("roster"),
	}, nil
}

// Members returns the roster, seeding the defaults when the store is empty
func (s *Service) Members(ctx context.Context) ([]models.TeamMember, error) {
	members, err := s.store.ListMembers(ctx)
	if err != nil {
		return nil, store.Translate(store.RosterStoreName, "", err)
	}
	if len(members) > 0 || len(s.config.Defaults) == 0 {
		return members, nil
	}

	s.logger.WithField("count", len(s.config.Defaults)).Info("Roster store empty, seeding default members")
	for _, name := range s.config.Defaults {
		member := s.newMember(name, "", "")
		// a concurrent seeder may have won the race for this name
		if err := s.store.AddMember(ctx, member); err != nil && !isDuplicate(err) {
			return nil, store.Translate(store.RosterStoreName, name, err)
		}
	}

	members, err = s.store.ListMembers(ctx)
	if err != nil {
		return nil, store.Translate(store.RosterStoreName, "", err)
	}
	return members, nil
}

// Names returns member names in roster order
func (s *Service) Names(ctx context.Context) ([]string, error) {
	members, err := s.Members(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name
	}
	return names, nil
}

// Contains reports whether name is a roster member (case-sensitive)
func (s *Service) Contains(ctx context.Context, name string) (bool, error) {
	names, err := s.Names(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// Add appends a member. Names are trimmed and must be non-empty and unique.
func (s *Service) Add(ctx context.Context, name, role, email string) (*models.TeamMember, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.ValidationError(apperrors.CodeMissingField, "name", name, nil)
	}

	// make sure the defaults exist before the first explicit addition
	if _, err := s.Members(ctx); err != nil {
		return nil, err
	}

	member := s.newMember(name, role, email)
	if err := s.store.AddMember(ctx, member); err != nil {
		return nil, store.Translate(store.RosterStoreName, name, err)
	}

	s.logger.WithField("name", name).Info("Added roster member")
	return &member, nil
}

func (s *Service) newMember(name, role, email string) models.TeamMember {
	if strings.TrimSpace(role) == "" {
		role = models.DefaultRole
	}
	return models.TeamMember{
		Name:    name,
		Role:    strings.TrimSpace(role),
		Email:   strings.TrimSpace(email),
		Active:  true,
		AddedAt: s.now().UTC(),
	}
}

func isDuplicate(err error) bool {
	return errors.Is(err, store.ErrDuplicate)
}
