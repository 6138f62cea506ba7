// Package mongostore implements the store interfaces on MongoDB.
//
// Each logical store (batches, file catalog, roster) owns a Client bound to
// one collection. Clients connect lazily, ping before handing out the
// collection and drop the connection after a failure so the next call
// reconnects. Every operation runs under the configured timeout.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"segmentation-tracker/internal/store"
	"segmentation-tracker/pkg/logger"
)

// Config locates one collection
type Config struct {
	URI         string        `json:"uri" mapstructure:"uri"`
	Database    string        `json:"database" mapstructure:"database"`
	Collection  string        `json:"collection" mapstructure:"collection"`
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxPoolSize uint64        `json:"max_pool_size" mapstructure:"max_pool_size"`
	MinPoolSize uint64        `json:"min_pool_size" mapstructure:"min_pool_size"`
}

// Validate checks that the collection is fully addressed
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.URI, "mongodb://") && !strings.HasPrefix(c.URI, "mongodb+srv://") {
		return fmt.Errorf("uri must start with mongodb:// or mongodb+srv://, got %q", c.URI)
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.Collection == "" {
		return fmt.Errorf("collection is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.MaxPoolSize > 0 && c.MinPoolSize > c.MaxPoolSize {
		return fmt.Errorf("min_pool_size %d exceeds max_pool_size %d", c.MinPoolSize, c.MaxPoolSize)
	}
	return nil
}

// IndexFunc creates the indexes a collection needs. It must be idempotent.
type IndexFunc func(ctx context.Context, coll *mongo.Collection) error

// Client is a lazily connected handle on one collection
type Client struct {
	name    string
	config  Config
	indexes IndexFunc
	logger  logger.Logger

	mu      sync.Mutex
	client  *mongo.Client
	indexed bool
}

// NewClient validates the configuration; no connection is made until the
// first operation.
func NewClient(name string, config Config, indexes IndexFunc) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s store configuration: %w", name, err)
	}
	return &Client{
		name:    name,
		config:  config,
		indexes: indexes,
		logger:  logger.WithComponent("mongostore").WithField("store", name),
	}, nil
}

// Name returns the logical store name
func (c *Client) Name() string {
	return c.name
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.config.Timeout)
}

// collection returns the collection after a successful ping, connecting
// first if needed.
func (c *Client) collection(ctx context.Context) (*mongo.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		opts := options.Client().
			ApplyURI(c.config.URI).
			SetServerSelectionTimeout(c.config.Timeout).
			SetConnectTimeout(c.config.Timeout)
		if c.config.MaxPoolSize > 0 {
			opts.SetMaxPoolSize(c.config.MaxPoolSize)
		}
		if c.config.MinPoolSize > 0 {
			opts.SetMinPoolSize(c.config.MinPoolSize)
		}

		client, err := mongo.Connect(ctx, opts)
		if err != nil {
			c.logger.WithError(err).Warn("Failed to create MongoDB client")
			return nil, unavailable(err)
		}
		c.client = client
		c.logger.Debug("MongoDB client created")
	}

	if err := c.client.Ping(ctx, readpref.Primary()); err != nil {
		c.logger.WithError(err).Warn("MongoDB ping failed, dropping client")
		c.dropLocked()
		return nil, unavailable(err)
	}

	coll := c.client.Database(c.config.Database).Collection(c.config.Collection)
	if !c.indexed && c.indexes != nil {
		if err := c.indexes(ctx, coll); err != nil {
			c.logger.WithError(err).Warn("Failed to create indexes")
		} else {
			c.indexed = true
		}
	}
	return coll, nil
}

func (c *Client) dropLocked() {
	if c.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()
	_ = c.client.Disconnect(ctx)
	c.client = nil
	c.indexed = false
}

// fail classifies err and, for connectivity failures, drops the client so
// the next call reconnects.
func (c *Client) fail(err error) error {
	classified := classify(err)
	if errors.Is(classified, store.ErrUnavailable) {
		c.mu.Lock()
		c.dropLocked()
		c.mu.Unlock()
	}
	return classified
}

// Ping checks connectivity
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	_, err := c.collection(ctx)
	return err
}

// Close disconnects the client if connected
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Disconnect(ctx)
	c.client = nil
	c.indexed = false
	return err
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}

// classify maps driver errors onto the store sentinels
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrDuplicate):
		return err
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	default:
		return unavailable(err)
	}
}
