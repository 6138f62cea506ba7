package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"segmentation-tracker/internal/models"
	"segmentation-tracker/internal/store"
)

// FileCatalog reads the GridFS files collection of uploaded masks. The
// collection belongs to the upload pipeline; no indexes are created on it.
type FileCatalog struct {
	*Client
}

// NewFileCatalog creates a catalog reader
func NewFileCatalog(config Config) (*FileCatalog, error) {
	client, err := NewClient(store.CatalogName, config, nil)
	if err != nil {
		return nil, err
	}
	return &FileCatalog{Client: client}, nil
}

var catalogProjection = bson.D{
	{Key: "_id", Value: 0},
	{Key: "filename", Value: 1},
	{Key: "uploadDate", Value: 1},
	{Key: "metadata", Value: 1},
	{Key: "length", Value: 1},
}

// ListFiles returns every catalog entry, newest upload first
func (c *FileCatalog) ListFiles(ctx context.Context) ([]models.CatalogEntry, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	coll, err := c.collection(ctx)
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetProjection(catalogProjection).
		SetSort(bson.D{{Key: "uploadDate", Value: -1}})
	cursor, err := coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, c.fail(err)
	}

	entries := []models.CatalogEntry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, c.fail(err)
	}
	return entries, nil
}
