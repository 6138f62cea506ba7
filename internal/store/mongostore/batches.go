package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"segmentation-tracker/internal/models"
	"segmentation-tracker/internal/store"
)

var noObjectID = bson.D{{Key: "_id", Value: 0}}

// BatchIndexes creates the unique identifier index plus the indexes the
// metric and filter queries use.
func BatchIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "assignee", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "metadata.assigned_at", Value: 1}}},
		{Keys: bson.D{{Key: "assignee", Value: 1}, {Key: "status", Value: 1}}},
	})
	return err
}

// BatchStore implements store.BatchStore on a batches collection
type BatchStore struct {
	*Client
}

// NewBatchStore creates a batch store
func NewBatchStore(config Config) (*BatchStore, error) {
	client, err := NewClient(store.BatchStoreName, config, BatchIndexes)
	if err != nil {
		return nil, err
	}
	return &BatchStore{Client: client}, nil
}

func byID(id string) bson.D {
	return bson.D{{Key: "id", Value: id}}
}

func (s *BatchStore) find(ctx context.Context, opts *options.FindOptions) ([]*models.Batch, error) {
	coll, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}
	cursor, err := coll.Find(ctx, bson.D{}, opts.SetSort(bson.D{{Key: "id", Value: 1}}).SetProjection(noObjectID))
	if err != nil {
		return nil, s.fail(err)
	}
	batches := []*models.Batch{}
	if err := cursor.All(ctx, &batches); err != nil {
		return nil, s.fail(err)
	}
	return batches, nil
}

// List returns every batch
func (s *BatchStore) List(ctx context.Context) ([]*models.Batch, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.find(ctx, options.Find())
}

// ListPage returns one page of batches and the total count
func (s *BatchStore) ListPage(ctx context.Context, offset, limit int) ([]*models.Batch, int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	opts := options.Find().SetSkip(int64(offset))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	batches, err := s.find(ctx, opts)
	if err != nil {
		return nil, 0, err
	}

	coll, err := s.collection(ctx)
	if err != nil {
		return nil, 0, err
	}
	total, err := coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, 0, s.fail(err)
	}
	return batches, int(total), nil
}

// Get returns the batch with the given id
func (s *BatchStore) Get(ctx context.Context, id string) (*models.Batch, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	coll, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}
	var b models.Batch
	if err := coll.FindOne(ctx, byID(id), options.FindOne().SetProjection(noObjectID)).Decode(&b); err != nil {
		return nil, s.fail(err)
	}
	return &b, nil
}

// Insert stores a new batch; the unique id index rejects duplicates
func (s *BatchStore) Insert(ctx context.Context, batch *models.Batch) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	coll, err := s.collection(ctx)
	if err != nil {
		return err
	}
	if _, err := coll.InsertOne(ctx, batch); err != nil {
		return s.fail(err)
	}
	return nil
}

// patchDocument translates a patch into a $set document
func patchDocument(p *store.BatchPatch) bson.D {
	set := bson.D{}
	add := func(key string, value interface{}) {
		set = append(set, bson.E{Key: key, Value: value})
	}

	if p.AssigneeSet {
		if a := models.NormalizeAssignee(p.Assignee); a != nil {
			add("assignee", *a)
		} else {
			add("assignee", nil)
		}
	}
	if p.Status != nil {
		add("status", *p.Status)
	}
	if p.Folder != nil {
		add("folder", *p.Folder)
	}
	if p.Tasks != nil {
		add("tasks", p.Tasks)
	}
	if p.Comments != nil {
		add("comments", *p.Comments)
	}
	if p.AssignedAt != nil {
		add("metadata.assigned_at", *p.AssignedAt)
	}
	if p.DueDate != nil {
		add("metadata.due_date", *p.DueDate)
	}
	if p.Priority != nil {
		add("metadata.priority", *p.Priority)
	}
	if p.ReviewedAtSet {
		if p.ReviewedAt != nil {
			add("metadata.reviewed_at", *p.ReviewedAt)
		} else {
			add("metadata.reviewed_at", nil)
		}
	}
	if p.MongoUploaded != nil {
		add("mongo_uploaded", *p.MongoUploaded)
	}
	if p.FileInfo != nil {
		add("file_info", p.FileInfo)
	}
	return set
}

// Update applies a partial patch to the batch with the given id
func (s *BatchStore) Update(ctx context.Context, id string, patch *store.BatchPatch) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	coll, err := s.collection(ctx)
	if err != nil {
		return err
	}
	if patch.IsEmpty() {
		if err := coll.FindOne(ctx, byID(id)).Err(); err != nil {
			return s.fail(err)
		}
		return nil
	}

	res, err := coll.UpdateOne(ctx, byID(id), bson.D{{Key: "$set", Value: patchDocument(patch)}})
	if err != nil {
		return s.fail(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Rename changes a batch identifier in place
func (s *BatchStore) Rename(ctx context.Context, oldID, newID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	coll, err := s.collection(ctx)
	if err != nil {
		return err
	}
	res, err := coll.UpdateOne(ctx, byID(oldID), bson.D{{Key: "$set", Value: bson.D{{Key: "id", Value: newID}}}})
	if err != nil {
		return s.fail(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Delete removes a batch and returns the removed record
func (s *BatchStore) Delete(ctx context.Context, id string) (*models.Batch, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	coll, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}
	var b models.Batch
	opts := options.FindOneAndDelete().SetProjection(noObjectID)
	if err := coll.FindOneAndDelete(ctx, byID(id), opts).Decode(&b); err != nil {
		return nil, s.fail(err)
	}
	return &b, nil
}

// DeleteAll removes every batch and reports how many were removed
func (s *BatchStore) DeleteAll(ctx context.Context) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	coll, err := s.collection(ctx)
	if err != nil {
		return 0, err
	}
	res, err := coll.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, s.fail(err)
	}
	return int(res.DeletedCount), nil
}

// Count returns the number of stored batches
func (s *BatchStore) Count(ctx context.Context) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	coll, err := s.collection(ctx)
	if err != nil {
		return 0, err
	}
	n, err := coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, s.fail(err)
	}
	return int(n), nil
}
