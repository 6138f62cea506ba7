package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"segmentation-tracker/internal/models"
	"segmentation-tracker/internal/store"
)

// RosterIndexes makes member names unique
func RosterIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// RosterStore implements store.RosterStore on the team collection
type RosterStore struct {
	*Client
}

// NewRosterStore creates a roster store
func NewRosterStore(config Config) (*RosterStore, error) {
	client, err := NewClient(store.RosterStoreName, config, RosterIndexes)
	if err != nil {
		return nil, err
	}
	return &RosterStore{Client: client}, nil
}

// ListMembers returns members in insertion order
func (r *RosterStore) ListMembers(ctx context.Context) ([]models.TeamMember, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	coll, err := r.collection(ctx)
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetProjection(noObjectID).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, r.fail(err)
	}

	members := []models.TeamMember{}
	if err := cursor.All(ctx, &members); err != nil {
		return nil, r.fail(err)
	}
	return members, nil
}

// AddMember inserts a member; the unique name index rejects duplicates
func (r *RosterStore) AddMember(ctx context.Context, member models.TeamMember) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	coll, err := r.collection(ctx)
	if err != nil {
		return err
	}
	if _, err := coll.InsertOne(ctx, member); err != nil {
		return r.fail(err)
	}
	return nil
}
