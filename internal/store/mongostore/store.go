// Package mongostore implements the durable task record on top of
// MongoDB, translating the teacher's SurrealDB query-method shapes
// (internal/storage/surrealdb in the teacher repo) into mongo-driver
// idioms.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bobmcallan/mediaqueue/internal/interfaces"
	"github.com/bobmcallan/mediaqueue/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Store implements interfaces.DocumentStore against a single Mongo
// collection keyed by task_id.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
}

// Connect dials Mongo, verifies connectivity, and returns a Store bound to
// database.collection.
func Connect(ctx context.Context, uri, database, collection string, timeout time.Duration) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	coll := client.Database(database).Collection(collection)
	if err := ensureIndexes(ctx, coll); err != nil {
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}

	return &Store{client: client, collection: coll, timeout: timeout}, nil
}

// New wraps an already-connected collection — used by tests against a
// testcontainers-managed Mongo instance.
func New(client *mongo.Client, collection *mongo.Collection, timeout time.Duration) *Store {
	return &Store{client: client, collection: collection, timeout: timeout}
}

func ensureIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "task_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	return err
}

func (s *Store) Insert(ctx context.Context, task *models.Task) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.collection.InsertOne(ctx, task)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("task %s already exists: %w", task.ID, err)
	}
	if err != nil {
		return fmt.Errorf("failed to insert task %s: %w", task.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var task models.Task
	err := s.collection.FindOne(ctx, bson.M{"task_id": id}).Decode(&task)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task %s: %w", id, err)
	}
	return &task, nil
}

func (s *Store) List(ctx context.Context, filter interfaces.ListFilter) ([]*models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := bson.M{}
	if filter.Status != nil {
		query["status"] = *filter.Status
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter.Skip > 0 {
		opts.SetSkip(int64(filter.Skip))
	}
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := s.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer cursor.Close(ctx)

	tasks := make([]*models.Task, 0)
	for cursor.Next(ctx) {
		var task models.Task
		if err := cursor.Decode(&task); err != nil {
			return nil, fmt.Errorf("failed to decode task: %w", err)
		}
		tasks = append(tasks, &task)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}

func (s *Store) Update(ctx context.Context, id string, fields map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	set := bson.M{}
	for k, v := range fields {
		set[k] = v
	}
	set["updated_at"] = time.Now()

	result, err := s.collection.UpdateOne(ctx,
		bson.M{"task_id": id},
		bson.M{"$set": set, "$inc": bson.M{"version": 1}},
	)
	if err != nil {
		return fmt.Errorf("failed to update task %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("task %s not found", id)
	}
	return nil
}

func (s *Store) CountByStatus(ctx context.Context, status *models.Status) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := bson.M{}
	if status != nil {
		query["status"] = *status
	}

	count, err := s.collection.CountDocuments(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

var _ interfaces.DocumentStore = (*Store)(nil)
