package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/life-stream-dev/router-telemetry-broker/internal/logger"
)

// MongoStore persists objects and states in two collections keyed by path.
type MongoStore struct {
	client           *mongo.Client
	objects          *mongo.Collection
	states           *mongo.Collection
	operationTimeout time.Duration
}

func handleErr(err error, notFound error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return notFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("unique key conflicts: %w", err)
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func (ds *MongoStore) GetObject(ctx context.Context, path string) (*Object, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	ctx, cancel := context.WithTimeout(ctx, ds.operationTimeout)
	defer cancel()

	var obj Object
	startTime := time.Now()
	err := ds.objects.FindOne(ctx, bson.D{{Key: "_id", Value: path}}).Decode(&obj)
	logger.DebugF("object query cost: %v", time.Since(startTime))
	if err != nil {
		return nil, handleErr(err, ErrObjectNotFound)
	}
	return &obj, nil
}

func (ds *MongoStore) SetObject(ctx context.Context, obj *Object) error {
	if obj.ID == "" {
		return ErrEmptyPath
	}
	ctx, cancel := context.WithTimeout(ctx, ds.operationTimeout)
	defer cancel()

	result, err := ds.objects.ReplaceOne(ctx, bson.D{{Key: "_id", Value: obj.ID}}, obj, options.Replace().SetUpsert(true))
	if err != nil {
		return handleErr(err, ErrObjectNotFound)
	}
	logger.DebugF("Object saved: id=%s, matched=%d, modified=%d, upserted=%v",
		obj.ID,
		result.MatchedCount,
		result.ModifiedCount,
		result.UpsertedID != nil,
	)
	return nil
}

func (ds *MongoStore) SetState(ctx context.Context, path string, value any, ack bool) error {
	if path == "" {
		return ErrEmptyPath
	}
	ctx, cancel := context.WithTimeout(ctx, ds.operationTimeout)
	defer cancel()

	state := newState(path, value, ack)
	_, err := ds.states.ReplaceOne(ctx, bson.D{{Key: "_id", Value: path}}, state, options.Replace().SetUpsert(true))
	if err != nil {
		return handleErr(err, ErrStateNotFound)
	}
	return nil
}

func (ds *MongoStore) GetState(ctx context.Context, path string) (*State, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	ctx, cancel := context.WithTimeout(ctx, ds.operationTimeout)
	defer cancel()

	var state State
	if err := ds.states.FindOne(ctx, bson.D{{Key: "_id", Value: path}}).Decode(&state); err != nil {
		return nil, handleErr(err, ErrStateNotFound)
	}
	return &state, nil
}

func (ds *MongoStore) ListStates(ctx context.Context, name string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, ds.operationTimeout)
	defer cancel()

	cursor, err := ds.states.Find(ctx, bson.D{{Key: "name", Value: name}}, options.Find().SetProjection(bson.D{{Key: "_id", Value: 1}}).SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, handleErr(err, ErrStateNotFound)
	}
	defer cursor.Close(ctx)

	paths := make([]string, 0)
	for cursor.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode state id: %w", err)
		}
		paths = append(paths, doc.ID)
	}
	if err := cursor.Err(); err != nil {
		return nil, handleErr(err, ErrStateNotFound)
	}
	return paths, nil
}

func (ds *MongoStore) Close(ctx context.Context) error {
	logger.InfoF("Closing database connection")
	return ds.client.Disconnect(ctx)
}
