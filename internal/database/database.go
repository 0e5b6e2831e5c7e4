package database

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	c "github.com/life-stream-dev/router-telemetry-broker/internal/config"
	"github.com/life-stream-dev/router-telemetry-broker/internal/logger"
	"github.com/life-stream-dev/router-telemetry-broker/internal/utils"
)

func mongoURI(cfg c.MongoConfig) string {
	if cfg.Username == "" {
		return fmt.Sprintf("mongodb://%s:%d/", cfg.Host, cfg.Port)
	}
	return fmt.Sprintf("mongodb://%s:%s@%s:%d/?authSource=admin",
		url.QueryEscape(cfg.Username), url.QueryEscape(cfg.Password),
		cfg.Host,
		cfg.Port,
	)
}

// ConnectMongo dials MongoDB, verifies the connection and prepares the
// collections used by MongoStore.
func ConnectMongo(cfg c.MongoConfig, appName string) (*MongoStore, error) {
	logger.DebugF("Connecting to database...")

	operationTimeout := utils.MustParseStringTime(cfg.OperationTimeout, 5*time.Second)

	clientOptions := options.Client().ApplyURI(mongoURI(cfg)).SetAppName(appName)
	clientOptions.SetMinPoolSize(cfg.MinPoolSize)
	clientOptions.SetMaxPoolSize(cfg.MaxPoolSize)
	clientOptions.SetConnectTimeout(utils.MustParseStringTime(cfg.ConnectTimeout, 10*time.Second))
	clientOptions.SetSocketTimeout(utils.MustParseStringTime(cfg.SocketTimeout, 30*time.Second))
	if cfg.UseTLS {
		clientOptions.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	clientOptions.SetPoolMonitor(&event.PoolMonitor{
		Event: func(evt *event.PoolEvent) {
			switch evt.Type {
			case event.ConnectionCreated:
				logger.DebugF("Database connection created: %s", evt.Address)
			case event.ConnectionClosed:
				logger.DebugF("Database connection closed: %s (%s)", evt.Address, evt.Reason)
			}
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", ErrStoreUnavailable, err)
	}

	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%w: ping: %v", ErrStoreUnavailable, err)
	}

	db := client.Database(cfg.Database)
	states := db.Collection(StateCollectionName)

	_, err = states.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetName("states_name"),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create state index: %w", err)
	}

	logger.InfoF("Connected to database %s on %s:%d", cfg.Database, cfg.Host, cfg.Port)
	return &MongoStore{
		client:           client,
		objects:          db.Collection(ObjectCollectionName),
		states:           states,
		operationTimeout: operationTimeout,
	}, nil
}
