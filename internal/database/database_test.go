package database

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"

	c "github.com/life-stream-dev/router-telemetry-broker/internal/config"
)

func TestMongoURI(t *testing.T) {
	assert.Equal(t, "mongodb://db:27017/", mongoURI(c.MongoConfig{Host: "db", Port: 27017}))
	assert.Equal(t,
		"mongodb://broker:p%40ss@db:27017/?authSource=admin",
		mongoURI(c.MongoConfig{Host: "db", Port: 27017, Username: "broker", Password: "p@ss"}),
	)
}

func TestHandleErr(t *testing.T) {
	assert.ErrorIs(t, handleErr(mongo.ErrNoDocuments, ErrObjectNotFound), ErrObjectNotFound)
	assert.ErrorIs(t, handleErr(errors.New("server selection timeout"), ErrObjectNotFound), ErrStoreUnavailable)
}

var _ StateStore = (*MongoStore)(nil)
var _ StateStore = (*MemoryStore)(nil)
