package database

import (
	"context"
	"strings"
	"time"
)

const (
	ObjectCollectionName = "objects"
	StateCollectionName  = "states"
)

type ObjectType string

const (
	ObjectTypeChannel ObjectType = "channel"
	ObjectTypeState   ObjectType = "state"
)

// Common describes an object. Type is the value type of a state object:
// "number", "boolean" or "string".
type Common struct {
	Name  string `bson:"name" json:"name"`
	Desc  string `bson:"desc,omitempty" json:"desc,omitempty"`
	Type  string `bson:"type,omitempty" json:"type,omitempty"`
	Role  string `bson:"role,omitempty" json:"role,omitempty"`
	Unit  string `bson:"unit,omitempty" json:"unit,omitempty"`
	Read  bool   `bson:"read" json:"read"`
	Write bool   `bson:"write" json:"write"`
}

type Object struct {
	ID     string     `bson:"_id" json:"_id"`
	Type   ObjectType `bson:"type" json:"type"`
	Common Common     `bson:"common" json:"common"`
}

// State is one value. A nil Value is a meaningful "no value" reading.
type State struct {
	ID    string    `bson:"_id" json:"_id"`
	Name  string    `bson:"name" json:"name"`
	Value any       `bson:"val" json:"val"`
	Ack   bool      `bson:"ack" json:"ack"`
	Ts    time.Time `bson:"ts" json:"ts"`
}

// StateStore is the durable object and state database the broker writes
// device telemetry into. Every method may fail with ErrStoreUnavailable.
type StateStore interface {
	// GetObject returns ErrObjectNotFound when path has no object.
	GetObject(ctx context.Context, path string) (*Object, error)
	// SetObject creates or replaces the object at obj.ID.
	SetObject(ctx context.Context, obj *Object) error
	SetState(ctx context.Context, path string, value any, ack bool) error
	// GetState returns ErrStateNotFound when path has no state.
	GetState(ctx context.Context, path string) (*State, error)
	// ListStates returns the paths of every state whose last segment is name.
	ListStates(ctx context.Context, name string) ([]string, error)
	Close(ctx context.Context) error
}

// LastSegment returns the part of path after the final dot.
func LastSegment(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i+1:]
	}
	return path
}

func newState(path string, value any, ack bool) *State {
	return &State{
		ID:    path,
		Name:  LastSegment(path),
		Value: value,
		Ack:   ack,
		Ts:    time.Now(),
	}
}
