package database

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/life-stream-dev/router-telemetry-broker/internal/logger"
)

// ObjectCache remembers which object paths have already been ensured so the
// store is only asked once per path per process.
type ObjectCache struct {
	ensured *lru.Cache[string, struct{}]
}

func NewObjectCache(size int) (*ObjectCache, error) {
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("create object cache: %w", err)
	}
	return &ObjectCache{ensured: cache}, nil
}

// EnsureObject creates obj when the store does not have it. An existing
// state object whose value type differs gets its type updated. The path is
// marked before the store is consulted, a failed store call unmarks it.
func (oc *ObjectCache) EnsureObject(ctx context.Context, store StateStore, obj *Object) error {
	if obj.ID == "" {
		return ErrEmptyPath
	}
	if found, _ := oc.ensured.ContainsOrAdd(obj.ID, struct{}{}); found {
		return nil
	}

	if err := oc.ensure(ctx, store, obj); err != nil {
		oc.ensured.Remove(obj.ID)
		return err
	}
	return nil
}

func (oc *ObjectCache) ensure(ctx context.Context, store StateStore, obj *Object) error {
	existing, err := store.GetObject(ctx, obj.ID)
	if errors.Is(err, ErrObjectNotFound) {
		if err := store.SetObject(ctx, obj); err != nil {
			return fmt.Errorf("create object %s: %w", obj.ID, err)
		}
		logger.InfoF("New object created: %s", obj.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get object %s: %w", obj.ID, err)
	}

	if obj.Type == ObjectTypeState && existing.Common.Type != obj.Common.Type {
		existing.Common.Type = obj.Common.Type
		if err := store.SetObject(ctx, existing); err != nil {
			return fmt.Errorf("update object %s: %w", obj.ID, err)
		}
		logger.InfoF("Object updated: %s", obj.ID)
	}
	return nil
}

// Ensured reports whether path is marked as ensured.
func (oc *ObjectCache) Ensured(path string) bool {
	return oc.ensured.Contains(path)
}

func (oc *ObjectCache) Len() int {
	return oc.ensured.Len()
}
