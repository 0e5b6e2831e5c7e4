package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreObjects(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.GetObject(ctx, "123456780")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	require.NoError(t, store.SetObject(ctx, &Object{ID: "123456780", Type: ObjectTypeChannel, Common: Common{Name: "RUT123"}}))
	obj, err := store.GetObject(ctx, "123456780")
	require.NoError(t, err)
	assert.Equal(t, ObjectTypeChannel, obj.Type)
	assert.Equal(t, "RUT123", obj.Common.Name)

	assert.ErrorIs(t, store.SetObject(ctx, &Object{}), ErrEmptyPath)
}

func TestMemoryStoreStates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.SetState(ctx, "123456780.temperature", 36.6, true))
	require.NoError(t, store.SetState(ctx, "123456780.alive", true, true))
	require.NoError(t, store.SetState(ctx, "987.alive", false, true))
	require.NoError(t, store.SetState(ctx, "123456780.digital1", nil, true))

	state, err := store.GetState(ctx, "123456780.temperature")
	require.NoError(t, err)
	assert.Equal(t, 36.6, state.Value)
	assert.True(t, state.Ack)
	assert.Equal(t, "temperature", state.Name)

	state, err = store.GetState(ctx, "123456780.digital1")
	require.NoError(t, err)
	assert.Nil(t, state.Value)

	paths, err := store.ListStates(ctx, "alive")
	require.NoError(t, err)
	assert.Equal(t, []string{"123456780.alive", "987.alive"}, paths)

	_, err = store.GetState(ctx, "missing")
	assert.ErrorIs(t, err, ErrStateNotFound)
	assert.Equal(t, 1, store.StateWrites("987.alive"))
}

func TestMemoryStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.SetUnavailable(true)

	assert.ErrorIs(t, store.SetState(ctx, "a.b", 1.0, true), ErrStoreUnavailable)
	_, err := store.GetObject(ctx, "a")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	_, err = store.ListStates(ctx, "alive")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	store.SetUnavailable(false)
	assert.NoError(t, store.SetState(ctx, "a.b", 1.0, true))
}

func TestLastSegment(t *testing.T) {
	assert.Equal(t, "alive", LastSegment("123.alive"))
	assert.Equal(t, "connection", LastSegment("info.connection"))
	assert.Equal(t, "123", LastSegment("123"))
}
