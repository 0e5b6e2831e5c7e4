package database

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps objects and states in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	objects     map[string]*Object
	states      map[string]*State
	writes      map[string]int
	unavailable bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]*Object),
		states:  make(map[string]*State),
		writes:  make(map[string]int),
	}
}

// SetUnavailable makes every following call fail with ErrStoreUnavailable.
func (ms *MemoryStore) SetUnavailable(unavailable bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.unavailable = unavailable
}

// StateWrites returns how many times SetState wrote path.
func (ms *MemoryStore) StateWrites(path string) int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.writes[path]
}

func (ms *MemoryStore) check(path string) error {
	if ms.unavailable {
		return ErrStoreUnavailable
	}
	if path == "" {
		return ErrEmptyPath
	}
	return nil
}

func (ms *MemoryStore) GetObject(_ context.Context, path string) (*Object, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	if err := ms.check(path); err != nil {
		return nil, err
	}
	obj, ok := ms.objects[path]
	if !ok {
		return nil, ErrObjectNotFound
	}
	clone := *obj
	return &clone, nil
}

func (ms *MemoryStore) SetObject(_ context.Context, obj *Object) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if err := ms.check(obj.ID); err != nil {
		return err
	}
	clone := *obj
	ms.objects[obj.ID] = &clone
	return nil
}

func (ms *MemoryStore) SetState(_ context.Context, path string, value any, ack bool) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if err := ms.check(path); err != nil {
		return err
	}
	ms.states[path] = newState(path, value, ack)
	ms.writes[path]++
	return nil
}

func (ms *MemoryStore) GetState(_ context.Context, path string) (*State, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	if err := ms.check(path); err != nil {
		return nil, err
	}
	state, ok := ms.states[path]
	if !ok {
		return nil, ErrStateNotFound
	}
	clone := *state
	return &clone, nil
}

func (ms *MemoryStore) ListStates(_ context.Context, name string) ([]string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	if ms.unavailable {
		return nil, ErrStoreUnavailable
	}
	paths := make([]string, 0)
	for path, state := range ms.states {
		if state.Name == name {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (ms *MemoryStore) Close(context.Context) error {
	return nil
}
