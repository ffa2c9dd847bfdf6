package objstore

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memObject struct {
	data    []byte
	version int
	modTime time.Time
}

// Memory keeps objects in process memory. It enforces version tokens the
// same way the remote stores do.
type Memory struct {
	mu      sync.Mutex
	objects map[string]memObject
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memObject)}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Get(_ context.Context, key string) (Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return Object{}, ErrNotFound
	}
	return Object{Data: append([]byte(nil), obj.data...), Version: strconv.Itoa(obj.version)}, nil
}

func (m *Memory) Put(_ context.Context, key string, data []byte, version string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, exists := m.objects[key]
	switch {
	case version == "" && exists:
		return "", ErrVersionMismatch
	case version != "" && (!exists || version != strconv.Itoa(obj.version)):
		return "", ErrVersionMismatch
	}
	next := memObject{
		data:    append([]byte(nil), data...),
		version: obj.version + 1,
		modTime: time.Now(),
	}
	m.objects[key] = next
	return strconv.Itoa(next.version), nil
}

func (m *Memory) Stat(_ context.Context, key string) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return Info{}, ErrNotFound
	}
	return Info{Key: key, Size: int64(len(obj.data)), ModTime: obj.modTime}, nil
}
