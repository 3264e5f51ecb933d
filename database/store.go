package database

import (
	"context"
	"errors"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shift-staffing-client/models"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("store: key not found")

// Store is a string key/value store partitioned by scope. Scoped returns a
// view over another scope sharing the same backend.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// Clear removes every key in the current scope.
	Clear(ctx context.Context) error
	Scoped(scope string) Store
}

const defaultScope = "default"

// GormStore keeps entries in the kv_entries table.
type GormStore struct {
	db    *gorm.DB
	scope string
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, scope: defaultScope}
}

func (s *GormStore) Scoped(scope string) Store {
	return &GormStore{db: s.db, scope: scope}
}

func (s *GormStore) Get(ctx context.Context, key string) (string, error) {
	var entry models.KVEntry
	err := s.db.WithContext(ctx).
		Where(&models.KVEntry{Scope: s.scope, Key: key}).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return entry.Value, nil
}

func (s *GormStore) Set(ctx context.Context, key, value string) error {
	entry := models.KVEntry{Scope: s.scope, Key: key, Value: value}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
}

func (s *GormStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).
		Where(&models.KVEntry{Scope: s.scope, Key: key}).
		Delete(&models.KVEntry{}).Error
}

func (s *GormStore) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).
		Where(&models.KVEntry{Scope: s.scope}).
		Delete(&models.KVEntry{}).Error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	data  *memoryData
	scope string
}

type memoryData struct {
	mu      sync.RWMutex
	entries map[string]map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:  &memoryData{entries: make(map[string]map[string]string)},
		scope: defaultScope,
	}
}

func (s *MemoryStore) Scoped(scope string) Store {
	return &MemoryStore{data: s.data, scope: scope}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	v, ok := s.data.entries[s.scope][key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	m, ok := s.data.entries[s.scope]
	if !ok {
		m = make(map[string]string)
		s.data.entries[s.scope] = m
	}
	m[key] = value
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	delete(s.data.entries[s.scope], key)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	delete(s.data.entries, s.scope)
	return nil
}
