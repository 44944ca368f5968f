package repository

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sync"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/artifacts"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/models"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/apperrors"
)

type memoryObject struct {
	data        []byte
	contentType string
	metadata    map[string]string
}

type MemoryRepository struct {
	mu      sync.RWMutex
	objects map[string]*memoryObject
}

// NewMemoryRepository keeps objects in process memory. Used by local runs and tests.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{objects: make(map[string]*memoryObject)}
}

var _ artifacts.Repository = (*MemoryRepository)(nil)

func memoryKey(loc models.Locator) string {
	return loc.Bucket + "\x00" + loc.Key
}

func (m *MemoryRepository) PutObject(_ context.Context, loc models.Locator, data []byte, contentType string, ifAbsent bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memoryKey(loc)
	if _, ok := m.objects[key]; ok && ifAbsent {
		return apperrors.Classifyf(apperrors.ErrConflict, "%s exists", loc)
	}
	m.objects[key] = &memoryObject{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

// PutWithMetadata seeds an input object with user metadata.
func (m *MemoryRepository) PutWithMetadata(loc models.Locator, data []byte, metadata map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[memoryKey(loc)] = &memoryObject{data: append([]byte(nil), data...), metadata: metadata}
}

func (m *MemoryRepository) GetObject(_ context.Context, loc models.Locator) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[memoryKey(loc)]
	if !ok {
		return nil, apperrors.Classifyf(apperrors.ErrNotFound, "%s", loc)
	}
	return append([]byte(nil), obj.data...), nil
}

func (m *MemoryRepository) HeadObject(_ context.Context, loc models.Locator) (*models.ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[memoryKey(loc)]
	if !ok {
		return nil, apperrors.Classifyf(apperrors.ErrNotFound, "%s", loc)
	}
	sum := md5.Sum(obj.data)
	return &models.ObjectInfo{
		ETag:        hex.EncodeToString(sum[:]),
		Size:        int64(len(obj.data)),
		ContentType: obj.contentType,
		Metadata:    obj.metadata,
	}, nil
}

// Len reports how many objects are stored.
func (m *MemoryRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
