// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"strings"
	"sync"

	"github.com/LeeDigitalWorks/ensure-buckets/pkg/types"
)

// StorageTypeMemory is used for testing
const StorageTypeMemory types.StorageType = "memory"

func init() {
	Register(StorageTypeMemory, func(cfg types.BackendConfig) (types.BucketStore, error) {
		return NewMemoryStorage(), nil
	})
}

// MemoryStorage is an in-memory bucket store for testing. It records every
// call so tests can assert on what a run asked for.
type MemoryStorage struct {
	mu      sync.RWMutex
	buckets []types.Bucket
	index   map[string]int

	listErr    error
	createErrs map[string]error

	listCalls   int
	createCalls []string
}

// NewMemoryStorage creates a new in-memory storage holding existing.
func NewMemoryStorage(existing ...types.Bucket) *MemoryStorage {
	m := &MemoryStorage{
		index:      make(map[string]int),
		createErrs: make(map[string]error),
	}
	for _, b := range existing {
		m.put(b)
	}
	return m
}

func (m *MemoryStorage) Type() types.StorageType {
	return StorageTypeMemory
}

// FailList makes every ListBuckets call return err.
func (m *MemoryStorage) FailList(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

// FailCreate makes CreateBucket return err for the named bucket.
func (m *MemoryStorage) FailCreate(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createErrs[name] = err
}

func (m *MemoryStorage) ListBuckets(ctx context.Context) ([]types.Bucket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}

	out := make([]types.Bucket, len(m.buckets))
	copy(out, m.buckets)
	return out, nil
}

func (m *MemoryStorage) CreateBucket(ctx context.Context, bucket types.Bucket) (*types.Bucket, error) {
	if strings.TrimSpace(bucket.Name) == "" {
		return nil, ErrEmptyBucketName
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.createCalls = append(m.createCalls, bucket.Name)
	if err, ok := m.createErrs[bucket.Name]; ok {
		return nil, err
	}
	if _, exists := m.index[bucket.Name]; exists {
		return nil, &APIError{
			Op:         "create bucket " + bucket.Name,
			StatusCode: 409,
			Body:       map[string]any{"error": "Duplicate", "message": "The resource already exists"},
		}
	}

	m.put(bucket)
	created := bucket
	return &created, nil
}

// ListCalls returns how many times ListBuckets was called.
func (m *MemoryStorage) ListCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listCalls
}

// CreateCalls returns the bucket names CreateBucket was called with, in order.
func (m *MemoryStorage) CreateCalls() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.createCalls))
	copy(out, m.createCalls)
	return out
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) put(b types.Bucket) {
	if i, ok := m.index[b.Name]; ok {
		m.buckets[i] = b
		return
	}
	m.index[b.Name] = len(m.buckets)
	m.buckets = append(m.buckets, b)
}
