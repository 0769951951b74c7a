// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package backend provides bucket store implementations.
// All backends implement types.BucketStore interface.
package backend

import (
	"fmt"
	"sync"

	"github.com/LeeDigitalWorks/ensure-buckets/pkg/types"
)

// Registry holds registered backend factories
var (
	registryMu sync.RWMutex
	registry   = make(map[types.StorageType]Factory)
)

// Factory creates a BucketStore from config
type Factory func(cfg types.BackendConfig) (types.BucketStore, error)

// Register adds a factory for a storage type
func Register(t types.StorageType, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[t] = f
}

// New creates a BucketStore from config
func New(cfg types.BackendConfig) (types.BucketStore, error) {
	registryMu.RLock()
	f, ok := registry[cfg.Type]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
	return f(cfg)
}

// Types returns the registered storage types.
func Types() []types.StorageType {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]types.StorageType, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	return out
}
