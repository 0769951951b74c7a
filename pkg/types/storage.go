// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"context"
	"net/http"
)

// StorageType identifies how we talk to the platform's storage service
type StorageType string

const (
	StorageTypeREST StorageType = "rest" // Storage REST API (/storage/v1)
	StorageTypeS3   StorageType = "s3"   // S3-compatible endpoint (/storage/v1/s3)
)

// BucketStore is the interface for listing and creating buckets on a backend.
// Implementations: REST, S3, MemoryStorage.
type BucketStore interface {
	// Type returns the storage type
	Type() StorageType

	// ListBuckets returns every bucket the backend knows about
	ListBuckets(ctx context.Context) ([]Bucket, error)

	// CreateBucket creates one bucket and returns it as the backend reports it
	CreateBucket(ctx context.Context, bucket Bucket) (*Bucket, error)

	// Close releases any resources
	Close() error
}

// BackendConfig contains configuration for creating a bucket store
type BackendConfig struct {
	Type StorageType `json:"type"`

	// URL is the platform base URL without a trailing slash
	URL string `json:"url"`

	// ServiceKey is the service-role credential sent as bearer token and apikey
	ServiceKey string `json:"-"`

	// S3 endpoint settings. Endpoint defaults to URL + "/storage/v1/s3".
	Endpoint  string `json:"endpoint,omitempty"`
	Region    string `json:"region,omitempty"`
	AccessKey string `json:"access_key,omitempty"`
	SecretKey string `json:"-"`

	// HTTPClient overrides the client built by the backend. Mostly for tests.
	HTTPClient *http.Client `json:"-"`
}
