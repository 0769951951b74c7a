// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	zctx "github.com/LeeDigitalWorks/ensure-buckets/pkg/context"
	"github.com/LeeDigitalWorks/ensure-buckets/pkg/logger"
	"github.com/LeeDigitalWorks/ensure-buckets/pkg/types"

	"github.com/google/uuid"
	"github.com/hashicorp/go-cleanhttp"
)

// BucketsPath is the storage API collection for buckets.
const BucketsPath = "/storage/v1/buckets"

func init() {
	Register(types.StorageTypeREST, NewREST)
}

// REST implements BucketStore against the storage REST API using the
// service-role key for both the bearer token and the apikey header.
type REST struct {
	baseURL    string
	serviceKey string
	client     *http.Client
	ownsClient bool
}

// createBucketRequest is the POST body. Public is always sent.
type createBucketRequest struct {
	Name             string   `json:"name"`
	Public           bool     `json:"public"`
	FileSizeLimit    int64    `json:"file_size_limit,omitempty"`
	AllowedMimeTypes []string `json:"allowed_mime_types,omitempty"`
}

// NewREST creates a REST backend
func NewREST(cfg types.BackendConfig) (types.BucketStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("url required for REST backend")
	}
	if cfg.ServiceKey == "" {
		return nil, fmt.Errorf("service key required for REST backend")
	}

	r := &REST{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		serviceKey: cfg.ServiceKey,
		client:     cfg.HTTPClient,
	}
	if r.client == nil {
		r.client = cleanhttp.DefaultPooledClient()
		r.ownsClient = true
	}
	return r, nil
}

func (r *REST) Type() types.StorageType {
	return types.StorageTypeREST
}

func (r *REST) ListBuckets(ctx context.Context) ([]types.Bucket, error) {
	var buckets []types.Bucket
	if err := r.do(ctx, "list buckets", http.MethodGet, nil, &buckets); err != nil {
		return nil, err
	}
	if buckets == nil {
		buckets = []types.Bucket{}
	}
	return buckets, nil
}

// CreateBucket posts the bucket and overlays the response on the request, so
// fields the platform leaves out of its answer keep their requested values.
func (r *REST) CreateBucket(ctx context.Context, bucket types.Bucket) (*types.Bucket, error) {
	if strings.TrimSpace(bucket.Name) == "" {
		return nil, ErrEmptyBucketName
	}

	req := createBucketRequest{
		Name:             bucket.Name,
		Public:           bucket.Public,
		FileSizeLimit:    bucket.FileSizeLimit,
		AllowedMimeTypes: bucket.AllowedMimeTypes,
	}
	created := bucket
	if err := r.do(ctx, "create bucket "+bucket.Name, http.MethodPost, req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *REST) Close() error {
	if r.ownsClient {
		r.client.CloseIdleConnections()
	}
	return nil
}

// do sends one request and decodes a 2xx body into out. Anything else becomes
// an *APIError.
func (r *REST) do(ctx context.Context, op, method string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+BucketsPath, reader)
	if err != nil {
		return &APIError{Op: op, Err: err}
	}

	requestID := uuid.NewString()
	req.Header.Set("Authorization", "Bearer "+r.serviceKey)
	req.Header.Set("apikey", r.serviceKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if runID := zctx.ID(ctx); runID != "" {
		req.Header.Set(zctx.RunHeader, runID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return &APIError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	logger.Debug().
		Str("run_id", zctx.ID(ctx)).
		Str("request_id", requestID).
		Str("method", method).
		Str("path", BucketsPath).
		Int("status", resp.StatusCode).
		Int("bytes", len(raw)).
		Msg("storage request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(op, resp.StatusCode, raw)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(raw), Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
