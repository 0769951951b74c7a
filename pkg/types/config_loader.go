// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// BucketSpec is the config file shape of a desired bucket. FileSizeLimit is a
// human size such as "50MB" or "1GiB".
type BucketSpec struct {
	Name             string   `mapstructure:"name"`
	Public           bool     `mapstructure:"public"`
	FileSizeLimit    string   `mapstructure:"file_size_limit"`
	AllowedMimeTypes []string `mapstructure:"allowed_mime_types"`
}

// Bucket converts the spec into a Bucket.
func (s BucketSpec) Bucket() (Bucket, error) {
	b := Bucket{
		Name:             strings.TrimSpace(s.Name),
		Public:           s.Public,
		AllowedMimeTypes: s.AllowedMimeTypes,
	}
	if s.FileSizeLimit != "" {
		n, err := humanize.ParseBytes(s.FileSizeLimit)
		if err != nil {
			return Bucket{}, fmt.Errorf("bucket %q: parse file_size_limit: %w", s.Name, err)
		}
		b.FileSizeLimit = int64(n)
	}
	return b, nil
}

// LoadBucketSpecs converts config specs into a validated desired set.
func LoadBucketSpecs(specs []BucketSpec) ([]Bucket, error) {
	buckets := make([]Bucket, 0, len(specs))
	for _, s := range specs {
		b, err := s.Bucket()
		if err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}

	if result := ValidateBuckets(buckets); !result.Valid {
		return nil, result.Errors[0]
	}
	return buckets, nil
}
