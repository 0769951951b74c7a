// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package types

// Bucket describes a storage bucket, either one we want to exist or one the
// platform reported. Optional limits are omitted from request bodies when unset.
type Bucket struct {
	ID               string   `json:"id,omitempty"`
	Name             string   `json:"name"`
	Public           bool     `json:"public"`
	FileSizeLimit    int64    `json:"file_size_limit,omitempty"`
	AllowedMimeTypes []string `json:"allowed_mime_types,omitempty"`
	CreatedAt        string   `json:"created_at,omitempty"`
}

// DefaultBuckets returns the buckets the mobile app expects to find.
// A fresh slice is returned on every call so callers may modify it.
func DefaultBuckets() []Bucket {
	return []Bucket{
		{Name: "message_attachments", Public: true},
		{Name: "post_attachments", Public: true},
		{Name: "ncd-app-media", Public: true},
	}
}

// BucketNames returns the names of buckets in order.
func BucketNames(buckets []Bucket) []string {
	names := make([]string, 0, len(buckets))
	for _, b := range buckets {
		names = append(names, b.Name)
	}
	return names
}
