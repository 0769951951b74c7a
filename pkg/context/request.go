// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package context

import (
	"context"

	"github.com/google/uuid"
)

const (
	// RunHeader carries the run ID on every storage request.
	RunHeader = "X-Ensure-Buckets-Run"
)

type RunID struct{}

// WithUUID returns ctx carrying a run ID, reusing one already present.
func WithUUID(c context.Context) (context.Context, string) {
	if id, ok := c.Value(RunID{}).(string); ok && id != "" {
		return c, id
	}
	newID := uuid.New().String()
	c = context.WithValue(c, RunID{}, newID)
	return c, newID
}

func FromUUID(c context.Context, runID string) context.Context {
	return context.WithValue(c, RunID{}, runID)
}

// ID returns the run ID in c, or "" if there is none.
func ID(c context.Context) string {
	id, _ := c.Value(RunID{}).(string)
	return id
}
