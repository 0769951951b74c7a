// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package reconcile converges the platform's bucket list toward a desired set.
// A listing failure aborts the pass; a failed creation is recorded and the
// pass moves on to the next bucket.
package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/LeeDigitalWorks/ensure-buckets/pkg/logger"
	"github.com/LeeDigitalWorks/ensure-buckets/pkg/storage/backend"
	"github.com/LeeDigitalWorks/ensure-buckets/pkg/types"

	"github.com/dustin/go-humanize"
	"github.com/fishy/errbatch"
	"github.com/rs/zerolog"
)

// Config holds configuration for a reconciliation pass
type Config struct {
	// DryRun if true, only logs what would be created without creating it
	DryRun bool
}

// Outcome is what happened to one desired bucket
type Outcome string

const (
	OutcomeExists  Outcome = "exists"
	OutcomeCreated Outcome = "created"
	OutcomePlanned Outcome = "planned"
	OutcomeFailed  Outcome = "failed"
)

// Result is the outcome for one desired bucket
type Result struct {
	Bucket  types.Bucket
	Outcome Outcome

	// Created is the bucket as the platform reported it, for OutcomeCreated
	Created *types.Bucket

	// Err is set for OutcomeFailed
	Err error
}

// Report contains the results of a reconciliation pass, one per desired
// bucket, in the order the buckets were declared.
type Report struct {
	Results  []Result
	Duration time.Duration
}

// Count returns how many results have the given outcome.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Failed returns the results whose creation failed.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			out = append(out, res)
		}
	}
	return out
}

// Err compiles every creation failure into one error, or nil if there were none.
func (r *Report) Err() error {
	var batch errbatch.ErrBatch
	for _, res := range r.Failed() {
		batch.Add(res.Err)
	}
	return batch.Compile()
}

// Reconciler lists buckets once and creates the missing ones, one at a time.
type Reconciler struct {
	config Config
	store  types.BucketStore
	log    *zerolog.Logger
}

// NewReconciler creates a reconciler. A nil log uses the global logger.
func NewReconciler(config Config, store types.BucketStore, log *zerolog.Logger) *Reconciler {
	if log == nil {
		log = logger.Global()
	}
	return &Reconciler{
		config: config,
		store:  store,
		log:    log,
	}
}

// Run performs a single pass over desired. The returned error is non-nil only
// when listing failed, in which case no creation was attempted and the report
// is nil.
func (r *Reconciler) Run(ctx context.Context, desired []types.Bucket) (*Report, error) {
	start := time.Now()
	defer func() {
		RunDuration.Observe(time.Since(start).Seconds())
	}()

	r.log.Info().
		Str("backend", string(r.store.Type())).
		Int("desired", len(desired)).
		Bool("dry_run", r.config.DryRun).
		Msg("Listing existing buckets...")

	existing, err := r.store.ListBuckets(ctx)
	if err != nil {
		ListErrorsTotal.Inc()
		return nil, err
	}

	existingNames := make(map[string]struct{}, len(existing))
	for _, b := range existing {
		existingNames[b.Name] = struct{}{}
	}

	r.log.Debug().
		Strs("existing", types.BucketNames(existing)).
		Msg("Fetched existing buckets")

	report := &Report{Results: make([]Result, 0, len(desired))}
	for _, b := range desired {
		res := r.ensure(ctx, b, existingNames)
		ResultsTotal.WithLabelValues(string(res.Outcome)).Inc()
		report.Results = append(report.Results, res)
	}

	report.Duration = time.Since(start)
	LastRunTimestamp.SetToCurrentTime()

	r.log.Info().
		Int("existing", report.Count(OutcomeExists)).
		Int("created", report.Count(OutcomeCreated)).
		Int("planned", report.Count(OutcomePlanned)).
		Int("failed", report.Count(OutcomeFailed)).
		Dur("duration", report.Duration).
		Msg("Bucket reconciliation finished")
	r.log.Info().Msg("Done.")

	return report, nil
}

func (r *Reconciler) ensure(ctx context.Context, b types.Bucket, existing map[string]struct{}) Result {
	res := Result{Bucket: b}

	if _, ok := existing[b.Name]; ok {
		r.log.Info().Msgf("Bucket exists: %s", b.Name)
		res.Outcome = OutcomeExists
		return res
	}

	event := r.log.Info()
	if b.FileSizeLimit > 0 {
		event = event.Str("file_size_limit", humanize.Bytes(uint64(b.FileSizeLimit)))
	}
	if len(b.AllowedMimeTypes) > 0 {
		event = event.Strs("allowed_mime_types", b.AllowedMimeTypes)
	}

	if r.config.DryRun {
		event.Msgf("[DRY-RUN] Would create bucket %s (public=%t)", b.Name, b.Public)
		res.Outcome = OutcomePlanned
		return res
	}

	event.Msgf("Creating bucket: %s (public=%t)", b.Name, b.Public)

	created, err := r.store.CreateBucket(ctx, b)
	if err != nil {
		failure := r.log.Error().Err(err).Str("bucket", b.Name).Bool("conflict", backend.IsConflict(err))
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			failure = failure.Int("status", apiErr.StatusCode).Interface("body", apiErr.Body)
		}
		failure.Msgf("Failed to create bucket %s", b.Name)

		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}

	r.log.Info().
		Str("bucket", created.Name).
		Bool("public", created.Public).
		Msgf("Created bucket %s", b.Name)

	res.Outcome = OutcomeCreated
	res.Created = created
	return res
}
