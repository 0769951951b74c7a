// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"fmt"
	"strings"
)

// ConfigValidationError represents a configuration validation error
type ConfigValidationError struct {
	Field   string
	Message string
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ConfigValidationResult contains the results of configuration validation
type ConfigValidationResult struct {
	Valid    bool
	Errors   []ConfigValidationError
	Warnings []string
}

// AddError adds an error to the result
func (r *ConfigValidationResult) AddError(field, message string) {
	r.Valid = false
	r.Errors = append(r.Errors, ConfigValidationError{Field: field, Message: message})
}

// AddWarning adds a warning to the result
func (r *ConfigValidationResult) AddWarning(message string) {
	r.Warnings = append(r.Warnings, message)
}

// ValidateBuckets checks a desired bucket set. Empty and duplicate names are
// errors; an empty set is only a warning.
func ValidateBuckets(buckets []Bucket) *ConfigValidationResult {
	result := &ConfigValidationResult{Valid: true}

	if len(buckets) == 0 {
		result.AddWarning("no buckets configured, nothing to ensure")
	}

	seen := make(map[string]struct{}, len(buckets))
	for i, b := range buckets {
		field := fmt.Sprintf("buckets[%d].name", i)
		name := strings.TrimSpace(b.Name)
		if name == "" {
			result.AddError(field, "bucket name cannot be empty")
			continue
		}
		if _, dup := seen[name]; dup {
			result.AddError(field, fmt.Sprintf("duplicate bucket name %q", name))
			continue
		}
		seen[name] = struct{}{}

		if b.FileSizeLimit < 0 {
			result.AddError(fmt.Sprintf("buckets[%d].file_size_limit", i), "file size limit cannot be negative")
		}
	}

	return result
}
