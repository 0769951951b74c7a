// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyBucketName is returned before any request is made for a nameless bucket.
var ErrEmptyBucketName = errors.New("bucket name cannot be empty")

// APIError is returned by every backend call that fails, whether the platform
// answered with a non-2xx status or the request never completed.
//
// StatusCode is 0 for transport failures, in which case Err holds the cause.
// Body is the decoded JSON payload when the response parsed, the raw text
// otherwise, and nil for an empty body.
type APIError struct {
	Op         string
	StatusCode int
	Body       any
	Err        error
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.StatusCode == 0 {
		b.WriteString(": ")
		if e.Err != nil {
			b.WriteString(e.Err.Error())
		} else {
			b.WriteString("request failed")
		}
		return b.String()
	}

	fmt.Fprintf(&b, ": status %d", e.StatusCode)
	if msg := e.Message(); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Message extracts a human readable message from the payload.
func (e *APIError) Message() string {
	switch body := e.Body.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(body)
	case map[string]any:
		for _, key := range []string{"message", "error_description", "error"} {
			if s, ok := body[key].(string); ok && s != "" {
				return s
			}
		}
	}
	raw, err := json.Marshal(e.Body)
	if err != nil {
		return fmt.Sprint(e.Body)
	}
	return string(raw)
}

// newAPIError decodes raw as JSON, falling back to the text itself.
func newAPIError(op string, status int, raw []byte) *APIError {
	apiErr := &APIError{Op: op, StatusCode: status}
	if len(raw) == 0 {
		return apiErr
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		apiErr.Body = string(raw)
		return apiErr
	}
	apiErr.Body = decoded
	return apiErr
}

// IsConflict reports whether err is a 409 from the platform, which is what
// creating an existing bucket returns.
func IsConflict(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == 409 {
		return true
	}
	// The storage API answers duplicates with a 400 whose body carries "409".
	if body, ok := apiErr.Body.(map[string]any); ok {
		if code, ok := body["statusCode"].(string); ok && code == "409" {
			return true
		}
	}
	return false
}
