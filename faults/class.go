// Copyright 2025 Kaiteki Lab
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package faults

import (
	"context"
	"errors"
	"strings"

	"github.com/kaiteki-lab/kotae/storage"
)

// Class is the closed failure taxonomy.
type Class int

const (
	// ClassSystem covers unknown failures; logged only, never retried.
	ClassSystem Class = iota
	// ClassTemporary covers timeouts, rate limits and upstream 5xx/429;
	// retryable with exponential backoff.
	ClassTemporary
	// ClassQuota covers exhausted upstream quotas; not retried, the caller
	// backs off at a coarser granularity.
	ClassQuota
	// ClassAuth covers invalid keys and denied permissions; never retried.
	ClassAuth
	// ClassData covers corrupt, malformed, or missing data; routed to the
	// recovery path rather than retried.
	ClassData
)

var classNames = map[Class]string{
	ClassSystem:    "system",
	ClassTemporary: "temporary",
	ClassQuota:     "quota",
	ClassAuth:      "auth",
	ClassData:      "data",
}

func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return "system"
}

// Retryable reports whether faults of this class should be retried.
func (c Class) Retryable() bool {
	return c == ClassTemporary
}

// Severity grades a fault for logging and notification.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityLow:      "LOW",
	SeverityMedium:   "MEDIUM",
	SeverityHigh:     "HIGH",
	SeverityCritical: "CRITICAL",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return "MEDIUM"
}

// temporaryMarkers are substrings of upstream error text that indicate a
// transient condition. Substring matching is the pragmatic option: the
// model API client wraps HTTP failures into plain errors.
var temporaryMarkers = []string{
	"timeout",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"temporarily unavailable",
	"too many requests",
	"429",
	"500",
	"502",
	"503",
	"504",
}

var quotaMarkers = []string{
	"quota",
	"rate limit",
	"resource exhausted",
	"insufficient_quota",
}

var authMarkers = []string{
	"unauthorized",
	"forbidden",
	"invalid api key",
	"permission denied",
	"401",
	"403",
}

// Classify maps an error to its fault class. Sentinel errors from the
// storage layer classify structurally; everything else falls back to
// message inspection.
func Classify(err error) Class {
	if err == nil {
		return ClassSystem
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTemporary
	}
	if errors.Is(err, storage.ErrNotFound) ||
		errors.Is(err, storage.ErrShardNotFound) ||
		errors.Is(err, storage.ErrSerializationFailed) {
		return ClassData
	}

	msg := strings.ToLower(err.Error())
	switch {
	case matchesAny(msg, quotaMarkers):
		return ClassQuota
	case matchesAny(msg, authMarkers):
		return ClassAuth
	case matchesAny(msg, temporaryMarkers):
		return ClassTemporary
	default:
		return ClassSystem
	}
}

func matchesAny(msg string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
