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
	"sync"
)

// RecoveryFunc re-enters an interrupted operation with the context the
// collaborator saved when the fault was reported.
type RecoveryFunc func(ctx context.Context, saved map[string]any) error

// Registry maps operation names to recovery handlers. Collaborators
// register their re-entry points once at startup; the handler set is
// open-ended, so registration is explicit rather than enum-dispatched.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]RecoveryFunc
}

// NewRegistry creates an empty recovery registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]RecoveryFunc)}
}

// Register installs the recovery handler for an operation, replacing any
// previous handler under the same name.
func (r *Registry) Register(operation string, fn RecoveryFunc) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[operation] = fn
}

// Recover re-enters the named operation under the backoff policy. The
// handler runs up to maxAttempts times; a non-retryable fault class aborts
// the loop early, as RetryWithBackoff does for direct calls.
func (r *Registry) Recover(ctx context.Context, operation string, saved map[string]any, maxAttempts int) error {
	r.mu.RLock()
	fn, ok := r.handlers[operation]
	r.mu.RUnlock()
	if !ok {
		return ErrNoRecoveryHandler
	}

	return RetryWithBackoff(ctx, func() error {
		return fn(ctx, saved)
	}, maxAttempts, DefaultBackoffBase)
}
