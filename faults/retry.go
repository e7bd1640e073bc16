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
	"log/slog"
	"math"
	"time"
)

const (
	// DefaultMaxAttempts bounds retries for temporary faults.
	DefaultMaxAttempts = 3
	// DefaultBackoffBase is the exponent base: the n-th retry waits
	// base^n seconds.
	DefaultBackoffBase = 2.0
)

// RetryWithBackoff retries an operation with exponential backoff: the delay
// before attempt n+1 is base^n * 1s. Non-retryable fault classes abort
// immediately. Returns the error from the last attempt if all attempts fail.
func RetryWithBackoff(ctx context.Context, operation func() error, maxAttempts int, base float64) error {
	if maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}
	if base <= 1 {
		base = DefaultBackoffBase
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}

		if !Classify(lastErr).Retryable() {
			return lastErr
		}

		slog.Debug("operation failed, will retry",
			"attempt", attempt, "maxAttempts", maxAttempts, "error", lastErr)

		if attempt == maxAttempts {
			break
		}

		delay := time.Duration(math.Pow(base, float64(attempt)) * float64(time.Second))
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}
