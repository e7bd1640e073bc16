package faults

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaiteki-lab/kotae/core"
	"github.com/kaiteki-lab/kotae/storage"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Class
	}{
		{"nil", nil, ClassSystem},
		{"deadline", context.DeadlineExceeded, ClassTemporary},
		{"timeout text", errors.New("request timeout after 30s"), ClassTemporary},
		{"http 503", errors.New("upstream returned 503"), ClassTemporary},
		{"quota", errors.New("insufficient_quota for model"), ClassQuota},
		{"rate limit", errors.New("rate limit exceeded"), ClassQuota},
		{"auth", errors.New("401 unauthorized"), ClassAuth},
		{"not found", fmt.Errorf("loading row: %w", storage.ErrNotFound), ClassData},
		{"corrupt", fmt.Errorf("decode: %w", storage.ErrSerializationFailed), ClassData},
		{"unknown", errors.New("something odd"), ClassSystem},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestClassRetryable(t *testing.T) {
	assert.True(t, ClassTemporary.Retryable())
	assert.False(t, ClassQuota.Retryable())
	assert.False(t, ClassAuth.Retryable())
	assert.False(t, ClassData.Retryable())
	assert.False(t, ClassSystem.Retryable())
}

func TestRetryWithBackoff_SucceedsAfterRetry(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		if attempts < 2 {
			return errors.New("connection refused")
		}
		return nil
	}, 3, 1.001)

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetryWithBackoff_NonRetryableAbortsImmediately(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		return errors.New("401 unauthorized")
	}, 5, 1.001)

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryWithBackoff_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		return errors.New("timeout")
	}, 3, 1.001)

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_InvalidAttempts(t *testing.T) {
	err := RetryWithBackoff(context.Background(), func() error { return nil }, 0, 2)
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, func() error { return errors.New("timeout") }, 3, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReporter_CriticalNotifies(t *testing.T) {
	var notified []string
	r := NewReporter(WithNotifier(NotifierFunc(func(_ context.Context, operation string, _ error) {
		notified = append(notified, operation)
	})))

	ctx := context.Background()
	class := r.Report(ctx, "search", errors.New("timeout"), SeverityCritical)
	assert.Equal(t, ClassTemporary, class)
	assert.Equal(t, []string{"search"}, notified)

	r.Report(ctx, "search", errors.New("timeout"), SeverityHigh)
	assert.Len(t, notified, 1)

	assert.Equal(t, ClassSystem, r.Report(ctx, "search", nil, SeverityCritical))
	assert.Len(t, notified, 1)
}

func TestUserMessage(t *testing.T) {
	ja := UserMessage(ClassTemporary, core.LanguageJapanese)
	assert.Contains(t, ja, "一時的")

	en := UserMessage(ClassAuth, core.LanguageEnglish)
	assert.Contains(t, en, "API key")

	// Unknown class falls back to the generic message.
	assert.NotEmpty(t, UserMessage(Class(99), core.LanguageEnglish))
}

func TestRetryBackoffTiming(t *testing.T) {
	start := time.Now()
	_ = RetryWithBackoff(context.Background(), func() error {
		return errors.New("timeout")
	}, 2, 1.001)
	// base^1 with base ~1 sleeps about one second between the two attempts.
	assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
}
