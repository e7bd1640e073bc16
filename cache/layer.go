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

package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

const (
	// HotTTL is the fixed lifetime of hot-tier entries, regardless of the
	// requested TTL. The hot tier is only a read-through accelerator.
	HotTTL = 60 * time.Second

	// SharedMaxTTL caps shared-tier lifetimes. Entries requested to live
	// longer are additionally promoted to the durable tier.
	SharedMaxTTL = 6 * time.Hour

	// MaxTTL is the global ceiling applied to every Set.
	MaxTTL = 7 * 24 * time.Hour

	// DefaultTTL applies when a caller passes a non-positive TTL.
	DefaultTTL = 30 * time.Minute
)

// entry is the durable-tier on-disk form. The durable store has no native
// expiry, so the deadline travels with the value.
type entry struct {
	Value     json.RawMessage `json:"value"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Layer is the tiered cache: a process-local hot tier, a shared tier with
// native TTLs, and a durable tier for entries outliving the shared cap.
// Reads check tiers in ascending cost order and backfill faster tiers on a
// hit from a slower one. Construct one Layer per process and inject it into
// dependents; it is safe for concurrent use.
type Layer struct {
	hot     *ristretto.Cache[string, []byte]
	shared  Store
	durable Store
	logger  *slog.Logger
}

// LayerOption configures a Layer.
type LayerOption func(*Layer)

// WithLayerLogger sets a custom logger. Default is slog.Default().
func WithLayerLogger(logger *slog.Logger) LayerOption {
	return func(l *Layer) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLayer creates a cache layer over the given shared and durable stores.
func NewLayer(shared, durable Store, opts ...LayerOption) (*Layer, error) {
	if shared == nil {
		return nil, ErrSharedStoreRequired
	}
	if durable == nil {
		return nil, ErrDurableStoreRequired
	}

	hot, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 100_000,
		MaxCost:     32 << 20, // 32 MiB of hot values
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	l := &Layer{
		hot:     hot,
		shared:  shared,
		durable: durable,
		logger:  slog.Default().With("component", "cache"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Get returns the cached value for key in scope, checking hot, then shared,
// then durable. A hit at a slower tier backfills the faster tiers. Tier
// errors are logged and treated as misses.
func (l *Layer) Get(ctx context.Context, key string, scope Scope) ([]byte, bool) {
	full := scope.Key(key)

	if value, ok := l.hot.Get(full); ok {
		return value, true
	}

	if value, found, err := l.shared.Get(ctx, full); err != nil {
		l.logger.Warn("shared tier read failed", "key", full, "err", err)
	} else if found {
		l.setHot(full, value)
		return value, true
	}

	raw, found, err := l.durable.Get(ctx, full)
	if err != nil {
		l.logger.Warn("durable tier read failed", "key", full, "err", err)
		return nil, false
	}
	if !found {
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		// Corrupt rows are self-healing: delete on read, report a miss.
		l.logger.Warn("durable entry corrupt, removing", "key", full, "err", err)
		if delErr := l.durable.Delete(ctx, full); delErr != nil {
			l.logger.Warn("failed to remove corrupt durable entry", "key", full, "err", delErr)
		}
		return nil, false
	}

	remaining := time.Until(e.ExpiresAt)
	if remaining <= 0 {
		if delErr := l.durable.Delete(ctx, full); delErr != nil {
			l.logger.Warn("failed to remove expired durable entry", "key", full, "err", delErr)
		}
		return nil, false
	}

	// Restore the faster tiers.
	if remaining > SharedMaxTTL {
		remaining = SharedMaxTTL
	}
	if err := l.shared.Set(ctx, full, e.Value, remaining); err != nil {
		l.logger.Warn("shared tier backfill failed", "key", full, "err", err)
	}
	l.setHot(full, e.Value)

	return e.Value, true
}

// Set stores value under key in scope for ttl. The TTL is clamped to MaxTTL;
// a non-positive TTL becomes DefaultTTL. The hot and shared tiers are always
// written; the durable tier only when the TTL exceeds the shared cap.
func (l *Layer) Set(ctx context.Context, key string, value []byte, ttl time.Duration, scope Scope) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if ttl > MaxTTL {
		ttl = MaxTTL
	}

	full := scope.Key(key)
	l.setHot(full, value)

	sharedTTL := ttl
	if sharedTTL > SharedMaxTTL {
		sharedTTL = SharedMaxTTL
	}
	if err := l.shared.Set(ctx, full, value, sharedTTL); err != nil {
		return err
	}

	if ttl > SharedMaxTTL {
		raw, err := json.Marshal(entry{Value: value, ExpiresAt: time.Now().Add(ttl)})
		if err != nil {
			return err
		}
		if err := l.durable.Set(ctx, full, raw, 0); err != nil {
			return err
		}
	}

	return nil
}

// Remove deletes key from every tier. Best-effort: tier failures are logged.
func (l *Layer) Remove(ctx context.Context, key string, scope Scope) {
	full := scope.Key(key)

	l.hot.Del(full)
	if err := l.shared.Delete(ctx, full); err != nil {
		l.logger.Warn("shared tier delete failed", "key", full, "err", err)
	}
	if err := l.durable.Delete(ctx, full); err != nil {
		l.logger.Warn("durable tier delete failed", "key", full, "err", err)
	}
}

// RemoveByPrefix deletes every key in scope beginning with prefix. The hot
// tier has no key iteration, so it is dropped wholesale; it repopulates on
// the next reads.
func (l *Layer) RemoveByPrefix(ctx context.Context, prefix string, scope Scope) {
	full := scope.Key(prefix)

	l.logger.Debug("hot tier cannot delete by prefix, dropping it", "prefix", full)
	l.hot.Clear()

	if err := l.shared.DeletePrefix(ctx, full); err != nil {
		l.logger.Warn("shared tier prefix delete failed", "prefix", full, "err", err)
	}
	if err := l.durable.DeletePrefix(ctx, full); err != nil {
		l.logger.Warn("durable tier prefix delete failed", "prefix", full, "err", err)
	}
}

// Clear empties scope across all tiers. The hot tier is dropped wholesale
// (it holds all scopes and has no iteration).
func (l *Layer) Clear(ctx context.Context, scope Scope) {
	l.RemoveByPrefix(ctx, "", scope)
}

// FlushHot drops the entire hot tier. Used when the process knows its local
// view is stale, for example after another writer invalidated shared entries.
func (l *Layer) FlushHot() {
	l.hot.Clear()
}

// Close releases the hot tier's resources. The backing stores are owned by
// the caller and are not closed.
func (l *Layer) Close() {
	l.hot.Close()
}

// setHot writes through to the hot tier and waits for the write to settle,
// so an immediate re-read sees it.
func (l *Layer) setHot(key string, value []byte) {
	cost := int64(len(value))
	if cost == 0 {
		cost = 1
	}
	l.hot.SetWithTTL(key, value, cost, HotTTL)
	l.hot.Wait()
}
