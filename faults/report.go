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

	"github.com/kaiteki-lab/kotae/core"
)

// Notifier receives out-of-band notifications for critical faults.
type Notifier interface {
	Notify(ctx context.Context, operation string, err error)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, operation string, err error)

func (f NotifierFunc) Notify(ctx context.Context, operation string, err error) {
	f(ctx, operation, err)
}

// Reporter logs classified faults with structured context, forwards
// critical ones to the notifier, and hosts the recovery registry for
// operation re-entry.
type Reporter struct {
	logger      *slog.Logger
	notifier    Notifier
	registry    *Registry
	maxAttempts int
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithNotifier sets the out-of-band notifier for critical faults.
func WithNotifier(notifier Notifier) ReporterOption {
	return func(r *Reporter) {
		r.notifier = notifier
	}
}

// WithMaxRecoveryAttempts bounds the recovery retry loop.
func WithMaxRecoveryAttempts(n int) ReporterOption {
	return func(r *Reporter) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithReporterLogger sets the logger.
func WithReporterLogger(logger *slog.Logger) ReporterOption {
	return func(r *Reporter) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReporter creates a fault reporter.
func NewReporter(opts ...ReporterOption) *Reporter {
	r := &Reporter{
		logger:      slog.Default(),
		registry:    NewRegistry(),
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register installs a recovery re-entry point for an operation.
func (r *Reporter) Register(operation string, fn RecoveryFunc) {
	r.registry.Register(operation, fn)
}

// Recover re-enters a previously reported operation with its saved context.
// Recovery is only meaningful for retryable fault classes; the registry's
// backoff loop aborts early when the handler keeps failing non-retryably.
func (r *Reporter) Recover(ctx context.Context, operation string, saved map[string]any) error {
	return r.registry.Recover(ctx, operation, saved, r.maxAttempts)
}

// Report logs a fault at a level matching its severity and notifies on
// CRITICAL. Returns the fault class so call sites can branch on it.
func (r *Reporter) Report(ctx context.Context, operation string, err error, severity Severity) Class {
	if err == nil {
		return ClassSystem
	}
	class := Classify(err)

	attrs := []any{
		"operation", operation,
		"class", class.String(),
		"severity", severity.String(),
		"error", err,
	}
	switch severity {
	case SeverityLow:
		r.logger.Debug("fault", attrs...)
	case SeverityMedium:
		r.logger.Warn("fault", attrs...)
	default:
		r.logger.Error("fault", attrs...)
	}

	if severity == SeverityCritical && r.notifier != nil {
		r.notifier.Notify(ctx, operation, err)
	}
	return class
}

// UserMessage returns the localized, severity-appropriate message shown to
// end users. Raw error text never reaches the user.
func UserMessage(class Class, language core.Language) string {
	table := userMessagesEN
	if language == core.LanguageJapanese {
		table = userMessagesJA
	}
	if msg, ok := table[class]; ok {
		return msg
	}
	return table[ClassSystem]
}

var userMessagesJA = map[Class]string{
	ClassTemporary: "一時的な問題が発生しました。しばらく待ってから再度お試しください。",
	ClassQuota:     "利用上限に達しました。時間をおいて再度お試しください。",
	ClassAuth:      "アクセス権限がありません。APIキーをご確認ください。",
	ClassData:      "データの取得に失敗しました。検索条件を変えてお試しください。",
	ClassSystem:    "エラーが発生しました。問題が続く場合は管理者にお問い合わせください。",
}

var userMessagesEN = map[Class]string{
	ClassTemporary: "A temporary problem occurred. Please wait a moment and try again.",
	ClassQuota:     "The usage limit has been reached. Please try again later.",
	ClassAuth:      "You do not have access. Please check your API key.",
	ClassData:      "The requested data could not be retrieved. Try adjusting your search.",
	ClassSystem:    "An error occurred. Please contact the administrator if the problem persists.",
}
