// Package faults classifies failures, drives retry policy, and produces
// the localized messages users actually see.
//
// The taxonomy is closed: temporary faults retry with exponential backoff,
// quota and auth faults never retry, data faults route to recovery, system
// faults are logged only. Severity decides logging level and whether the
// out-of-band notifier fires.
package faults
