// Package cache implements the tiered result cache: a process-local hot tier
// backed by ristretto, a shared tier with native TTL support, and a durable
// tier for entries that must outlive the shared cap.
//
// Reads check tiers in ascending cost order and backfill faster tiers on a
// hit from a slower one. Writes clamp TTLs to a global maximum and promote
// long-lived entries to the durable tier. Corrupt durable rows are deleted on
// read, so the tier heals itself. Scopes partition all tiers by key prefix.
package cache
