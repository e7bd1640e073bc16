// Package mock provides deterministic test doubles for the ai interfaces.
//
// The default mock embedder hashes tokens into buckets, so texts sharing
// words produce correlated vectors without any external service. Every mock
// supports behavior injection via function fields for targeted test cases.
package mock
