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

// Package storage provides the storage abstraction layer for kotae.
//
// This package defines repository interfaces that decouple storage
// implementation from business logic, so different backends (BadgerDB,
// in-memory, etc.) can be used interchangeably.
//
// # Constructor Return Type Pattern
//
// Public constructors return interfaces, not concrete types:
//
//	repos, err := badger.NewRepositories(path)  // fields typed as storage interfaces
//
// This keeps consumers decoupled from BadgerDB specifics and lets tests
// substitute alternative implementations without modification. Internal
// constructors (newChunkRepository, newBackend, etc.) may return concrete
// types since they're only used within the implementation package.
//
// # Sharding
//
// Chunks and embeddings are stored in capped shards, one family per
// category. When the active shard of a category reaches its row cap,
// writes roll over to a fresh shard. Each shard has an index row
// (core.ShardInfo) tracking its category, kind, and row count; search
// fans out across shards and scans each one linearly.
//
// # Usage
//
// Create the repositories:
//
//	repos, err := badger.NewRepositories("/path/to/db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer repos.Close()
//
// Use in tests with in-memory storage:
//
//	repos, err := badger.NewMemoryRepositories()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer repos.Close()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support.
package storage
