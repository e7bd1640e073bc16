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

package badger

// NewMemoryRepositories creates in-memory repositories for testing.
// Caller must close the returned Repositories when done.
func NewMemoryRepositories() (*Repositories, error) {
	return newRepositories("", true, 0)
}

// NewMemoryRepositoriesWithShardCap creates in-memory repositories with a
// small shard cap so rollover paths can be exercised in tests.
func NewMemoryRepositoriesWithShardCap(maxRowsPerShard int) (*Repositories, error) {
	return newRepositories("", true, maxRowsPerShard)
}
