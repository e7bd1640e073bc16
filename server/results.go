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

package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/kaiteki-lab/kotae/cache"
	"github.com/kaiteki-lab/kotae/retrieval"
)

// resultRetention is how long full search results stay retrievable by id
// after their truncated form went out over the wire.
const resultRetention = 30 * time.Minute

const resultKeyPrefix = "result:"

// resultStore retains full search responses under an opaque result id.
type resultStore struct {
	cache *cache.Layer
}

// Save stores the full response and returns its result id. A nil cache
// layer disables retention; the empty id tells the client not to offer it.
func (s *resultStore) Save(ctx context.Context, resp *retrieval.SearchResponse) string {
	if s.cache == nil {
		return ""
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return ""
	}

	id := uuid.NewString()
	if err := s.cache.Set(ctx, resultKeyPrefix+id, data, resultRetention, cache.ScopeProcess); err != nil {
		return ""
	}
	return id
}

// Load retrieves a stored response by result id.
func (s *resultStore) Load(ctx context.Context, id string) (*retrieval.SearchResponse, bool) {
	if s.cache == nil || id == "" {
		return nil, false
	}
	data, ok := s.cache.Get(ctx, resultKeyPrefix+id, cache.ScopeProcess)
	if !ok {
		return nil, false
	}
	var resp retrieval.SearchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false
	}
	return &resp, true
}
