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

package mock

import "github.com/kaiteki-lab/kotae/ai"

// MockProvider is a test double for ai.Provider.
// It aggregates mock embedder, generator and language identifier instances.
type MockProvider struct {
	embedder   *MockEmbedder
	generator  *MockGenerator
	identifier *MockLanguageIdentifier
}

// NewMockProvider creates a new mock provider with default mock services.
//
// Returns ai.Provider interface for consistency with production constructors.
// Use GetMockEmbedder()/GetMockGenerator()/GetMockLanguageIdentifier() to
// access concrete types for test assertions.
func NewMockProvider() ai.Provider {
	return &MockProvider{
		embedder:   NewMockEmbedder(),
		generator:  NewMockGenerator(),
		identifier: NewMockLanguageIdentifier(),
	}
}

// Embedder returns the mock embedder.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// Generator returns the mock generator.
func (p *MockProvider) Generator() ai.Generator {
	return p.generator
}

// LanguageIdentifier returns the mock language identifier.
func (p *MockProvider) LanguageIdentifier() ai.LanguageIdentifier {
	return p.identifier
}

// Close is a no-op for mock provider.
func (p *MockProvider) Close() error {
	return nil
}

// GetMockEmbedder returns the underlying mock embedder for test assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockGenerator returns the underlying mock generator for test assertions.
func (p *MockProvider) GetMockGenerator() *MockGenerator {
	return p.generator
}

// GetMockLanguageIdentifier returns the underlying mock identifier for test assertions.
func (p *MockProvider) GetMockLanguageIdentifier() *MockLanguageIdentifier {
	return p.identifier
}
