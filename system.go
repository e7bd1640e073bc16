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

// Package kotae wires storage, AI, retrieval, synthesis, and ingestion
// into one system over a single BadgerDB database.
package kotae

import (
	"log/slog"

	"github.com/kaiteki-lab/kotae/ai"
	"github.com/kaiteki-lab/kotae/ai/openai"
	"github.com/kaiteki-lab/kotae/cache"
	"github.com/kaiteki-lab/kotae/ingest"
	"github.com/kaiteki-lab/kotae/retrieval"
	"github.com/kaiteki-lab/kotae/storage"
	badgerstore "github.com/kaiteki-lab/kotae/storage/badger"
	"github.com/kaiteki-lab/kotae/synth"
)

// System owns every long-lived component. Components share the provider
// and the cache layer; Close releases them in dependency order.
type System struct {
	repos       *badgerstore.Repositories
	provider    ai.Provider
	layer       *cache.Layer
	engine      *retrieval.Engine
	synthesizer *synth.Synthesizer
	pipeline    *ingest.Pipeline
	logger      *slog.Logger
}

// SystemOption configures a System.
type SystemOption func(*systemOptions)

type systemOptions struct {
	aiConfig        *ai.Config
	provider        ai.Provider
	maxRowsPerShard int
	ingestOpts      []ingest.Option
}

// WithAIConfig sets the AI service configuration used to build the
// OpenAI-compatible provider.
func WithAIConfig(config *ai.Config) SystemOption {
	return func(o *systemOptions) {
		o.aiConfig = config
	}
}

// WithProvider injects a pre-built provider, bypassing the AI config.
// Tests use this to run against the mock provider.
func WithProvider(provider ai.Provider) SystemOption {
	return func(o *systemOptions) {
		o.provider = provider
	}
}

// WithMaxRowsPerShard caps chunk shard size.
func WithMaxRowsPerShard(n int) SystemOption {
	return func(o *systemOptions) {
		o.maxRowsPerShard = n
	}
}

// WithIngestOptions forwards options to the ingestion pipeline.
func WithIngestOptions(opts ...ingest.Option) SystemOption {
	return func(o *systemOptions) {
		o.ingestOpts = append(o.ingestOpts, opts...)
	}
}

// NewSystem opens the database at path and builds every component over it.
func NewSystem(path string, opts ...SystemOption) (*System, error) {
	options := &systemOptions{
		aiConfig: ai.NewConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	repos, err := badgerstore.NewRepositories(path, options.maxRowsPerShard)
	if err != nil {
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			_ = repos.Close()
			return nil, err
		}
	}

	layer, err := cache.NewLayer(
		badgerstore.NewSharedCacheStore(repos.Backend()),
		badgerstore.NewDurableCacheStore(repos.Backend()),
	)
	if err != nil {
		_ = provider.Close()
		_ = repos.Close()
		return nil, err
	}

	engine, err := retrieval.NewEngine(repos.Chunks, repos.Documents, provider,
		retrieval.WithCache(layer))
	if err != nil {
		layer.Close()
		_ = provider.Close()
		_ = repos.Close()
		return nil, err
	}

	synthesizer, err := synth.NewSynthesizer(repos.Templates, repos.Documents,
		synth.WithGenerator(provider.Generator()))
	if err != nil {
		layer.Close()
		_ = provider.Close()
		_ = repos.Close()
		return nil, err
	}

	ingestOpts := append([]ingest.Option{ingest.WithInvalidator(engine)}, options.ingestOpts...)
	pipeline, err := ingest.NewPipeline(repos.Chunks, repos.Documents, provider, ingestOpts...)
	if err != nil {
		layer.Close()
		_ = provider.Close()
		_ = repos.Close()
		return nil, err
	}

	return &System{
		repos:       repos,
		provider:    provider,
		layer:       layer,
		engine:      engine,
		synthesizer: synthesizer,
		pipeline:    pipeline,
		logger:      slog.Default(),
	}, nil
}

// Close releases every component. The pipeline drains first so deferred
// embedding work finishes before storage goes away.
func (s *System) Close() error {
	s.pipeline.Release()
	s.layer.Close()

	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
	}
	if err := s.repos.Close(); err != nil {
		s.logger.Error("error closing storage", "err", err)
		return err
	}
	return nil
}

func (s *System) Engine() *retrieval.Engine {
	return s.engine
}

func (s *System) Synthesizer() *synth.Synthesizer {
	return s.synthesizer
}

func (s *System) Pipeline() *ingest.Pipeline {
	return s.pipeline
}

func (s *System) Cache() *cache.Layer {
	return s.layer
}

func (s *System) ChunkRepository() storage.ChunkRepository {
	return s.repos.Chunks
}

func (s *System) DocumentRepository() storage.DocumentRepository {
	return s.repos.Documents
}

func (s *System) TemplateRepository() storage.TemplateRepository {
	return s.repos.Templates
}

func (s *System) SystemRepository() storage.SystemRepository {
	return s.repos.System
}
