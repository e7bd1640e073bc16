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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	kotae "github.com/kaiteki-lab/kotae"
	"github.com/kaiteki-lab/kotae/ai/mock"
	"github.com/kaiteki-lab/kotae/config"
	"github.com/kaiteki-lab/kotae/core"
	"github.com/kaiteki-lab/kotae/ingest"
	"github.com/kaiteki-lab/kotae/retrieval"
	"github.com/kaiteki-lab/kotae/server"
)

func main() {
	app := &cli.App{
		Name:  "kotae",
		Usage: "Bilingual hybrid search and response generation over ingested documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				Value:   "kotae.yaml",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.BoolFlag{
				Name:  "mock-ai",
				Usage: "Use deterministic in-process AI instead of the configured service",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API server",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides configuration)",
					},
				},
			},
			{
				Name:      "ingest",
				Usage:     "Ingest documents from files or directories",
				ArgsUsage: "PATH [PATH...]",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "category",
						Usage: "Category assigned to ingested documents",
						Value: "general",
					},
					&cli.StringFlag{
						Name:  "language",
						Usage: "Document language (ja, en); auto-detected when empty",
					},
					&cli.BoolFlag{
						Name:  "embeddings",
						Usage: "Generate embeddings during ingestion",
						Value: true,
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Run a one-shot hybrid search against the store",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: 10,
					},
					&cli.StringFlag{
						Name:  "category",
						Usage: "Restrict the search to one category",
					},
					&cli.BoolFlag{
						Name:  "no-expand",
						Usage: "Disable query expansion",
					},
				},
			},
			{
				Name:   "seed",
				Usage:  "Seed the store with sample documents and templates",
				Action: seedCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func buildSystem(c *cli.Context) (*kotae.System, *config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	opts := []kotae.SystemOption{
		kotae.WithAIConfig(cfg.AIClientConfig()),
		kotae.WithMaxRowsPerShard(cfg.Storage.MaxRowsPerShard),
		kotae.WithIngestOptions(
			ingest.WithChunker(ingest.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)),
			ingest.WithPoolSize(cfg.Ingest.PoolSize),
			ingest.WithEmbedRate(cfg.Ingest.EmbedRatePerSec),
		),
	}
	if c.Bool("mock-ai") {
		opts = append(opts, kotae.WithProvider(mock.NewMockProvider()))
	}

	system, err := kotae.NewSystem(cfg.Storage.Path, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("opening system at %s: %w", cfg.Storage.Path, err)
	}
	return system, cfg, nil
}

func serveCommand(c *cli.Context) error {
	system, cfg, err := buildSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	srv, err := server.New(server.Deps{
		Engine:      system.Engine(),
		Synthesizer: system.Synthesizer(),
		Pipeline:    system.Pipeline(),
		Documents:   system.DocumentRepository(),
		Templates:   system.TemplateRepository(),
		Chunks:      system.ChunkRepository(),
		System:      system.SystemRepository(),
		Cache:       system.Cache(),
	},
		server.WithAPIKeys(cfg.Server.APIKey, cfg.Server.AdminAPIKey),
	)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	addr := c.String("addr")
	if addr == "" {
		addr = cfg.Server.Addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.ListenAndServe(ctx, addr)
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one file or directory path is required")
	}

	system, _, err := buildSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	ctx := context.Background()
	category := c.String("category")
	language := core.Language(c.String("language"))
	withEmbeddings := c.Bool("embeddings")

	var files []string
	for _, root := range c.Args().Slice() {
		found, err := collectFiles(root)
		if err != nil {
			return err
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return fmt.Errorf("no ingestable files found")
	}

	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		doc := &core.Document{
			Title:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			Content:  string(content),
			Category: category,
			Language: language,
			Path:     path,
			Format:   strings.TrimPrefix(filepath.Ext(path), "."),
		}

		result, err := system.Pipeline().ProcessDocument(ctx, doc, ingest.ProcessOptions{
			GenerateEmbeddings: withEmbeddings,
		})
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}
		fmt.Fprintf(os.Stderr, "%s: %d chunks, %d embedded, %d replaced\n",
			path, result.ChunkCount, result.EmbeddedCount, result.ReplacedCount)
	}

	system.Pipeline().Wait()
	return nil
}

// collectFiles expands a path into the text files beneath it.
func collectFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".txt", ".markdown":
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("a query is required")
	}

	system, cfg, err := buildSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	opts := retrieval.DefaultSearchOptions()
	opts.Limit = c.Int("limit")
	opts.Category = c.String("category")
	opts.ExpandQuery = !c.Bool("no-expand")
	opts.SemanticWeight = cfg.Search.SemanticWeight
	opts.KeywordWeight = cfg.Search.KeywordWeight

	resp, err := system.Engine().Search(context.Background(), query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp)
}

func seedCommand(c *cli.Context) error {
	system, _, err := buildSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	ctx := context.Background()

	for _, doc := range seedDocuments {
		result, err := system.Pipeline().ProcessDocument(ctx, doc, ingest.ProcessOptions{
			GenerateEmbeddings: true,
		})
		if err != nil {
			return fmt.Errorf("seeding document %s: %w", doc.ID, err)
		}
		fmt.Fprintf(os.Stderr, "%s: %d chunks, %d embedded\n",
			doc.ID, result.ChunkCount, result.EmbeddedCount)
	}

	for _, tpl := range seedTemplates {
		if err := system.TemplateRepository().PutTemplate(ctx, tpl); err != nil {
			return fmt.Errorf("seeding template %s: %w", tpl.ID, err)
		}
		fmt.Fprintf(os.Stderr, "template %s stored\n", tpl.ID)
	}

	for _, pair := range seedHelpPairs {
		if err := system.SystemRepository().PutHelpPair(ctx, pair); err != nil {
			return fmt.Errorf("seeding help pair: %w", err)
		}
	}

	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
