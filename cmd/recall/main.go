// Copyright 2025 Worklens
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
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/worklens/recall"
	"github.com/worklens/recall/ai"
	"github.com/worklens/recall/ai/openai"
	"github.com/worklens/recall/core"
	"github.com/worklens/recall/indexing"
	"github.com/worklens/recall/search"
	"github.com/worklens/recall/storage/badger"
)

func main() {
	app := &cli.App{
		Name:  "recall",
		Usage: "Embedding index and semantic search for work-tracking data",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "dispatch",
				Usage:  "Drain pending embed jobs through the batch pipeline",
				Action: dispatchCommand,
				Flags: append(append(dbFlags(), providerFlags()...),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum jobs to dequeue per run",
						Value: 500,
					},
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Jobs dispatched concurrently per chunk",
						Value: indexing.DefaultChunkSize,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed items",
						Value: indexing.DefaultMaxRetries,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: indexing.DefaultRetryDelay,
					},
					&cli.IntFlag{
						Name:  "rate-limit",
						Usage: "Maximum provider requests per minute",
						Value: indexing.DefaultMaxRequestsPerMinute,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N jobs",
						Value: 50,
					},
				),
			},
			{
				Name:   "search",
				Usage:  "Query the embedding index",
				Action: searchCommand,
				Flags: append(append(dbFlags(), providerFlags()...),
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "Query text",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "intent",
						Usage: "Intent text used to pick the cascade order",
					},
					&cli.StringFlag{
						Name:  "level",
						Usage: "Restrict to a single level (field, cycle, session); disables cascading",
					},
					&cli.StringFlag{
						Name:  "session",
						Usage: "Restrict to one session id; disables cascading",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum results per level",
						Value: search.DefaultLimit,
					},
				),
			},
			{
				Name:   "stats",
				Usage:  "Print job queue statistics",
				Action: statsCommand,
				Flags:  dbFlags(),
			},
			{
				Name:   "sweep",
				Usage:  "Delete terminal jobs past their retention windows",
				Action: sweepCommand,
				Flags: append(dbFlags(),
					&cli.DurationFlag{
						Name:  "done-retention",
						Usage: "Retention window for done jobs",
						Value: 7 * 24 * time.Hour,
					},
					&cli.DurationFlag{
						Name:  "error-retention",
						Usage: "Retention window for error jobs",
						Value: 30 * 24 * time.Hour,
					},
				),
			},
			{
				Name:   "requeue",
				Usage:  "Requeue jobs stuck in processing after a crash",
				Action: requeueCommand,
				Flags: append(dbFlags(),
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "Only requeue jobs processing longer than this",
						Value: time.Hour,
					},
				),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func dbFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to BadgerDB database directory",
			Required: true,
		},
	}
}

func providerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "host",
			Usage: "OpenAI-compatible service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "API key for the provider",
			EnvVars: []string{"RECALL_API_KEY"},
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
		&cli.StringFlag{
			Name:  "summary-model",
			Usage: "Summarization model name",
			Value: "qwen2.5:3b",
		},
	}
}

func openDatabase(c *cli.Context) (*recall.Database, error) {
	aiConfig := ai.NewConfig(
		ai.WithHost(c.String("host")),
		ai.WithAPIKey(c.String("api-key")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithSummaryModel(c.String("summary-model")),
	)

	// Commands without dispatch tunables fall back to the defaults.
	dispatchConfig := indexing.DefaultConfig()
	if v := c.Int("chunk-size"); v > 0 {
		dispatchConfig.ChunkSize = v
	}
	if v := c.Int("max-retries"); v > 0 {
		dispatchConfig.MaxRetries = v
	}
	if v := c.Duration("retry-delay"); v > 0 {
		dispatchConfig.RetryDelay = v
	}
	if v := c.Int("rate-limit"); v > 0 {
		dispatchConfig.MaxRequestsPerMinute = v
	}

	return recall.NewDatabase(c.String("db"),
		recall.WithAIConfig(aiConfig),
		recall.WithDispatchConfig(dispatchConfig))
}

// openDatabaseForMaintenance skips provider configuration; maintenance
// commands never call the provider.
func openDatabaseForMaintenance(c *cli.Context) (*recall.Database, error) {
	return recall.NewDatabase(c.String("db"))
}

func dispatchCommand(c *cli.Context) error {
	ctx := context.Background()

	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	jobStore, err := badger.NewJobRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create job store: %w", err)
	}
	defer jobStore.Close()

	vectorStore := badger.NewVectorRepository(backend)

	aiConfig := ai.NewConfig(
		ai.WithHost(c.String("host")),
		ai.WithAPIKey(c.String("api-key")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithSummaryModel(c.String("summary-model")),
	)
	provider, err := openai.NewProvider(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create AI provider: %w", err)
	}
	defer provider.Close()

	dispatchConfig := &indexing.Config{
		ChunkSize:            c.Int("chunk-size"),
		MaxRetries:           c.Int("max-retries"),
		RetryDelay:           c.Duration("retry-delay"),
		MaxRequestsPerMinute: c.Int("rate-limit"),
	}
	if err := dispatchConfig.Validate(); err != nil {
		return fmt.Errorf("invalid dispatch configuration: %w", err)
	}

	pending, err := jobStore.DequeuePending(ctx, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to dequeue jobs: %w", err)
	}
	if len(pending) == 0 {
		fmt.Fprintln(os.Stderr, "No pending jobs.")
		return nil
	}

	tracker := indexing.NewProgressTracker(os.Stderr, len(pending), c.Int("report-interval"))
	dispatcher, err := indexing.NewDispatcher(jobStore, vectorStore, provider,
		indexing.WithConfig(dispatchConfig),
		indexing.WithProgress(tracker))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	defer dispatcher.Release()

	tracker.Start()
	result, err := indexing.RetryBatch(ctx, dispatcher.RunBatch, pending,
		dispatchConfig.MaxRetries, dispatchConfig.RetryDelay)
	if err != nil {
		return fmt.Errorf("dispatch failed: %w", err)
	}
	tracker.Finish()

	fmt.Fprintf(os.Stderr, "Processed %d jobs in %s.\n", result.Processed, tracker.Elapsed().Round(time.Millisecond))
	if len(result.Errors) > 0 {
		fmt.Fprintf(os.Stderr, "Failed: %d\n", len(result.Errors))
		for _, itemErr := range result.Errors {
			fmt.Fprintf(os.Stderr, "  job %d: %s\n", itemErr.JobID, itemErr.Reason)
		}
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	query := c.String("query")

	var results []*core.ScoredRecord
	if level := c.String("level"); level != "" || c.String("session") != "" {
		results, err = db.Search(ctx, query, search.SearchOptions{
			Level:     core.Level(level),
			SessionID: c.String("session"),
			Limit:     c.Int("limit"),
		})
	} else {
		results, err = db.CascadingSearch(ctx, query, c.String("intent"), c.Int("limit"))
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	for i, result := range results {
		fmt.Printf("%2d. [%.3f] %-8s session=%s", i+1, result.Score, result.Record.Level, result.Record.SessionID)
		if result.Record.CycleID != "" {
			fmt.Printf(" cycle=%s", result.Record.CycleID)
		}
		fmt.Printf("\n    %s\n", result.Record.Text)
	}
	return nil
}

func statsCommand(c *cli.Context) error {
	db, err := openDatabaseForMaintenance(c)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	stats, err := db.JobQueueStatistics(context.Background())
	if err != nil {
		return fmt.Errorf("failed to read statistics: %w", err)
	}

	for _, status := range []core.JobStatus{core.StatusPending, core.StatusProcessing, core.StatusDone, core.StatusError} {
		fmt.Printf("%-12s %d\n", status, stats[status])
	}
	return nil
}

func sweepCommand(c *cli.Context) error {
	db, err := openDatabaseForMaintenance(c)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	doneRemoved, errorRemoved, err := db.RetentionSweep(context.Background(),
		c.Duration("done-retention"), c.Duration("error-retention"))
	if err != nil {
		return fmt.Errorf("retention sweep failed: %w", err)
	}

	fmt.Printf("Removed %d done and %d error jobs.\n", doneRemoved, errorRemoved)
	return nil
}

func requeueCommand(c *cli.Context) error {
	db, err := openDatabaseForMaintenance(c)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	requeued, err := db.RequeueStuck(context.Background(), c.Duration("older-than"))
	if err != nil {
		return fmt.Errorf("requeue failed: %w", err)
	}

	fmt.Printf("Requeued %d stuck jobs.\n", requeued)
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
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

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
