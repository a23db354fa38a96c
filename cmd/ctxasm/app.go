package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ctxasm/internal/assembler"
	"ctxasm/internal/budget"
	"ctxasm/internal/config"
	"ctxasm/internal/deps"
	"ctxasm/internal/embedcache"
	"ctxasm/internal/embedding"
	"ctxasm/internal/extract"
	"ctxasm/internal/filestore"
	"ctxasm/internal/indexer"
	"ctxasm/internal/lexical"
	"ctxasm/internal/progress"
	"ctxasm/internal/slogutil"
	"ctxasm/internal/storage"
	"ctxasm/internal/telemetry"
	"ctxasm/internal/vectorindex"
)

// app holds the long-lived components shared by the commands of one process.
type app struct {
	root    string
	cfg     *config.Config
	logger  *slog.Logger
	factory *slogutil.LoggerFactory
	tracing *telemetry.Tracing

	db        *storage.DB
	index     vectorindex.Index
	memory    *embedcache.Memory
	provider  embedding.Provider
	files     *filestore.DirStore
	extractor *extract.Extractor
}

// newApp loads configuration and opens the database, the index and the
// embedding provider.
func newApp(ctx context.Context) (*app, error) {
	root, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, err
	}

	cfg, _, err := config.LoadConfigWithDetails(root)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var cliLevel *slog.Level
	if verbosity > 0 || quiet {
		l := slogutil.LevelFromVerbosity(verbosity, quiet)
		cliLevel = &l
	}
	factory := slogutil.NewLoggerFactory(root, cfg, cliLevel)
	logger := factory.CLILogger(os.Stderr, logFile)

	a := &app{
		root:      root,
		cfg:       cfg,
		logger:    logger,
		factory:   factory,
		memory:    embedcache.NewMemory(time.Duration(cfg.Cache.MemoryTtlSeconds) * time.Second),
		extractor: extract.New(logger),
	}

	if cfg.Telemetry.Tracing {
		tracing, err := telemetry.InitTracing(ctx, logger)
		if err != nil {
			logger.Warn("Tracing disabled", "error", err)
		} else {
			a.tracing = tracing
		}
	}

	a.db, err = storage.Open(root, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.index, err = openIndex(ctx, cfg, a.db, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.provider, err = newProvider(cfg.Embedding, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.files = filestore.NewDirStore(a.storeRoot(), cfg.Store.MaxFileBytes, logger)
	return a, nil
}

func openIndex(ctx context.Context, cfg *config.Config, db *storage.DB, logger *slog.Logger) (vectorindex.Index, error) {
	switch cfg.Index.Backend {
	case "memory":
		return vectorindex.NewMemory(), nil
	case "pgvector":
		return vectorindex.OpenPGVector(ctx, cfg.Index.PostgresDSN, logger)
	default:
		return vectorindex.NewSQLite(db), nil
	}
}

func newProvider(ec config.EmbeddingConfig, logger *slog.Logger) (embedding.Provider, error) {
	client := telemetry.NewHTTPClient(telemetry.HTTPClientOptions{
		Timeout:  time.Duration(ec.HTTPTimeoutMs) * time.Millisecond,
		RetryMax: ec.HTTPRetryMax,
		Logger:   logger,
	})

	switch ec.Provider {
	case "hash", "":
		return embedding.NewHashProvider(ec.Dimensions), nil
	case "openai":
		if ec.APIKey == "" {
			return nil, &config.ConfigError{Field: "embedding.apiKey", Message: "required for the openai provider"}
		}
		return embedding.NewOpenAIProvider(
			embedding.WithOpenAIBaseURL(ec.BaseURL),
			embedding.WithAPIKey(ec.APIKey),
			embedding.WithOpenAIModel(ec.Model, ec.Dimensions),
			embedding.WithOpenAIHTTPClient(client),
		), nil
	case "ollama":
		return embedding.NewOllamaProvider(
			embedding.WithBaseURL(ec.BaseURL),
			embedding.WithModel(ec.Model),
			embedding.WithDimensions(ec.Dimensions),
			embedding.WithHTTPClient(client),
		), nil
	default:
		return nil, &config.ConfigError{Field: "embedding.provider", Message: "unknown provider " + ec.Provider}
	}
}

// storeRoot resolves store.root against the workspace root.
func (a *app) storeRoot() string {
	r := a.cfg.Store.Root
	if r == "" {
		r = "."
	}
	if filepath.IsAbs(r) {
		return r
	}
	return filepath.Join(a.root, r)
}

// batcher returns an embedding batcher whose cache is scoped to projectID.
func (a *app) batcher(projectID string) *embedding.Batcher {
	ec := a.cfg.Embedding
	cache := embedcache.NewTiered(a.memory, storage.NewEmbeddingStore(a.db), projectID, a.provider.Model(), a.logger)
	return embedding.NewBatcher(a.provider, cache, embedding.Options{
		BatchSize:    ec.BatchSize,
		BatchDelay:   time.Duration(ec.BatchDelayMs) * time.Millisecond,
		BatchTimeout: time.Duration(ec.BatchTimeoutMs) * time.Millisecond,
		RetryBackoff: time.Duration(ec.RetryBackoffMs) * time.Millisecond,
		MaxChars:     ec.MaxChars,
	}, a.logger)
}

func (a *app) indexer(projectID string) *indexer.Indexer {
	return indexer.New(a.files, a.batcher(projectID), a.index, a.extractor, a.factory.IndexLogger())
}

// resolverOptions merges the configured aliases with the project's
// ALIASES.toml, if any.
func (a *app) resolverOptions(projectID string) (deps.Options, error) {
	opts := deps.Options{Aliases: a.cfg.Resolver.Aliases, Depth: a.cfg.Resolver.Depth}
	dir, err := a.files.ProjectDir(projectID, "")
	if err != nil {
		return opts, err
	}
	af, err := deps.LoadAliases(filepath.Join(dir, deps.AliasFileName))
	if err != nil {
		return opts, err
	}
	return af.Merge(opts), nil
}

func (a *app) engine(projectID string, sink progress.Sink) (*assembler.Engine, error) {
	b := a.cfg.Budget
	alloc, err := budget.NewAllocator(budget.Split{
		History:      b.History,
		Config:       b.Config,
		Relevant:     b.Relevant,
		Dependencies: b.Dependencies,
		Slack:        b.Slack,
	}, b.Rollover)
	if err != nil {
		return nil, err
	}
	resolverOpts, err := a.resolverOptions(projectID)
	if err != nil {
		return nil, err
	}

	s := a.cfg.Search
	return assembler.New(assembler.Deps{
		Files:         a.files,
		Conversations: filestore.NewYAMLStore(a.storeRoot()),
		Embedder:      a.batcher(projectID),
		Index:         a.index,
		Resolver:      deps.New(resolverOpts, a.logger),
		Extractor:     a.extractor,
		Allocator:     alloc,
		Matcher:       lexical.New(s.LexicalMaxCandidates),
		Sink:          sink,
		Logger:        a.logger,
	}, assembler.Config{
		SemanticDeadline: time.Duration(s.SemanticDeadlineMs) * time.Millisecond,
		Threshold:        a.cfg.Index.Threshold,
		SearchLimit:      a.cfg.Index.Limit,
		MaxFiles:         s.MaxFiles,
		MessageLimit:     s.MessageLimit,
	})
}

// Close releases everything newApp opened. It is safe on a partial app.
func (a *app) Close() {
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.logger.Warn("Failed to close index", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("Failed to close database", "error", err)
		}
	}
	a.tracing.Close()
	if a.factory != nil {
		_ = a.factory.Close()
	}
}
