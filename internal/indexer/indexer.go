// Package indexer builds the vector index for a project version: it
// classifies, extracts, embeds and upserts every file.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"ctxasm/internal/embedding"
	"ctxasm/internal/extract"
	"ctxasm/internal/filestore"
	"ctxasm/internal/model"
	"ctxasm/internal/slogutil"
	"ctxasm/internal/telemetry"
	"ctxasm/internal/vectorindex"
)

// Summary reports the outcome of IndexProject.
type Summary struct {
	Files    int           `json:"files"`
	Embedded int           `json:"embedded"`
	Cached   int           `json:"cached"`
	Binary   int           `json:"binary"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Indexer wires a file store, the embedding batcher and a vector index.
type Indexer struct {
	files     filestore.FileStore
	batcher   *embedding.Batcher
	index     vectorindex.Index
	extractor *extract.Extractor
	logger    *slog.Logger
	now       func() time.Time
}

// New creates an indexer. A nil extractor records no imports or exports.
func New(files filestore.FileStore, batcher *embedding.Batcher, index vectorindex.Index, extractor *extract.Extractor, logger *slog.Logger) *Indexer {
	return &Indexer{
		files:     files,
		batcher:   batcher,
		index:     index,
		extractor: extractor,
		logger:    slogutil.OrDiscard(logger),
		now:       time.Now,
	}
}

// IndexProject embeds and upserts every file of a project version. When a
// batch fails, the files embedded before it are still upserted and the
// batch error is returned.
func (ix *Indexer) IndexProject(ctx context.Context, projectID, versionID string) (Summary, error) {
	ctx, span := telemetry.Start(ctx, "indexer.index",
		attribute.String("project.id", projectID),
		attribute.String("version.id", versionID),
	)
	defer span.End()

	logger := slogutil.ForProject(ix.logger, projectID, versionID)
	start := ix.now()
	var sum Summary

	contents, err := ix.files.GetFiles(ctx, projectID, versionID)
	if telemetry.RecordErrorAndStatus(span, err) {
		return sum, fmt.Errorf("load files: %w", err)
	}
	var sizes map[string]int64
	if sized, ok := ix.files.(filestore.SizedStore); ok {
		if sizes, err = sized.Sizes(ctx, projectID, versionID); err != nil {
			logger.Warn("Could not read file sizes", "error", err)
		}
	}

	filePaths := make([]string, 0, len(contents))
	for p := range contents {
		filePaths = append(filePaths, p)
	}
	sort.Strings(filePaths)

	inputs := make([]embedding.File, len(filePaths))
	for i, p := range filePaths {
		inputs[i] = embedding.File{Path: p, Content: contents[p], Size: sizes[p]}
	}
	sum.Files = len(inputs)

	results, embedErr := ix.batcher.EmbedFiles(ctx, inputs)
	sum.Failed = len(inputs) - len(results)

	now := ix.now()
	for _, r := range results {
		rec := &model.FileRecord{
			Path:        r.Path,
			ContentHash: r.ContentHash,
			Embedding:   r.Embedding,
			TokenCount:  r.TokenCount,
			Language:    r.Language,
			Category:    r.Category,
			SizeBytes:   r.SizeBytes,
			UpdatedAt:   now,
		}
		switch {
		case r.IsBinary:
			sum.Binary++
		case r.Cached:
			sum.Cached++
		default:
			sum.Embedded++
		}
		if !r.IsBinary && ix.extractor != nil {
			edges := ix.extractor.Extract(ctx, r.Path, contents[r.Path])
			rec.Imports = edges.Imports
			rec.Exports = edges.Exports
		}
		if err := ix.index.Upsert(ctx, projectID, versionID, rec); err != nil {
			telemetry.RecordErrorAndStatus(span, err)
			sum.Duration = ix.now().Sub(start)
			return sum, err
		}
	}

	sum.Duration = ix.now().Sub(start)
	span.SetAttributes(
		attribute.Int("files", sum.Files),
		attribute.Int("embedded", sum.Embedded),
		attribute.Int("cached", sum.Cached),
	)
	logger.Info("Indexed project",
		"files", sum.Files,
		"embedded", sum.Embedded,
		"cached", sum.Cached,
		"binary", sum.Binary,
		"failed", sum.Failed,
		"duration", sum.Duration,
	)
	if telemetry.RecordErrorAndStatus(span, embedErr) {
		return sum, embedErr
	}
	return sum, nil
}
