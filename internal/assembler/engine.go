// Package assembler builds context bundles: it runs the lexical fast path
// and semantic search concurrently, merges their candidates, pulls in
// dependencies and packs everything into a token budget.
package assembler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"ctxasm/internal/budget"
	"ctxasm/internal/classify"
	"ctxasm/internal/deps"
	"ctxasm/internal/errors"
	"ctxasm/internal/extract"
	"ctxasm/internal/filestore"
	"ctxasm/internal/lexical"
	"ctxasm/internal/model"
	"ctxasm/internal/progress"
	"ctxasm/internal/slogutil"
	"ctxasm/internal/telemetry"
	"ctxasm/internal/vectorindex"
)

// State is a step of a BuildContext request.
type State string

const (
	StateIdle      State = "idle"
	StateFastPath  State = "fast_path_complete"
	StateSemantic  State = "semantic_complete"
	StateResolved  State = "resolved"
	StateAllocated State = "allocated"
	StateDone      State = "done"
	StateError     State = "error"
)

// QueryEmbedder embeds a prompt. *embedding.Batcher implements it.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Deps are the collaborators of an Engine. Files, Allocator and Matcher are
// required. Without Embedder or Index every request runs lexical-only.
type Deps struct {
	Files         filestore.FileStore
	Conversations filestore.ConversationStore
	Embedder      QueryEmbedder
	Index         vectorindex.Index
	Resolver      deps.Resolver
	Extractor     *extract.Extractor
	Allocator     *budget.Allocator
	Matcher       *lexical.Matcher
	Sink          progress.Sink
	Logger        *slog.Logger
}

// Config holds request-independent tuning.
type Config struct {
	// SemanticDeadline bounds the semantic path of each request.
	SemanticDeadline time.Duration
	Threshold        float64
	SearchLimit      int
	MaxFiles         int
	MessageLimit     int
}

// DefaultConfig returns the standard engine settings.
func DefaultConfig() Config {
	return Config{
		SemanticDeadline: 1500 * time.Millisecond,
		Threshold:        0.3,
		SearchLimit:      20,
		MaxFiles:         10,
		MessageLimit:     10,
	}
}

// Options are per-request settings. Zero MessageLimit and MaxFiles take the
// engine defaults.
type Options struct {
	MessageLimit int
	MaxFiles     int
	IncludeTests bool
	BudgetTokens int
	VersionID    string
}

// Engine assembles context bundles. It is safe for concurrent use.
type Engine struct {
	files         filestore.FileStore
	conversations filestore.ConversationStore
	embedder      QueryEmbedder
	index         vectorindex.Index
	resolver      deps.Resolver
	extractor     *extract.Extractor
	allocator     *budget.Allocator
	matcher       *lexical.Matcher
	sink          progress.Sink
	logger        *slog.Logger
	cfg           Config
}

// New creates an engine.
func New(d Deps, cfg Config) (*Engine, error) {
	if d.Files == nil || d.Allocator == nil || d.Matcher == nil {
		return nil, errors.New(errors.InvalidInput, "assembler requires a file store, an allocator and a matcher", nil)
	}
	def := DefaultConfig()
	if cfg.SemanticDeadline <= 0 {
		cfg.SemanticDeadline = def.SemanticDeadline
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = def.MaxFiles
	}
	if cfg.MessageLimit < 0 {
		cfg.MessageLimit = 0
	}
	resolver := d.Resolver
	if resolver == nil {
		resolver = deps.New(deps.Options{}, d.Logger)
	}
	sink := d.Sink
	if sink == nil {
		sink = progress.Discard
	}
	return &Engine{
		files:         d.Files,
		conversations: d.Conversations,
		embedder:      d.Embedder,
		index:         d.Index,
		resolver:      resolver,
		extractor:     d.Extractor,
		allocator:     d.Allocator,
		matcher:       d.Matcher,
		sink:          sink,
		logger:        slogutil.OrDiscard(d.Logger),
		cfg:           cfg,
	}, nil
}

// request carries the mutable state of one BuildContext call.
type request struct {
	id        string
	projectID string
	prompt    string
	opts      Options
	logger    *slog.Logger

	files map[string]string
	sizes map[string]int64
	paths []string

	// mentioned holds the paths the prompt names explicitly.
	mentioned map[string]bool

	stats model.Stats
	start time.Time
}

func (r *request) enter(s State) {
	r.stats.States = append(r.stats.States, string(s))
}

type semanticResult struct {
	candidates []model.Candidate
	err        error
}

// BuildContext assembles the context bundle for prompt. InvalidInput and
// file store failures are returned without a bundle. Provider and index
// failures degrade the request to lexical-only and are recorded in the
// bundle stats. If ctx ends after the fast path, the partial bundle is
// returned together with the context error.
func (e *Engine) BuildContext(ctx context.Context, projectID, prompt string, opts Options) (*model.Bundle, error) {
	if err := validate(projectID, prompt, opts); err != nil {
		return nil, err
	}
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = e.cfg.MaxFiles
	}
	if opts.MessageLimit <= 0 {
		opts.MessageLimit = e.cfg.MessageLimit
	}

	r := &request{
		id:        uuid.NewString(),
		projectID: projectID,
		prompt:    prompt,
		opts:      opts,
		start:     time.Now(),
	}
	r.logger = slogutil.ForRequest(e.logger, r.id, projectID)
	r.stats.RequestID = r.id
	r.stats.BudgetTokens = opts.BudgetTokens
	r.enter(StateIdle)

	ctx, span := telemetry.Start(ctx, "assembler.build_context",
		attribute.String("request.id", r.id),
		attribute.String("project.id", projectID),
		attribute.Int("budget.tokens", opts.BudgetTokens),
	)
	defer span.End()

	if err := e.loadFiles(ctx, r); err != nil {
		telemetry.RecordErrorAndStatus(span, err)
		return nil, err
	}

	// The semantic path starts before the fast path so the two overlap.
	semCtx, cancel := context.WithTimeout(ctx, e.cfg.SemanticDeadline)
	defer cancel()
	semCh := make(chan semanticResult, 1)
	semStart := time.Now()
	go func() {
		cands, err := e.semantic(semCtx, r)
		semCh <- semanticResult{candidates: cands, err: err}
	}()

	lexCands := e.fastPath(ctx, r)
	r.enter(StateFastPath)

	semCands := e.joinSemantic(ctx, semCtx, semCh, r)
	r.stats.SearchLatencyMs = time.Since(semStart).Milliseconds()
	r.enter(StateSemantic)

	relevant := e.merge(r, lexCands, semCands)
	dependencies := e.resolve(ctx, r, relevant)
	r.enter(StateResolved)

	bundle := e.allocate(ctx, r, relevant, dependencies)
	r.enter(StateAllocated)

	e.emitReading(bundle)
	e.emit(progress.ContextReady(
		len(bundle.RelevantFiles)+len(bundle.DependencyFiles)+len(bundle.ConfigFiles),
		bundle.Stats.TokensUsed,
	))

	var err error
	if ctxErr := ctx.Err(); ctxErr != nil {
		r.enter(StateError)
		err = fmt.Errorf("build context: %w", ctxErr)
		telemetry.RecordErrorAndStatus(span, err)
	} else {
		r.enter(StateDone)
	}
	r.stats.TotalLatencyMs = time.Since(r.start).Milliseconds()
	bundle.Stats = r.stats

	span.SetAttributes(
		attribute.Int("relevant.count", r.stats.RelevantCount),
		attribute.Int("tokens.used", r.stats.TokensUsed),
		attribute.Bool("degraded", r.stats.Degraded()),
	)
	r.logger.Debug("Context assembled",
		"relevant", r.stats.RelevantCount,
		"dependencies", r.stats.DependencyCount,
		"config", r.stats.ConfigCount,
		"tokens", r.stats.TokensUsed,
		"degraded", r.stats.Degraded(),
		"durationMs", r.stats.TotalLatencyMs,
	)
	return bundle, err
}

func validate(projectID, prompt string, opts Options) error {
	switch {
	case strings.TrimSpace(projectID) == "":
		return errors.New(errors.InvalidInput, "project id is required", nil)
	case strings.TrimSpace(prompt) == "":
		return errors.New(errors.InvalidInput, "prompt is empty", nil)
	case opts.BudgetTokens <= 0:
		return errors.New(errors.InvalidInput, fmt.Sprintf("budget must be positive, got %d", opts.BudgetTokens), nil).
			WithDetail("budgetTokens", opts.BudgetTokens)
	case opts.MaxFiles < 0 || opts.MessageLimit < 0:
		return errors.New(errors.InvalidInput, "limits must not be negative", nil)
	}
	return nil
}

func (e *Engine) loadFiles(ctx context.Context, r *request) error {
	files, err := e.files.GetFiles(ctx, r.projectID, r.opts.VersionID)
	if err != nil {
		return fmt.Errorf("load files: %w", err)
	}
	r.files = files
	if sized, ok := e.files.(filestore.SizedStore); ok {
		sizes, err := sized.Sizes(ctx, r.projectID, r.opts.VersionID)
		if err != nil {
			r.logger.Warn("Could not read file sizes", "error", err)
		}
		r.sizes = sizes
	}
	r.paths = sortedKeys(files)
	r.stats.TotalFiles = len(files)
	return nil
}

func (e *Engine) fastPath(ctx context.Context, r *request) []model.Candidate {
	_, span := telemetry.Start(ctx, "assembler.lexical")
	defer span.End()

	cands := e.matcher.Match(r.prompt, r.paths)
	r.stats.LexicalCandidates = len(cands)
	r.mentioned = make(map[string]bool)
	for _, c := range cands {
		if c.Mentioned {
			r.mentioned[c.Path] = true
		}
		e.emit(progress.Analyzing(c.Path))
	}
	for _, c := range cands {
		if _, ok := e.admit(r, c.Path); ok {
			e.emit(progress.Selected(c.Path, c.Similarity))
		}
	}
	r.stats.FastPathLatencyMs = time.Since(r.start).Milliseconds()
	span.SetAttributes(attribute.Int("candidates", len(cands)))
	return cands
}

func (e *Engine) semantic(ctx context.Context, r *request) ([]model.Candidate, error) {
	ctx, span := telemetry.Start(ctx, "assembler.semantic")
	defer span.End()

	if e.embedder == nil || e.index == nil {
		err := errors.New(errors.IndexUnavailable, "semantic search is not configured", nil)
		telemetry.RecordErrorAndStatus(span, err)
		return nil, err
	}
	vec, err := e.embedder.EmbedQuery(ctx, r.prompt)
	if telemetry.RecordErrorAndStatus(span, err) {
		return nil, fmt.Errorf("embed prompt: %w", err)
	}
	cands, err := e.index.Search(ctx, vectorindex.Query{
		Vector:    vec,
		ProjectID: r.projectID,
		VersionID: r.opts.VersionID,
		Threshold: e.cfg.Threshold,
		Limit:     e.cfg.SearchLimit,
	})
	if telemetry.RecordErrorAndStatus(span, err) {
		return nil, fmt.Errorf("search index: %w", err)
	}
	span.SetAttributes(attribute.Int("candidates", len(cands)))
	return cands, nil
}

// joinSemantic waits for the semantic goroutine, the deadline or the caller,
// whichever comes first. A result already delivered when the deadline fires
// is still used.
func (e *Engine) joinSemantic(ctx, semCtx context.Context, semCh <-chan semanticResult, r *request) []model.Candidate {
	select {
	case res := <-semCh:
		return e.semanticOutcome(ctx, semCtx, res, r)
	case <-semCtx.Done():
		select {
		case res := <-semCh:
			return e.semanticOutcome(ctx, semCtx, res, r)
		default:
		}
		if err := ctx.Err(); err != nil {
			r.stats.SemanticSearchFailed = true
			r.stats.SemanticError = err.Error()
			return nil
		}
		e.semanticTimedOut(r)
		return nil
	}
}

func (e *Engine) semanticOutcome(ctx, semCtx context.Context, res semanticResult, r *request) []model.Candidate {
	if res.err == nil {
		r.stats.SemanticCandidates = len(res.candidates)
		return res.candidates
	}
	if semCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		e.semanticTimedOut(r)
		return nil
	}
	r.stats.SemanticSearchFailed = true
	r.stats.SemanticError = res.err.Error()
	r.logger.Warn("Semantic search failed, continuing with lexical matches",
		"error", res.err,
		"code", errors.CodeOf(res.err),
	)
	return nil
}

func (e *Engine) semanticTimedOut(r *request) {
	r.stats.SemanticTimedOut = true
	r.stats.SemanticError = context.DeadlineExceeded.Error()
	r.logger.Warn("Semantic search did not finish in time, continuing with lexical matches",
		"deadline", e.cfg.SemanticDeadline,
	)
}

// admit classifies a candidate path and reports whether it may enter the
// relevant set.
func (e *Engine) admit(r *request, p string) (classify.Result, bool) {
	content, ok := r.files[p]
	if !ok {
		return classify.Result{}, false
	}
	size, ok := r.sizes[p]
	if !ok {
		size = int64(len(content))
	}
	cls := classify.Classify(p, size)
	switch {
	case cls.IsBinary:
		return cls, false
	case cls.Category == model.CategoryConfig:
		return cls, false
	case cls.Category == model.CategoryTest && !r.opts.IncludeTests:
		return cls, false
	}
	return cls, true
}

// merge deduplicates lexical and semantic candidates, drops files that
// belong elsewhere and caps the result to MaxFiles.
func (e *Engine) merge(r *request, lexCands, semCands []model.Candidate) []model.Candidate {
	merged := model.MergeCandidates(lexCands, semCands)
	r.stats.MergedCandidates = len(merged)

	out := make([]model.Candidate, 0, len(merged))
	for _, c := range merged {
		fromLexical := c.HasSource(model.SourceLexical)
		if !fromLexical {
			e.emit(progress.Analyzing(c.Path))
		}
		cls, ok := e.admit(r, c.Path)
		if !ok {
			continue
		}
		if c.Category == "" {
			c.Category = cls.Category
		}
		if !fromLexical {
			e.emit(progress.Selected(c.Path, c.Similarity))
		}
		out = append(out, c)
		if len(out) == r.opts.MaxFiles {
			break
		}
	}
	return out
}

func (e *Engine) resolve(ctx context.Context, r *request, relevant []model.Candidate) map[string]string {
	ctx, span := telemetry.Start(ctx, "assembler.resolve")
	defer span.End()

	selected := make([]string, len(relevant))
	for i, c := range relevant {
		selected[i] = c.Path
	}

	var records map[string]*model.FileRecord
	if e.index != nil && len(selected) > 0 {
		recs, err := e.index.Lookup(ctx, r.projectID, r.opts.VersionID, selected)
		if err != nil {
			r.logger.Debug("Index lookup failed, extracting imports from content", "error", err)
		} else {
			records = recs
		}
	}

	graph := deps.NewSnapshot(r.files, records, e.extractor)
	resolved := e.resolver.Resolve(selected, graph)
	for p := range resolved {
		if classify.Classify(p, int64(len(resolved[p]))).Category == model.CategoryConfig {
			delete(resolved, p)
		}
	}
	span.SetAttributes(attribute.Int("dependencies", len(resolved)))
	return resolved
}

func (e *Engine) collectConfig(r *request) map[string]string {
	out := make(map[string]string)
	for _, p := range r.paths {
		size, ok := r.sizes[p]
		if !ok {
			size = int64(len(r.files[p]))
		}
		cls := classify.Classify(p, size)
		if !cls.IsBinary && cls.Category == model.CategoryConfig {
			out[p] = r.files[p]
		}
	}
	return out
}

func (e *Engine) loadHistory(ctx context.Context, r *request) []model.Message {
	if e.conversations == nil || r.opts.MessageLimit == 0 {
		return nil
	}
	msgs, err := e.conversations.GetRecentMessages(ctx, r.projectID, r.opts.MessageLimit)
	if err != nil {
		r.stats.HistoryUnavailable = true
		r.logger.Warn("Conversation history unavailable", "error", err)
		return nil
	}
	return msgs
}

func (e *Engine) allocate(ctx context.Context, r *request, relevant []model.Candidate, dependencies map[string]string) *model.Bundle {
	ctx, span := telemetry.Start(ctx, "assembler.allocate")
	defer span.End()

	cands := make([]budget.Candidate, len(relevant))
	for i, c := range relevant {
		cands[i] = budget.Candidate{
			Path:       c.Path,
			Content:    r.files[c.Path],
			Similarity: c.Similarity,
			Category:   c.Category,
			Sources:    c.Sources,
			Mentioned:  c.Mentioned,
		}
	}

	res := e.allocator.Allocate(budget.Input{
		Budget:       r.opts.BudgetTokens,
		History:      e.loadHistory(ctx, r),
		Config:       e.collectConfig(r),
		Relevant:     cands,
		Dependencies: dependencies,
		Mentioned:    r.mentioned,
	})

	r.stats.RelevantCount = len(res.Relevant)
	r.stats.DependencyCount = len(res.Dependencies)
	r.stats.ConfigCount = len(res.Config)
	r.stats.HistoryCount = len(res.History)
	r.stats.TokensUsed = res.TokensUsed
	r.stats.TokensByCategory = res.TokensByCategory
	r.stats.TruncatedFiles = res.Truncated
	r.stats.BudgetExhausted = res.Exhausted
	if res.Exhausted {
		r.logger.Debug("Budget exhausted", "code", errors.BudgetExhausted, "truncated", len(res.Truncated))
	}
	span.SetAttributes(attribute.Int("tokens.used", res.TokensUsed))

	history := res.History
	if history == nil {
		history = []model.Message{}
	}
	return &model.Bundle{
		ConversationHistory: history,
		RelevantFiles:       res.Relevant,
		DependencyFiles:     res.Dependencies,
		ConfigFiles:         res.Config,
		Stats:               r.stats,
	}
}

func (e *Engine) emitReading(b *model.Bundle) {
	for _, section := range []map[string]string{b.ConfigFiles, b.DependencyFiles} {
		for _, p := range sortedKeys(section) {
			e.emit(progress.Reading(p))
		}
	}
	for _, p := range sortedKeys(b.RelevantFiles) {
		e.emit(progress.Reading(p))
	}
}

// emit delivers an event without letting a failing sink affect the request.
func (e *Engine) emit(ev progress.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Warn("Progress sink panicked", "event", ev.Type, "panic", rec)
		}
	}()
	e.sink.Emit(ev)
}
