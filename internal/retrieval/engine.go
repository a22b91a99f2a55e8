package retrieval

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/a-marczewski/deepmemo/internal/memory"
	"go.uber.org/zap"
)

// Strategy is the name reported in result metadata for the multi-phase
// pipeline.
const Strategy = "deepmemo"

const (
	DefaultTopK         = 10
	DefaultFirstStageK  = 50
	DefaultThreshold    = 0.3
	DefaultClusterCount = 5

	maxExpansionTags = 10
)

// Phase names, in execution order.
const (
	PhaseLens      = "lens"
	PhaseExpansion = "expansion"
	PhaseFocus     = "focus"
	PhaseRerank    = "rerank"
)

// Options controls one deep search call. Zero values fall back to the
// package defaults; out-of-range values are passed through untouched.
type Options struct {
	TopK             int
	FirstStageK      int
	Threshold        float64
	EnableClustering bool
	ClusterCount     int
}

func (o Options) withDefaults() Options {
	if o.TopK == 0 {
		o.TopK = DefaultTopK
	}
	if o.FirstStageK == 0 {
		o.FirstStageK = DefaultFirstStageK
	}
	if o.Threshold == 0 {
		o.Threshold = DefaultThreshold
	}
	if o.ClusterCount == 0 {
		o.ClusterCount = DefaultClusterCount
	}
	return o
}

// PhaseResult captures one phase's output for diagnostics. It lives only
// for the duration of a single retrieval call.
type PhaseResult struct {
	Phase    string
	Entries  []memory.ScoredEntry
	Metadata map[string]any
	Elapsed  time.Duration
}

// ResultMetadata describes how a result set was produced.
type ResultMetadata struct {
	TotalFound    int            `json:"total_found"`
	TimeElapsedMs int64          `json:"time_elapsed_ms"`
	Strategy      string         `json:"strategy"`
	Expansions    []string       `json:"expansions,omitempty"`
	Phases        []string       `json:"phases,omitempty"`
	Error         string         `json:"error,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// Result is the outcome of one retrieval call. It is always structurally
// valid: absence of data shows up as empty collections, never as an
// error crossing the public boundary.
type Result struct {
	Entries  []memory.ScoredEntry `json:"entries"`
	Clusters []TopicCluster       `json:"clusters,omitempty"`
	Metadata ResultMetadata       `json:"metadata"`
}

// Engine runs the multi-phase deep search pipeline: lens (broad recall),
// expansion (tag-driven query broadening), focus (lexical rescoring),
// and rerank (multi-factor reweighting). Engines are stateless beyond
// the injected store and safe for concurrent use.
type Engine struct {
	store   memory.Store
	logger  *zap.Logger
	weights Weights
	now     func() time.Time
}

// NewEngine creates a deep search engine over the given store.
func NewEngine(store memory.Store, logger *zap.Logger, weights Weights) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:   store,
		logger:  logger,
		weights: weights,
		now:     time.Now,
	}
}

// Search executes the full pipeline for query. Backend failures are
// caught here and converted into an empty result carrying the error in
// its metadata; Search never panics or returns an error to the caller.
func (e *Engine) Search(ctx context.Context, query string, opts Options) Result {
	start := time.Now()
	opts = opts.withDefaults()

	result, err := e.run(ctx, query, opts)
	if err != nil {
		e.logger.Warn("deep search failed, returning empty result",
			zap.String("query", query),
			zap.Error(err),
		)
		return Result{
			Entries: []memory.ScoredEntry{},
			Metadata: ResultMetadata{
				Strategy:      Strategy,
				TimeElapsedMs: time.Since(start).Milliseconds(),
				Error:         err.Error(),
			},
		}
	}

	result.Metadata.TimeElapsedMs = time.Since(start).Milliseconds()
	e.logger.Debug("deep search completed",
		zap.String("query", query),
		zap.Int("total_found", result.Metadata.TotalFound),
		zap.Int("returned", len(result.Entries)),
		zap.Int64("elapsed_ms", result.Metadata.TimeElapsedMs),
	)
	return result
}

func (e *Engine) run(ctx context.Context, query string, opts Options) (Result, error) {
	queryTerms := Tokenize(query)
	var phases []PhaseResult

	// Lens phase: broad first-stage recall.
	lens, err := e.lensPhase(ctx, query, queryTerms, opts)
	if err != nil {
		return Result{}, err
	}
	phases = append(phases, lens)

	if len(lens.Entries) == 0 {
		// Nothing to refine; short-circuit the remaining phases.
		return Result{
			Entries: []memory.ScoredEntry{},
			Metadata: ResultMetadata{
				Strategy: Strategy,
				Phases:   phaseNames(phases),
			},
		}, nil
	}

	// Expansion phase: broaden the query with frequent candidate tags.
	expansion, err := e.expansionPhase(ctx, query, lens.Entries, opts)
	if err != nil {
		return Result{}, err
	}
	phases = append(phases, expansion)

	// Focus phase: blend backend scores with lexical overlap.
	focus := e.focusPhase(expansion.Entries, queryTerms)
	phases = append(phases, focus)

	// Rerank phase: recency, importance, frequency, confidence.
	rerank := e.rerankPhase(focus.Entries, queryTerms)
	phases = append(phases, rerank)

	reranked := rerank.Entries
	expansions, _ := expansion.Metadata["expansion_terms"].([]string)

	result := Result{
		Metadata: ResultMetadata{
			TotalFound: len(reranked),
			Strategy:   Strategy,
			Expansions: expansions,
			Phases:     phaseNames(phases),
		},
	}

	if opts.EnableClustering {
		clusters := ClusterByTopic(reranked, opts.ClusterCount)
		result.Clusters = clusters
		result.Entries = selectRepresentatives(clusters, opts.TopK, opts.ClusterCount)
	} else {
		if len(reranked) > opts.TopK {
			reranked = reranked[:opts.TopK]
		}
		result.Entries = reranked
	}
	return result, nil
}

func (e *Engine) lensPhase(ctx context.Context, query string, queryTerms []string, opts Options) (PhaseResult, error) {
	start := time.Now()
	entries, err := e.store.Search(ctx, query, memory.SearchOptions{
		TopK:      opts.FirstStageK,
		Threshold: opts.Threshold,
	})
	if err != nil {
		return PhaseResult{}, err
	}
	return PhaseResult{
		Phase:   PhaseLens,
		Entries: entries,
		Metadata: map[string]any{
			"keywords":   queryTerms,
			"candidates": len(entries),
		},
		Elapsed: time.Since(start),
	}, nil
}

func (e *Engine) expansionPhase(ctx context.Context, query string, candidates []memory.ScoredEntry, opts Options) (PhaseResult, error) {
	start := time.Now()
	terms := topTags(candidates, maxExpansionTags)
	if len(terms) == 0 {
		// No tags anywhere in the candidate set; pass through unchanged.
		return PhaseResult{
			Phase:    PhaseExpansion,
			Entries:  candidates,
			Metadata: map[string]any{"expansion_terms": []string(nil)},
			Elapsed:  time.Since(start),
		}, nil
	}

	expandedQuery := query + " " + strings.Join(terms, " ")
	more, err := e.store.Search(ctx, expandedQuery, memory.SearchOptions{
		TopK:      opts.FirstStageK,
		Threshold: opts.Threshold,
	})
	if err != nil {
		return PhaseResult{}, err
	}

	merged := mergeByID(candidates, more)
	return PhaseResult{
		Phase:   PhaseExpansion,
		Entries: merged,
		Metadata: map[string]any{
			"expansion_terms": terms,
			"expanded_query":  expandedQuery,
			"new_candidates":  len(merged) - len(candidates),
		},
		Elapsed: time.Since(start),
	}, nil
}

func (e *Engine) focusPhase(entries []memory.ScoredEntry, queryTerms []string) PhaseResult {
	start := time.Now()
	rescored := make([]memory.ScoredEntry, len(entries))
	for i, entry := range entries {
		overlap := LexicalOverlap(entry.Content, queryTerms)
		entry.Score = e.weights.FocusOriginal*entry.Score + e.weights.FocusLexical*overlap
		rescored[i] = entry
	}
	sortByScore(rescored)
	return PhaseResult{
		Phase:    PhaseFocus,
		Entries:  rescored,
		Metadata: map[string]any{"query_terms": len(queryTerms)},
		Elapsed:  time.Since(start),
	}
}

func (e *Engine) rerankPhase(entries []memory.ScoredEntry, queryTerms []string) PhaseResult {
	start := time.Now()
	now := e.now()
	reranked := make([]memory.ScoredEntry, len(entries))
	for i, entry := range entries {
		entry.Score = RerankScore(entry.Score, &entry.Entry, now, e.weights)
		entry.MatchReason = MatchReason(&entry.Entry, queryTerms)
		reranked[i] = entry
	}
	sortByScore(reranked)
	return PhaseResult{
		Phase:    PhaseRerank,
		Entries:  reranked,
		Metadata: map[string]any{},
		Elapsed:  time.Since(start),
	}
}

// selectRepresentatives diversifies the top-K selection by drawing the
// best-scored entries from each cluster in turn.
func selectRepresentatives(clusters []TopicCluster, topK, clusterCount int) []memory.ScoredEntry {
	if clusterCount < 1 {
		clusterCount = 1
	}
	perCluster := (topK + clusterCount - 1) / clusterCount
	selected := make([]memory.ScoredEntry, 0, topK)
	for _, cluster := range clusters {
		take := perCluster
		if take > len(cluster.Entries) {
			take = len(cluster.Entries)
		}
		selected = append(selected, cluster.Entries[:take]...)
	}
	if len(selected) > topK {
		selected = selected[:topK]
	}
	return selected
}

// topTags returns the most frequent tags across entries, ties broken
// alphabetically for deterministic output.
func topTags(entries []memory.ScoredEntry, limit int) []string {
	freq := make(map[string]int)
	for _, entry := range entries {
		for _, tag := range entry.Metadata.Tags {
			freq[tag]++
		}
	}
	if len(freq) == 0 {
		return nil
	}
	tags := make([]string, 0, len(freq))
	for tag := range freq {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		if freq[tags[i]] == freq[tags[j]] {
			return tags[i] < tags[j]
		}
		return freq[tags[i]] > freq[tags[j]]
	})
	if len(tags) > limit {
		tags = tags[:limit]
	}
	return tags
}

// mergeByID concatenates two result lists keeping the first occurrence
// of every id, first list first.
func mergeByID(first, second []memory.ScoredEntry) []memory.ScoredEntry {
	seen := make(map[string]bool, len(first)+len(second))
	merged := make([]memory.ScoredEntry, 0, len(first)+len(second))
	for _, entry := range first {
		if !seen[entry.ID] {
			seen[entry.ID] = true
			merged = append(merged, entry)
		}
	}
	for _, entry := range second {
		if !seen[entry.ID] {
			seen[entry.ID] = true
			merged = append(merged, entry)
		}
	}
	return merged
}

// sortByScore sorts descending by score with a stable ID tiebreaker.
func sortByScore(entries []memory.ScoredEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score == entries[j].Score {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].Score > entries[j].Score
	})
}

func phaseNames(phases []PhaseResult) []string {
	names := make([]string, len(phases))
	for i, p := range phases {
		names[i] = p.Phase
	}
	return names
}
