package semgroup

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/a-marczewski/deepmemo/internal/memory"
	"github.com/a-marczewski/deepmemo/internal/retrieval"
	"go.uber.org/zap"
)

// Strategy is the name reported in result metadata for group-scoped
// searches.
const Strategy = "semantic_groups"

const (
	DefaultPerGroupLimit = 10
	DefaultTotalLimit    = 20
	DefaultMinConfidence = 0.3

	maxTagKeywords = 5

	typeMatchBase  = 0.8
	tagMatchBase   = 0.6
	overlapBoost   = 0.2
	priorityDiv    = 100.0
	maxMergedScore = 1.0
)

// SearchOptions controls a group-scoped search. Groups takes precedence
// over Query for target resolution; with neither set, every registered
// group is searched.
type SearchOptions struct {
	Groups               []string
	Query                string
	PerGroupLimit        int
	TotalLimit           int
	MinConfidence        float64
	IncludeRelatedGroups bool
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.PerGroupLimit == 0 {
		o.PerGroupLimit = DefaultPerGroupLimit
	}
	if o.TotalLimit == 0 {
		o.TotalLimit = DefaultTotalLimit
	}
	if o.MinConfidence == 0 {
		o.MinConfidence = DefaultMinConfidence
	}
	return o
}

// Searcher runs searches scoped to semantic groups: it resolves a query
// to target groups, searches each group independently, and merges the
// per-group results into one ranked list.
type Searcher struct {
	store    memory.Store
	registry *Registry
	logger   *zap.Logger
}

// NewSearcher creates a group search orchestrator over the given store
// and registry.
func NewSearcher(store memory.Store, registry *Registry, logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{store: store, registry: registry, logger: logger}
}

// Registry exposes the searcher's group taxonomy.
func (s *Searcher) Registry() *Registry {
	return s.registry
}

// Search resolves target groups (explicit, inferred from the query, or
// all), optionally pulls in related groups, searches each, and merges
// the results. Backend failures are caught here and surface as an empty
// result with the error recorded in metadata; Search never returns an
// error to its caller.
func (s *Searcher) Search(ctx context.Context, opts SearchOptions) retrieval.Result {
	start := time.Now()
	opts = opts.withDefaults()

	targets := s.resolveTargets(opts)
	if opts.IncludeRelatedGroups {
		targets = s.expandRelated(targets)
	}

	merged := make(map[string]memory.ScoredEntry)
	groupCounts := make(map[string]int, len(targets))
	primary := ""
	for _, group := range targets {
		entries, err := s.SearchByGroups(ctx, group, opts.Query, opts.PerGroupLimit)
		if err != nil {
			s.logger.Warn("group search failed, returning empty result",
				zap.String("group", group.ID),
				zap.Error(err),
			)
			return retrieval.Result{
				Entries: []memory.ScoredEntry{},
				Metadata: retrieval.ResultMetadata{
					Strategy:      Strategy,
					TimeElapsedMs: time.Since(start).Milliseconds(),
					Error:         fmt.Sprintf("group %s: %v", group.ID, err),
				},
			}
		}
		groupCounts[group.ID] = len(entries)
		if primary == "" || len(entries) > groupCounts[primary] {
			primary = group.ID
		}
		for _, entry := range entries {
			if existing, ok := merged[entry.ID]; !ok || entry.Score > existing.Score {
				merged[entry.ID] = entry
			}
		}
	}

	entries := make([]memory.ScoredEntry, 0, len(merged))
	for _, entry := range merged {
		entries = append(entries, entry)
	}
	sortScoredEntries(entries)
	if len(entries) > opts.TotalLimit {
		entries = entries[:opts.TotalLimit]
	}

	extra := map[string]any{
		"groups_searched": groupIDs(targets),
	}
	if primary != "" {
		extra["primary_group"] = primary
		extra["related_groups"] = groupIDs(s.registry.RelatedGroups(primary))
	}

	s.logger.Debug("group search completed",
		zap.Int("groups", len(targets)),
		zap.Int("returned", len(entries)),
		zap.String("primary_group", primary),
	)
	return retrieval.Result{
		Entries: entries,
		Metadata: retrieval.ResultMetadata{
			TotalFound:    len(merged),
			TimeElapsedMs: time.Since(start).Milliseconds(),
			Strategy:      Strategy,
			Extra:         extra,
		},
	}
}

// SearchByGroups searches one group: its associated types against the
// query, and its leading keywords as tags. Type matches score higher
// than tag matches; an entry hit by both gets a capped boost.
func (s *Searcher) SearchByGroups(ctx context.Context, group Definition, query string, limit int) ([]memory.ScoredEntry, error) {
	typeMatches, err := s.store.SearchByType(ctx, group.Types, query, limit)
	if err != nil {
		return nil, fmt.Errorf("type search: %w", err)
	}

	tagKeywords := group.Keywords
	if len(tagKeywords) > maxTagKeywords {
		tagKeywords = tagKeywords[:maxTagKeywords]
	}
	tagMatches, err := s.store.SearchByTags(ctx, tagKeywords, limit)
	if err != nil {
		return nil, fmt.Errorf("tag search: %w", err)
	}

	priorityBonus := float64(group.Priority) / priorityDiv
	merged := make(map[string]*memory.ScoredEntry, len(typeMatches)+len(tagMatches))
	order := make([]string, 0, len(typeMatches)+len(tagMatches))
	for _, entry := range typeMatches {
		merged[entry.ID] = &memory.ScoredEntry{
			Entry:       *entry,
			Score:       typeMatchBase + priorityBonus,
			MatchReason: fmt.Sprintf("type match in group %q", group.ID),
		}
		order = append(order, entry.ID)
	}
	for _, entry := range tagMatches {
		if existing, ok := merged[entry.ID]; ok {
			existing.Score += overlapBoost
			if existing.Score > maxMergedScore {
				existing.Score = maxMergedScore
			}
			continue
		}
		merged[entry.ID] = &memory.ScoredEntry{
			Entry:       *entry,
			Score:       tagMatchBase + priorityBonus,
			MatchReason: fmt.Sprintf("tag match in group %q", group.ID),
		}
		order = append(order, entry.ID)
	}

	entries := make([]memory.ScoredEntry, 0, len(order))
	for _, id := range order {
		entries = append(entries, *merged[id])
	}
	sortScoredEntries(entries)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// resolveTargets picks the groups to search: explicit ids first, then
// groups identified from the query above the confidence floor, then the
// whole registry.
func (s *Searcher) resolveTargets(opts SearchOptions) []Definition {
	if len(opts.Groups) > 0 {
		var targets []Definition
		for _, id := range opts.Groups {
			if def, ok := s.registry.Group(id); ok {
				targets = append(targets, def)
			}
		}
		return targets
	}
	if opts.Query != "" {
		var targets []Definition
		for _, match := range s.registry.IdentifyGroups(opts.Query) {
			if match.Confidence < opts.MinConfidence {
				continue
			}
			if def, ok := s.registry.Group(match.GroupID); ok {
				targets = append(targets, def)
			}
		}
		return targets
	}
	return s.registry.Groups()
}

// expandRelated unions in every group adjacent to an already-selected
// one, preserving selection order.
func (s *Searcher) expandRelated(targets []Definition) []Definition {
	seen := make(map[string]bool, len(targets))
	expanded := make([]Definition, 0, len(targets))
	for _, def := range targets {
		if !seen[def.ID] {
			seen[def.ID] = true
			expanded = append(expanded, def)
		}
	}
	for _, def := range targets {
		for _, related := range s.registry.RelatedGroups(def.ID) {
			if !seen[related.ID] {
				seen[related.ID] = true
				expanded = append(expanded, related)
			}
		}
	}
	return expanded
}

func groupIDs(defs []Definition) []string {
	ids := make([]string, len(defs))
	for i, def := range defs {
		ids[i] = def.ID
	}
	return ids
}

// sortScoredEntries sorts descending by score with a stable ID
// tiebreaker.
func sortScoredEntries(entries []memory.ScoredEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score == entries[j].Score {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].Score > entries[j].Score
	})
}
