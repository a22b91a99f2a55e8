package semgroup

import (
	"sort"
	"strings"

	"github.com/a-marczewski/deepmemo/internal/memory"
)

// UncategorizedGroup is the synthetic bucket for entries no group
// claims.
const UncategorizedGroup = "uncategorized"

const (
	identifyKeywordWeight  = 0.7
	identifyPriorityWeight = 0.3
	identifyMinConfidence  = 0.1

	classifyTypeScore     = 0.3
	classifyKeywordScore  = 0.1
	classifyExactTagScore = 0.15
	classifyMinConfidence = 0.2
)

// MatchResult is one group's confidence-scored match against a query or
// entry. Confidence is always within [0,1].
type MatchResult struct {
	GroupID         string   `json:"group_id"`
	Name            string   `json:"name"`
	Confidence      float64  `json:"confidence"`
	MatchedKeywords []string `json:"matched_keywords,omitempty"`
}

// IdentifyGroups scores free text against every registered group. A
// keyword matches when it appears as a substring of the lowercased query
// or as an exact token. Groups scoring at or below the identification
// floor are dropped; results sort by confidence descending.
func (r *Registry) IdentifyGroups(query string) []MatchResult {
	queryLower := strings.ToLower(query)
	tokens := tokenSet(queryLower)

	var results []MatchResult
	for _, id := range r.order {
		group := r.groups[id]
		if len(group.Keywords) == 0 {
			continue
		}
		var matched []string
		for _, kw := range group.Keywords {
			kwLower := strings.ToLower(kw)
			if strings.Contains(queryLower, kwLower) || tokens[kwLower] {
				matched = append(matched, kw)
			}
		}
		confidence := float64(len(matched))/float64(len(group.Keywords))*identifyKeywordWeight +
			float64(group.Priority)/10*identifyPriorityWeight
		if confidence > 1 {
			confidence = 1
		}
		if confidence <= identifyMinConfidence {
			continue
		}
		results = append(results, MatchResult{
			GroupID:         group.ID,
			Name:            group.Name,
			Confidence:      confidence,
			MatchedKeywords: matched,
		})
	}
	sortByConfidence(results)
	return results
}

// ClassifyEntry scores a stored entry against every group using type
// affinity, keyword presence in content or tags, and exact tag hits.
func (r *Registry) ClassifyEntry(e *memory.Entry) []MatchResult {
	contentLower := strings.ToLower(e.Content)
	tagsLower := make([]string, len(e.Metadata.Tags))
	for i, tag := range e.Metadata.Tags {
		tagsLower[i] = strings.ToLower(tag)
	}

	var results []MatchResult
	for _, id := range r.order {
		group := r.groups[id]
		score := 0.0
		if group.HasType(e.Type) {
			score += classifyTypeScore
		}

		var matched []string
		for _, kw := range group.Keywords {
			kwLower := strings.ToLower(kw)
			found := strings.Contains(contentLower, kwLower)
			if !found {
				for _, tag := range tagsLower {
					if strings.Contains(tag, kwLower) {
						found = true
						break
					}
				}
			}
			if found {
				score += classifyKeywordScore
				matched = append(matched, kw)
			}
		}

		for _, tag := range tagsLower {
			for _, kw := range group.Keywords {
				if tag == strings.ToLower(kw) {
					score += classifyExactTagScore
					break
				}
			}
		}

		if score > 1 {
			score = 1
		}
		if score <= classifyMinConfidence {
			continue
		}
		results = append(results, MatchResult{
			GroupID:         group.ID,
			Name:            group.Name,
			Confidence:      score,
			MatchedKeywords: matched,
		})
	}
	sortByConfidence(results)
	return results
}

// ClassifyEntries assigns each entry to its single highest-confidence
// group, or to the "uncategorized" bucket when no group clears the
// classification floor.
func (r *Registry) ClassifyEntries(entries []*memory.Entry) map[string][]*memory.Entry {
	buckets := make(map[string][]*memory.Entry)
	for _, entry := range entries {
		matches := r.ClassifyEntry(entry)
		group := UncategorizedGroup
		if len(matches) > 0 {
			group = matches[0].GroupID
		}
		buckets[group] = append(buckets[group], entry)
	}
	return buckets
}

// tokenSet splits lowered text on whitespace and strips surrounding
// punctuation, producing a membership set for exact-token keyword
// matching.
func tokenSet(textLower string) map[string]bool {
	tokens := make(map[string]bool)
	for _, f := range strings.Fields(textLower) {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r > 127)
		})
		if f != "" {
			tokens[f] = true
		}
	}
	return tokens
}

// sortByConfidence orders results non-increasing by confidence with a
// stable group-id tiebreaker.
func sortByConfidence(results []MatchResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Confidence == results[j].Confidence {
			return results[i].GroupID < results[j].GroupID
		}
		return results[i].Confidence > results[j].Confidence
	})
}
