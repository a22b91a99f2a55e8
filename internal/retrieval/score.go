package retrieval

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/a-marczewski/deepmemo/internal/memory"
)

// Weights holds the tunable constants of the focus and rerank phases.
// The defaults reproduce the stock pipeline behavior; callers may load
// alternatives from configuration.
type Weights struct {
	// Focus phase blend between the backend score and lexical overlap.
	FocusOriginal float64
	FocusLexical  float64
	// Recency factor: exp(-ageDays/RecencyDecayDays) scaled into
	// [RecencyFloor, RecencyFloor+RecencySpan].
	RecencyDecayDays float64
	RecencyFloor     float64
	RecencySpan      float64
	// Importance factor: floor + (importance/10)*span.
	ImportanceFloor float64
	ImportanceSpan  float64
	// Access-frequency factor: 1 + ln(max(count,1)+1)/FrequencyDamping.
	FrequencyDamping float64
	// Confidence factor: floor + confidence*span.
	ConfidenceFloor float64
	ConfidenceSpan  float64
}

// DefaultWeights returns the stock scoring constants.
func DefaultWeights() Weights {
	return Weights{
		FocusOriginal:    0.6,
		FocusLexical:     0.4,
		RecencyDecayDays: 90,
		RecencyFloor:     0.7,
		RecencySpan:      0.3,
		ImportanceFloor:  0.8,
		ImportanceSpan:   0.4,
		FrequencyDamping: 10,
		ConfidenceFloor:  0.7,
		ConfidenceSpan:   0.3,
	}
}

var nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// Tokenize splits text into a deduplicated, lowercased term list.
// Tokens are whitespace-separated, stripped of anything that is not a
// letter, digit, or underscore (CJK counts as letters), and single-rune
// tokens are dropped.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	seen := make(map[string]bool, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		term := nonWordRe.ReplaceAllString(f, "")
		if len([]rune(term)) <= 1 {
			continue
		}
		if !seen[term] {
			seen[term] = true
			terms = append(terms, term)
		}
	}
	return terms
}

// LexicalOverlap scores how much of the query's term set appears in the
// content. The result is the number of distinct content terms found in
// the query set divided by the query set size.
func LexicalOverlap(content string, queryTerms []string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	querySet := make(map[string]bool, len(queryTerms))
	for _, t := range queryTerms {
		querySet[t] = true
	}
	matched := 0
	for _, t := range Tokenize(content) {
		if querySet[t] {
			matched++
		}
	}
	denom := len(queryTerms)
	if denom < 1 {
		denom = 1
	}
	return float64(matched) / float64(denom)
}

// RerankScore applies the four multiplicative rerank factors to a
// focus-phase score: recency decay, importance, access frequency, and
// confidence, in that order.
func RerankScore(score float64, e *memory.Entry, now time.Time, w Weights) float64 {
	ageDays := now.Sub(e.CreatedAt).Hours() / 24
	decay := math.Exp(-ageDays / w.RecencyDecayDays)
	score *= w.RecencyFloor + w.RecencySpan*decay

	score *= w.ImportanceFloor + float64(e.Metadata.Importance)/10*w.ImportanceSpan

	count := e.AccessCount
	if count < 1 {
		count = 1
	}
	score *= 1 + math.Log(float64(count)+1)/w.FrequencyDamping

	score *= w.ConfidenceFloor + e.Metadata.Confidence*w.ConfidenceSpan

	return score
}

// MatchReason builds a short human-readable explanation for why an
// entry surfaced: the query terms it matched, failing that its top
// tags, failing that a generic semantic-similarity note.
func MatchReason(e *memory.Entry, queryTerms []string) string {
	contentLower := strings.ToLower(e.Content)
	var matched []string
	for _, t := range queryTerms {
		if strings.Contains(contentLower, t) {
			matched = append(matched, t)
		}
	}
	if len(matched) > 0 {
		return fmt.Sprintf("matched terms: %s", strings.Join(matched, ", "))
	}
	if tags := e.Metadata.Tags; len(tags) > 0 {
		if len(tags) > 3 {
			tags = tags[:3]
		}
		return fmt.Sprintf("tagged: %s", strings.Join(tags, ", "))
	}
	return "semantic similarity"
}
