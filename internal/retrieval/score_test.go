package retrieval

import (
	"testing"
	"time"

	"github.com/a-marczewski/deepmemo/internal/memory"
	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"basic", "hello world", []string{"hello", "world"}},
		{"case and punctuation", "Hello, WORLD!", []string{"hello", "world"}},
		{"dedup preserves order", "go go gadget go", []string{"go", "gadget"}},
		{"single runes dropped", "a b cd", []string{"cd"}},
		{"empty", "", []string{}},
		{"unicode kept", "café 東京", []string{"café", "東京"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.input))
		})
	}
}

func TestLexicalOverlap(t *testing.T) {
	tests := []struct {
		name    string
		content string
		terms   []string
		want    float64
	}{
		{"no terms", "anything", nil, 0},
		{"full match", "coffee in the morning", []string{"coffee", "morning"}, 1},
		{"half match", "coffee only", []string{"coffee", "morning"}, 0.5},
		{"no match", "tea time", []string{"coffee", "morning"}, 0},
		{"repeated content terms count once", "coffee coffee coffee", []string{"coffee", "morning"}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, LexicalOverlap(tt.content, tt.terms), 1e-9)
		})
	}
}

func TestRerankScoreRecency(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	w := DefaultWeights()

	fresh := &memory.Entry{CreatedAt: now.Add(-24 * time.Hour), Metadata: memory.Metadata{Importance: 5, Confidence: 0.8}}
	stale := &memory.Entry{CreatedAt: now.Add(-365 * 24 * time.Hour), Metadata: memory.Metadata{Importance: 5, Confidence: 0.8}}

	assert.Greater(t, RerankScore(1.0, fresh, now, w), RerankScore(1.0, stale, now, w))
}

func TestRerankScoreImportance(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	created := now.Add(-48 * time.Hour)
	w := DefaultWeights()

	major := &memory.Entry{CreatedAt: created, Metadata: memory.Metadata{Importance: 10, Confidence: 0.8}}
	minor := &memory.Entry{CreatedAt: created, Metadata: memory.Metadata{Importance: 1, Confidence: 0.8}}

	assert.Greater(t, RerankScore(1.0, major, now, w), RerankScore(1.0, minor, now, w))
}

func TestRerankScoreFrequency(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	created := now.Add(-48 * time.Hour)
	w := DefaultWeights()

	hot := &memory.Entry{CreatedAt: created, AccessCount: 50, Metadata: memory.Metadata{Importance: 5, Confidence: 0.8}}
	cold := &memory.Entry{CreatedAt: created, AccessCount: 0, Metadata: memory.Metadata{Importance: 5, Confidence: 0.8}}

	assert.Greater(t, RerankScore(1.0, hot, now, w), RerankScore(1.0, cold, now, w))
}

func TestRerankScoreZeroAccessCountEqualsOne(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	created := now.Add(-48 * time.Hour)
	w := DefaultWeights()

	zero := &memory.Entry{CreatedAt: created, AccessCount: 0, Metadata: memory.Metadata{Importance: 5, Confidence: 0.8}}
	one := &memory.Entry{CreatedAt: created, AccessCount: 1, Metadata: memory.Metadata{Importance: 5, Confidence: 0.8}}

	assert.InDelta(t, RerankScore(1.0, one, now, w), RerankScore(1.0, zero, now, w), 1e-9)
}

func TestMatchReason(t *testing.T) {
	tests := []struct {
		name  string
		entry memory.Entry
		terms []string
		want  string
	}{
		{
			name:  "matched terms",
			entry: memory.Entry{Content: "I drink coffee every morning"},
			terms: []string{"coffee", "evening"},
			want:  "matched terms: coffee",
		},
		{
			name:  "tag fallback keeps top three",
			entry: memory.Entry{Content: "unrelated", Metadata: memory.Metadata{Tags: []string{"a", "b", "c", "d"}}},
			terms: []string{"coffee"},
			want:  "tagged: a, b, c",
		},
		{
			name:  "generic fallback",
			entry: memory.Entry{Content: "unrelated"},
			terms: []string{"coffee"},
			want:  "semantic similarity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchReason(&tt.entry, tt.terms))
		})
	}
}
