package semgroup

import (
	"testing"

	"github.com/a-marczewski/deepmemo/internal/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifyGroupsBirthday(t *testing.T) {
	r := NewRegistry()

	results := r.IdentifyGroups("my birthday is in June")

	require.NotEmpty(t, results)
	assert.Equal(t, "personal", results[0].GroupID)
	assert.Contains(t, results[0].MatchedKeywords, "birthday")

	for i, match := range results {
		assert.Greater(t, match.Confidence, identifyMinConfidence)
		assert.LessOrEqual(t, match.Confidence, 1.0)
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].Confidence, match.Confidence)
		}
	}
}

func TestIdentifyGroupsKeywordAsSubstring(t *testing.T) {
	r := NewRegistry()

	// "workout" contains the keyword "work"; substring matching is intended.
	results := r.IdentifyGroups("great workout today")

	ids := make(map[string][]string)
	for _, match := range results {
		ids[match.GroupID] = match.MatchedKeywords
	}
	assert.Contains(t, ids["projects"], "work")
	assert.Contains(t, ids["health"], "workout")
}

func TestIdentifyGroupsConfidenceCapped(t *testing.T) {
	r := NewRegistry(Definition{
		ID:       "everything",
		Name:     "Everything",
		Keywords: []string{"the"},
		Priority: 10,
	})

	results := r.IdentifyGroups("the answer")

	for _, match := range results {
		if match.GroupID == "everything" {
			assert.InDelta(t, 1.0, match.Confidence, 1e-9)
			return
		}
	}
	t.Fatal("expected the everything group to match")
}

func TestClassifyEntry(t *testing.T) {
	r := NewRegistry()
	entry := &memory.Entry{
		Content: "I love listening to jazz",
		Type:    memory.Preference,
		Metadata: memory.Metadata{
			Tags: []string{"favorite"},
		},
	}

	results := r.ClassifyEntry(entry)

	require.NotEmpty(t, results)
	assert.Equal(t, "preferences", results[0].GroupID)
	// type 0.3 + two keywords 0.2 + one exact tag 0.15
	assert.InDelta(t, 0.65, results[0].Confidence, 1e-9)
	assert.ElementsMatch(t, []string{"love", "favorite"}, results[0].MatchedKeywords)
}

func TestClassifyEntryBelowFloorDropped(t *testing.T) {
	r := NewRegistry()
	entry := &memory.Entry{
		Content: "xylophone maintenance schedule",
		Type:    memory.Conversation,
	}

	// Conversation only carries type affinity with social (0.3); every
	// other group stays at zero and is dropped.
	results := r.ClassifyEntry(entry)

	require.Len(t, results, 1)
	assert.Equal(t, "social", results[0].GroupID)
}

func TestClassifyEntriesBuckets(t *testing.T) {
	r := NewRegistry()
	pref := &memory.Entry{ID: "p", Content: "my favorite tea", Type: memory.Preference}
	blank := &memory.Entry{ID: "u", Content: "zzz", Type: memory.Type("")}

	buckets := r.ClassifyEntries([]*memory.Entry{pref, blank})

	require.Len(t, buckets["preferences"], 1)
	assert.Equal(t, "p", buckets["preferences"][0].ID)
	require.Len(t, buckets[UncategorizedGroup], 1)
	assert.Equal(t, "u", buckets[UncategorizedGroup][0].ID)
}
