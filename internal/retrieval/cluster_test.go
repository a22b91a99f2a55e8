package retrieval

import (
	"strings"
	"testing"
	"time"

	"github.com/a-marczewski/deepmemo/internal/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClusterByTopicKeepsLargestGroups(t *testing.T) {
	entries := []memory.ScoredEntry{
		scored("a1", "first work note", 0.5, "work"),
		scored("a2", "second work note", 0.9, "work"),
		scored("a3", "third work note", 0.7, "work"),
		scored("b1", "trip note", 0.8, "travel"),
		scored("b2", "another trip", 0.6, "travel"),
		scored("c1", "lone note", 0.4, "music"),
	}

	clusters := ClusterByTopic(entries, 2)

	require.Len(t, clusters, 2)
	assert.Equal(t, "work", clusters[0].Topic)
	assert.Equal(t, "travel", clusters[1].Topic)
	assert.Equal(t, "cluster-0", clusters[0].ID)
	assert.Equal(t, "cluster-1", clusters[1].ID)

	// Members sorted best-first within each cluster.
	require.Len(t, clusters[0].Entries, 3)
	assert.Equal(t, "a2", clusters[0].Entries[0].ID)
	assert.Equal(t, "a3", clusters[0].Entries[1].ID)
	assert.Equal(t, "a1", clusters[0].Entries[2].ID)

	seen := make(map[string]bool)
	for _, cluster := range clusters {
		for _, entry := range cluster.Entries {
			assert.False(t, seen[entry.ID])
			seen[entry.ID] = true
		}
	}
}

func TestClusterByTopicFallbacks(t *testing.T) {
	typed := memory.ScoredEntry{Entry: memory.Entry{ID: "t", Content: "typed", Type: memory.Insight}}
	blank := memory.ScoredEntry{Entry: memory.Entry{ID: "b", Content: "blank"}}

	clusters := ClusterByTopic([]memory.ScoredEntry{typed, blank}, 5)

	topics := make(map[string]bool)
	for _, cluster := range clusters {
		topics[cluster.Topic] = true
	}
	assert.True(t, topics["insight"], "untagged entries fall back to their type")
	assert.True(t, topics[fallbackTopic], "entries with no tags and no type land in %q", fallbackTopic)
}

func TestClusterByTopicEmptyInput(t *testing.T) {
	assert.Nil(t, ClusterByTopic(nil, 5))
	assert.Nil(t, ClusterByTopic([]memory.ScoredEntry{scored("a", "x", 1, "t")}, 0))
}

func TestClusterSummaryTruncates(t *testing.T) {
	long := strings.Repeat("x", 80)
	entries := []memory.ScoredEntry{
		scored("a", long, 0.9, "topic"),
		scored("b", "short", 0.8, "topic"),
		scored("c", "ignored by summary", 0.7, "topic"),
	}

	clusters := ClusterByTopic(entries, 1)

	require.Len(t, clusters, 1)
	assert.Equal(t, strings.Repeat("x", summaryMaxRunes)+" | short", clusters[0].Summary)
}

func TestClusterSpanCoversMembers(t *testing.T) {
	early := scored("a", "old", 0.9, "topic")
	early.CreatedAt = time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	late := scored("b", "new", 0.8, "topic")
	late.CreatedAt = time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

	clusters := ClusterByTopic([]memory.ScoredEntry{late, early}, 1)

	require.Len(t, clusters, 1)
	require.NotNil(t, clusters[0].TimeSpan)
	assert.Equal(t, early.CreatedAt, clusters[0].TimeSpan.Start)
	assert.Equal(t, late.CreatedAt, clusters[0].TimeSpan.End)
}
