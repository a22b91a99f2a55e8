package retrieval

import (
	"fmt"
	"sort"

	"github.com/a-marczewski/deepmemo/internal/memory"
)

// fallbackTopic is used for entries with no tags and no type.
const fallbackTopic = "other"

const summaryMaxRunes = 50

// TopicCluster is an ad-hoc, per-call grouping of result entries that
// share a topic key. Clusters are never persisted.
type TopicCluster struct {
	ID       string               `json:"id"`
	Topic    string               `json:"topic"`
	Entries  []memory.ScoredEntry `json:"entries"`
	Summary  string               `json:"summary"`
	TimeSpan *memory.TimeRange    `json:"time_span,omitempty"`
}

// ClusterByTopic partitions entries by a single topic key (first tag,
// else type, else "other"), keeps the k largest groups, and sorts each
// group's entries by score descending. Every input entry lands in at
// most one cluster.
func ClusterByTopic(entries []memory.ScoredEntry, k int) []TopicCluster {
	if len(entries) == 0 || k < 1 {
		return nil
	}

	groups := make(map[string][]memory.ScoredEntry)
	for _, entry := range entries {
		groups[topicKey(&entry.Entry)] = append(groups[topicKey(&entry.Entry)], entry)
	}

	topics := make([]string, 0, len(groups))
	for topic := range groups {
		topics = append(topics, topic)
	}
	sort.Slice(topics, func(i, j int) bool {
		if len(groups[topics[i]]) == len(groups[topics[j]]) {
			return topics[i] < topics[j]
		}
		return len(groups[topics[i]]) > len(groups[topics[j]])
	})
	if len(topics) > k {
		topics = topics[:k]
	}

	clusters := make([]TopicCluster, 0, len(topics))
	for i, topic := range topics {
		members := groups[topic]
		sortByScore(members)
		clusters = append(clusters, TopicCluster{
			ID:       fmt.Sprintf("cluster-%d", i),
			Topic:    topic,
			Entries:  members,
			Summary:  clusterSummary(members),
			TimeSpan: clusterSpan(members),
		})
	}
	return clusters
}

func topicKey(e *memory.Entry) string {
	if len(e.Metadata.Tags) > 0 {
		return e.Metadata.Tags[0]
	}
	if e.Type != "" {
		return string(e.Type)
	}
	return fallbackTopic
}

// clusterSummary joins the truncated content of the top two entries.
func clusterSummary(entries []memory.ScoredEntry) string {
	n := len(entries)
	if n > 2 {
		n = 2
	}
	summary := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			summary += " | "
		}
		summary += truncateRunes(entries[i].Content, summaryMaxRunes)
	}
	return summary
}

func clusterSpan(entries []memory.ScoredEntry) *memory.TimeRange {
	if len(entries) == 0 {
		return nil
	}
	span := &memory.TimeRange{Start: entries[0].CreatedAt, End: entries[0].CreatedAt}
	for _, entry := range entries[1:] {
		if entry.CreatedAt.Before(span.Start) {
			span.Start = entry.CreatedAt
		}
		if entry.CreatedAt.After(span.End) {
			span.End = entry.CreatedAt
		}
	}
	return span
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
