package retrieval

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/a-marczewski/deepmemo/internal/memory"
	"go.uber.org/zap"
)

const dayFormat = "2006-01-02"

// TimelineDay groups the entries created on one calendar day.
type TimelineDay struct {
	Date    string          `json:"date"`
	Entries []*memory.Entry `json:"entries"`
}

// TimeSpan describes the period covered by a timeline.
type TimeSpan struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	DurationDays int       `json:"duration_days"`
}

// TimelineResult is the outcome of a timeline search: matching entries
// grouped by day, plus the span they cover.
type TimelineResult struct {
	Topic        string        `json:"topic"`
	Days         []TimelineDay `json:"days"`
	Span         TimeSpan      `json:"span"`
	TotalEntries int           `json:"total_entries"`
}

// SearchTimeline fetches all entries in the range and keeps those whose
// content or tags contain topic (case-insensitive substring). Surviving
// entries are grouped by the calendar day they were created on, in
// arrival order. An empty match set yields a zero-duration span anchored
// at the current time.
func (e *Engine) SearchTimeline(ctx context.Context, topic string, tr memory.TimeRange) (TimelineResult, error) {
	entries, err := e.store.SearchByTimeRange(ctx, tr)
	if err != nil {
		return TimelineResult{}, fmt.Errorf("timeline search failed: %w", err)
	}

	topicLower := strings.ToLower(topic)
	var matched []*memory.Entry
	for _, entry := range entries {
		if matchesTopic(entry, topicLower) {
			matched = append(matched, entry)
		}
	}

	result := TimelineResult{
		Topic:        topic,
		Days:         groupByDay(matched),
		Span:         computeSpan(matched, e.now()),
		TotalEntries: len(matched),
	}

	e.logger.Debug("timeline search completed",
		zap.String("topic", topic),
		zap.Int("in_range", len(entries)),
		zap.Int("matched", len(matched)),
		zap.Int("days", len(result.Days)),
	)
	return result, nil
}

func matchesTopic(e *memory.Entry, topicLower string) bool {
	if strings.Contains(strings.ToLower(e.Content), topicLower) {
		return true
	}
	for _, tag := range e.Metadata.Tags {
		if strings.Contains(strings.ToLower(tag), topicLower) {
			return true
		}
	}
	return false
}

// groupByDay buckets entries by creation day, days ordered by first
// appearance in the input.
func groupByDay(entries []*memory.Entry) []TimelineDay {
	index := make(map[string]int)
	var days []TimelineDay
	for _, entry := range entries {
		date := entry.CreatedAt.Format(dayFormat)
		i, ok := index[date]
		if !ok {
			i = len(days)
			index[date] = i
			days = append(days, TimelineDay{Date: date})
		}
		days[i].Entries = append(days[i].Entries, entry)
	}
	return days
}

// computeSpan finds the min/max creation times. The empty set is
// special-cased to a zero-duration span at now.
func computeSpan(entries []*memory.Entry, now time.Time) TimeSpan {
	if len(entries) == 0 {
		return TimeSpan{Start: now, End: now, DurationDays: 0}
	}
	span := TimeSpan{Start: entries[0].CreatedAt, End: entries[0].CreatedAt}
	for _, entry := range entries[1:] {
		if entry.CreatedAt.Before(span.Start) {
			span.Start = entry.CreatedAt
		}
		if entry.CreatedAt.After(span.End) {
			span.End = entry.CreatedAt
		}
	}
	span.DurationDays = int(math.Ceil(span.End.Sub(span.Start).Hours() / 24))
	return span
}
