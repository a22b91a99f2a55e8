package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/a-marczewski/deepmemo/internal/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timelineEntry(id, content string, created time.Time, tags ...string) *memory.Entry {
	return &memory.Entry{
		ID:        id,
		Content:   content,
		Type:      memory.Event,
		CreatedAt: created,
		Metadata:  memory.Metadata{Tags: tags},
	}
}

func TestSearchTimelineGroupsByDay(t *testing.T) {
	day1 := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 5, 12, 18, 30, 0, 0, time.UTC)
	store := &fakeStore{
		inRange: []*memory.Entry{
			timelineEntry("a", "started the garden project", day1),
			timelineEntry("b", "watered the garden", day2),
			timelineEntry("c", "unrelated meeting", day1),
			timelineEntry("d", "bought seeds", day1.Add(2*time.Hour), "garden"),
		},
	}
	e := newTestEngine(store)

	result, err := e.SearchTimeline(context.Background(), "Garden", memory.TimeRange{
		Start: day1.AddDate(0, 0, -1),
		End:   day2.AddDate(0, 0, 1),
	})
	require.NoError(t, err)

	assert.Equal(t, "Garden", result.Topic)
	assert.Equal(t, 3, result.TotalEntries)
	require.Len(t, result.Days, 2)
	assert.Equal(t, "2026-05-10", result.Days[0].Date)
	require.Len(t, result.Days[0].Entries, 2)
	assert.Equal(t, "a", result.Days[0].Entries[0].ID)
	assert.Equal(t, "d", result.Days[0].Entries[1].ID, "tag matches count toward the topic")
	assert.Equal(t, "2026-05-12", result.Days[1].Date)

	assert.Equal(t, day1, result.Span.Start)
	assert.Equal(t, day2, result.Span.End)
	assert.Equal(t, 3, result.Span.DurationDays)
}

func TestSearchTimelineNoMatches(t *testing.T) {
	store := &fakeStore{
		inRange: []*memory.Entry{
			timelineEntry("a", "something else", time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)),
		},
	}
	e := newTestEngine(store)
	now := e.now()

	result, err := e.SearchTimeline(context.Background(), "garden", memory.TimeRange{})
	require.NoError(t, err)

	assert.Zero(t, result.TotalEntries)
	assert.Empty(t, result.Days)
	assert.Equal(t, now, result.Span.Start)
	assert.Equal(t, now, result.Span.End)
	assert.Zero(t, result.Span.DurationDays)
}

func TestSearchTimelineBackendError(t *testing.T) {
	store := &fakeStore{rangeErr: errors.New("disk gone")}
	e := newTestEngine(store)

	_, err := e.SearchTimeline(context.Background(), "garden", memory.TimeRange{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
}
