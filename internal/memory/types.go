package memory

import (
	"time"
)

// Type represents the type of memory entry
type Type string

const (
	Fact         Type = "fact"
	Preference   Type = "preference"
	Experience   Type = "experience"
	Knowledge    Type = "knowledge"
	Event        Type = "event"
	Entity       Type = "entity"
	Relationship Type = "relation"
	Conversation Type = "conversation"
	Insight      Type = "insight"
)

// IsValid reports whether t is one of the known memory types.
func (t Type) IsValid() bool {
	switch t {
	case Fact, Preference, Experience, Knowledge, Event, Entity, Relationship, Conversation, Insight:
		return true
	default:
		return false
	}
}

// Metadata carries descriptive attributes of a memory entry.
// Confidence is expected in [0,1] and Importance in [1,10]; both are
// clamped at the storage write boundary, not re-validated on read.
// Extra is an open key-value bag for caller-specific fields.
type Metadata struct {
	Source     string         `json:"source,omitempty"`
	Confidence float64        `json:"confidence"`
	Tags       []string       `json:"tags,omitempty"`
	Importance int            `json:"importance"`
	UserID     string         `json:"user_id,omitempty"`
	AgentID    string         `json:"agent_id,omitempty"`
	SessionID  string         `json:"session_id,omitempty"`
	Entities   []string       `json:"entities,omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// Entry represents a single long-term memory entry.
// ID is globally unique and stable across updates; Type is immutable
// after creation.
type Entry struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	Type           Type      `json:"type"`
	Metadata       Metadata  `json:"metadata"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	AccessCount    int       `json:"access_count"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	IsDeleted      bool      `json:"is_deleted"`
}

// HasTag reports whether the entry carries the given tag (exact match).
func (e *Entry) HasTag(tag string) bool {
	for _, t := range e.Metadata.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ScoredEntry is an Entry with a retrieval score attached. The score is
// specific to one retrieval call and is never persisted.
type ScoredEntry struct {
	Entry
	Score       float64  `json:"score"`
	MatchReason string   `json:"match_reason,omitempty"`
	Highlights  []string `json:"highlights,omitempty"`
}

// Relation links two entries. Relations are directed but traversed as if
// symmetric: callers resolve the far side by comparing SourceID against
// the entry they started from.
type Relation struct {
	ID           string    `json:"id"`
	SourceID     string    `json:"source_id"`
	TargetID     string    `json:"target_id"`
	RelationType string    `json:"relation_type"`
	Weight       float64   `json:"weight"`
	CreatedAt    time.Time `json:"created_at"`
}

// OtherSide returns the id on the far side of the relation relative to
// entryID.
func (r *Relation) OtherSide(entryID string) string {
	if r.SourceID == entryID {
		return r.TargetID
	}
	return r.SourceID
}

// TimeRange is an inclusive time interval.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls within the range.
func (tr TimeRange) Contains(t time.Time) bool {
	return !t.Before(tr.Start) && !t.After(tr.End)
}
