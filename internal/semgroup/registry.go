package semgroup

import (
	"sort"

	"github.com/a-marczewski/deepmemo/internal/memory"
)

// Definition describes one semantic group: a named topical bucket with
// the keywords, entry types, and priority used to match entries and
// queries against it. Color is display-only.
type Definition struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Keywords []string      `json:"keywords"`
	Types    []memory.Type `json:"types"`
	Priority int           `json:"priority"`
	Color    string        `json:"color"`
}

// HasType reports whether t is one of the group's associated types.
func (d *Definition) HasType(t memory.Type) bool {
	for _, gt := range d.Types {
		if gt == t {
			return true
		}
	}
	return false
}

// Registry holds the semantic group taxonomy and the static
// group-relation graph. It is built once and never mutated afterward,
// so it is safe to share across goroutines.
type Registry struct {
	groups map[string]Definition
	// order keeps deterministic iteration: priority desc, then id.
	order     []string
	relations map[string][]string
}

// NewRegistry builds a registry from the built-in taxonomy merged with
// caller-supplied custom definitions. A custom definition replaces the
// built-in with the same id.
func NewRegistry(custom ...Definition) *Registry {
	groups := make(map[string]Definition)
	for _, def := range builtinDefinitions() {
		groups[def.ID] = def
	}
	for _, def := range custom {
		groups[def.ID] = def
	}

	order := make([]string, 0, len(groups))
	for id := range groups {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool {
		if groups[order[i]].Priority == groups[order[j]].Priority {
			return order[i] < order[j]
		}
		return groups[order[i]].Priority > groups[order[j]].Priority
	})

	return &Registry{
		groups:    groups,
		order:     order,
		relations: relationGraph(),
	}
}

// Groups returns all definitions, priority descending.
func (r *Registry) Groups() []Definition {
	defs := make([]Definition, 0, len(r.order))
	for _, id := range r.order {
		defs = append(defs, r.groups[id])
	}
	return defs
}

// Group looks up a definition by id.
func (r *Registry) Group(id string) (Definition, bool) {
	def, ok := r.groups[id]
	return def, ok
}

// RelatedGroups returns the definitions adjacent to id in the static
// relation graph. Unknown neighbors (removed by customization) are
// skipped.
func (r *Registry) RelatedGroups(id string) []Definition {
	var defs []Definition
	for _, related := range r.relations[id] {
		if def, ok := r.groups[related]; ok {
			defs = append(defs, def)
		}
	}
	return defs
}

// builtinDefinitions is the stock taxonomy of eight groups.
func builtinDefinitions() []Definition {
	return []Definition{
		{
			ID:       "personal",
			Name:     "Personal",
			Keywords: []string{"name", "birthday", "age", "address", "phone", "email", "family", "home"},
			Types:    []memory.Type{memory.Fact, memory.Entity},
			Priority: 8,
			Color:    "#4A90D9",
		},
		{
			ID:       "preferences",
			Name:     "Preferences",
			Keywords: []string{"like", "love", "favorite", "prefer", "hate", "dislike", "enjoy"},
			Types:    []memory.Type{memory.Preference},
			Priority: 7,
			Color:    "#E8A33D",
		},
		{
			ID:       "projects",
			Name:     "Projects",
			Keywords: []string{"project", "work", "task", "deadline", "meeting", "launch", "release"},
			Types:    []memory.Type{memory.Event, memory.Fact},
			Priority: 6,
			Color:    "#5CB85C",
		},
		{
			ID:       "social",
			Name:     "Social",
			Keywords: []string{"friend", "colleague", "partner", "team", "conversation", "chat", "met"},
			Types:    []memory.Type{memory.Relationship, memory.Conversation, memory.Entity},
			Priority: 5,
			Color:    "#9B59B6",
		},
		{
			ID:       "learning",
			Name:     "Learning",
			Keywords: []string{"learn", "study", "course", "book", "read", "tutorial", "skill", "practice"},
			Types:    []memory.Type{memory.Knowledge, memory.Insight},
			Priority: 5,
			Color:    "#3498DB",
		},
		{
			ID:       "experiences",
			Name:     "Experiences",
			Keywords: []string{"travel", "trip", "visited", "experience", "concert", "vacation", "festival"},
			Types:    []memory.Type{memory.Experience, memory.Event},
			Priority: 4,
			Color:    "#1ABC9C",
		},
		{
			ID:       "health",
			Name:     "Health",
			Keywords: []string{"health", "doctor", "exercise", "sleep", "diet", "workout", "medication"},
			Types:    []memory.Type{memory.Fact, memory.Event},
			Priority: 4,
			Color:    "#E74C3C",
		},
		{
			ID:       "emotions",
			Name:     "Emotions",
			Keywords: []string{"happy", "sad", "angry", "excited", "anxious", "stressed", "mood", "feeling"},
			Types:    []memory.Type{memory.Insight, memory.Experience},
			Priority: 3,
			Color:    "#F39C12",
		},
	}
}

// relationGraph is the static adjacency between groups. It is kept
// symmetric by hand: if A lists B, B lists A.
func relationGraph() map[string][]string {
	return map[string][]string{
		"personal":    {"preferences", "social", "health"},
		"preferences": {"personal", "experiences"},
		"projects":    {"learning", "social"},
		"social":      {"personal", "projects", "emotions"},
		"learning":    {"projects", "experiences"},
		"experiences": {"preferences", "learning", "emotions"},
		"health":      {"personal", "emotions"},
		"emotions":    {"social", "experiences", "health"},
	}
}
