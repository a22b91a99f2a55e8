package semgroup

import (
	"testing"

	"github.com/a-marczewski/deepmemo/internal/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryBuiltins(t *testing.T) {
	r := NewRegistry()
	groups := r.Groups()

	require.Len(t, groups, 8)
	assert.Equal(t, "personal", groups[0].ID, "highest priority first")
	for i := 1; i < len(groups); i++ {
		assert.GreaterOrEqual(t, groups[i-1].Priority, groups[i].Priority)
	}

	personal, ok := r.Group("personal")
	require.True(t, ok)
	assert.Contains(t, personal.Keywords, "birthday")
	assert.True(t, personal.HasType(memory.Fact))
	assert.False(t, personal.HasType(memory.Preference))
}

func TestNewRegistryCustomOverride(t *testing.T) {
	r := NewRegistry(
		Definition{ID: "personal", Name: "Identity", Keywords: []string{"passport"}, Priority: 9},
		Definition{ID: "finance", Name: "Finance", Keywords: []string{"budget", "invoice"}, Priority: 2},
	)

	personal, ok := r.Group("personal")
	require.True(t, ok)
	assert.Equal(t, "Identity", personal.Name)
	assert.Equal(t, []string{"passport"}, personal.Keywords)

	finance, ok := r.Group("finance")
	require.True(t, ok)
	assert.Equal(t, 2, finance.Priority)
	assert.Len(t, r.Groups(), 9)
}

func TestRelationGraphSymmetric(t *testing.T) {
	r := NewRegistry()
	for _, group := range r.Groups() {
		for _, related := range r.RelatedGroups(group.ID) {
			back := r.RelatedGroups(related.ID)
			found := false
			for _, b := range back {
				if b.ID == group.ID {
					found = true
					break
				}
			}
			assert.True(t, found, "%s lists %s but not vice versa", group.ID, related.ID)
		}
	}
}

func TestRelatedGroupsUnknownID(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.RelatedGroups("no-such-group"))

	_, ok := r.Group("no-such-group")
	assert.False(t, ok)
}
