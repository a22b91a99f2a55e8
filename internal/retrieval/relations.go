package retrieval

import (
	"context"
	"fmt"

	"github.com/a-marczewski/deepmemo/internal/memory"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	discoveryTopK      = 20
	discoveryThreshold = 0.5
	defaultRelWeight   = 0.5
)

// Relation type labels inferred during discovery.
const (
	RelSimilar    = "similar"
	RelRelated    = "related"
	RelAssociated = "associated"
)

// RelatedEntry pairs an entry with the weight of the relation that led
// to it.
type RelatedEntry struct {
	Entry  *memory.Entry `json:"entry"`
	Weight float64       `json:"weight"`
}

// RelationDiscovery is the combined view of stored and freshly inferred
// relations for one entry.
type RelationDiscovery struct {
	Relations      []memory.Relation `json:"relations"`
	RelatedEntries []RelatedEntry    `json:"related_entries"`
}

// DiscoverRelations merges the relations the backend already knows about
// entryID with new ones inferred from a content-similarity search. A
// missing source entry is not an error; it yields an empty result.
//
// Discovered relations are not deduplicated against existing ones with
// the same (source,target) pair, so repeated discovery can record weight
// evolution over time.
func (e *Engine) DiscoverRelations(ctx context.Context, entryID string) (RelationDiscovery, error) {
	existing, err := e.store.GetRelations(ctx, entryID)
	if err != nil {
		return RelationDiscovery{}, fmt.Errorf("fetching relations for %s: %w", entryID, err)
	}

	source, err := e.store.GetByID(ctx, entryID)
	if err != nil {
		return RelationDiscovery{}, fmt.Errorf("fetching entry %s: %w", entryID, err)
	}
	if source == nil {
		return RelationDiscovery{
			Relations:      []memory.Relation{},
			RelatedEntries: []RelatedEntry{},
		}, nil
	}

	candidates, err := e.store.Search(ctx, source.Content, memory.SearchOptions{
		TopK:       discoveryTopK,
		Threshold:  discoveryThreshold,
		ExcludeIDs: []string{entryID},
	})
	if err != nil {
		return RelationDiscovery{}, fmt.Errorf("similarity search for %s: %w", entryID, err)
	}

	now := e.now()
	discoveredWeights := make(map[string]float64, len(candidates))
	relations := append([]memory.Relation{}, existing...)
	for _, candidate := range candidates {
		if candidate.ID == entryID {
			continue
		}
		relations = append(relations, memory.Relation{
			ID:           uuid.NewString(),
			SourceID:     entryID,
			TargetID:     candidate.ID,
			RelationType: inferRelationType(source, &candidate.Entry),
			Weight:       candidate.Score,
			CreatedAt:    now,
		})
		discoveredWeights[candidate.ID] = candidate.Score
	}

	related, err := e.resolveRelatedEntries(ctx, entryID, relations, discoveredWeights)
	if err != nil {
		return RelationDiscovery{}, err
	}

	e.logger.Debug("relation discovery completed",
		zap.String("entry_id", entryID),
		zap.Int("existing", len(existing)),
		zap.Int("discovered", len(relations)-len(existing)),
	)
	return RelationDiscovery{Relations: relations, RelatedEntries: related}, nil
}

// inferRelationType classifies a candidate against the source entry.
// A type match takes precedence over tag overlap.
func inferRelationType(source, candidate *memory.Entry) string {
	if source.Type == candidate.Type {
		return RelSimilar
	}
	for _, tag := range candidate.Metadata.Tags {
		if source.HasTag(tag) {
			return RelRelated
		}
	}
	return RelAssociated
}

// resolveRelatedEntries fetches the entries on the far side of every
// relation, annotating each with its discovered weight when known.
func (e *Engine) resolveRelatedEntries(ctx context.Context, entryID string, relations []memory.Relation, weights map[string]float64) ([]RelatedEntry, error) {
	seen := make(map[string]bool, len(relations))
	ids := make([]string, 0, len(relations))
	for _, rel := range relations {
		other := rel.OtherSide(entryID)
		if other == entryID || seen[other] {
			continue
		}
		seen[other] = true
		ids = append(ids, other)
	}
	if len(ids) == 0 {
		return []RelatedEntry{}, nil
	}

	entries, err := e.store.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolving related entries for %s: %w", entryID, err)
	}

	related := make([]RelatedEntry, 0, len(entries))
	for _, entry := range entries {
		weight, ok := weights[entry.ID]
		if !ok {
			weight = defaultRelWeight
		}
		related = append(related, RelatedEntry{Entry: entry, Weight: weight})
	}
	return related, nil
}
