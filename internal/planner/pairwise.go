package planner

import (
	"fmt"
	"sort"

	"dialectic/internal/logging"
	"dialectic/internal/naming"
	"dialectic/internal/types"
)

// StrategyPairwiseByOrigin spawns one synthesis job for every
// (anchor, related) document pair, where "related" means the document
// points at the anchor through its thesis relationship.
const StrategyPairwiseByOrigin = "pairwise_by_origin"

func init() {
	Register(&PairwiseByOrigin{})
}

// PairwiseByOrigin pairs each non-anchor document with the anchor it
// derives from. The job's producing model is the non-anchor side: each
// origin model synthesizes its own critique against the anchor.
type PairwiseByOrigin struct{}

// Name implements Planner.
func (p *PairwiseByOrigin) Name() string { return StrategyPairwiseByOrigin }

// Plan implements Planner.
func (p *PairwiseByOrigin) Plan(plan types.PlanPayload, docs []types.SourceDocument) ([]types.ExecutePayload, error) {
	byID := make(map[string]types.SourceDocument, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	// anchor id -> documents deriving from it
	related := make(map[string][]types.SourceDocument)
	for _, d := range docs {
		anchorID := d.Relationships.Get(types.RoleThesis)
		if anchorID == "" || anchorID == d.ID {
			continue
		}
		if _, ok := byID[anchorID]; !ok {
			return nil, fmt.Errorf("document %s references anchor %s which is not among the stage inputs", d.ID, anchorID)
		}
		related[anchorID] = append(related[anchorID], d)
	}

	if len(related) == 0 {
		return nil, fmt.Errorf("pairwise planning for stage %s: no document resolves to an anchor", plan.StageSlug)
	}

	anchorIDs := make([]string, 0, len(related))
	for id := range related {
		anchorIDs = append(anchorIDs, id)
	}
	sort.Slice(anchorIDs, func(i, j int) bool {
		return byID[anchorIDs[i]].ModelSlug < byID[anchorIDs[j]].ModelSlug
	})

	var payloads []types.ExecutePayload
	for _, anchorID := range anchorIDs {
		anchor := byID[anchorID]
		pairs := related[anchorID]
		sort.Slice(pairs, func(i, j int) bool { return pairs[i].ModelSlug < pairs[j].ModelSlug })

		for _, pair := range pairs {
			// When anchor and pair share a contribution type, the pair
			// edge moves to source_group so neither id is lost.
			anchorRole := types.RelationshipRole(anchor.ContributionType)
			pairRole := types.RelationshipRole(pair.ContributionType)
			if pairRole == anchorRole {
				pairRole = types.RoleSourceGroup
			}
			rels, err := types.NewDocumentRelationships(map[types.RelationshipRole]string{
				anchorRole: anchor.ID,
				pairRole:   pair.ID,
			})
			if err != nil {
				return nil, fmt.Errorf("pairwise planning for stage %s: %w", plan.StageSlug, err)
			}

			payload := basePayload(plan)
			payload.ModelSlug = pair.ModelSlug
			payload.AnchorDocumentID = anchor.ID
			payload.PairedDocumentID = pair.ID
			payload.DocumentRelationships = rels
			payload.CanonicalPathParams = naming.CanonicalParams(
				[]types.SourceDocument{anchor, pair}, string(plan.OutputType), anchor)

			payloads = append(payloads, payload)
		}
	}

	logging.Planner("pairwise_by_origin: stage=%s anchors=%d jobs=%d",
		plan.StageSlug, len(anchorIDs), len(payloads))
	return payloads, nil
}
