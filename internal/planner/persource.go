package planner

import (
	"fmt"
	"sort"

	"dialectic/internal/logging"
	"dialectic/internal/naming"
	"dialectic/internal/types"
)

// StrategyPerSourceDocument spawns one job per source document, the
// document serving as its own anchor - the "critique own thesis"
// pattern.
const StrategyPerSourceDocument = "per_source_document"

func init() {
	Register(&PerSourceDocument{})
}

// PerSourceDocument plans one self-anchored job per input document.
type PerSourceDocument struct{}

// Name implements Planner.
func (p *PerSourceDocument) Name() string { return StrategyPerSourceDocument }

// Plan implements Planner.
func (p *PerSourceDocument) Plan(plan types.PlanPayload, docs []types.SourceDocument) ([]types.ExecutePayload, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("per_source_document planning for stage %s: no source documents", plan.StageSlug)
	}

	ordered := append([]types.SourceDocument(nil), docs...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ModelSlug < ordered[j].ModelSlug })

	payloads := make([]types.ExecutePayload, 0, len(ordered))
	for _, doc := range ordered {
		if doc.ID == "" {
			return nil, fmt.Errorf("per_source_document planning for stage %s: document without id", plan.StageSlug)
		}

		rels, err := types.NewDocumentRelationships(map[types.RelationshipRole]string{
			types.RelationshipRole(doc.ContributionType): doc.ID,
		})
		if err != nil {
			return nil, fmt.Errorf("per_source_document planning for stage %s: %w", plan.StageSlug, err)
		}

		payload := basePayload(plan)
		payload.ModelSlug = doc.ModelSlug
		payload.AnchorDocumentID = doc.ID
		payload.DocumentRelationships = rels
		payload.CanonicalPathParams = naming.CanonicalParams(
			[]types.SourceDocument{doc}, string(plan.OutputType), doc)

		payloads = append(payloads, payload)
	}

	logging.Planner("per_source_document: stage=%s jobs=%d", plan.StageSlug, len(payloads))
	return payloads, nil
}
