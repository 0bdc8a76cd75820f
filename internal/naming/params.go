// Package naming derives collision-free storage identities for
// pipeline artifacts. CanonicalParams collects the naming context from
// a job's source documents; ConstructStoragePath maps that context
// plus a file type onto a deterministic relative path following the
// embedded grammar reference.
package naming

import (
	"sort"

	"dialectic/internal/types"
)

// CanonicalParams derives the canonical naming context from a set of
// source documents and an explicit anchor. Pure function: no lookups,
// no side effects. The anchor is trusted to be one of the documents
// under consideration - resolving it is the planner's job, and the
// builder performs no independent role search.
func CanonicalParams(sourceDocs []types.SourceDocument, outputType string, anchor types.SourceDocument) types.CanonicalPathParams {
	params := types.CanonicalPathParams{
		ContributionType: outputType,
	}

	seen := make(map[string]bool, len(sourceDocs))
	slugs := make([]string, 0, len(sourceDocs))
	for _, doc := range sourceDocs {
		if doc.ModelSlug == "" || seen[doc.ModelSlug] {
			continue
		}
		seen[doc.ModelSlug] = true
		slugs = append(slugs, doc.ModelSlug)
	}
	sort.Strings(slugs)
	params.SourceModelSlugs = slugs

	if anchor.ContributionType != "" {
		params.SourceAnchorType = string(anchor.ContributionType)
	}
	if anchor.ModelSlug != "" {
		params.SourceAnchorModelSlug = anchor.ModelSlug
	}

	// A pairwise operation has exactly one participant besides the
	// anchor; only then is a paired slug well defined.
	var others []types.SourceDocument
	for _, doc := range sourceDocs {
		if doc.ID != anchor.ID {
			others = append(others, doc)
		}
	}
	if len(others) == 1 && others[0].ModelSlug != "" {
		params.PairedModelSlug = others[0].ModelSlug
	}

	return params
}
