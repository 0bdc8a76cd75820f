package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dialectic/internal/types"
)

func pairwiseContext() types.PathContext {
	return types.PathContext{
		CanonicalPathParams: types.CanonicalPathParams{
			ContributionType:      "synthesis",
			SourceAnchorType:      "thesis",
			SourceAnchorModelSlug: "gpt-x",
			PairedModelSlug:       "claude-y",
		},
		FileType:  types.FileTypePairwiseSynthesisChunk,
		ModelSlug: "gemini-z",
		ProjectID: "proj-1",
		SessionID: "sess-1",
		Iteration: 2,
		StageSlug: "synthesis",
	}
}

func TestConstructStoragePath_PairwiseSynthesisChunk(t *testing.T) {
	got, err := ConstructStoragePath(pairwiseContext())
	require.NoError(t, err)

	want := "projects/proj-1/sessions/sess-1/iteration_2/synthesis/" +
		"gemini-z_synthesizing_gpt-x_with_claude-y_on_thesis_0_synthesis.md"
	assert.Equal(t, want, got)
}

func TestConstructStoragePath_Deterministic(t *testing.T) {
	ctx := pairwiseContext()
	first, err := ConstructStoragePath(ctx)
	require.NoError(t, err)
	second, err := ConstructStoragePath(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestConstructStoragePath_ChunkIndexInFilename(t *testing.T) {
	ctx := pairwiseContext()
	ctx.ChunkIndex = 3

	got, err := ConstructStoragePath(ctx)
	require.NoError(t, err)
	assert.Contains(t, got, "_on_thesis_3_synthesis.md")
}

func TestConstructStoragePath_MissingAnchorSlugFails(t *testing.T) {
	ctx := pairwiseContext()
	ctx.SourceAnchorModelSlug = ""

	_, err := ConstructStoragePath(ctx)
	require.Error(t, err)
	assert.True(t, IsMissingContextField(err))
	assert.Contains(t, err.Error(), "source_anchor_model_slug")
}

func TestConstructStoragePath_MissingPairedSlugFails(t *testing.T) {
	ctx := pairwiseContext()
	ctx.PairedModelSlug = ""

	_, err := ConstructStoragePath(ctx)
	require.Error(t, err)
	assert.True(t, IsMissingContextField(err))
	assert.Contains(t, err.Error(), "paired_model_slug")
}

func TestConstructStoragePath_ReportsAllMissingFields(t *testing.T) {
	ctx := pairwiseContext()
	ctx.SourceAnchorModelSlug = ""
	ctx.PairedModelSlug = ""
	ctx.SourceAnchorType = ""

	_, err := ConstructStoragePath(ctx)
	require.Error(t, err)

	var me *MissingContextFieldError
	require.ErrorAs(t, err, &me)
	assert.ElementsMatch(t,
		[]string{"source_anchor_model_slug", "paired_model_slug", "source_anchor_type"},
		me.Fields)
	assert.Equal(t, types.FileTypePairwiseSynthesisChunk, me.FileType)
}

func TestConstructStoragePath_MainContribution(t *testing.T) {
	ctx := types.PathContext{
		CanonicalPathParams: types.CanonicalPathParams{ContributionType: "thesis"},
		FileType:            types.FileTypeModelContributionMain,
		ModelSlug:           "gpt-x",
		ProjectID:           "proj-1",
		SessionID:           "sess-1",
		Iteration:           0,
		StageSlug:           "thesis",
	}

	got, err := ConstructStoragePath(ctx)
	require.NoError(t, err)
	assert.Equal(t, "projects/proj-1/sessions/sess-1/iteration_0/thesis/gpt-x_0_thesis.md", got)
}

func TestConstructStoragePath_UnknownFileType(t *testing.T) {
	ctx := pairwiseContext()
	ctx.FileType = "no_such_type"

	_, err := ConstructStoragePath(ctx)
	require.Error(t, err)
	assert.False(t, IsMissingContextField(err))
}

func TestConstructStoragePath_MissingSessionCoordinates(t *testing.T) {
	ctx := pairwiseContext()
	ctx.SessionID = ""
	ctx.ProjectID = ""

	_, err := ConstructStoragePath(ctx)
	require.Error(t, err)

	var me *MissingContextFieldError
	require.ErrorAs(t, err, &me)
	assert.Contains(t, me.Fields, "project_id")
	assert.Contains(t, me.Fields, "session_id")
}

func TestGrammarVersion(t *testing.T) {
	assert.Equal(t, 1, GrammarVersion())
}
