package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dialectic/internal/types"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "dialectic.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testJob(id string, createdAt time.Time) *types.Job {
	return &types.Job{
		ID:        id,
		SessionID: "sess-1",
		StageSlug: "thesis",
		Kind:      types.JobKindPlan,
		Status:    types.JobStatusPending,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
		Plan: &types.PlanPayload{
			ProjectID:  "proj-1",
			SessionID:  "sess-1",
			StageSlug:  "thesis",
			OutputType: types.ContributionThesis,
			ModelSlug:  "gpt-x",
		},
	}
}

func TestQueueFIFOAndPayloadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Enqueue(ctx, testJob("job-a", base)))
	require.NoError(t, s.Enqueue(ctx, testJob("job-b", base.Add(time.Second))))

	first, err := s.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "job-a", first.ID)
	assert.Equal(t, types.JobStatusProcessing, first.Status)
	assert.Equal(t, 1, first.Attempt)
	require.NotNil(t, first.Plan)
	assert.Equal(t, types.ContributionThesis, first.Plan.OutputType)
	assert.Equal(t, "gpt-x", first.Plan.ModelSlug)

	second, err := s.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "job-b", second.ID)

	third, err := s.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, third, "a claimed job is not re-dequeued")
}

func TestQueueCompleteAndFail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, s.Enqueue(ctx, testJob("job-a", now)))
	require.NoError(t, s.Enqueue(ctx, testJob("job-b", now.Add(time.Second))))

	_, err := s.Dequeue(ctx)
	require.NoError(t, err)
	_, err = s.Dequeue(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Complete(ctx, "job-a"))
	require.NoError(t, s.Fail(ctx, "job-b", assert.AnError))

	status, lastError, err := s.JobStatus(ctx, "job-a")
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusCompleted, status)
	assert.Empty(t, lastError)

	status, lastError, err = s.JobStatus(ctx, "job-b")
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusFailed, status)
	assert.Contains(t, lastError, assert.AnError.Error())
}

func TestQueueUnknownJobUpdatesFail(t *testing.T) {
	s := newTestStore(t)

	err := s.Complete(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestDocumentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := types.SourceDocument{
		ID:               "th-a",
		ContributionType: types.ContributionThesis,
		ModelName:        "GPT X",
		ModelSlug:        "gpt-x",
		Relationships:    types.DocumentRelationships{types.RoleThesis: "root-1"},
		ContentRef:       "projects/p1/sessions/s1/iteration_1/thesis/gpt-x_0_thesis.md",
	}
	require.NoError(t, s.SaveDocument(ctx, "sess-1", "thesis", 1, doc))

	got, err := s.LoadDocument(ctx, "th-a")
	require.NoError(t, err)
	assert.Equal(t, doc.ContributionType, got.ContributionType)
	assert.Equal(t, doc.ModelSlug, got.ModelSlug)
	assert.Equal(t, doc.ContentRef, got.ContentRef)
	assert.Equal(t, "root-1", got.Relationships.Get(types.RoleThesis))

	_, err = s.LoadDocument(ctx, "absent")
	require.Error(t, err)
}

func TestLoadStageDocumentsFiltersAndOrders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	save := func(id, slug, stage string, iteration int) {
		t.Helper()
		require.NoError(t, s.SaveDocument(ctx, "sess-1", stage, iteration, types.SourceDocument{
			ID: id, ContributionType: types.ContributionThesis,
			ModelName: slug, ModelSlug: slug, ContentRef: "content/" + id,
		}))
	}
	save("doc-z", "zeta", "thesis", 1)
	save("doc-a", "alpha", "thesis", 1)
	save("doc-other-stage", "alpha", "antithesis", 1)
	save("doc-other-iter", "alpha", "thesis", 2)

	docs, err := s.LoadStageDocuments(ctx, "sess-1", "thesis", 1)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "doc-a", docs[0].ID)
	assert.Equal(t, "doc-z", docs[1].ID)
}
