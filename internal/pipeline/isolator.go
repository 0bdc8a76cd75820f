package pipeline

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"dialectic/internal/logging"
	"dialectic/internal/naming"
	"dialectic/internal/types"
)

// Isolator gathers the complete context a job needs immediately before
// execution: the anchor document, the paired document when present,
// and the final canonical path parameters. It runs strictly before any
// prompt compression for the same job - compression that ran first
// would discard the source identities the filename depends on.
type Isolator struct {
	docs     types.DocumentLoader
	validate *validator.Validate
}

// NewIsolator creates an isolator backed by the given document loader.
func NewIsolator(docs types.DocumentLoader) *Isolator {
	return &Isolator{
		docs:     docs,
		validate: validator.New(),
	}
}

// PreparedTask is the fully materialized execution context for one
// job: validated payload, resolved documents, and the path context the
// contribution will be stored under.
type PreparedTask struct {
	Job         *types.Job
	Payload     types.ExecutePayload
	Anchor      *types.SourceDocument
	Paired      *types.SourceDocument
	PathContext types.PathContext
}

// Prepare resolves and validates a job's dependency context.
func (i *Isolator) Prepare(ctx context.Context, job *types.Job) (*PreparedTask, error) {
	if (job.Kind != types.JobKindExecute && job.Kind != types.JobKindContinuation) || job.Execute == nil {
		return nil, &types.InvariantError{Invariant: fmt.Sprintf("Prepare called with %s job %s", job.Kind, job.ID)}
	}

	payload := *job.Execute

	// The field-reset contract: a fresh execute job must not carry a
	// target contribution id, and a continuation must carry one.
	if job.Kind == types.JobKindExecute && payload.TargetContributionID != "" {
		return nil, &types.InvariantError{Invariant: fmt.Sprintf(
			"execute job %s carries target_contribution_id %s", job.ID, payload.TargetContributionID)}
	}
	if job.Kind == types.JobKindContinuation && payload.TargetContributionID == "" {
		return nil, &types.InvariantError{Invariant: fmt.Sprintf(
			"continuation job %s without target_contribution_id", job.ID)}
	}
	if job.Kind == types.JobKindContinuation && payload.ChunkIndex < 1 {
		return nil, &types.InvariantError{Invariant: fmt.Sprintf(
			"continuation job %s at chunk %d; continuations always advance past the chunk they resume",
			job.ID, payload.ChunkIndex)}
	}

	// A paired document only has meaning relative to an anchor.
	if payload.PairedDocumentID != "" && payload.AnchorDocumentID == "" {
		return nil, &types.InvariantError{Invariant: fmt.Sprintf(
			"job %s carries paired document %s without an anchor", job.ID, payload.PairedDocumentID)}
	}

	if err := i.validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("job %s payload invalid: %w", job.ID, err)
	}
	for role := range payload.DocumentRelationships {
		if !types.ValidRole(role) {
			return nil, fmt.Errorf("job %s payload carries unknown relationship role %q", job.ID, role)
		}
	}

	task := &PreparedTask{Job: job, Payload: payload}

	var sourceDocs []types.SourceDocument
	if payload.AnchorDocumentID != "" {
		anchor, err := i.docs.LoadDocument(ctx, payload.AnchorDocumentID)
		if err != nil {
			return nil, fmt.Errorf("job %s: resolving anchor %s: %w", job.ID, payload.AnchorDocumentID, err)
		}
		task.Anchor = anchor
		sourceDocs = append(sourceDocs, *anchor)
	}
	if payload.PairedDocumentID != "" {
		paired, err := i.docs.LoadDocument(ctx, payload.PairedDocumentID)
		if err != nil {
			return nil, fmt.Errorf("job %s: resolving paired document %s: %w", job.ID, payload.PairedDocumentID, err)
		}
		task.Paired = paired
		sourceDocs = append(sourceDocs, *paired)
	}

	// Rebuild the canonical params from the resolved documents so the
	// engine always names the output from live identities rather than
	// whatever the planner serialized.
	if task.Anchor != nil {
		task.Payload.CanonicalPathParams = naming.CanonicalParams(
			sourceDocs, string(payload.OutputType), *task.Anchor)
	}

	task.PathContext = types.PathContext{
		CanonicalPathParams: task.Payload.CanonicalPathParams,
		FileType:            fileTypeFor(task),
		ModelSlug:           payload.ModelSlug,
		ProjectID:           payload.ProjectID,
		SessionID:           payload.SessionID,
		Iteration:           payload.Iteration,
		StageSlug:           payload.StageSlug,
		ChunkIndex:          payload.ChunkIndex,
	}

	logging.PipelineDebug("job %s isolated: anchor=%s paired=%s file_type=%s",
		job.ID, payload.AnchorDocumentID, payload.PairedDocumentID, task.PathContext.FileType)
	return task, nil
}

// fileTypeFor selects the filename grammar: a two-document synthesis
// is a pairwise chunk, everything else is a main contribution.
func fileTypeFor(task *PreparedTask) types.FileType {
	if task.Paired != nil {
		return types.FileTypePairwiseSynthesisChunk
	}
	return types.FileTypeModelContributionMain
}
