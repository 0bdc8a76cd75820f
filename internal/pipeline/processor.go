// Package pipeline turns plan jobs into execute jobs, resolves each
// job's dependency context right before execution, and drives the
// provider continuation loop that produces and persists contributions.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dialectic/internal/logging"
	"dialectic/internal/planner"
	"dialectic/internal/types"
)

// Processor transforms plan jobs into execute jobs. Every transition
// between job kinds goes through an explicit function that classifies
// each payload field as carried or reset; nothing is inherited through
// implicit copying.
type Processor struct {
	docs types.DocumentLoader
}

// NewProcessor creates a processor backed by the given document loader.
func NewProcessor(docs types.DocumentLoader) *Processor {
	return &Processor{docs: docs}
}

// Process converts a plan job into its derived execute jobs. Simple
// stages (no strategy) yield exactly one fresh execute job; strategy
// stages delegate fan-out to the registered planner.
func (p *Processor) Process(ctx context.Context, job *types.Job) ([]*types.Job, error) {
	if job.Kind != types.JobKindPlan || job.Plan == nil {
		return nil, &types.InvariantError{Invariant: fmt.Sprintf("Process called with %s job %s", job.Kind, job.ID)}
	}

	plan := *job.Plan

	if plan.Strategy == "" {
		payload := transitionSimple(plan)
		logging.Pipeline("plan %s: simple stage %s -> 1 execute job", job.ID, plan.StageSlug)
		return []*types.Job{newExecuteJob(job, payload)}, nil
	}

	strategy, err := planner.Get(plan.Strategy)
	if err != nil {
		return nil, fmt.Errorf("plan job %s: %w", job.ID, err)
	}

	docs, err := p.docs.LoadStageDocuments(ctx, plan.SessionID, plan.StageSlug, plan.Iteration)
	if err != nil {
		return nil, fmt.Errorf("plan job %s: loading stage inputs: %w", job.ID, err)
	}

	payloads, err := strategy.Plan(plan, docs)
	if err != nil {
		return nil, fmt.Errorf("plan job %s: %w", job.ID, err)
	}

	jobs := make([]*types.Job, 0, len(payloads))
	for _, payload := range payloads {
		jobs = append(jobs, newExecuteJob(job, payload))
	}
	logging.Pipeline("plan %s: strategy %s -> %d execute job(s)", job.ID, plan.Strategy, len(jobs))
	return jobs, nil
}

// NewPlanJob wraps a plan payload in a pending job row.
func NewPlanJob(plan types.PlanPayload) *types.Job {
	now := time.Now().UTC()
	return &types.Job{
		ID:        uuid.NewString(),
		SessionID: plan.SessionID,
		StageSlug: plan.StageSlug,
		Kind:      types.JobKindPlan,
		Status:    types.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Plan:      &plan,
	}
}

// transitionSimple is the plan -> execute transition for stages with
// no multi-document ancestry. Carried: stage coordinates, producing
// model, output type. Reset: TargetContributionID (a fresh execute job
// is never a continuation, whatever the plan payload carried),
// relationships, and every ancestry field of the canonical params -
// only the contribution type is known at plan time.
func transitionSimple(plan types.PlanPayload) types.ExecutePayload {
	return types.ExecutePayload{
		ProjectID:  plan.ProjectID,
		SessionID:  plan.SessionID,
		StageSlug:  plan.StageSlug,
		Iteration:  plan.Iteration,
		ModelSlug:  plan.ModelSlug,
		OutputType: plan.OutputType,
		CanonicalPathParams: types.CanonicalPathParams{
			ContributionType: string(plan.OutputType),
		},
		TargetContributionID: "",
	}
}

// NewContinuationJob is the execute -> continuation transition: the
// derived job re-enters the contribution identified by
// targetContributionID, producing its next chunk. Carried: the full
// execute payload. Set: TargetContributionID, and ChunkIndex advances
// so the new chunk lands beside the previous one instead of colliding
// with it. A continuation may itself be continued.
func NewContinuationJob(base *types.Job, targetContributionID string) (*types.Job, error) {
	if (base.Kind != types.JobKindExecute && base.Kind != types.JobKindContinuation) || base.Execute == nil {
		return nil, &types.InvariantError{Invariant: fmt.Sprintf("continuation derived from %s job %s", base.Kind, base.ID)}
	}
	if targetContributionID == "" {
		return nil, &types.InvariantError{Invariant: "continuation without target contribution id"}
	}

	payload := *base.Execute
	payload.DocumentRelationships = base.Execute.DocumentRelationships.Clone()
	payload.TargetContributionID = targetContributionID
	payload.ChunkIndex = base.Execute.ChunkIndex + 1

	now := time.Now().UTC()
	return &types.Job{
		ID:        uuid.NewString(),
		SessionID: base.SessionID,
		StageSlug: base.StageSlug,
		Kind:      types.JobKindContinuation,
		Status:    types.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Execute:   &payload,
	}, nil
}

func newExecuteJob(parent *types.Job, payload types.ExecutePayload) *types.Job {
	now := time.Now().UTC()
	return &types.Job{
		ID:        uuid.NewString(),
		SessionID: parent.SessionID,
		StageSlug: payload.StageSlug,
		Kind:      types.JobKindExecute,
		Status:    types.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Execute:   &payload,
	}
}
