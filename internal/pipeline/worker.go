package pipeline

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"dialectic/internal/logging"
	"dialectic/internal/naming"
	"dialectic/internal/types"
)

// AdapterResolver maps a producing model slug to the adapter and model
// configuration that serve it.
type AdapterResolver func(modelSlug string) (types.ModelAdapter, types.ModelConfig, error)

// Worker drains the job queue: plan jobs fan out into execute jobs,
// execute and continuation jobs run the provider loop, persist their
// contribution, and register it as a source document for the next
// stage.
type Worker struct {
	queue     types.JobQueue
	processor *Processor
	isolator  *Isolator
	store     types.ContributionStore
	saver     types.DocumentSaver
	adapters  AdapterResolver
}

// NewWorker assembles a worker from its collaborators.
func NewWorker(queue types.JobQueue, processor *Processor, isolator *Isolator, store types.ContributionStore, saver types.DocumentSaver, adapters AdapterResolver) *Worker {
	return &Worker{
		queue:     queue,
		processor: processor,
		isolator:  isolator,
		store:     store,
		saver:     saver,
		adapters:  adapters,
	}
}

// Run processes jobs until the queue is drained or ctx is cancelled.
// At most concurrency jobs run at once. A failed job is marked failed
// on the queue and does not stop the run; enqueue and dequeue errors
// do.
func (w *Worker) Run(ctx context.Context, concurrency int) error {
	if concurrency < 1 {
		concurrency = 1
	}

	for {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)

		dispatched := 0
		for {
			job, err := w.queue.Dequeue(gctx)
			if err != nil {
				_ = g.Wait()
				return fmt.Errorf("dequeue: %w", err)
			}
			if job == nil {
				break
			}
			dispatched++
			g.Go(func() error {
				return w.handle(gctx, job)
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}
		// Plan jobs enqueue children after the batch was drained; loop
		// until a full pass dispatches nothing.
		if dispatched == 0 {
			return nil
		}
	}
}

func (w *Worker) handle(ctx context.Context, job *types.Job) error {
	var err error
	switch job.Kind {
	case types.JobKindPlan:
		err = w.handlePlan(ctx, job)
	case types.JobKindExecute, types.JobKindContinuation:
		err = w.handleExecute(ctx, job)
	default:
		err = &types.InvariantError{Invariant: fmt.Sprintf("job %s has unknown kind %s", job.ID, job.Kind)}
	}

	if err != nil {
		logging.PipelineError("job %s failed: %v", job.ID, err)
		if failErr := w.queue.Fail(ctx, job.ID, err); failErr != nil {
			return fmt.Errorf("marking job %s failed: %w", job.ID, failErr)
		}
		return nil
	}
	return w.queue.Complete(ctx, job.ID)
}

func (w *Worker) handlePlan(ctx context.Context, job *types.Job) error {
	children, err := w.processor.Process(ctx, job)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := w.queue.Enqueue(ctx, child); err != nil {
			return fmt.Errorf("enqueueing child of plan %s: %w", job.ID, err)
		}
	}
	return nil
}

func (w *Worker) handleExecute(ctx context.Context, job *types.Job) error {
	task, err := w.isolator.Prepare(ctx, job)
	if err != nil {
		return err
	}

	adapter, model, err := w.adapters(task.Payload.ModelSlug)
	if err != nil {
		return fmt.Errorf("job %s: resolving model %s: %w", job.ID, task.Payload.ModelSlug, err)
	}

	seed, err := w.seedRequest(ctx, task)
	if err != nil {
		return err
	}

	engine := NewEngine(adapter, w.store, model)
	result, err := engine.ExecuteModelCallAndSave(ctx, task, seed)
	if err != nil {
		return err
	}

	// A truncated chunk re-enters as a continuation job; only a
	// naturally finished contribution becomes a source document for
	// downstream stages.
	if result.Contribution.Truncated {
		if task.Payload.ChunkIndex >= MaxContinuations {
			return fmt.Errorf("job %s: contribution %s still unfinished after %d chunks",
				job.ID, result.Contribution.ID, task.Payload.ChunkIndex+1)
		}
		cont, err := NewContinuationJob(job, result.Contribution.ID)
		if err != nil {
			return err
		}
		if err := w.queue.Enqueue(ctx, cont); err != nil {
			return fmt.Errorf("enqueueing continuation of %s: %w", job.ID, err)
		}
		logging.Pipeline("job %s truncated at chunk %d, continuing as job %s",
			job.ID, task.Payload.ChunkIndex, cont.ID)
		return nil
	}

	doc := types.SourceDocument{
		ID:               result.Contribution.ID,
		ContributionType: task.Payload.OutputType,
		ModelName:        task.Payload.ModelSlug,
		ModelSlug:        task.Payload.ModelSlug,
		Relationships:    task.Payload.DocumentRelationships.Clone(),
		ContentRef:       result.StoragePath,
	}
	if err := w.saver.SaveDocument(ctx, task.Payload.SessionID, task.Payload.StageSlug, task.Payload.Iteration, doc); err != nil {
		return fmt.Errorf("registering contribution %s: %w", result.Contribution.ID, err)
	}
	return nil
}

// seedRequest assembles the opening request for a prepared task. Each
// resolved source document contributes one user turn carrying its
// content; the final message states the production instruction. A
// continuation additionally replays the previous chunk's output as
// assistant history and asks the model to resume.
func (w *Worker) seedRequest(ctx context.Context, task *PreparedTask) (types.AdapterRequest, error) {
	var req types.AdapterRequest
	req.SystemPrompt = stageSystemPrompt(task.Payload.OutputType)

	for _, doc := range []*types.SourceDocument{task.Anchor, task.Paired} {
		if doc == nil {
			continue
		}
		content, err := w.store.Read(ctx, doc.ContentRef)
		if err != nil {
			return req, fmt.Errorf("job %s: reading source document %s: %w", task.Job.ID, doc.ID, err)
		}
		req.History = append(req.History, types.ChatMessage{
			Role:    "user",
			Content: fmt.Sprintf("%s contribution from %s:\n\n%s", doc.ContributionType, doc.ModelName, content),
		})
	}

	if task.Job.Kind == types.JobKindContinuation {
		prior := task.PathContext
		prior.ChunkIndex--
		priorPath, err := naming.ConstructStoragePath(prior)
		if err != nil {
			return req, fmt.Errorf("job %s: deriving previous chunk path: %w", task.Job.ID, err)
		}
		partial, err := w.store.Read(ctx, priorPath)
		if err != nil {
			return req, fmt.Errorf("job %s: reading previous chunk %s: %w", task.Job.ID, priorPath, err)
		}
		req.History = append(req.History,
			types.ChatMessage{Role: "user", Content: productionInstruction(task)},
			types.ChatMessage{Role: "assistant", Content: string(partial)},
		)
		req.Message = continuePrompt
		return req, nil
	}

	req.Message = productionInstruction(task)
	return req, nil
}

func stageSystemPrompt(output types.ContributionType) string {
	switch output {
	case types.ContributionThesis:
		return "You are drafting an initial position paper. Argue your own view fully."
	case types.ContributionAntithesis:
		return "You are a critical reviewer. Challenge the supplied position on its merits."
	case types.ContributionSynthesis:
		return "You reconcile opposing positions into a single coherent account."
	default:
		return "You are contributing one stage of a structured multi-model deliberation."
	}
}

func productionInstruction(task *PreparedTask) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Produce the %s for stage %q.", task.Payload.OutputType, task.Payload.StageSlug)
	if task.Paired != nil {
		fmt.Fprintf(&b, " Weigh %s's material against %s's and resolve their disagreements explicitly.",
			task.Anchor.ModelName, task.Paired.ModelName)
	}
	return b.String()
}
