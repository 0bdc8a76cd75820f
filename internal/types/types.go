// Package types defines the shared contracts of the dialectic worker
// pipeline: source documents, canonical path parameters, job payloads,
// and the provider adapter surface. Everything that crosses a package
// boundary lives here so the planner, processor, isolator, and engine
// agree on one shape per concept.
package types

import (
	"time"
)

// ContributionType labels the role of an artifact within a dialectic
// stage sequence.
type ContributionType string

const (
	ContributionThesis      ContributionType = "thesis"
	ContributionAntithesis  ContributionType = "antithesis"
	ContributionSynthesis   ContributionType = "synthesis"
	ContributionParenthesis ContributionType = "parenthesis"
	ContributionParalysis   ContributionType = "paralysis"
)

// FileType discriminates the filename grammar used when persisting an
// artifact. The set is closed: the path constructor rejects anything
// not listed here.
type FileType string

const (
	FileTypeModelContributionMain  FileType = "model_contribution_main"
	FileTypePairwiseSynthesisChunk FileType = "pairwise_synthesis_chunk"
	FileTypeReducedSynthesis       FileType = "reduced_synthesis"
	FileTypeSeedPrompt             FileType = "seed_prompt"
	FileTypeRawProviderResponse    FileType = "raw_provider_response"
)

// SourceDocument is a prior contribution consumed as input to a stage.
// Immutable once created.
type SourceDocument struct {
	ID               string                `json:"id"`
	ContributionType ContributionType      `json:"contribution_type"`
	ModelName        string                `json:"model_name"`
	ModelSlug        string                `json:"model_slug"`
	Relationships    DocumentRelationships `json:"document_relationships,omitempty"`
	ContentRef       string                `json:"content_ref"`
}

// CanonicalPathParams is the formal naming contract from which a
// storage path is derived. SourceModelSlugs, when present, is always
// deduplicated and sorted ascending; callers must never rely on input
// order surviving.
type CanonicalPathParams struct {
	ContributionType      string   `json:"contribution_type"`
	SourceModelSlugs      []string `json:"source_model_slugs,omitempty"`
	SourceAnchorType      string   `json:"source_anchor_type,omitempty"`
	SourceAnchorModelSlug string   `json:"source_anchor_model_slug,omitempty"`
	PairedModelSlug       string   `json:"paired_model_slug,omitempty"`
}

// PathContext is the full input to the path constructor: the canonical
// params plus the producing model, the file type, and the session
// coordinates that form the directory portion of the path.
type PathContext struct {
	CanonicalPathParams

	FileType   FileType `json:"file_type"`
	ModelSlug  string   `json:"model_slug"`
	ProjectID  string   `json:"project_id"`
	SessionID  string   `json:"session_id"`
	Iteration  int      `json:"iteration"`
	StageSlug  string   `json:"stage_slug"`
	ChunkIndex int      `json:"chunk_index"`
}

// JobKind identifies the node of the job state machine a payload
// belongs to. Continuations are their own kind: the processor
// distinguishes a fresh execute job from a continuation by kind, never
// by whether TargetContributionID happens to be set.
type JobKind string

const (
	JobKindPlan         JobKind = "plan"
	JobKindExecute      JobKind = "execute"
	JobKindContinuation JobKind = "execute_continuation"
)

// JobStatus is the queue-visible lifecycle of a job row.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job is one unit of pipeline work. Exactly one of Plan or Execute is
// set, matching Kind.
type Job struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	StageSlug string    `json:"stage_slug"`
	Kind      JobKind   `json:"kind"`
	Status    JobStatus `json:"status"`
	Attempt   int       `json:"attempt"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	LastError string    `json:"last_error,omitempty"`

	Plan    *PlanPayload    `json:"plan,omitempty"`
	Execute *ExecutePayload `json:"execute,omitempty"`
}

// PlanPayload is the payload of a plan job: which stage to plan, with
// which strategy, producing which output type.
//
// TargetContributionID should never be set on a plan payload, but a
// buggy or stale producer may carry one; the processor clears it when
// deriving simple execute payloads rather than trusting the input.
type PlanPayload struct {
	ProjectID  string           `json:"project_id"`
	SessionID  string           `json:"session_id"`
	StageSlug  string           `json:"stage_slug"`
	Iteration  int              `json:"iteration"`
	Strategy   string           `json:"strategy,omitempty"`
	OutputType ContributionType `json:"output_type"`

	// ModelSlug names the producing model for simple stages planned
	// without a strategy; strategy planners derive it per job instead.
	ModelSlug string `json:"model_slug,omitempty"`

	TargetContributionID string `json:"target_contribution_id,omitempty"`
}

// ExecutePayload is the payload of an execute or continuation job.
// Filenames are always derived from CanonicalPathParams; there is no
// pass-through filename field in this contract.
type ExecutePayload struct {
	ProjectID  string           `json:"project_id" validate:"required"`
	SessionID  string           `json:"session_id" validate:"required"`
	StageSlug  string           `json:"stage_slug" validate:"required"`
	Iteration  int              `json:"iteration" validate:"gte=0"`
	ModelSlug  string           `json:"model_slug" validate:"required"`
	OutputType ContributionType `json:"output_type" validate:"required"`

	CanonicalPathParams   CanonicalPathParams   `json:"canonical_path_params"`
	DocumentRelationships DocumentRelationships `json:"document_relationships,omitempty"`

	AnchorDocumentID string `json:"anchor_document_id,omitempty"`
	PairedDocumentID string `json:"paired_document_id,omitempty"`
	ChunkIndex       int    `json:"chunk_index"`

	// TargetContributionID is set only on continuation jobs re-entering
	// an in-progress contribution. A simple plan to execute transition
	// must leave it empty.
	TargetContributionID string `json:"target_contribution_id,omitempty"`
}

// FinishReason is the normalized vocabulary for why a provider stopped
// generating.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishLength    FinishReason = "length"
	FinishToolCalls FinishReason = "tool_calls"
	FinishUnknown   FinishReason = "unknown"
)

// TokenUsage accumulates provider-reported token counts. Prompt and
// completion counts are summed independently across continuation
// calls; Total is always their sum.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add folds another usage report into this one.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
}

// ModelConfig describes one model's provider identity and token
// limits. ContextWindowTokens bounds the full assembled input;
// ProviderMaxInputTokens, when set, is a stricter provider-side cap.
type ModelConfig struct {
	Provider               string `json:"provider"`
	APIIdentifier          string `json:"api_identifier"`
	ContextWindowTokens    int    `json:"context_window_tokens"`
	ProviderMaxInputTokens int    `json:"provider_max_input_tokens,omitempty"`
	MaxOutputTokens        int    `json:"max_output_tokens,omitempty"`
}

// InputTokenBudget returns the effective input cap for this model.
func (m ModelConfig) InputTokenBudget() int {
	if m.ProviderMaxInputTokens > 0 && m.ProviderMaxInputTokens < m.ContextWindowTokens {
		return m.ProviderMaxInputTokens
	}
	return m.ContextWindowTokens
}

// ChatMessage is one turn of provider-bound conversation history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AdapterRequest is the provider-independent request shape. Adapters
// merge History and Message without duplicating turns and map the
// result onto their provider's wire format.
type AdapterRequest struct {
	SystemPrompt    string        `json:"system_prompt,omitempty"`
	History         []ChatMessage `json:"history,omitempty"`
	Message         string        `json:"message"`
	MaxOutputTokens int           `json:"max_output_tokens,omitempty"`
}

// AdapterResponse is the normalized provider result.
type AdapterResponse struct {
	Content      string       `json:"content"`
	FinishReason FinishReason `json:"finish_reason"`
	Usage        TokenUsage   `json:"usage"`
	Model        string       `json:"model"`
}

// ProviderModelInfo describes one model a provider exposes.
type ProviderModelInfo struct {
	ID                  string `json:"id"`
	DisplayName         string `json:"display_name,omitempty"`
	ContextWindowTokens int    `json:"context_window_tokens,omitempty"`
}

// Contribution is the persisted result of a completed execute job.
type Contribution struct {
	ID                string           `json:"id"`
	SessionID         string           `json:"session_id"`
	StageSlug         string           `json:"stage_slug"`
	ModelSlug         string           `json:"model_slug"`
	ContributionType  ContributionType `json:"contribution_type"`
	StoragePath       string           `json:"storage_path"`
	Usage             TokenUsage       `json:"usage"`
	FinishReason      FinishReason     `json:"finish_reason"`
	Truncated         bool             `json:"truncated"`
	ContinuationCalls int              `json:"continuation_calls"`
	CreatedAt         time.Time        `json:"created_at"`
}
