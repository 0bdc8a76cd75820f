package types

import "context"

// ModelAdapter is the uniform provider contract. Every concrete
// provider, including the no-network dummy, implements exactly this
// surface and passes the shared behavioral contract suite.
type ModelAdapter interface {
	// SendMessage sends the merged history plus new message to the
	// provider identified by modelID. It must fail with a critical
	// error, not truncate, when the assembled input exceeds the
	// model's token budget.
	SendMessage(ctx context.Context, req AdapterRequest, modelID string) (*AdapterResponse, error)

	// ListModels enumerates the models this provider exposes.
	ListModels(ctx context.Context) ([]ProviderModelInfo, error)
}

// ContributionStore persists artifact content at derived paths. A
// write to an existing path is a naming defect and must be rejected,
// never silently overwritten.
type ContributionStore interface {
	Write(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// JobQueue is the persistence boundary for job rows. Payloads cross it
// only in the typed shapes defined in this package.
type JobQueue interface {
	Enqueue(ctx context.Context, job *Job) error
	Dequeue(ctx context.Context) (*Job, error)
	Complete(ctx context.Context, jobID string) error
	Fail(ctx context.Context, jobID string, cause error) error
}

// DocumentSaver registers completed contributions as source documents
// so downstream stages can plan over them.
type DocumentSaver interface {
	SaveDocument(ctx context.Context, sessionID, stageSlug string, iteration int, doc SourceDocument) error
}

// DocumentLoader resolves document ids to full source documents; the
// task isolator uses it to materialize anchor and paired context.
type DocumentLoader interface {
	LoadDocument(ctx context.Context, id string) (*SourceDocument, error)
	LoadStageDocuments(ctx context.Context, sessionID, stageSlug string, iteration int) ([]SourceDocument, error)
}
