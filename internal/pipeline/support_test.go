package pipeline

import (
	"context"
	"fmt"
	"sync"

	"dialectic/internal/types"
)

// memStore is an in-memory ContributionStore enforcing write-once
// paths, matching the collision contract of the real store.
type memStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{files: make(map[string][]byte)}
}

func (s *memStore) Write(ctx context.Context, path string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[path]; ok {
		return &types.CollisionError{Path: path}
	}
	s.files[path] = append([]byte(nil), content...)
	return nil
}

func (s *memStore) Read(ctx context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.files[path]
	if !ok {
		return nil, fmt.Errorf("no content at %s", path)
	}
	return append([]byte(nil), content...), nil
}

func (s *memStore) Exists(ctx context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[path]
	return ok, nil
}

// memLoader serves documents from memory. Fixture documents given to
// newMemLoader belong to every stage; documents registered through
// SaveDocument are filtered by their stage coordinates.
type memLoader struct {
	mu       sync.Mutex
	fixtures []types.SourceDocument
	saved    []savedDocument
}

type savedDocument struct {
	sessionID string
	stageSlug string
	iteration int
	doc       types.SourceDocument
}

func newMemLoader(docs ...types.SourceDocument) *memLoader {
	return &memLoader{fixtures: docs}
}

func (l *memLoader) SaveDocument(ctx context.Context, sessionID, stageSlug string, iteration int, doc types.SourceDocument) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.saved = append(l.saved, savedDocument{sessionID, stageSlug, iteration, doc})
	return nil
}

func (l *memLoader) LoadDocument(ctx context.Context, id string) (*types.SourceDocument, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, d := range l.fixtures {
		if d.ID == id {
			return &d, nil
		}
	}
	for _, s := range l.saved {
		if s.doc.ID == id {
			doc := s.doc
			return &doc, nil
		}
	}
	return nil, fmt.Errorf("document %s not found", id)
}

func (l *memLoader) LoadStageDocuments(ctx context.Context, sessionID, stageSlug string, iteration int) ([]types.SourceDocument, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := append([]types.SourceDocument(nil), l.fixtures...)
	for _, s := range l.saved {
		if s.sessionID == sessionID && s.stageSlug == stageSlug && s.iteration == iteration {
			out = append(out, s.doc)
		}
	}
	return out, nil
}

// memQueue is a FIFO in-memory JobQueue recording terminal statuses.
type memQueue struct {
	mu        sync.Mutex
	pending   []*types.Job
	completed []string
	failed    map[string]string
}

func newMemQueue(jobs ...*types.Job) *memQueue {
	return &memQueue{pending: jobs, failed: make(map[string]string)}
}

func (q *memQueue) Enqueue(ctx context.Context, job *types.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, job)
	return nil
}

func (q *memQueue) Dequeue(ctx context.Context) (*types.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, nil
	}
	job := q.pending[0]
	q.pending = q.pending[1:]
	job.Status = types.JobStatusProcessing
	return job, nil
}

func (q *memQueue) Complete(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed = append(q.completed, jobID)
	return nil
}

func (q *memQueue) Fail(ctx context.Context, jobID string, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed[jobID] = cause.Error()
	return nil
}
