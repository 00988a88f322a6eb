package runs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/clinica/import-service/internal/types"
)

// MemoryStore keeps runs in process memory. Used by the server when no
// database is configured, and by tests.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*types.ImportRun
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*types.ImportRun)}
}

func (s *MemoryStore) Create(_ context.Context, run *types.ImportRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *MemoryStore) update(id string, fn func(r *types.ImportRun)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return ErrNotFound
	}
	fn(r)
	return nil
}

func (s *MemoryStore) Start(_ context.Context, id string, totalRows int) error {
	return s.update(id, func(r *types.ImportRun) {
		r.Status = types.RunStatusRunning
		r.TotalRows = totalRows
		r.StartedAt = types.TimePtr(time.Now())
	})
}

func (s *MemoryStore) UpdateProgress(_ context.Context, id string, progress int) error {
	return s.update(id, func(r *types.ImportRun) {
		if progress > r.Progress {
			r.Progress = progress
		}
	})
}

func (s *MemoryStore) Complete(_ context.Context, id string, result *types.BatchResult) error {
	return s.update(id, func(r *types.ImportRun) {
		r.Status = types.RunStatusCompleted
		r.Progress = 100
		r.Result = cloneResult(result)
		r.CompletedAt = types.TimePtr(time.Now())
	})
}

func (s *MemoryStore) Fail(_ context.Context, id string, message string, result *types.BatchResult) error {
	return s.update(id, func(r *types.ImportRun) {
		r.Status = types.RunStatusFailed
		r.Error = types.StringPtr(message)
		r.Result = cloneResult(result)
		r.CompletedAt = types.TimePtr(time.Now())
	})
}

func (s *MemoryStore) Get(_ context.Context, id string) (*types.ImportRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	cp.Result = cloneResult(r.Result)
	return &cp, nil
}

// List returns runs newest first
func (s *MemoryStore) List(_ context.Context, opts ListOptions) ([]types.ImportRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.ImportRun, 0, len(s.runs))
	for _, r := range s.runs {
		if opts.Entity != "" && r.Entity != opts.Entity {
			continue
		}
		if opts.Status != "" && r.Status != opts.Status {
			continue
		}
		cp := *r
		cp.Result = cloneResult(r.Result)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if opts.Offset >= len(out) {
		return []types.ImportRun{}, nil
	}
	out = out[opts.Offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkInterrupted(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, r := range s.runs {
		if IsFinished(r.Status) || !r.CreatedAt.Before(cutoff) {
			continue
		}
		r.Status = types.RunStatusInterrupted
		r.CompletedAt = types.TimePtr(time.Now())
		n++
	}
	return n, nil
}

func (s *MemoryStore) DeleteFinishedBefore(_ context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, r := range s.runs {
		if IsFinished(r.Status) && r.CreatedAt.Before(cutoff) {
			ids = append(ids, id)
			delete(s.runs, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func cloneResult(r *types.BatchResult) *types.BatchResult {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Errors = append(make([]string, 0, len(r.Errors)), r.Errors...)
	if r.Notes != nil {
		cp.Notes = append([]string(nil), r.Notes...)
	}
	return &cp
}
