package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cognicore/termex/pkg/termex/candidate"
	"github.com/cognicore/termex/pkg/termex/dictgap"
	"github.com/cognicore/termex/pkg/termex/internalerr"
	"github.com/cognicore/termex/pkg/termex/store"
)

type decisionKey struct {
	term string
	kind store.Kind
}

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu         sync.RWMutex
	runs       map[string]store.Run
	candidates map[string][]store.Candidate
	dictionary map[string][]store.DictionaryCandidate
	decisions  map[decisionKey]store.Decision
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		runs:       make(map[string]store.Run),
		candidates: make(map[string][]store.Candidate),
		dictionary: make(map[string][]store.DictionaryCandidate),
		decisions:  make(map[decisionKey]store.Decision),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// CreateRun implements store.Store.
func (s *Store) CreateRun(ctx context.Context, r store.Run) error {
	if err := store.ValidateRun(r); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[r.ID]; ok {
		return fmt.Errorf("%w: run %s", internalerr.ErrDuplicate, r.ID)
	}
	r.FinishedAt = time.Time{}
	s.runs[r.ID] = normalizeRun(r)
	return nil
}

// FinishRun implements store.Store.
func (s *Store) FinishRun(ctx context.Context, r store.Run) error {
	if err := store.ValidateRun(r); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.runs[r.ID]
	if !ok {
		return fmt.Errorf("%w: run %s", internalerr.ErrNotFound, r.ID)
	}
	existing.Status = r.Status
	existing.FinishedAt = r.FinishedAt
	existing.TotalDocuments = r.TotalDocuments
	existing.Candidates = r.Candidates
	existing.DictionaryCandidates = r.DictionaryCandidates
	existing.Error = r.Error
	s.runs[r.ID] = normalizeRun(existing)
	return nil
}

// GetRun implements store.Store.
func (s *Store) GetRun(ctx context.Context, id string) (store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return store.Run{}, fmt.Errorf("%w: run %s", internalerr.ErrNotFound, id)
	}
	return r, nil
}

// ListRuns implements store.Store.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]store.Run, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].ID > runs[j].ID
	})
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// SaveCandidates implements store.Store.
func (s *Store) SaveCandidates(ctx context.Context, runID string, cands []candidate.Stat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[runID]; !ok {
		return fmt.Errorf("%w: run %s", internalerr.ErrNotFound, runID)
	}
	rows := make([]store.Candidate, 0, len(cands))
	seen := make(map[string]bool, len(cands))
	for _, c := range cands {
		if seen[c.Term] {
			return fmt.Errorf("%w: candidate %q in run %s", internalerr.ErrDuplicate, c.Term, runID)
		}
		seen[c.Term] = true
		c.Components = append([]string(nil), c.Components...)
		rows = append(rows, store.Candidate{RunID: runID, Stat: c, Status: store.StatusPending})
	}
	s.candidates[runID] = rows
	return nil
}

// ListCandidates implements store.Store.
func (s *Store) ListCandidates(ctx context.Context, runID string, status store.Status) ([]store.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.runs[runID]; !ok {
		return nil, fmt.Errorf("%w: run %s", internalerr.ErrNotFound, runID)
	}
	out := []store.Candidate{}
	for _, c := range s.candidates[runID] {
		if status == "" || c.Status == status {
			c.Components = append([]string(nil), c.Components...)
			out = append(out, c)
		}
	}
	return out, nil
}

// SetCandidateStatus implements store.Store.
func (s *Store) SetCandidateStatus(ctx context.Context, runID, term string, status store.Status) error {
	if err := store.ValidateStatus(status); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.candidates[runID]
	for i := range rows {
		if rows[i].Term == term {
			rows[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("%w: candidate %q in run %s", internalerr.ErrNotFound, term, runID)
}

// SaveDictionaryCandidates implements store.Store.
func (s *Store) SaveDictionaryCandidates(ctx context.Context, runID string, cands []dictgap.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[runID]; !ok {
		return fmt.Errorf("%w: run %s", internalerr.ErrNotFound, runID)
	}
	rows := make([]store.DictionaryCandidate, 0, len(cands))
	seen := make(map[string]bool, len(cands))
	for _, c := range cands {
		if seen[c.SuggestedTerm] {
			return fmt.Errorf("%w: dictionary candidate %q in run %s", internalerr.ErrDuplicate, c.SuggestedTerm, runID)
		}
		seen[c.SuggestedTerm] = true
		c.Reasons = append([]string(nil), c.Reasons...)
		rows = append(rows, store.DictionaryCandidate{RunID: runID, Candidate: c, Status: store.StatusPending})
	}
	s.dictionary[runID] = rows
	return nil
}

// ListDictionaryCandidates implements store.Store.
func (s *Store) ListDictionaryCandidates(ctx context.Context, runID string, status store.Status) ([]store.DictionaryCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.runs[runID]; !ok {
		return nil, fmt.Errorf("%w: run %s", internalerr.ErrNotFound, runID)
	}
	out := []store.DictionaryCandidate{}
	for _, c := range s.dictionary[runID] {
		if status == "" || c.Status == status {
			c.Reasons = append([]string(nil), c.Reasons...)
			out = append(out, c)
		}
	}
	return out, nil
}

// SetDictionaryStatus implements store.Store.
func (s *Store) SetDictionaryStatus(ctx context.Context, runID, suggestedTerm string, status store.Status) error {
	if err := store.ValidateStatus(status); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.dictionary[runID]
	for i := range rows {
		if rows[i].SuggestedTerm == suggestedTerm {
			rows[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("%w: dictionary candidate %q in run %s", internalerr.ErrNotFound, suggestedTerm, runID)
}

// Decide implements store.Store.
func (s *Store) Decide(ctx context.Context, d store.Decision) error {
	if d.Term == "" {
		return fmt.Errorf("%w: decision term is empty", internalerr.ErrInvalidInput)
	}
	if err := store.ValidateKind(d.Kind); err != nil {
		return err
	}
	if err := store.ValidateStatus(d.Status); err != nil {
		return err
	}
	if d.DecidedAt.IsZero() {
		d.DecidedAt = time.Now()
	}
	d.DecidedAt = d.DecidedAt.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions[decisionKey{term: d.Term, kind: d.Kind}] = d
	return nil
}

// Decisions implements store.Store.
func (s *Store) Decisions(ctx context.Context, kind store.Kind, status store.Status) ([]store.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []store.Decision{}
	for _, d := range s.decisions {
		if (kind == "" || d.Kind == kind) && (status == "" || d.Status == status) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Term != out[j].Term {
			return out[i].Term < out[j].Term
		}
		return out[i].Kind < out[j].Kind
	})
	return out, nil
}

// normalizeRun matches the time precision and zone of the SQLite store.
func normalizeRun(r store.Run) store.Run {
	if !r.StartedAt.IsZero() {
		r.StartedAt = r.StartedAt.UTC()
	}
	if !r.FinishedAt.IsZero() {
		r.FinishedAt = r.FinishedAt.UTC()
	}
	return r
}
