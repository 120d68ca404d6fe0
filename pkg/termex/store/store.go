package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cognicore/termex/pkg/termex/candidate"
	"github.com/cognicore/termex/pkg/termex/dictgap"
	"github.com/cognicore/termex/pkg/termex/internalerr"
)

// Store persists extraction runs, their candidates and review decisions.
type Store interface {
	Close() error

	// Runs
	CreateRun(ctx context.Context, r Run) error
	FinishRun(ctx context.Context, r Run) error
	GetRun(ctx context.Context, id string) (Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// Candidates of a run. An empty status lists every row.
	SaveCandidates(ctx context.Context, runID string, cands []candidate.Stat) error
	ListCandidates(ctx context.Context, runID string, status Status) ([]Candidate, error)
	SetCandidateStatus(ctx context.Context, runID, term string, status Status) error

	// Dictionary suggestions of a run.
	SaveDictionaryCandidates(ctx context.Context, runID string, cands []dictgap.Candidate) error
	ListDictionaryCandidates(ctx context.Context, runID string, status Status) ([]DictionaryCandidate, error)
	SetDictionaryStatus(ctx context.Context, runID, suggestedTerm string, status Status) error

	// Review decisions that outlive a single run.
	Decide(ctx context.Context, d Decision) error
	Decisions(ctx context.Context, kind Kind, status Status) ([]Decision, error)
}

// RunStatus is the lifecycle state of an extraction run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is the bookkeeping record of one extraction batch.
type Run struct {
	ID                   string
	Status               RunStatus
	StartedAt            time.Time
	FinishedAt           time.Time
	TotalDocuments       int
	Candidates           int
	DictionaryCandidates int
	Error                string
}

// Status is the review state of a candidate or suggestion.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Kind tells candidate terms and dictionary suggestions apart in decisions.
type Kind string

const (
	KindCandidate  Kind = "candidate"
	KindDictionary Kind = "dictionary"
)

// Candidate is a stored candidate term of a run.
type Candidate struct {
	RunID string
	candidate.Stat
	Status Status
}

// DictionaryCandidate is a stored dictionary suggestion of a run.
type DictionaryCandidate struct {
	RunID string
	dictgap.Candidate
	Status Status
}

// Decision records the review outcome of a term.
type Decision struct {
	Term      string
	Kind      Kind
	Status    Status
	RunID     string
	DecidedAt time.Time
}

// ValidateStatus checks that s is a known review status.
func ValidateStatus(s Status) error {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return nil
	}
	return fmt.Errorf("%w: unknown status %q", internalerr.ErrInvalidInput, s)
}

// ValidateKind checks that k is a known decision kind.
func ValidateKind(k Kind) error {
	switch k {
	case KindCandidate, KindDictionary:
		return nil
	}
	return fmt.Errorf("%w: unknown kind %q", internalerr.ErrInvalidInput, k)
}

// ValidateRun checks the fields every stored run needs.
func ValidateRun(r Run) error {
	if r.ID == "" {
		return fmt.Errorf("%w: run id is empty", internalerr.ErrInvalidInput)
	}
	switch r.Status {
	case RunRunning, RunCompleted, RunFailed:
		return nil
	}
	return fmt.Errorf("%w: unknown run status %q", internalerr.ErrInvalidInput, r.Status)
}
