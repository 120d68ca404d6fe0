// Package review records accept/reject decisions on extracted terms and
// dictionary suggestions.
package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cognicore/termex/pkg/termex/internalerr"
	"github.com/cognicore/termex/pkg/termex/store"
)

// Service applies manual review decisions.
type Service struct {
	Store store.Store

	// Now defaults to time.Now.
	Now func() time.Time
}

// Accept marks term of run as accepted.
func (s *Service) Accept(ctx context.Context, runID, term string, kind store.Kind) error {
	return s.decide(ctx, runID, term, kind, store.StatusAccepted)
}

// Reject marks term of run as rejected.
func (s *Service) Reject(ctx context.Context, runID, term string, kind store.Kind) error {
	return s.decide(ctx, runID, term, kind, store.StatusRejected)
}

func (s *Service) decide(ctx context.Context, runID, term string, kind store.Kind, status store.Status) error {
	if s.Store == nil {
		return errors.New("review: nil store")
	}
	if err := store.ValidateKind(kind); err != nil {
		return err
	}
	var err error
	switch kind {
	case store.KindCandidate:
		err = s.Store.SetCandidateStatus(ctx, runID, term, status)
	case store.KindDictionary:
		err = s.Store.SetDictionaryStatus(ctx, runID, term, status)
	}
	if err != nil {
		return err
	}
	return s.Store.Decide(ctx, store.Decision{
		Term:      term,
		Kind:      kind,
		Status:    status,
		RunID:     runID,
		DecidedAt: s.now(),
	})
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ExcludedTerms returns every candidate term that has already been accepted
// or rejected, for use as config.Extraction.ExcludedTerms.
func ExcludedTerms(ctx context.Context, st store.Store) ([]string, error) {
	decisions, err := st.Decisions(ctx, store.KindCandidate, "")
	if err != nil {
		return nil, err
	}
	terms := make([]string, 0, len(decisions))
	for _, d := range decisions {
		if d.Status != store.StatusPending {
			terms = append(terms, d.Term)
		}
	}
	return terms, nil
}

// Reviewer optionally performs an extra approval step (human or LLM).
type Reviewer interface {
	ApproveCandidate(ctx context.Context, c store.Candidate) (bool, error)
	ApproveSuggestion(ctx context.Context, c store.DictionaryCandidate) (bool, error)
}

// Thresholds gate which pending rows are reviewed automatically.
type Thresholds struct {
	MinRelevance  decimal.Decimal
	MinConfidence decimal.Decimal
}

// DefaultThresholds returns the thresholds used when none are set.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinRelevance:  decimal.RequireFromString("0.5"),
		MinConfidence: decimal.RequireFromString("0.7"),
	}
}

// Report counts what an automatic review did.
type Report struct {
	Accepted int
	Rejected int
	Skipped  int
}

// AutoReviewer decides pending rows of a run that clear the thresholds.
// Rows below the thresholds stay pending.
type AutoReviewer struct {
	Store      store.Store
	Reviewer   Reviewer // optional; without it every eligible row is accepted
	Thresholds Thresholds
	Now        func() time.Time
}

// Run reviews the pending candidates and dictionary suggestions of runID.
func (a *AutoReviewer) Run(ctx context.Context, runID string) (Report, error) {
	var rep Report
	if a.Store == nil {
		return rep, errors.New("auto review: nil store")
	}
	th := a.thresholdsOrDefault()
	svc := &Service{Store: a.Store, Now: a.Now}

	cands, err := a.Store.ListCandidates(ctx, runID, store.StatusPending)
	if err != nil {
		return rep, err
	}
	for _, c := range cands {
		if c.RelevanceScore.LessThan(th.MinRelevance) {
			rep.Skipped++
			continue
		}
		ok := true
		if a.Reviewer != nil {
			if ok, err = a.Reviewer.ApproveCandidate(ctx, c); err != nil {
				return rep, fmt.Errorf("review candidate %q: %w", c.Term, err)
			}
		}
		if err := a.apply(ctx, svc, runID, c.Term, store.KindCandidate, ok, &rep); err != nil {
			return rep, err
		}
	}

	suggs, err := a.Store.ListDictionaryCandidates(ctx, runID, store.StatusPending)
	if err != nil {
		return rep, err
	}
	for _, c := range suggs {
		if c.Confidence.LessThan(th.MinConfidence) {
			rep.Skipped++
			continue
		}
		ok := true
		if a.Reviewer != nil {
			if ok, err = a.Reviewer.ApproveSuggestion(ctx, c); err != nil {
				return rep, fmt.Errorf("review suggestion %q: %w", c.SuggestedTerm, err)
			}
		}
		if err := a.apply(ctx, svc, runID, c.SuggestedTerm, store.KindDictionary, ok, &rep); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

func (a *AutoReviewer) apply(ctx context.Context, svc *Service, runID, term string, kind store.Kind, approve bool, rep *Report) error {
	if approve {
		if err := svc.Accept(ctx, runID, term, kind); err != nil {
			return err
		}
		rep.Accepted++
		return nil
	}
	if err := svc.Reject(ctx, runID, term, kind); err != nil {
		return err
	}
	rep.Rejected++
	return nil
}

func (a *AutoReviewer) thresholdsOrDefault() Thresholds {
	if a.Thresholds.MinRelevance.IsZero() && a.Thresholds.MinConfidence.IsZero() {
		return DefaultThresholds()
	}
	return a.Thresholds
}

// AcceptedDictionary returns the accepted dictionary suggestions, sorted by
// term, for export as user dictionary entries.
func AcceptedDictionary(ctx context.Context, st store.Store) ([]string, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: nil store", internalerr.ErrInvalidInput)
	}
	decisions, err := st.Decisions(ctx, store.KindDictionary, store.StatusAccepted)
	if err != nil {
		return nil, err
	}
	terms := make([]string, 0, len(decisions))
	for _, d := range decisions {
		terms = append(terms, d.Term)
	}
	return terms, nil
}
