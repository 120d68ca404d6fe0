package review

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cognicore/termex/pkg/termex/candidate"
	"github.com/cognicore/termex/pkg/termex/dictgap"
	"github.com/cognicore/termex/pkg/termex/internalerr"
	"github.com/cognicore/termex/pkg/termex/store"
	"github.com/cognicore/termex/pkg/termex/store/memstore"
)

func seed(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()
	if err := st.CreateRun(ctx, store.Run{ID: "run-1", Status: store.RunCompleted, StartedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	err := st.SaveCandidates(ctx, "run-1", []candidate.Stat{
		{Term: "공유주차장", RelevanceScore: decimal.RequireFromString("0.9")},
		{Term: "결제모듈", RelevanceScore: decimal.RequireFromString("0.6")},
		{Term: "이용안내", RelevanceScore: decimal.RequireFromString("0.2")},
	})
	if err != nil {
		t.Fatal(err)
	}
	err = st.SaveDictionaryCandidates(ctx, "run-1", []dictgap.Candidate{
		{OriginalTerm: "배포 일정", SuggestedTerm: "배포일정", Confidence: decimal.RequireFromString("0.91")},
		{OriginalTerm: "오류 로그", SuggestedTerm: "오류로그", Confidence: decimal.RequireFromString("0.4")},
	})
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func TestServiceAcceptReject(t *testing.T) {
	ctx := context.Background()
	st := seed(t)
	svc := &Service{Store: st}

	if err := svc.Accept(ctx, "run-1", "공유주차장", store.KindCandidate); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if err := svc.Reject(ctx, "run-1", "이용안내", store.KindCandidate); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if err := svc.Accept(ctx, "run-1", "배포일정", store.KindDictionary); err != nil {
		t.Fatalf("Accept dictionary: %v", err)
	}

	accepted, err := st.ListCandidates(ctx, "run-1", store.StatusAccepted)
	if err != nil {
		t.Fatal(err)
	}
	if len(accepted) != 1 || accepted[0].Term != "공유주차장" {
		t.Errorf("accepted candidates = %+v", accepted)
	}

	excluded, err := ExcludedTerms(ctx, st)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(excluded, []string{"공유주차장", "이용안내"}) {
		t.Errorf("ExcludedTerms = %v", excluded)
	}

	dict, err := AcceptedDictionary(ctx, st)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(dict, []string{"배포일정"}) {
		t.Errorf("AcceptedDictionary = %v", dict)
	}
}

func TestServiceUnknownTerm(t *testing.T) {
	svc := &Service{Store: seed(t)}
	err := svc.Accept(context.Background(), "run-1", "없는용어", store.KindCandidate)
	if !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	decisions, _ := svc.Store.Decisions(context.Background(), "", "")
	if len(decisions) != 0 {
		t.Errorf("failed review recorded a decision: %+v", decisions)
	}
}

func TestServiceUnknownKind(t *testing.T) {
	svc := &Service{Store: seed(t)}
	if err := svc.Accept(context.Background(), "run-1", "공유주차장", "synonym"); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

type fakeReviewer struct {
	decisions map[string]bool
	err       error
	seen      []string
}

func (f *fakeReviewer) ApproveCandidate(ctx context.Context, c store.Candidate) (bool, error) {
	f.seen = append(f.seen, c.Term)
	return f.decisions[c.Term], f.err
}

func (f *fakeReviewer) ApproveSuggestion(ctx context.Context, c store.DictionaryCandidate) (bool, error) {
	f.seen = append(f.seen, c.SuggestedTerm)
	return f.decisions[c.SuggestedTerm], f.err
}

func TestAutoReviewerNoReviewer(t *testing.T) {
	ctx := context.Background()
	st := seed(t)
	auto := &AutoReviewer{Store: st}

	rep, err := auto.Run(ctx, "run-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Defaults: relevance >= 0.5, confidence >= 0.7.
	if rep != (Report{Accepted: 3, Skipped: 2}) {
		t.Errorf("report = %+v", rep)
	}
	pending, err := st.ListCandidates(ctx, "run-1", store.StatusPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Term != "이용안내" {
		t.Errorf("pending = %+v", pending)
	}
}

func TestAutoReviewerWithReviewer(t *testing.T) {
	ctx := context.Background()
	st := seed(t)
	rev := &fakeReviewer{decisions: map[string]bool{"공유주차장": true, "결제모듈": false, "배포일정": true}}
	auto := &AutoReviewer{
		Store:    st,
		Reviewer: rev,
		Thresholds: Thresholds{
			MinRelevance:  decimal.RequireFromString("0.5"),
			MinConfidence: decimal.RequireFromString("0.3"),
		},
	}

	rep, err := auto.Run(ctx, "run-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep != (Report{Accepted: 2, Rejected: 2, Skipped: 1}) {
		t.Errorf("report = %+v", rep)
	}
	if !reflect.DeepEqual(rev.seen, []string{"공유주차장", "결제모듈", "배포일정", "오류로그"}) {
		t.Errorf("reviewer saw %v", rev.seen)
	}
	rejected, err := st.Decisions(ctx, "", store.StatusRejected)
	if err != nil {
		t.Fatal(err)
	}
	if len(rejected) != 2 {
		t.Errorf("rejected decisions = %+v", rejected)
	}
}

func TestAutoReviewerReviewerError(t *testing.T) {
	auto := &AutoReviewer{Store: seed(t), Reviewer: &fakeReviewer{err: errors.New("review failed")}}
	if _, err := auto.Run(context.Background(), "run-1"); err == nil {
		t.Fatal("expected reviewer error")
	}
}

func TestAutoReviewerUnknownRun(t *testing.T) {
	auto := &AutoReviewer{Store: seed(t)}
	if _, err := auto.Run(context.Background(), "nope"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
