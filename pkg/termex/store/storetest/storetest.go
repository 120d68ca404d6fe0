// Package storetest holds behaviour tests shared by every store.Store
// implementation.
package storetest

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
)

// Run exercises a fresh store returned by open for every subtest.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, st store.Store)
	}{
		{"RunLifecycle", testRunLifecycle},
		{"ListRunsNewestFirst", testListRunsNewestFirst},
		{"Candidates", testCandidates},
		{"DictionaryCandidates", testDictionaryCandidates},
		{"Decisions", testDecisions},
		{"NotFound", testNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := open(t)
			defer st.Close()
			tc.fn(t, st)
		})
	}
}

var started = time.Date(2024, 5, 1, 9, 30, 0, 123456789, time.UTC)

func sampleCandidates() []candidate.Stat {
	return []candidate.Stat{
		{
			Term:           "공유주차장이용안내",
			Components:     []string{"공유", "주차장", "이용", "안내"},
			Surface:        "공유 주차장 이용 안내",
			Count:          1,
			DocCount:       1,
			PMI:            decimal.RequireFromString("1.504077"),
			NPMI:           decimal.NewFromInt(1),
			IDF:            decimal.RequireFromString("0.693147"),
			AvgTFIDF:       decimal.RequireFromString("0.173287"),
			RelevanceScore: decimal.RequireFromString("0.775"),
		},
		{
			Term:           "공유주차장",
			Components:     []string{"공유", "주차장"},
			Surface:        "공유 주차장",
			Count:          2,
			DocCount:       2,
			PMI:            decimal.RequireFromString("1.504077"),
			NPMI:           decimal.NewFromInt(1),
			IDF:            decimal.Zero,
			AvgTFIDF:       decimal.Zero,
			RelevanceScore: decimal.RequireFromString("0.4"),
		},
	}
}

func sampleDictionary() []dictgap.Candidate {
	return []dictgap.Candidate{
		{
			OriginalTerm:  "결제 모듈",
			SuggestedTerm: "결제모듈",
			NPMI:          decimal.RequireFromString("0.9"),
			Count:         50,
			DocCount:      12,
			Reasons:       []string{dictgap.ReasonLowRelevance, dictgap.ReasonManyDocuments},
			Confidence:    decimal.RequireFromString("0.917358"),
		},
	}
}

func createRun(t *testing.T, st store.Store, id string, at time.Time) {
	t.Helper()
	if err := st.CreateRun(context.Background(), store.Run{ID: id, Status: store.RunRunning, StartedAt: at}); err != nil {
		t.Fatalf("CreateRun(%s): %v", id, err)
	}
}

func testRunLifecycle(t *testing.T, st store.Store) {
	ctx := context.Background()
	createRun(t, st, "run-1", started)

	got, err := st.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != store.RunRunning || !got.StartedAt.Equal(started) || !got.FinishedAt.IsZero() {
		t.Errorf("created run = %+v", got)
	}

	if err := st.CreateRun(ctx, store.Run{ID: "run-1", Status: store.RunRunning, StartedAt: started}); !errors.Is(err, internalerr.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	finished := started.Add(3 * time.Second)
	err = st.FinishRun(ctx, store.Run{
		ID:                   "run-1",
		Status:               store.RunCompleted,
		FinishedAt:           finished,
		TotalDocuments:       2,
		Candidates:           2,
		DictionaryCandidates: 1,
	})
	if err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	got, err = st.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	want := store.Run{
		ID:                   "run-1",
		Status:               store.RunCompleted,
		StartedAt:            started,
		FinishedAt:           finished,
		TotalDocuments:       2,
		Candidates:           2,
		DictionaryCandidates: 1,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("finished run = %+v, want %+v", got, want)
	}

	if err := st.CreateRun(ctx, store.Run{ID: "bad", Status: "exploded"}); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for bad status, got %v", err)
	}
}

func testListRunsNewestFirst(t *testing.T, st store.Store) {
	ctx := context.Background()
	createRun(t, st, "a", started)
	createRun(t, st, "b", started.Add(time.Minute))
	createRun(t, st, "c", started.Add(500*time.Millisecond))

	runs, err := st.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	if !reflect.DeepEqual(ids, []string{"b", "c"}) {
		t.Errorf("ListRuns = %v, want [b c]", ids)
	}
}

func testCandidates(t *testing.T, st store.Store) {
	ctx := context.Background()
	createRun(t, st, "run-1", started)

	cands := sampleCandidates()
	if err := st.SaveCandidates(ctx, "run-1", cands); err != nil {
		t.Fatalf("SaveCandidates: %v", err)
	}

	all, err := st.ListCandidates(ctx, "run-1", "")
	if err != nil {
		t.Fatalf("ListCandidates: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(all))
	}
	for i, c := range all {
		if c.Status != store.StatusPending || c.RunID != "run-1" {
			t.Errorf("candidate %d = %+v", i, c)
		}
		if c.Term != cands[i].Term || !reflect.DeepEqual(c.Components, cands[i].Components) || c.Surface != cands[i].Surface {
			t.Errorf("candidate %d order or fields changed: %+v", i, c)
		}
		if !c.RelevanceScore.Equal(cands[i].RelevanceScore) || !c.AvgTFIDF.Equal(cands[i].AvgTFIDF) || !c.PMI.Equal(cands[i].PMI) {
			t.Errorf("candidate %d decimals changed: %+v", i, c)
		}
	}

	if err := st.SetCandidateStatus(ctx, "run-1", "공유주차장", store.StatusAccepted); err != nil {
		t.Fatalf("SetCandidateStatus: %v", err)
	}
	accepted, err := st.ListCandidates(ctx, "run-1", store.StatusAccepted)
	if err != nil {
		t.Fatal(err)
	}
	if len(accepted) != 1 || accepted[0].Term != "공유주차장" {
		t.Errorf("accepted = %+v", accepted)
	}
	if err := st.SetCandidateStatus(ctx, "run-1", "공유주차장", "maybe"); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	// Saving again replaces the run's rows.
	if err := st.SaveCandidates(ctx, "run-1", cands[:1]); err != nil {
		t.Fatal(err)
	}
	all, err = st.ListCandidates(ctx, "run-1", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Status != store.StatusPending {
		t.Errorf("after replace = %+v", all)
	}
}

func testDictionaryCandidates(t *testing.T, st store.Store) {
	ctx := context.Background()
	createRun(t, st, "run-1", started)

	if err := st.SaveDictionaryCandidates(ctx, "run-1", sampleDictionary()); err != nil {
		t.Fatalf("SaveDictionaryCandidates: %v", err)
	}
	got, err := st.ListDictionaryCandidates(ctx, "run-1", store.StatusPending)
	if err != nil {
		t.Fatalf("ListDictionaryCandidates: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1, got %d", len(got))
	}
	want := sampleDictionary()[0]
	c := got[0]
	if c.SuggestedTerm != want.SuggestedTerm || c.OriginalTerm != want.OriginalTerm || c.Count != 50 || c.DocCount != 12 {
		t.Errorf("fields = %+v", c)
	}
	if !reflect.DeepEqual(c.Reasons, want.Reasons) || !c.Confidence.Equal(want.Confidence) || !c.NPMI.Equal(want.NPMI) {
		t.Errorf("reasons or scores = %+v", c)
	}

	if err := st.SetDictionaryStatus(ctx, "run-1", "결제모듈", store.StatusRejected); err != nil {
		t.Fatalf("SetDictionaryStatus: %v", err)
	}
	pending, err := st.ListDictionaryCandidates(ctx, "run-1", store.StatusPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("expected no pending suggestions, got %+v", pending)
	}
}

func testDecisions(t *testing.T, st store.Store) {
	ctx := context.Background()
	decided := started.Add(time.Hour)

	for _, d := range []store.Decision{
		{Term: "주차장", Kind: store.KindCandidate, Status: store.StatusRejected, DecidedAt: decided},
		{Term: "공유주차장", Kind: store.KindCandidate, Status: store.StatusAccepted, RunID: "run-1", DecidedAt: decided},
		{Term: "공유주차장", Kind: store.KindDictionary, Status: store.StatusAccepted, DecidedAt: decided},
	} {
		if err := st.Decide(ctx, d); err != nil {
			t.Fatalf("Decide(%+v): %v", d, err)
		}
	}
	// Re-deciding replaces the earlier status.
	if err := st.Decide(ctx, store.Decision{Term: "주차장", Kind: store.KindCandidate, Status: store.StatusAccepted, DecidedAt: decided}); err != nil {
		t.Fatal(err)
	}

	all, err := st.Decisions(ctx, "", "")
	if err != nil {
		t.Fatalf("Decisions: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 decisions, got %+v", all)
	}
	if all[0].Term != "공유주차장" || all[0].Kind != store.KindCandidate || all[0].RunID != "run-1" || !all[0].DecidedAt.Equal(decided) {
		t.Errorf("first decision = %+v", all[0])
	}

	dict, err := st.Decisions(ctx, store.KindDictionary, store.StatusAccepted)
	if err != nil {
		t.Fatal(err)
	}
	if len(dict) != 1 || dict[0].Term != "공유주차장" {
		t.Errorf("dictionary decisions = %+v", dict)
	}

	rejected, err := st.Decisions(ctx, store.KindCandidate, store.StatusRejected)
	if err != nil {
		t.Fatal(err)
	}
	if len(rejected) != 0 {
		t.Errorf("re-decided term still rejected: %+v", rejected)
	}

	if err := st.Decide(ctx, store.Decision{Term: "x", Kind: "other", Status: store.StatusAccepted}); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for bad kind, got %v", err)
	}
}

func testNotFound(t *testing.T, st store.Store) {
	ctx := context.Background()
	checks := map[string]error{}

	_, checks["GetRun"] = st.GetRun(ctx, "missing")
	checks["FinishRun"] = st.FinishRun(ctx, store.Run{ID: "missing", Status: store.RunFailed})
	checks["SaveCandidates"] = st.SaveCandidates(ctx, "missing", sampleCandidates())
	_, checks["ListCandidates"] = st.ListCandidates(ctx, "missing", "")
	checks["SaveDictionaryCandidates"] = st.SaveDictionaryCandidates(ctx, "missing", sampleDictionary())
	_, checks["ListDictionaryCandidates"] = st.ListDictionaryCandidates(ctx, "missing", "")

	createRun(t, st, "run-1", started)
	checks["SetCandidateStatus"] = st.SetCandidateStatus(ctx, "run-1", "nope", store.StatusAccepted)
	checks["SetDictionaryStatus"] = st.SetDictionaryStatus(ctx, "run-1", "nope", store.StatusAccepted)

	for op, err := range checks {
		if !errors.Is(err, internalerr.ErrNotFound) {
			t.Errorf("%s: expected ErrNotFound, got %v", op, err)
		}
	}
}
