package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cognicore/termex/pkg/termex/store"
	"github.com/cognicore/termex/pkg/termex/store/storetest"
)

func openTemp(t *testing.T) store.Store {
	t.Helper()
	st, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "termex.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	return st
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, openTemp)
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "termex.db")

	st, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	started := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	if err := st.CreateRun(ctx, store.Run{ID: "run-1", Status: store.RunRunning, StartedAt: started}); err != nil {
		t.Fatal(err)
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	st, err = OpenSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	r, err := st.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun after reopen: %v", err)
	}
	if !r.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", r.StartedAt, started)
	}
}

func TestTimeLayoutSortsChronologically(t *testing.T) {
	early := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	later := early.Add(500 * time.Millisecond)
	if !(formatTime(early) < formatTime(later)) {
		t.Errorf("%s should sort before %s", formatTime(early), formatTime(later))
	}
	if got := parseTime(formatTime(later)); !got.Equal(later) {
		t.Errorf("round trip = %v, want %v", got, later)
	}
	if !parseTime("").IsZero() || formatTime(time.Time{}) != "" {
		t.Error("zero time should map to the empty string")
	}
}
