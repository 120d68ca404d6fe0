package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cognicore/termex/pkg/termex/lexicon"
	"github.com/cognicore/termex/pkg/termex/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func writeCorpus(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "docs.jsonl")
	data := `{"id":"1","text":"공유 주차장에서 결제를 진행했습니다"}
{"id":"2","text":"공유 주차장 이용 안내 https://parking.example.com"}
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readOutput(t *testing.T, path string) extractOutput {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var out extractOutput
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return out
}

func terms(out extractOutput) map[string]bool {
	set := make(map[string]bool)
	for _, c := range out.Candidates {
		set[c.Term] = true
	}
	return set
}

func TestExtractReviewCycle(t *testing.T) {
	dir := t.TempDir()
	input := writeCorpus(t, dir)
	db := filepath.Join(dir, "termex.db")
	first := filepath.Join(dir, "first.json")

	if _, err := execute(t, "extract", "--input", input, "--db", db, "--min-count", "1", "--out", first); err != nil {
		t.Fatalf("extract: %v", err)
	}
	out := readOutput(t, first)
	if out.RunID == "" || out.TotalDocuments != 2 {
		t.Fatalf("output = %+v", out)
	}
	if got := terms(out); !got["공유주차장"] || !got["공유주차장이용안내"] {
		t.Fatalf("candidates = %v", got)
	}

	listing, err := execute(t, "runs", "list", "--db", db)
	if err != nil {
		t.Fatalf("runs list: %v", err)
	}
	if !strings.Contains(listing, out.RunID) || !strings.Contains(listing, "completed") {
		t.Errorf("runs list output:\n%s", listing)
	}

	shown, err := execute(t, "runs", "show", out.RunID, "--db", db)
	if err != nil {
		t.Fatalf("runs show: %v", err)
	}
	if !strings.Contains(shown, "Documents:  2") {
		t.Errorf("runs show output:\n%s", shown)
	}

	if _, err := execute(t, "review", "accept", out.RunID, "공유주차장", "--db", db); err != nil {
		t.Fatalf("review accept: %v", err)
	}
	pending, err := execute(t, "review", "list", out.RunID, "--status", "accepted", "--db", db)
	if err != nil {
		t.Fatalf("review list: %v", err)
	}
	if !strings.Contains(pending, "공유주차장") || strings.Contains(pending, "공유주차장이용안내") {
		t.Errorf("accepted listing:\n%s", pending)
	}

	second := filepath.Join(dir, "second.json")
	if _, err := execute(t, "extract", "--input", input, "--db", db, "--min-count", "1", "--out", second); err != nil {
		t.Fatalf("second extract: %v", err)
	}
	out2 := readOutput(t, second)
	if out2.RunID == out.RunID {
		t.Error("second run reused the run id")
	}
	if terms(out2)["공유주차장"] {
		t.Error("reviewed term extracted again")
	}
}

func TestExtractNoStore(t *testing.T) {
	dir := t.TempDir()
	input := writeCorpus(t, dir)
	db := filepath.Join(dir, "termex.db")

	stdout, err := execute(t, "extract", "--input", input, "--db", db, "--min-count", "1", "--no-store")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	var out extractOutput
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("decode stdout: %v\n%s", err, stdout)
	}
	if out.RunID != "" || len(out.Candidates) == 0 {
		t.Errorf("output = %+v", out)
	}
	if _, err := os.Stat(db); !os.IsNotExist(err) {
		t.Errorf("--no-store created %s", db)
	}
}

func TestExtractFlagErrors(t *testing.T) {
	dir := t.TempDir()
	input := writeCorpus(t, dir)

	if _, err := execute(t, "extract", "--no-store"); err == nil {
		t.Error("expected missing --input error")
	}
	if _, err := execute(t, "extract", "--input", input, "--no-store", "--npmi", "high"); err == nil {
		t.Error("expected bad --npmi error")
	}
	if _, err := execute(t, "extract", "--input", input, "--no-store", "--min-count", "0"); err == nil {
		t.Error("expected invalid config error")
	}
}

func TestExtractWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	input := writeCorpus(t, dir)
	cfgPath := filepath.Join(dir, "termex.yaml")
	if err := os.WriteFile(cfgPath, []byte("min_count: 1\nstopwords: [공유주차장]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, err := execute(t, "extract", "--input", input, "--config", cfgPath, "--no-store")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	var out extractOutput
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatal(err)
	}
	if terms(out)["공유주차장"] {
		t.Error("stopword from config file became a candidate")
	}
}

func TestExportDict(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "termex.db")
	input := writeCorpus(t, dir)
	if _, err := execute(t, "extract", "--input", input, "--db", db); err != nil {
		t.Fatalf("extract: %v", err)
	}

	path := filepath.Join(dir, "user-dict.yaml")
	stdout, err := execute(t, "export", "dict", "--out", path, "--db", db)
	if err != nil {
		t.Fatalf("export dict: %v", err)
	}
	if !strings.Contains(stdout, "wrote 0 nouns") {
		t.Errorf("stdout = %q", stdout)
	}
	lex, err := lexicon.LoadFromYAML(path)
	if err != nil {
		t.Fatalf("exported dictionary does not load: %v", err)
	}
	if n := len(lex.Nouns()); n != 0 {
		t.Errorf("expected empty dictionary, got %d nouns", n)
	}
}

func TestRunsShowUnknown(t *testing.T) {
	db := filepath.Join(t.TempDir(), "termex.db")
	if _, err := execute(t, "runs", "show", "missing", "--db", db); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestRunError(t *testing.T) {
	cause := errors.New("create run: database is locked")

	err := runError(store.Run{}, cause)
	if err.Error() != "create run: database is locked" {
		t.Errorf("unrecorded run: %q", err)
	}

	err = runError(store.Run{ID: "01HZX3"}, cause)
	if err.Error() != "run 01HZX3: create run: database is locked" || !errors.Is(err, cause) {
		t.Errorf("recorded run: %q", err)
	}
}
