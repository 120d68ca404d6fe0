package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/termex/pkg/termex/candidate"
	"github.com/cognicore/termex/pkg/termex/dictgap"
	"github.com/cognicore/termex/pkg/termex/internalerr"
	"github.com/cognicore/termex/pkg/termex/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled and creates the
// schema if needed.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	started_at TEXT NOT NULL,
	finished_at TEXT,
	total_documents INTEGER NOT NULL DEFAULT 0,
	candidates INTEGER NOT NULL DEFAULT 0,
	dictionary_candidates INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS candidates (
	run_id TEXT NOT NULL,
	rank INTEGER NOT NULL,
	term TEXT NOT NULL,
	components TEXT NOT NULL,
	surface TEXT NOT NULL,
	count INTEGER NOT NULL,
	doc_count INTEGER NOT NULL,
	pmi TEXT NOT NULL,
	npmi TEXT NOT NULL,
	idf TEXT NOT NULL,
	avg_tfidf TEXT NOT NULL,
	relevance TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	PRIMARY KEY(run_id, term),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS dictionary_candidates (
	run_id TEXT NOT NULL,
	rank INTEGER NOT NULL,
	original_term TEXT NOT NULL,
	suggested_term TEXT NOT NULL,
	npmi TEXT NOT NULL,
	count INTEGER NOT NULL,
	doc_count INTEGER NOT NULL,
	reasons TEXT NOT NULL,
	confidence TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	PRIMARY KEY(run_id, suggested_term),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS decisions (
	term TEXT NOT NULL,
	kind TEXT NOT NULL,
	status TEXT NOT NULL,
	run_id TEXT NOT NULL DEFAULT '',
	decided_at TEXT NOT NULL,
	PRIMARY KEY(term, kind)
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// CreateRun inserts a new run.
func (s *sqliteStore) CreateRun(ctx context.Context, r store.Run) error {
	if err := store.ValidateRun(r); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs (id, status, started_at, total_documents, candidates, dictionary_candidates, error)
VALUES (?, ?, ?, ?, ?, ?, ?);
`, r.ID, string(r.Status), formatTime(r.StartedAt), r.TotalDocuments, r.Candidates, r.DictionaryCandidates, r.Error)
	if err != nil {
		if exists, qerr := s.runExists(ctx, r.ID); qerr == nil && exists {
			return fmt.Errorf("%w: run %s", internalerr.ErrDuplicate, r.ID)
		}
		return err
	}
	return nil
}

// FinishRun records the final state of a run.
func (s *sqliteStore) FinishRun(ctx context.Context, r store.Run) error {
	if err := store.ValidateRun(r); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE runs SET
	status=?,
	finished_at=?,
	total_documents=?,
	candidates=?,
	dictionary_candidates=?,
	error=?
WHERE id=?;
`, string(r.Status), formatTime(r.FinishedAt), r.TotalDocuments, r.Candidates, r.DictionaryCandidates, r.Error, r.ID)
	if err != nil {
		return err
	}
	return expectRow(res, "run "+r.ID)
}

// GetRun returns a run by ID.
func (s *sqliteStore) GetRun(ctx context.Context, id string) (store.Run, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, status, started_at, COALESCE(finished_at, ''), total_documents, candidates, dictionary_candidates, error
FROM runs WHERE id=?;
`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Run{}, fmt.Errorf("%w: run %s", internalerr.ErrNotFound, id)
	}
	return r, err
}

// ListRuns returns the most recent runs first.
func (s *sqliteStore) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, status, started_at, COALESCE(finished_at, ''), total_documents, candidates, dictionary_candidates, error
FROM runs
ORDER BY started_at DESC, id DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []store.Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (store.Run, error) {
	var (
		r                 store.Run
		status            string
		started, finished string
	)
	if err := sc.Scan(&r.ID, &status, &started, &finished, &r.TotalDocuments, &r.Candidates, &r.DictionaryCandidates, &r.Error); err != nil {
		return store.Run{}, err
	}
	r.Status = store.RunStatus(status)
	r.StartedAt = parseTime(started)
	r.FinishedAt = parseTime(finished)
	return r, nil
}

// SaveCandidates replaces the candidates of a run. Rows start pending.
func (s *sqliteStore) SaveCandidates(ctx context.Context, runID string, cands []candidate.Stat) error {
	if err := s.requireRun(ctx, runID); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM candidates WHERE run_id=?`, runID); err != nil {
		return err
	}
	if len(cands) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO candidates (run_id, rank, term, components, surface, count, doc_count, pmi, npmi, idf, avg_tfidf, relevance, status)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, c := range cands {
			components, err := json.Marshal(c.Components)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, runID, i, c.Term, string(components), c.Surface, c.Count, c.DocCount,
				c.PMI, c.NPMI, c.IDF, c.AvgTFIDF, c.RelevanceScore, string(store.StatusPending)); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// ListCandidates returns the candidates of a run in rank order.
func (s *sqliteStore) ListCandidates(ctx context.Context, runID string, status store.Status) ([]store.Candidate, error) {
	if err := s.requireRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT term, components, surface, count, doc_count, pmi, npmi, idf, avg_tfidf, relevance, status
FROM candidates
WHERE run_id=? AND (?='' OR status=?)
ORDER BY rank;
`, runID, string(status), string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []store.Candidate{}
	for rows.Next() {
		c := store.Candidate{RunID: runID}
		var components, st string
		if err := rows.Scan(&c.Term, &components, &c.Surface, &c.Count, &c.DocCount,
			&c.PMI, &c.NPMI, &c.IDF, &c.AvgTFIDF, &c.RelevanceScore, &st); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(components), &c.Components); err != nil {
			return nil, err
		}
		c.Status = store.Status(st)
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetCandidateStatus updates the review status of a candidate.
func (s *sqliteStore) SetCandidateStatus(ctx context.Context, runID, term string, status store.Status) error {
	if err := store.ValidateStatus(status); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE candidates SET status=? WHERE run_id=? AND term=?`, string(status), runID, term)
	if err != nil {
		return err
	}
	return expectRow(res, fmt.Sprintf("candidate %q in run %s", term, runID))
}

// SaveDictionaryCandidates replaces the dictionary suggestions of a run.
func (s *sqliteStore) SaveDictionaryCandidates(ctx context.Context, runID string, cands []dictgap.Candidate) error {
	if err := s.requireRun(ctx, runID); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dictionary_candidates WHERE run_id=?`, runID); err != nil {
		return err
	}
	if len(cands) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO dictionary_candidates (run_id, rank, original_term, suggested_term, npmi, count, doc_count, reasons, confidence, status)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, c := range cands {
			reasons, err := json.Marshal(c.Reasons)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, runID, i, c.OriginalTerm, c.SuggestedTerm, c.NPMI, c.Count, c.DocCount,
				string(reasons), c.Confidence, string(store.StatusPending)); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// ListDictionaryCandidates returns the dictionary suggestions of a run in
// rank order.
func (s *sqliteStore) ListDictionaryCandidates(ctx context.Context, runID string, status store.Status) ([]store.DictionaryCandidate, error) {
	if err := s.requireRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT original_term, suggested_term, npmi, count, doc_count, reasons, confidence, status
FROM dictionary_candidates
WHERE run_id=? AND (?='' OR status=?)
ORDER BY rank;
`, runID, string(status), string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []store.DictionaryCandidate{}
	for rows.Next() {
		c := store.DictionaryCandidate{RunID: runID}
		var reasons, st string
		if err := rows.Scan(&c.OriginalTerm, &c.SuggestedTerm, &c.NPMI, &c.Count, &c.DocCount,
			&reasons, &c.Confidence, &st); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(reasons), &c.Reasons); err != nil {
			return nil, err
		}
		c.Status = store.Status(st)
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetDictionaryStatus updates the review status of a dictionary suggestion.
func (s *sqliteStore) SetDictionaryStatus(ctx context.Context, runID, suggestedTerm string, status store.Status) error {
	if err := store.ValidateStatus(status); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE dictionary_candidates SET status=? WHERE run_id=? AND suggested_term=?`,
		string(status), runID, suggestedTerm)
	if err != nil {
		return err
	}
	return expectRow(res, fmt.Sprintf("dictionary candidate %q in run %s", suggestedTerm, runID))
}

// Decide adds or replaces the decision for a term.
func (s *sqliteStore) Decide(ctx context.Context, d store.Decision) error {
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
	_, err := s.db.ExecContext(ctx, `
INSERT INTO decisions (term, kind, status, run_id, decided_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(term, kind) DO UPDATE SET
	status=excluded.status,
	run_id=excluded.run_id,
	decided_at=excluded.decided_at;
`, d.Term, string(d.Kind), string(d.Status), d.RunID, formatTime(d.DecidedAt))
	return err
}

// Decisions lists decisions ordered by term. Empty kind or status match all.
func (s *sqliteStore) Decisions(ctx context.Context, kind store.Kind, status store.Status) ([]store.Decision, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT term, kind, status, run_id, decided_at
FROM decisions
WHERE (?='' OR kind=?) AND (?='' OR status=?)
ORDER BY term, kind;
`, string(kind), string(kind), string(status), string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []store.Decision{}
	for rows.Next() {
		var (
			d                store.Decision
			k, st, decidedAt string
		)
		if err := rows.Scan(&d.Term, &k, &st, &d.RunID, &decidedAt); err != nil {
			return nil, err
		}
		d.Kind = store.Kind(k)
		d.Status = store.Status(st)
		d.DecidedAt = parseTime(decidedAt)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *sqliteStore) runExists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id=?`, id).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *sqliteStore) requireRun(ctx context.Context, id string) error {
	ok, err := s.runExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: run %s", internalerr.ErrNotFound, id)
	}
	return nil
}

func expectRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", internalerr.ErrNotFound, what)
	}
	return nil
}

// timeLayout is fixed width so stored timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
