package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"microbench/internal/benchmark"
)

// sqlStore holds the queries shared by the SQLite and Postgres stores.
// Queries are written with ? placeholders and rebound per driver.
type sqlStore struct {
	db     *sql.DB
	dollar bool
}

func (s *sqlStore) q(query string) string {
	if !s.dollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Close closes the database connection
func (s *sqlStore) Close() error {
	return s.db.Close()
}

// Save stores the run and one row per cell in a single transaction.
func (s *sqlStore) Save(run benchmark.Run) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(s.q(`INSERT INTO runs (id, suite, created_at, commit_hash, payload) VALUES (?, ?, ?, ?, ?)`),
		run.ID, run.Suite, run.Timestamp.UnixNano(), run.Commit, string(payload))
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	for i, r := range run.Results {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal result %s: %w", r.Name, err)
		}
		var nsPerOp, cv sql.NullFloat64
		if r.Stats != nil {
			nsPerOp = sql.NullFloat64{Float64: r.Stats.CleanMean, Valid: true}
			cv = sql.NullFloat64{Float64: r.Stats.CV, Valid: true}
		}
		stable := 0
		if r.Stable {
			stable = 1
		}
		_, err = tx.Exec(s.q(`INSERT INTO results (run_id, position, name, status, ns_per_op, cv, stable, payload) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			run.ID, i, r.Name, string(r.Status), nsPerOp, cv, stable, string(data))
		if err != nil {
			return fmt.Errorf("failed to insert result %s: %w", r.Name, err)
		}
	}
	return tx.Commit()
}

// LoadAll returns every run, oldest first.
func (s *sqlStore) LoadAll() ([]benchmark.Run, error) {
	return s.queryRuns(`SELECT payload FROM runs ORDER BY created_at, seq`)
}

// LoadLatest returns the most recent run, or nil when there is none.
func (s *sqlStore) LoadLatest() (*benchmark.Run, error) {
	runs, err := s.queryRuns(`SELECT payload FROM runs ORDER BY created_at DESC, seq DESC LIMIT 1`)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// Load resolves id by exact match or unique prefix.
func (s *sqlStore) Load(id string) (*benchmark.Run, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", benchmark.ErrRunNotFound)
	}
	runs, err := s.queryRuns(`SELECT payload FROM runs WHERE id LIKE ? ORDER BY created_at, seq`, id+"%")
	if err != nil {
		return nil, err
	}
	return benchmark.FindRun(runs, id)
}

// CellHistory returns one cell's results across runs, oldest first.
func (s *sqlStore) CellHistory(cell string) ([]benchmark.CellPoint, error) {
	rows, err := s.db.Query(s.q(`SELECT r.id, r.created_at, r.commit_hash, c.payload
		FROM results c JOIN runs r ON r.id = c.run_id
		WHERE c.name = ?
		ORDER BY r.created_at, r.seq`), cell)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s: %w", cell, err)
	}
	defer rows.Close()

	var points []benchmark.CellPoint
	for rows.Next() {
		var (
			p       benchmark.CellPoint
			created int64
			commit  sql.NullString
			payload string
		)
		if err := rows.Scan(&p.RunID, &created, &commit, &payload); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &p.Result); err != nil {
			return nil, fmt.Errorf("corrupt result for run %s: %w", p.RunID, err)
		}
		p.Timestamp = time.Unix(0, created)
		p.Commit = commit.String
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *sqlStore) queryRuns(query string, args ...any) ([]benchmark.Run, error) {
	rows, err := s.db.Query(s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []benchmark.Run{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var run benchmark.Run
		if err := json.Unmarshal([]byte(payload), &run); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
