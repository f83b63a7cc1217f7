package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wonny/aegis-risklab/internal/backtest"
	"github.com/wonny/aegis-risklab/internal/experimentconfig"
	"github.com/wonny/aegis-risklab/pkg/database"
)

// ErrRunNotFound no run with the requested id.
var ErrRunNotFound = errors.New("run not found")

const schemaSQL = `
CREATE SCHEMA IF NOT EXISTS risklab;

CREATE TABLE IF NOT EXISTS risklab.runs (
	run_id        UUID PRIMARY KEY,
	experiment_id TEXT        NOT NULL,
	config_hash   TEXT        NOT NULL,
	config_yaml   TEXT        NOT NULL DEFAULT '',
	alpha         DOUBLE PRECISION NOT NULL,
	window_size   INTEGER     NOT NULL,
	num_sims      INTEGER     NOT NULL,
	modes         TEXT[]      NOT NULL,
	date_from     DATE        NOT NULL,
	date_to       DATE        NOT NULL,
	summary       JSONB       NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS risklab.backtest_rows (
	run_id   UUID NOT NULL REFERENCES risklab.runs(run_id) ON DELETE CASCADE,
	date     DATE NOT NULL,
	mode     TEXT NOT NULL,
	actual   DOUBLE PRECISION NOT NULL,
	var      DOUBLE PRECISION NOT NULL,
	cvar     DOUBLE PRECISION NOT NULL,
	violated BOOLEAN NOT NULL,
	PRIMARY KEY (run_id, date, mode)
);

CREATE TABLE IF NOT EXISTS risklab.test_results (
	run_id    UUID NOT NULL REFERENCES risklab.runs(run_id) ON DELETE CASCADE,
	seq       INTEGER NOT NULL,
	name      TEXT NOT NULL,
	subject   TEXT NOT NULL,
	statistic DOUBLE PRECISION NOT NULL,
	df        INTEGER NOT NULL,
	p_value   DOUBLE PRECISION NOT NULL,
	threshold DOUBLE PRECISION NOT NULL,
	reject    BOOLEAN NOT NULL,
	PRIMARY KEY (run_id, seq)
);
`

// Repository handles run persistence
// ⭐ SSOT: 실행 결과 저장/조회는 여기서만
type Repository struct {
	db *database.DB
}

// NewRepository creates a new run repository
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// Run one backtest run to persist.
type Run struct {
	Snapshot *experimentconfig.RunSnapshot
	Table    *backtest.Table
	Summary  *Summary
}

// RunRecord stored run header.
type RunRecord struct {
	ID           uuid.UUID `json:"run_id"`
	ExperimentID string    `json:"experiment_id"`
	ConfigHash   string    `json:"config_hash"`
	Alpha        float64   `json:"alpha"`
	Window       int       `json:"window"`
	NumSims      int       `json:"num_sims"`
	Modes        []string  `json:"modes"`
	From         time.Time `json:"from"`
	To           time.Time `json:"to"`
	CreatedAt    time.Time `json:"created_at"`
	Summary      *Summary  `json:"summary,omitempty"`
}

// EnsureSchema creates the risklab schema if missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// SaveRun stores header, rows and test records in one transaction.
func (r *Repository) SaveRun(ctx context.Context, run *Run) (uuid.UUID, error) {
	if run == nil || run.Table == nil || run.Summary == nil || run.Snapshot == nil {
		return uuid.Nil, fmt.Errorf("incomplete run: snapshot, table and summary are required")
	}

	summaryJSON, err := json.Marshal(run.Summary)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal summary: %w", err)
	}

	id := uuid.New()
	table := run.Table
	modes := make([]string, len(table.Modes))
	for k, m := range table.Modes {
		modes[k] = m.String()
	}

	err = r.db.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO risklab.runs (
				run_id, experiment_id, config_hash, config_yaml, alpha, window_size,
				num_sims, modes, date_from, date_to, summary, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`,
			id, run.Snapshot.ExperimentID, run.Snapshot.ConfigHash, run.Snapshot.ConfigYAML,
			table.Alpha, table.Window, table.NumSims, modes,
			run.Summary.From, run.Summary.To, summaryJSON, run.Snapshot.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		rows := backtestRows(id, table, modes)
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"risklab", "backtest_rows"},
			[]string{"run_id", "date", "mode", "actual", "var", "cvar", "violated"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("failed to copy backtest rows: %w", err)
		}

		batch := &pgx.Batch{}
		for seq, rec := range run.Summary.Records() {
			batch.Queue(`
				INSERT INTO risklab.test_results (
					run_id, seq, name, subject, statistic, df, p_value, threshold, reject
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`, id, seq, rec.Name, rec.Subject, rec.Statistic, rec.DF, rec.PValue, rec.Threshold, rec.Reject)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert test results: %w", err)
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	return id, nil
}

// backtestRows long format: one row per (date, mode).
func backtestRows(id uuid.UUID, table *backtest.Table, modes []string) [][]any {
	out := make([][]any, 0, table.Len()*len(modes))
	for _, row := range table.Rows {
		for k, est := range row.Estimates {
			out = append(out, []any{id, row.Date, modes[k], row.Actual, est.VaR, est.CVaR, row.Violated(k)})
		}
	}
	return out
}

// GetRun retrieves a run header with its summary
func (r *Repository) GetRun(ctx context.Context, id uuid.UUID) (*RunRecord, error) {
	query := `
		SELECT run_id, experiment_id, config_hash, alpha, window_size, num_sims,
		       modes, date_from, date_to, created_at, summary
		FROM risklab.runs
		WHERE run_id = $1
	`

	var rec RunRecord
	var summaryJSON []byte
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&rec.ID, &rec.ExperimentID, &rec.ConfigHash, &rec.Alpha, &rec.Window, &rec.NumSims,
		&rec.Modes, &rec.From, &rec.To, &rec.CreatedAt, &summaryJSON,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	rec.Summary = &Summary{}
	if err := json.Unmarshal(summaryJSON, rec.Summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	return &rec, nil
}

// ListRuns most recent runs first, without summaries
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `
		SELECT run_id, experiment_id, config_hash, alpha, window_size, num_sims,
		       modes, date_from, date_to, created_at
		FROM risklab.runs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunRecord, 0)
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(
			&rec.ID, &rec.ExperimentID, &rec.ConfigHash, &rec.Alpha, &rec.Window, &rec.NumSims,
			&rec.Modes, &rec.From, &rec.To, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}
