// Package db persists fuzz-run statistics, classified test-case
// metadata, and AFL-sync import watermarks to PostgreSQL via pgx,
// adapted from the teacher's PostgresStore.
package db

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greybox/eclipser/internal/queue"
	"github.com/greybox/eclipser/internal/stats"
)

// PostgresStore is the pgx-backed persistence layer.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx.
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %v", err)
	}

	log.Println("[DB] connected to PostgreSQL for fuzz-run persistence")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema loads and executes the schema.sql file.
func (s *PostgresStore) InitSchema() error {
	schemaBytes, err := os.ReadFile("internal/db/schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %v", err)
	}

	if _, err := s.pool.Exec(context.Background(), string(schemaBytes)); err != nil {
		return fmt.Errorf("failed to execute schema migrations: %v", err)
	}

	log.Println("[DB] fuzz-run schema initialized")
	return nil
}

// SaveRunStats upserts the current RunStats snapshot for one run.
func (s *PostgresStore) SaveRunStats(ctx context.Context, st stats.RunStats) error {
	sql := `
		INSERT INTO fuzz_runs (run_id, rounds, execs, testcases, favored, normal, crashes, hangs, efficiency, last_sync, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (run_id) DO UPDATE
		SET rounds = EXCLUDED.rounds, execs = EXCLUDED.execs, testcases = EXCLUDED.testcases,
		    favored = EXCLUDED.favored, normal = EXCLUDED.normal, crashes = EXCLUDED.crashes,
		    hangs = EXCLUDED.hangs, efficiency = EXCLUDED.efficiency, last_sync = EXCLUDED.last_sync,
		    updated_at = NOW();
	`
	_, err := s.pool.Exec(ctx, sql, st.RunID, st.Rounds, st.Execs, st.TestCases, st.Favored, st.Normal, st.Crashes, st.Hangs, st.Efficiency, st.LastSync)
	return err
}

// SaveTestCase persists one classified test-case record.
func (s *PostgresStore) SaveTestCase(ctx context.Context, runID string, tc queue.TestCase) error {
	sql := `
		INSERT INTO testcases (id, run_id, path, gain, priority, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := s.pool.Exec(ctx, sql, tc.ID, runID, tc.Path, tc.Gain.String(), tc.Priority.String(), len(tc.Bytes))
	return err
}

// RecentTestCases returns up to limit of the most recently persisted
// test-cases for runID, for dashboard consumption.
func (s *PostgresStore) RecentTestCases(ctx context.Context, runID string, limit int) ([]queue.TestCase, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	sql := `
		SELECT id, path, gain, priority
		FROM testcases
		WHERE run_id = $1
		ORDER BY created_at DESC
		LIMIT $2;
	`
	rows, err := s.pool.Query(ctx, sql, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []queue.TestCase
	for rows.Next() {
		var tc queue.TestCase
		var gain, priority string
		if err := rows.Scan(&tc.ID, &tc.Path, &gain, &priority); err != nil {
			return nil, err
		}
		tc.Gain = parseGain(gain)
		tc.Priority = parsePriority(priority)
		out = append(out, tc)
	}
	if out == nil {
		out = []queue.TestCase{}
	}
	return out, rows.Err()
}

func parseGain(s string) queue.CoverageGain {
	switch s {
	case "NewEdge":
		return queue.NewEdge
	case "NewPath":
		return queue.NewPath
	default:
		return queue.NoGain
	}
}

func parsePriority(s string) queue.Priority {
	if s == "Favored" {
		return queue.Favored
	}
	return queue.Normal
}

// SaveWatermark upserts the highest imported AFL-sync queue id seen
// from one sibling directory.
func (s *PostgresStore) SaveWatermark(ctx context.Context, runID, sibling string, highestID int) error {
	sql := `
		INSERT INTO sync_watermarks (run_id, sibling, highest_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (run_id, sibling) DO UPDATE SET highest_id = EXCLUDED.highest_id;
	`
	_, err := s.pool.Exec(ctx, sql, runID, sibling, highestID)
	return err
}

// LoadWatermarks returns every persisted sibling -> highest-id
// watermark for runID. Only watermarks saved under that same run id are
// returned; cmd/eclipserd creates a new run id on every start, so a
// restarted process loads none of its earlier watermarks.
func (s *PostgresStore) LoadWatermarks(ctx context.Context, runID string) (map[string]int, error) {
	sql := `SELECT sibling, highest_id FROM sync_watermarks WHERE run_id = $1;`
	rows, err := s.pool.Query(ctx, sql, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var sibling string
		var id int
		if err := rows.Scan(&sibling, &id); err != nil {
			return nil, err
		}
		out[sibling] = id
	}
	return out, rows.Err()
}

// GetPool exposes the connection pool for callers that need a raw
// query, mirroring the teacher's GetPool escape hatch.
func (s *PostgresStore) GetPool() *pgxpool.Pool {
	return s.pool
}
