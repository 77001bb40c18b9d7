// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package drift audits registry field mappings against what portals
// actually serve. Descriptors record the fields a dataset is believed to
// carry; portals rename and retire columns without notice. An audit
// samples live records, diffs the observed fields against the descriptor,
// and persists a snapshot so drift can be tracked over time.
package drift

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const dbFile = "audit.db"

// timeFormat is fixed-width so the lexical ORDER BY on created_at is
// also chronological. RFC3339Nano trims trailing zeros and breaks that.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store persists audit snapshots in a SQLite database under auditDir.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the audit database at auditDir/audit.db,
// creating the schema if it does not exist.
func NewStore(auditDir string) (*Store, error) {
	if err := os.MkdirAll(auditDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}

	dbPath := filepath.Join(auditDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS audits (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL,
			dataset_id TEXT NOT NULL,
			endpoint TEXT,
			sampled INTEGER NOT NULL,
			observed_fields TEXT NOT NULL,
			missing_fields TEXT NOT NULL,
			unknown_fields TEXT NOT NULL,
			broken_mappings TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audits_dataset ON audits(source_id, dataset_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audits_created ON audits(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Save persists one audit report, assigning an ID when the report has
// none.
func (s *Store) Save(ctx context.Context, r *Report) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	observed, _ := json.Marshal(r.ObservedFields)
	missing, _ := json.Marshal(r.MissingFields)
	unknown, _ := json.Marshal(r.UnknownFields)
	broken, _ := json.Marshal(r.BrokenMappings)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO audits (id, source_id, dataset_id, endpoint, sampled,
			observed_fields, missing_fields, unknown_fields, broken_mappings, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SourceID, r.DatasetID, r.Endpoint, r.Sampled,
		string(observed), string(missing), string(unknown), string(broken),
		r.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting audit %s: %w", r.ID, err)
	}
	return tx.Commit()
}

// History returns the most recent audits for one dataset, newest first.
// A limit of 0 means all of them.
func (s *Store) History(ctx context.Context, sourceID, datasetID string, limit int) ([]Report, error) {
	query := `SELECT id, source_id, dataset_id, endpoint, sampled,
		observed_fields, missing_fields, unknown_fields, broken_mappings, created_at
		FROM audits WHERE source_id = ? AND dataset_id = ?
		ORDER BY created_at DESC`
	args := []any{sourceID, datasetID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audits: %w", err)
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		var (
			r         Report
			observed  string
			missing   string
			unknown   string
			broken    string
			createdAt string
		)
		if err := rows.Scan(&r.ID, &r.SourceID, &r.DatasetID, &r.Endpoint, &r.Sampled,
			&observed, &missing, &unknown, &broken, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}
		json.Unmarshal([]byte(observed), &r.ObservedFields)
		json.Unmarshal([]byte(missing), &r.MissingFields)
		json.Unmarshal([]byte(unknown), &r.UnknownFields)
		json.Unmarshal([]byte(broken), &r.BrokenMappings)
		if t, err := time.Parse(timeFormat, createdAt); err == nil {
			r.CreatedAt = t
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}
