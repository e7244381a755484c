package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"
)

// SQLite implements EdgeStore on a SQLite database file.
type SQLite struct {
	db *sql.DB
}

var _ EdgeStore = (*SQLite)(nil)

// NewSQLite opens (creating if needed) the edge store at dbPath.
// Pass ":memory:" for an ephemeral store.
func NewSQLite(dbPath string) (*SQLite, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// The engine is single-writer; a second connection would only observe
	// torn intermediate state through its own snapshot anyway.
	db.SetMaxOpenConns(1)

	if err := enablePragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: enable pragmas: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return s, nil
}

func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	return nil
}

func (s *SQLite) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS control_similarity (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ref_id TEXT NOT NULL,
		similar_id TEXT NOT NULL,
		rank INTEGER NOT NULL,
		score REAL NOT NULL,
		feature_scores BLOB,
		tx_from TEXT NOT NULL,
		tx_to TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_control_similarity_current
		ON control_similarity(ref_id) WHERE tx_to IS NULL;
	CREATE INDEX IF NOT EXISTS idx_control_similarity_history
		ON control_similarity(ref_id, tx_from);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// LoadCurrent returns every current edge, ordered by ref ID then rank.
func (s *SQLite) LoadCurrent(ctx context.Context) ([]Edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ref_id, similar_id, rank, score, feature_scores, tx_from
		FROM control_similarity
		WHERE tx_to IS NULL
		ORDER BY ref_id, rank`)
	if err != nil {
		return nil, fmt.Errorf("store: load current edges: %w", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var (
			e      Edge
			blob   []byte
			txFrom string
		)
		if err := rows.Scan(&e.RefID, &e.SimilarID, &e.Rank, &e.Score, &blob, &txFrom); err != nil {
			return nil, fmt.Errorf("store: scan edge: %w", err)
		}
		if e.TxFrom, err = time.Parse(time.RFC3339Nano, txFrom); err != nil {
			return nil, fmt.Errorf("store: parse tx_from: %w", err)
		}
		if len(blob) > 0 {
			if err := msgpack.Unmarshal(blob, &e.FeatureScores); err != nil {
				return nil, fmt.Errorf("store: decode feature scores: %w", err)
			}
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// History returns all edges ever recorded for refID, oldest first.
// Superseded edges carry a closed validity interval.
func (s *SQLite) History(ctx context.Context, refID string) ([]Edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ref_id, similar_id, rank, score, feature_scores, tx_from, tx_to
		FROM control_similarity
		WHERE ref_id = ?
		ORDER BY tx_from, rank`, refID)
	if err != nil {
		return nil, fmt.Errorf("store: load history: %w", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var (
			e      Edge
			blob   []byte
			txFrom string
			txTo   sql.NullString
		)
		if err := rows.Scan(&e.RefID, &e.SimilarID, &e.Rank, &e.Score, &blob, &txFrom, &txTo); err != nil {
			return nil, fmt.Errorf("store: scan edge: %w", err)
		}
		if e.TxFrom, err = time.Parse(time.RFC3339Nano, txFrom); err != nil {
			return nil, fmt.Errorf("store: parse tx_from: %w", err)
		}
		if txTo.Valid {
			ts, err := time.Parse(time.RFC3339Nano, txTo.String)
			if err != nil {
				return nil, fmt.Errorf("store: parse tx_to: %w", err)
			}
			e.TxTo = &ts
		}
		if len(blob) > 0 {
			if err := msgpack.Unmarshal(blob, &e.FeatureScores); err != nil {
				return nil, fmt.Errorf("store: decode feature scores: %w", err)
			}
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// ReplaceAll supersedes the entire current index in one transaction.
func (s *SQLite) ReplaceAll(ctx context.Context, edges []Edge, now time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE control_similarity SET tx_to = ? WHERE tx_to IS NULL`,
			formatTime(now)); err != nil {
			return fmt.Errorf("close current edges: %w", err)
		}
		return insertEdges(ctx, tx, edges, now)
	})
}

// ReplaceSubset supersedes the current edges of exactly the given ref IDs.
func (s *SQLite) ReplaceSubset(ctx context.Context, refIDs []string, edges []Edge, now time.Time) error {
	if len(refIDs) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		closeStmt, err := tx.PrepareContext(ctx, `
			UPDATE control_similarity SET tx_to = ? WHERE tx_to IS NULL AND ref_id = ?`)
		if err != nil {
			return err
		}
		defer closeStmt.Close()

		ts := formatTime(now)
		for _, id := range refIDs {
			if _, err := closeStmt.ExecContext(ctx, ts, id); err != nil {
				return fmt.Errorf("close edges for %s: %w", id, err)
			}
		}
		return insertEdges(ctx, tx, edges, now)
	})
}

func (s *SQLite) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

func insertEdges(ctx context.Context, tx *sql.Tx, edges []Edge, now time.Time) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO control_similarity
			(ref_id, similar_id, rank, score, feature_scores, tx_from, tx_to)
		VALUES (?, ?, ?, ?, ?, ?, NULL)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	ts := formatTime(now)
	for _, e := range edges {
		var blob []byte
		if len(e.FeatureScores) > 0 {
			if blob, err = msgpack.Marshal(e.FeatureScores); err != nil {
				return fmt.Errorf("encode feature scores: %w", err)
			}
		}
		if _, err := stmt.ExecContext(ctx, e.RefID, e.SimilarID, e.Rank, e.Score, blob, ts); err != nil {
			return fmt.Errorf("insert edge %s->%s: %w", e.RefID, e.SimilarID, err)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
