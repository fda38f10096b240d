package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "github.com/mattn/go-sqlite3"

	"github.com/recipeshelf/shelf/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS bucket_members (
		bucket TEXT NOT NULL,
		name TEXT NOT NULL,
		rank REAL,
		seq INTEGER NOT NULL,
		PRIMARY KEY (bucket, name)
	);

	CREATE INDEX IF NOT EXISTS idx_bucket_members_order ON bucket_members(bucket, rank, seq);

	CREATE TABLE IF NOT EXISTS bucket_fields (
		bucket TEXT NOT NULL,
		field TEXT NOT NULL,
		value TEXT NOT NULL,
		seq INTEGER NOT NULL,
		PRIMARY KEY (bucket, field)
	);
	`
	_, err := db.Exec(schema)
	return err
}

// ListMembers returns members ordered by rank (unranked first) then insertion order,
// followed by hash field names.
func (s *SQLiteStorage) ListMembers(ctx context.Context, bucket string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM (
			SELECT name, rank, seq FROM bucket_members WHERE bucket = ?
			UNION ALL
			SELECT field AS name, NULL AS rank, seq FROM bucket_fields WHERE bucket = ?
		) ORDER BY rank, seq`,
		bucket, bucket,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Buckets returns the distinct bucket names.
func (s *SQLiteStorage) Buckets(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT bucket FROM bucket_members
		 UNION
		 SELECT bucket FROM bucket_fields
		 ORDER BY bucket`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buckets []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// Replace clears both tables and inserts ds in a single transaction.
// Re-adding a member updates its rank, matching sorted-set semantics.
func (s *SQLiteStorage) Replace(ctx context.Context, ds *models.Dataset) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM bucket_members`); err != nil {
		return fmt.Errorf("failed to clear members: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM bucket_fields`); err != nil {
		return fmt.Errorf("failed to clear fields: %w", err)
	}

	memberStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO bucket_members (bucket, name, rank, seq) VALUES (?, ?, ?, ?)
		 ON CONFLICT(bucket, name) DO UPDATE SET rank = excluded.rank`,
	)
	if err != nil {
		return err
	}
	defer memberStmt.Close()

	fieldStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO bucket_fields (bucket, field, value, seq) VALUES (?, ?, ?, ?)
		 ON CONFLICT(bucket, field) DO UPDATE SET value = excluded.value`,
	)
	if err != nil {
		return err
	}
	defer fieldStmt.Close()

	seq := 0
	for _, b := range ds.Buckets {
		for _, m := range b.Members {
			var rank interface{}
			if m.Rank != nil {
				rank = *m.Rank
			}
			if _, err := memberStmt.ExecContext(ctx, b.Name, m.Name, rank, seq); err != nil {
				return fmt.Errorf("failed to insert member %s/%s: %w", b.Name, m.Name, err)
			}
			seq++
		}
		for _, field := range sortedKeys(b.Fields) {
			if _, err := fieldStmt.ExecContext(ctx, b.Name, field, b.Fields[field], seq); err != nil {
				return fmt.Errorf("failed to insert field %s/%s: %w", b.Name, field, err)
			}
			seq++
		}
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
