// Package sqlite stores verified artifacts in a SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/snow-ghost/patrefine/core"
)

// KnowledgeBase is an append-only core.KnowledgeBase over SQLite.
type KnowledgeBase struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at dbPath and ensures the schema.
func Open(dbPath string) (*KnowledgeBase, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and writes serialized.
	db.SetMaxOpenConns(1)

	kb := &KnowledgeBase{db: db, now: time.Now}
	if err := kb.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return kb, nil
}

var _ core.KnowledgeBase = (*KnowledgeBase)(nil)

func (kb *KnowledgeBase) createTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS verified_artifacts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		model_name TEXT NOT NULL,
		verified_code TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_verified_artifacts_model ON verified_artifacts(model_name);
	`
	_, err := kb.db.Exec(query)
	return err
}

// Save inserts a row.
func (kb *KnowledgeBase) Save(ctx context.Context, a core.VerifiedArtifact) error {
	if strings.TrimSpace(a.Model) == "" {
		return fmt.Errorf("verified artifact has no model name")
	}
	created := a.CreatedAt
	if created.IsZero() {
		created = kb.now().UTC()
	}
	_, err := kb.db.ExecContext(ctx,
		`INSERT INTO verified_artifacts (model_name, verified_code, created_at) VALUES (?, ?, ?)`,
		a.Model, a.Code, created)
	if err != nil {
		return fmt.Errorf("failed to insert verified artifact: %w", err)
	}
	return nil
}

// List returns every row in insertion order.
func (kb *KnowledgeBase) List(ctx context.Context) ([]core.VerifiedArtifact, error) {
	return kb.query(ctx, `SELECT model_name, verified_code, created_at FROM verified_artifacts ORDER BY id`)
}

// Find returns the rows saved for model, oldest first.
func (kb *KnowledgeBase) Find(ctx context.Context, model string) ([]core.VerifiedArtifact, error) {
	return kb.query(ctx,
		`SELECT model_name, verified_code, created_at FROM verified_artifacts WHERE model_name = ? ORDER BY id`, model)
}

func (kb *KnowledgeBase) query(ctx context.Context, q string, args ...any) ([]core.VerifiedArtifact, error) {
	rows, err := kb.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query verified artifacts: %w", err)
	}
	defer rows.Close()

	out := []core.VerifiedArtifact{}
	for rows.Next() {
		var a core.VerifiedArtifact
		if err := rows.Scan(&a.Model, &a.Code, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan verified artifact: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Close closes the database.
func (kb *KnowledgeBase) Close() error {
	return kb.db.Close()
}
