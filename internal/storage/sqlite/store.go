// Package sqlite persists pipeline interaction records in a SQLite
// database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/promptops/llmpipe/internal/core/domain"
	"github.com/promptops/llmpipe/internal/core/ports"
)

// Store is a SQLite implementation of ports.InteractionStore.
type Store struct {
	db *sql.DB
}

var _ ports.InteractionStore = (*Store)(nil)

// New opens (or creates) the database at dbPath and initializes the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS interactions (
		id TEXT PRIMARY KEY,
		input_text TEXT NOT NULL,
		context TEXT,
		template_name TEXT,
		status TEXT NOT NULL,
		final_output TEXT,
		error TEXT,
		token_usage TEXT,
		duration_ms INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_interactions_created_at
		ON interactions(created_at DESC)`)
	return err
}

// SaveInteraction inserts one interaction record.
func (s *Store) SaveInteraction(ctx context.Context, interaction *domain.Interaction) error {
	if interaction.CreatedAt.IsZero() {
		interaction.CreatedAt = time.Now()
	}

	var usage sql.NullString
	if interaction.TokenUsage != nil {
		b, err := json.Marshal(interaction.TokenUsage)
		if err != nil {
			return fmt.Errorf("marshal token usage: %w", err)
		}
		usage = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO interactions (
		id, input_text, context, template_name, status, final_output, error,
		token_usage, duration_ms, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		interaction.ID,
		interaction.InputText,
		nullable(interaction.Context),
		nullable(interaction.TemplateName),
		interaction.Status,
		nullable(interaction.FinalOutput),
		nullable(interaction.Error),
		usage,
		interaction.Duration.Milliseconds(),
		interaction.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

// ListInteractions returns the most recent records, newest first.
func (s *Store) ListInteractions(ctx context.Context, limit int) ([]*domain.Interaction, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `SELECT
		id, input_text, context, template_name, status, final_output, error,
		token_usage, duration_ms, created_at
	FROM interactions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var interactions []*domain.Interaction
	for rows.Next() {
		var (
			rec        domain.Interaction
			contextVal sql.NullString
			tmplName   sql.NullString
			output     sql.NullString
			errMsg     sql.NullString
			usage      sql.NullString
			durationMS int64
		)
		if err := rows.Scan(
			&rec.ID, &rec.InputText, &contextVal, &tmplName, &rec.Status,
			&output, &errMsg, &usage, &durationMS, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}

		rec.Context = contextVal.String
		rec.TemplateName = tmplName.String
		rec.FinalOutput = output.String
		rec.Error = errMsg.String
		rec.Duration = time.Duration(durationMS) * time.Millisecond

		if usage.Valid && usage.String != "" {
			var u domain.Usage
			if err := json.Unmarshal([]byte(usage.String), &u); err != nil {
				return nil, fmt.Errorf("unmarshal token usage: %w", err)
			}
			rec.TokenUsage = &u
		}

		interactions = append(interactions, &rec)
	}
	return interactions, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
