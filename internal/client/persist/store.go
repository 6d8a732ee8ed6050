// Package persist keeps the signed-in session on disk between launches.
package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS session (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	token      TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	expires_at INTEGER NOT NULL,
	saved_at   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS drafts (
	chat_id TEXT PRIMARY KEY,
	text    TEXT NOT NULL
);`

// Saved is the persisted session.
type Saved struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	SavedAt   time.Time
}

func (s Saved) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path. "file::memory:" keeps it in
// memory.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("persist: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("persist: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Save(ctx context.Context, saved Saved) error {
	if saved.SavedAt.IsZero() {
		saved.SavedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO session (id, token, user_id, expires_at, saved_at) VALUES (1, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET token = excluded.token, user_id = excluded.user_id,
	expires_at = excluded.expires_at, saved_at = excluded.saved_at`,
		saved.Token, saved.UserID, saved.ExpiresAt.UnixMilli(), saved.SavedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("persist: save session: %w", err)
	}
	return nil
}

// Load returns the saved session; ok is false when there is none.
func (s *Store) Load(ctx context.Context) (Saved, bool, error) {
	var (
		out              Saved
		expires, savedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT token, user_id, expires_at, saved_at FROM session WHERE id = 1`,
	).Scan(&out.Token, &out.UserID, &expires, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Saved{}, false, nil
	}
	if err != nil {
		return Saved{}, false, fmt.Errorf("persist: load session: %w", err)
	}
	out.ExpiresAt = time.UnixMilli(expires).UTC()
	out.SavedAt = time.UnixMilli(savedAt).UTC()
	return out, true, nil
}

func (s *Store) SaveDraft(ctx context.Context, chatID, text string) error {
	var err error
	if text == "" {
		_, err = s.db.ExecContext(ctx, `DELETE FROM drafts WHERE chat_id = ?`, chatID)
	} else {
		_, err = s.db.ExecContext(ctx, `
INSERT INTO drafts (chat_id, text) VALUES (?, ?)
ON CONFLICT(chat_id) DO UPDATE SET text = excluded.text`, chatID, text)
	}
	if err != nil {
		return fmt.Errorf("persist: save draft: %w", err)
	}
	return nil
}

func (s *Store) Drafts(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chat_id, text FROM drafts`)
	if err != nil {
		return nil, fmt.Errorf("persist: drafts: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, text string
		if err := rows.Scan(&id, &text); err != nil {
			return nil, err
		}
		out[id] = text
	}
	return out, rows.Err()
}

// Clear forgets the session and every draft.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persist: clear: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("persist: clear session: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM drafts`); err != nil {
		return fmt.Errorf("persist: clear drafts: %w", err)
	}
	return tx.Commit()
}
