package sidecar

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps progress records in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating when needed) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sidecar directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sidecar database: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS progress (
		user_id              TEXT NOT NULL,
		wizard               TEXT NOT NULL,
		last_active_section  INTEGER,
		completed_sections   TEXT NOT NULL DEFAULT '[]',
		downloaded_artifacts TEXT NOT NULL DEFAULT '[]',
		is_complete          INTEGER NOT NULL DEFAULT 0,
		updated_at           DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, wizard)
	);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create progress table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Load(ctx context.Context, key Key) (Progress, bool, error) {
	var (
		p          Progress
		last       sql.NullInt64
		completed  string
		downloaded string
		isComplete int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT last_active_section, completed_sections, downloaded_artifacts, is_complete
		 FROM progress WHERE user_id = ? AND wizard = ?`,
		key.UserID, key.Wizard,
	).Scan(&last, &completed, &downloaded, &isComplete)
	if errors.Is(err, sql.ErrNoRows) {
		return Progress{}, false, nil
	}
	if err != nil {
		return Progress{}, false, fmt.Errorf("load progress: %w", err)
	}

	if last.Valid {
		v := int(last.Int64)
		p.LastActiveSection = &v
	}
	if err := json.Unmarshal([]byte(completed), &p.CompletedSections); err != nil {
		return Progress{}, false, fmt.Errorf("decode completed sections: %w", err)
	}
	if err := json.Unmarshal([]byte(downloaded), &p.DownloadedArtifacts); err != nil {
		return Progress{}, false, fmt.Errorf("decode downloaded artifacts: %w", err)
	}
	p.IsComplete = isComplete != 0
	return p, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, key Key, p Progress) error {
	completed, err := json.Marshal(nonNil(p.CompletedSections))
	if err != nil {
		return err
	}
	downloaded, err := json.Marshal(nonNil(p.DownloadedArtifacts))
	if err != nil {
		return err
	}
	var last sql.NullInt64
	if p.LastActiveSection != nil {
		last = sql.NullInt64{Int64: int64(*p.LastActiveSection), Valid: true}
	}
	isComplete := 0
	if p.IsComplete {
		isComplete = 1
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO progress (user_id, wizard, last_active_section, completed_sections, downloaded_artifacts, is_complete)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, wizard) DO UPDATE SET
			last_active_section  = excluded.last_active_section,
			completed_sections   = excluded.completed_sections,
			downloaded_artifacts = excluded.downloaded_artifacts,
			is_complete          = excluded.is_complete,
			updated_at           = CURRENT_TIMESTAMP`,
		key.UserID, key.Wizard, last, string(completed), string(downloaded), isComplete,
	)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

func nonNil(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}
