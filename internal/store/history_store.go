package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vbonduro/chartgen/internal/chart"
	"github.com/vbonduro/chartgen/internal/normalize"
)

var (
	// ErrCorruptHistory means a persisted or imported entry does not hold a
	// valid config. Callers discard or reject the history as a whole.
	ErrCorruptHistory = errors.New("history is corrupt")
	ErrNotFound       = errors.New("history entry not found")
)

type HistoryStore struct {
	db *sql.DB
}

func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *HistoryStore) Append(ctx context.Context, entry *chart.HistoryEntry) error {
	return insert(ctx, s.db, entry)
}

func insert(ctx context.Context, db execer, entry *chart.HistoryEntry) error {
	configJSON, err := normalize.Encode(entry.Config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	var imageKey, imageMime sql.NullString
	if entry.Image != nil {
		imageKey = sql.NullString{String: entry.Image.Key, Valid: true}
		imageMime = sql.NullString{String: entry.Image.MimeType, Valid: true}
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO history_entries (id, created_at, prompt, config_json, image_key, image_mime)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.CreatedAt.UnixMilli(), entry.Prompt, configJSON, imageKey, imageMime)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}
	return nil
}

// List returns every entry, most recent first.
func (s *HistoryStore) List(ctx context.Context) ([]*chart.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, prompt, config_json, image_key, image_mime
		FROM history_entries ORDER BY seq DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var entries []*chart.HistoryEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}

	return entries, nil
}

// Get returns nil, nil when no entry has the id.
func (s *HistoryStore) Get(ctx context.Context, id string) (*chart.HistoryEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, prompt, config_json, image_key, image_mime
		FROM history_entries WHERE id = ?
	`, id)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Delete removes one entry and returns it so the caller can release its image.
func (s *HistoryStore) Delete(ctx context.Context, id string) (*chart.HistoryEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT id, created_at, prompt, config_json, image_key, image_mime
		FROM history_entries WHERE id = ?
	`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM history_entries WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("failed to delete history entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit delete: %w", err)
	}
	return entry, nil
}

// Clear removes every entry and returns the image references that were held,
// since the rows themselves may no longer decode.
func (s *HistoryStore) Clear(ctx context.Context) ([]chart.Image, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	images, err := imageRefs(ctx, tx)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM history_entries`); err != nil {
		return nil, fmt.Errorf("failed to clear history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit clear: %w", err)
	}
	return images, nil
}

// ReplaceAll swaps the whole history for entries, given most recent first.
// It returns the image references of the replaced entries. Nothing changes
// if any insert fails.
func (s *HistoryStore) ReplaceAll(ctx context.Context, entries []*chart.HistoryEntry) ([]chart.Image, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	images, err := imageRefs(ctx, tx)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM history_entries`); err != nil {
		return nil, fmt.Errorf("failed to clear history: %w", err)
	}

	// Insert oldest first so seq order matches the given order.
	for i := len(entries) - 1; i >= 0; i-- {
		if err := insert(ctx, tx, entries[i]); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import: %w", err)
	}
	return images, nil
}

func imageRefs(ctx context.Context, tx *sql.Tx) ([]chart.Image, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT image_key, image_mime FROM history_entries
		WHERE image_key IS NOT NULL ORDER BY seq DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var images []chart.Image
	for rows.Next() {
		var key string
		var mime sql.NullString
		if err := rows.Scan(&key, &mime); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, chart.Image{Key: key, MimeType: mime.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate images: %w", err)
	}
	return images, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*chart.HistoryEntry, error) {
	var (
		entry      chart.HistoryEntry
		createdAt  int64
		configJSON string
		imageKey   sql.NullString
		imageMime  sql.NullString
	)
	err := row.Scan(&entry.ID, &createdAt, &entry.Prompt, &configJSON, &imageKey, &imageMime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan history entry: %w", err)
	}

	cfg, err := normalize.Decode(configJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: entry %s: %v", ErrCorruptHistory, entry.ID, err)
	}
	entry.Config = cfg
	entry.CreatedAt = time.UnixMilli(createdAt).UTC()
	if imageKey.Valid && imageKey.String != "" {
		entry.Image = &chart.Image{Key: imageKey.String, MimeType: imageMime.String}
	}
	return &entry, nil
}
