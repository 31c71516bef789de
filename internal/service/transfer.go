package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/vbonduro/chartgen/internal/chart"
	"github.com/vbonduro/chartgen/internal/normalize"
	"github.com/vbonduro/chartgen/internal/provider"
	"github.com/vbonduro/chartgen/internal/store"
)

// exportedEntry is the portable form of a history entry. Images travel inline
// as data URLs so an export is self-contained.
type exportedEntry struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"createdAt"`
	Prompt    string        `json:"prompt"`
	Config    *chart.Config `json:"config"`
	Image     string        `json:"image,omitempty"`
}

// importedEntry also accepts the millisecond "timestamp" written by older
// exports.
type importedEntry struct {
	ID        string          `json:"id"`
	CreatedAt *time.Time      `json:"createdAt"`
	Timestamp *int64          `json:"timestamp"`
	Prompt    string          `json:"prompt"`
	Config    json.RawMessage `json:"config"`
	Image     string          `json:"image"`
}

// ExportHistory serializes the whole history, most recent first.
func (s *ChartService) ExportHistory(ctx context.Context) ([]byte, error) {
	entries, err := s.History(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]exportedEntry, 0, len(entries))
	for _, e := range entries {
		exp := exportedEntry{ID: e.ID, CreatedAt: e.CreatedAt, Prompt: e.Prompt, Config: e.Config}
		if e.Image != nil {
			dataURL, err := s.inlineImage(ctx, e.Image)
			if err != nil {
				s.logger.Warn("exporting entry without image", "id", e.ID, "error", err)
			} else {
				exp.Image = dataURL
			}
		}
		out = append(out, exp)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("failed to encode history: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *ChartService) inlineImage(ctx context.Context, img *chart.Image) (string, error) {
	rc, mimeType, err := s.images.Get(ctx, img.Key)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := rc.Close(); err != nil {
			s.logger.Error("failed to close image", "key", img.Key, "error", err)
		}
	}()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	if img.MimeType != "" {
		mimeType = img.MimeType
	}
	return provider.DataURL(&provider.Image{Data: data, MIMEType: mimeType}), nil
}

// ImportHistory replaces the history with an exported document. The document
// is parsed in full first: any invalid entry rejects the import and the
// existing history is kept.
func (s *ChartService) ImportHistory(ctx context.Context, data []byte) (int, error) {
	parsed, err := parseExport(data)
	if err != nil {
		return 0, err
	}

	entries := make([]*chart.HistoryEntry, len(parsed))
	var saved []string
	rollback := func() {
		for _, key := range saved {
			s.deleteImage(ctx, key)
		}
	}
	for i, p := range parsed {
		entries[i] = p.entry
		if p.image == nil {
			continue
		}
		key, err := s.images.Save(ctx, imagePrefix, p.image.MIMEType, bytes.NewReader(p.image.Data))
		if err != nil {
			rollback()
			return 0, fmt.Errorf("failed to save imported image: %w", err)
		}
		saved = append(saved, key)
		p.entry.Image = &chart.Image{Key: key, MimeType: p.image.MIMEType}
	}

	replaced, err := s.history.ReplaceAll(ctx, entries)
	if err != nil {
		rollback()
		return 0, err
	}
	for _, img := range replaced {
		s.deleteImage(ctx, img.Key)
	}

	s.logger.Info("history imported", "entries", len(entries), "images", len(saved))
	return len(entries), nil
}

type parsedEntry struct {
	entry *chart.HistoryEntry
	image *provider.Image
}

func parseExport(data []byte) ([]parsedEntry, error) {
	var raw []importedEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrCorruptHistory, err)
	}

	seen := make(map[string]bool, len(raw))
	out := make([]parsedEntry, 0, len(raw))
	for i, r := range raw {
		if r.ID == "" {
			return nil, fmt.Errorf("%w: entry %d has no id", store.ErrCorruptHistory, i)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("%w: duplicate id %q", store.ErrCorruptHistory, r.ID)
		}
		seen[r.ID] = true

		if len(r.Config) == 0 {
			return nil, fmt.Errorf("%w: entry %q has no config", store.ErrCorruptHistory, r.ID)
		}
		cfg, err := normalize.Decode(string(r.Config))
		if err != nil {
			return nil, fmt.Errorf("%w: entry %q: %v", store.ErrCorruptHistory, r.ID, err)
		}

		var createdAt time.Time
		switch {
		case r.CreatedAt != nil:
			createdAt = r.CreatedAt.UTC()
		case r.Timestamp != nil:
			createdAt = time.UnixMilli(*r.Timestamp).UTC()
		default:
			return nil, fmt.Errorf("%w: entry %q has no timestamp", store.ErrCorruptHistory, r.ID)
		}

		p := parsedEntry{entry: &chart.HistoryEntry{
			ID:        r.ID,
			CreatedAt: createdAt,
			Prompt:    r.Prompt,
			Config:    cfg,
		}}
		if r.Image != "" {
			img, err := provider.ParseDataURL(r.Image)
			if err != nil {
				return nil, fmt.Errorf("%w: entry %q image: %v", store.ErrCorruptHistory, r.ID, err)
			}
			p.image = img
		}
		out = append(out, p)
	}
	return out, nil
}
