package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/chartgen/internal/chart"
	"github.com/vbonduro/chartgen/internal/imagestore"
	"github.com/vbonduro/chartgen/internal/provider"
	"github.com/vbonduro/chartgen/internal/store"
)

var (
	ErrEmptyPrompt          = errors.New("prompt is empty and no image is attached")
	ErrGenerationInFlight   = errors.New("a generation is already in progress")
	ErrSuperseded           = errors.New("generation result was superseded by a newer change")
	ErrUnknownPalette       = errors.New("unknown palette")
	ErrPaletteNotApplicable = errors.New("palettes only apply to numeric charts")
	ErrNoCurrentConfig      = errors.New("no chart is loaded")
)

const imagePrefix = "history"

// historyRepository is the subset of store.HistoryStore that ChartService requires.
type historyRepository interface {
	Append(ctx context.Context, entry *chart.HistoryEntry) error
	List(ctx context.Context) ([]*chart.HistoryEntry, error)
	Get(ctx context.Context, id string) (*chart.HistoryEntry, error)
	Delete(ctx context.Context, id string) (*chart.HistoryEntry, error)
	Clear(ctx context.Context) ([]chart.Image, error)
	ReplaceAll(ctx context.Context, entries []*chart.HistoryEntry) ([]chart.Image, error)
}

type adapterSource interface {
	Adapter(kind provider.Kind) (provider.Adapter, error)
}

type normalizer interface {
	Normalize(raw string) (*chart.Config, error)
}

type detector interface {
	Detect(text string) (*chart.Config, error)
}

type ChartService struct {
	adapters   adapterSource
	normalizer normalizer
	detector   detector
	history    historyRepository
	images     imagestore.ImageStore
	logger     *slog.Logger

	// now is truncated to milliseconds, the precision history persists.
	now   func() time.Time
	newID func() string

	generating atomic.Bool
	ws         workspace
}

func NewChartService(
	adapters adapterSource,
	norm normalizer,
	det detector,
	history historyRepository,
	images imagestore.ImageStore,
	logger *slog.Logger,
) *ChartService {
	return &ChartService{
		adapters:   adapters,
		normalizer: norm,
		detector:   det,
		history:    history,
		images:     images,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		newID:      uuid.NewString,
	}
}

type GenerateInput struct {
	Selection provider.Selection
	Prompt    string
	Language  provider.Language
	Mode      provider.Mode
	Image     *provider.Image
}

// Generate asks the selected model for a chart, installs it as the current
// config and records it in history. Only one generation runs at a time, and a
// result that lost the race to a newer edit or selection is dropped.
func (s *ChartService) Generate(ctx context.Context, in GenerateInput) (*chart.HistoryEntry, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		if in.Image == nil {
			return nil, ErrEmptyPrompt
		}
		prompt = provider.DefaultPrompt(in.Language)
	}

	if !s.generating.CompareAndSwap(false, true) {
		return nil, ErrGenerationInFlight
	}
	defer s.generating.Store(false)

	adapter, err := s.adapters.Adapter(in.Selection.Kind)
	if err != nil {
		return nil, err
	}

	seq := s.ws.begin()
	s.logger.Info("generation started",
		"provider", in.Selection.Kind,
		"platform", in.Selection.Platform,
		"mode", in.Mode,
		"has_image", in.Image != nil)

	raw, err := adapter.Generate(ctx, provider.Request{
		Prompt:   prompt,
		Language: in.Language,
		Mode:     in.Mode,
		Image:    in.Image,
	}, in.Selection.Credentials)
	if err != nil {
		s.logger.Warn("generation failed", "provider", in.Selection.Kind, "error", err)
		return nil, fmt.Errorf("failed to generate chart: %w", err)
	}

	cfg, err := s.normalizer.Normalize(raw)
	if err != nil {
		s.logger.Warn("model reply rejected", "provider", in.Selection.Kind, "error", err)
		return nil, fmt.Errorf("failed to normalize reply: %w", err)
	}

	if !s.ws.commit(seq, cfg) {
		s.logger.Info("generation result discarded", "provider", in.Selection.Kind, "reason", "superseded")
		return nil, ErrSuperseded
	}
	s.logger.Info("generation complete", "provider", in.Selection.Kind, "chart_kind", cfg.Kind)

	entry := &chart.HistoryEntry{
		ID:        s.newID(),
		CreatedAt: s.now(),
		Prompt:    prompt,
		Config:    cfg,
	}
	if in.Image != nil {
		mimeType := provider.NormaliseMIME(in.Image.MIMEType)
		key, err := s.images.Save(ctx, imagePrefix, mimeType, bytes.NewReader(in.Image.Data))
		if err != nil {
			s.logger.Error("failed to save reference image", "error", err)
		} else {
			entry.Image = &chart.Image{Key: key, MimeType: mimeType}
		}
	}

	// The chart is already on display; losing the history record is logged
	// rather than failing the generation.
	if err := s.history.Append(ctx, entry); err != nil {
		s.logger.Error("failed to record history entry", "id", entry.ID, "error", err)
		if entry.Image != nil {
			s.deleteImage(ctx, entry.Image.Key)
		}
	}
	return entry, nil
}

// Detect classifies hand-edited text and, when it yields a valid config,
// makes it current. A failure leaves the current config unchanged.
func (s *ChartService) Detect(text string) (*chart.Config, error) {
	cfg, err := s.detector.Detect(text)
	if err != nil {
		return nil, err
	}
	s.ws.replace(cfg)
	return cfg, nil
}

// Current returns nil before anything has been generated, detected or
// selected.
func (s *ChartService) Current() *chart.Config {
	return s.ws.snapshot()
}

func (s *ChartService) ApplyPalette(name string) (*chart.Config, error) {
	colors, ok := chart.Palettes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPalette, name)
	}
	return s.ws.update(func(cur *chart.Config) (*chart.Config, error) {
		if cur == nil {
			return nil, ErrNoCurrentConfig
		}
		if !cur.Kind.Numeric() {
			return nil, ErrPaletteNotApplicable
		}
		return cur.WithSeriesColors(colors), nil
	})
}

// History lists entries most recent first. A history that no longer decodes
// is discarded as a whole.
func (s *ChartService) History(ctx context.Context) ([]*chart.HistoryEntry, error) {
	entries, err := s.history.List(ctx)
	if errors.Is(err, store.ErrCorruptHistory) {
		s.logger.Warn("discarding corrupt history", "error", err)
		if err := s.ClearHistory(ctx); err != nil {
			return nil, err
		}
		return []*chart.HistoryEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*chart.HistoryEntry{}
	}
	return entries, nil
}

func (s *ChartService) GetEntry(ctx context.Context, id string) (*chart.HistoryEntry, error) {
	entry, err := s.history.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, store.ErrNotFound
	}
	return entry, nil
}

func (s *ChartService) DeleteEntry(ctx context.Context, id string) error {
	entry, err := s.history.Delete(ctx, id)
	if err != nil {
		return err
	}
	if entry.Image != nil {
		s.deleteImage(ctx, entry.Image.Key)
	}
	s.logger.Info("history entry deleted", "id", id)
	return nil
}

func (s *ChartService) ClearHistory(ctx context.Context) error {
	images, err := s.history.Clear(ctx)
	if err != nil {
		return err
	}
	for _, img := range images {
		s.deleteImage(ctx, img.Key)
	}
	s.logger.Info("history cleared", "images_removed", len(images))
	return nil
}

// SelectEntry restores an entry's config as the current one.
func (s *ChartService) SelectEntry(ctx context.Context, id string) (*chart.HistoryEntry, error) {
	entry, err := s.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	s.ws.replace(entry.Config)
	return entry, nil
}

// EntryImage opens the reference image stored with an entry.
func (s *ChartService) EntryImage(ctx context.Context, id string) (io.ReadCloser, string, error) {
	entry, err := s.GetEntry(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if entry.Image == nil {
		return nil, "", imagestore.ErrNotFound
	}
	return s.images.Get(ctx, entry.Image.Key)
}

func (s *ChartService) deleteImage(ctx context.Context, key string) {
	if err := s.images.Delete(ctx, key); err != nil && !errors.Is(err, imagestore.ErrNotFound) {
		s.logger.Error("failed to delete image", "key", key, "error", err)
	}
}
