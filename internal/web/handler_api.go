package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/vbonduro/chartgen/internal/chart"
	"github.com/vbonduro/chartgen/internal/config"
	"github.com/vbonduro/chartgen/internal/imagestore"
	"github.com/vbonduro/chartgen/internal/normalize"
	"github.com/vbonduro/chartgen/internal/provider"
	"github.com/vbonduro/chartgen/internal/service"
	"github.com/vbonduro/chartgen/internal/store"
)

const (
	maxDetectBody = 4 * 1024 * 1024
	// Imports inline their images, so they get the image budget several times over.
	maxImportBody = 8 * maxImageSize
)

type configResponse struct {
	Config *chart.Config `json:"config"`
	Source string        `json:"source"`
}

type generateResponse struct {
	Entry  *chart.HistoryEntry `json:"entry"`
	Source string              `json:"source"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	form, img, err := readGenerateForm(w, r, s.logger)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	mode, err := provider.ParseMode(form.Mode)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	lang := form.Language
	if lang == "" {
		lang = s.cfg.DefaultLanguage
	}

	sel, err := s.cfg.Selection(form.Provider, form.Platform)
	if err != nil {
		s.writeServiceError(w, "resolve provider", err)
		return
	}
	if form.Model != "" {
		sel.Credentials.Model = form.Model
	}

	entry, err := s.service.Generate(r.Context(), service.GenerateInput{
		Selection: sel,
		Prompt:    form.Prompt,
		Language:  provider.ParseLanguage(lang),
		Mode:      mode,
		Image:     img,
	})
	if err != nil {
		s.writeServiceError(w, "generate", err)
		return
	}

	source, err := normalize.Encode(entry.Config)
	if err != nil {
		s.writeServiceError(w, "encode config", err)
		return
	}
	s.writeJSON(w, http.StatusOK, generateResponse{Entry: entry, Source: source})
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDetectBody))
	if err != nil {
		s.writeError(w, http.StatusRequestEntityTooLarge, "request too large")
		return
	}
	cfg, err := s.service.Detect(string(body))
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.writeConfig(w, cfg)
}

func (s *Server) handleCurrent(w http.ResponseWriter, _ *http.Request) {
	cfg := s.service.Current()
	if cfg == nil {
		s.writeError(w, http.StatusNotFound, service.ErrNoCurrentConfig.Error())
		return
	}
	s.writeConfig(w, cfg)
}

func (s *Server) handlePalette(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.service.ApplyPalette(r.PathValue("name"))
	if err != nil {
		s.writeServiceError(w, "apply palette", err)
		return
	}
	s.writeConfig(w, cfg)
}

type providersResponse struct {
	Providers       []config.ProviderStatus `json:"providers"`
	Palettes        []string                `json:"palettes"`
	DefaultProvider string                  `json:"defaultProvider"`
	DefaultPlatform string                  `json:"defaultPlatform"`
	DefaultLanguage string                  `json:"defaultLanguage"`
}

func (s *Server) handleProviders(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, providersResponse{
		Providers:       s.cfg.Providers(),
		Palettes:        chart.PaletteNames(),
		DefaultProvider: s.cfg.DefaultProvider,
		DefaultPlatform: s.cfg.DefaultPlatform,
		DefaultLanguage: s.cfg.DefaultLanguage,
	})
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.History(r.Context())
	if err != nil {
		s.writeServiceError(w, "list history", err)
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ClearHistory(r.Context()); err != nil {
		s.writeServiceError(w, "clear history", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportHistory(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.ExportHistory(r.Context())
	if err != nil {
		s.writeServiceError(w, "export history", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="chartgen-history.json"`)
	if _, err := w.Write(data); err != nil {
		s.logger.Error("write export failed", "error", err)
	}
}

func (s *Server) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBody))
	if err != nil {
		s.writeError(w, http.StatusRequestEntityTooLarge, "request too large")
		return
	}
	n, err := s.service.ImportHistory(r.Context(), data)
	if err != nil {
		s.writeServiceError(w, "import history", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.service.GetEntry(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, "get entry", err)
		return
	}
	s.writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteEntry(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, "delete entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSelectEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.service.SelectEntry(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, "select entry", err)
		return
	}
	s.writeConfig(w, entry.Config)
}

func (s *Server) handleEntryImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	reader, mimeType, err := s.service.EntryImage(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, "get entry image", err)
		return
	}
	defer closeWithLog(reader, "image reader", s.logger)

	w.Header().Set("Content-Type", mimeType)
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Error("write image failed", "id", id, "error", err)
	}
}

func (s *Server) writeConfig(w http.ResponseWriter, cfg *chart.Config) {
	source, err := normalize.Encode(cfg)
	if err != nil {
		s.writeServiceError(w, "encode config", err)
		return
	}
	s.writeJSON(w, http.StatusOK, configResponse{Config: cfg, Source: source})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps err to a status. Unexpected errors are logged and
// reported without detail.
func (s *Server) writeServiceError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(op+" failed", "error", err)
		s.writeError(w, status, "internal error")
		return
	}
	s.writeError(w, status, err.Error())
}

func statusFor(err error) int {
	var (
		cfgErr       *chart.ConfigurationError
		providerErr  *chart.ProviderError
		emptyErr     *chart.EmptyResponseError
		malformedErr *chart.MalformedResponseError
		schemaErr    *chart.SchemaViolationError
	)
	switch {
	case errors.As(err, &cfgErr),
		errors.Is(err, service.ErrEmptyPrompt),
		errors.Is(err, store.ErrCorruptHistory):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, imagestore.ErrNotFound),
		errors.Is(err, service.ErrUnknownPalette):
		return http.StatusNotFound
	case errors.Is(err, service.ErrGenerationInFlight),
		errors.Is(err, service.ErrSuperseded),
		errors.Is(err, service.ErrNoCurrentConfig):
		return http.StatusConflict
	case errors.Is(err, service.ErrPaletteNotApplicable),
		errors.Is(err, chart.ErrDetectionFailed):
		return http.StatusUnprocessableEntity
	case errors.As(err, &providerErr),
		errors.As(err, &emptyErr),
		errors.As(err, &malformedErr),
		errors.As(err, &schemaErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
