package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vbonduro/chartgen/internal/config"
	"github.com/vbonduro/chartgen/internal/db"
	"github.com/vbonduro/chartgen/internal/detect"
	"github.com/vbonduro/chartgen/internal/imagestore"
	"github.com/vbonduro/chartgen/internal/imagestore/local"
	"github.com/vbonduro/chartgen/internal/imagestore/s3"
	"github.com/vbonduro/chartgen/internal/logging"
	"github.com/vbonduro/chartgen/internal/normalize"
	"github.com/vbonduro/chartgen/internal/provider"
	"github.com/vbonduro/chartgen/internal/provider/anthropic"
	"github.com/vbonduro/chartgen/internal/provider/compat"
	"github.com/vbonduro/chartgen/internal/provider/gemini"
	"github.com/vbonduro/chartgen/internal/provider/openai"
	"github.com/vbonduro/chartgen/internal/service"
	"github.com/vbonduro/chartgen/internal/store"
)

// providerTimeout bounds one model call; image prompts on slow vendors can
// take well over a minute.
const providerTimeout = 110 * time.Second

type app struct {
	database *sql.DB
	service  *service.ChartService
	logger   *slog.Logger
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	images, err := newImageStore(cfg, logging.Component(logger, "imagestore"))
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	det, err := detect.New(cfg.DetectCacheSize)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	httpClient := &http.Client{Timeout: providerTimeout}
	registry := provider.NewRegistry(
		gemini.New(httpClient),
		openai.New(httpClient),
		compat.New(httpClient),
		anthropic.New(httpClient),
	)
	logger.Info("providers registered", "kinds", registry.Kinds(), "default", cfg.DefaultProvider)

	svc := service.NewChartService(
		registry,
		normalize.New(cfg.FormatMarkup),
		det,
		store.NewHistoryStore(database),
		images,
		logging.Component(logger, "service"),
	)
	return &app{database: database, service: svc, logger: logger}, nil
}

func newImageStore(cfg *config.Config, logger *slog.Logger) (imagestore.ImageStore, error) {
	switch cfg.ImageBackend {
	case "s3":
		logger.Info("using S3 image store", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
		st, err := s3.New(s3.Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize image store: %w", err)
		}
		return st, nil
	default:
		logger.Info("using local image store", "path", cfg.ImageLocalPath)
		st, err := local.New(cfg.ImageLocalPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize image store: %w", err)
		}
		return st, nil
	}
}

func (a *app) close() {
	if err := a.database.Close(); err != nil {
		a.logger.Error("failed to close database", "error", err)
	}
}
