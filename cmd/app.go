package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"auto_update_reviews/config"
	"auto_update_reviews/internal/delivery/cron"
	"auto_update_reviews/internal/domain"
	"auto_update_reviews/internal/infrastructure/embedding"
	httpclient "auto_update_reviews/internal/infrastructure/http"
	"auto_update_reviews/internal/infrastructure/source"
	"auto_update_reviews/internal/infrastructure/youtube"
	"auto_update_reviews/internal/logger"
	"auto_update_reviews/internal/metrics"
	"auto_update_reviews/internal/repository/memory"
	sqliterepo "auto_update_reviews/internal/repository/sqlite"
	"auto_update_reviews/internal/usecase"
)

// app holds every wired component of the service.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	metrics   *metrics.Metrics
	db        *sqlx.DB
	reviews   domain.ReviewRepository
	logs      domain.RunLogRepository
	settings  domain.SettingsStore
	pipeline  *usecase.Pipeline
	scheduler *cron.Scheduler
}

// loadConfig reads .env and the YAML config, then starts the file logger.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		config.SetPath(configPath)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if _, err := logger.Initialize(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.L().Debug("configuration loaded", zap.String("path", config.GetManager().Path()))
	return cfg, nil
}

// openStores returns the record store, run log and settings. In-memory stores are used for dry runs.
func (a *app) openStores(inMemory bool) error {
	if inMemory {
		a.reviews = memory.NewReviewRepository()
		a.logs = memory.NewRunLogRepository()
		a.settings = memory.NewSettingsStore()
		return nil
	}

	db, err := sqliterepo.Open(a.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.db = db
	a.reviews = sqliterepo.NewReviewRepository(db)
	a.logs = sqliterepo.NewRunLogRepository(db)
	a.settings = sqliterepo.NewSettingsRepository(db)
	return nil
}

// newStoreApp opens the stores only. Its scheduler can report status and history but cannot run.
func newStoreApp(cfg *config.Config) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger.L(),
		metrics: metrics.New(),
	}
	if err := a.openStores(false); err != nil {
		return nil, err
	}
	a.scheduler = cron.NewScheduler(nil, a.logs, a.reviews, a.settings, a.metrics,
		cron.OptionsFromConfig(cfg), a.logger.Named("scheduler"))
	return a, nil
}

// newApp wires stores, the candidate source, the pipeline stages and the scheduler.
func newApp(ctx context.Context, cfg *config.Config, inMemory bool) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger.L(),
		metrics: metrics.New(),
	}
	if err := a.openStores(inMemory); err != nil {
		return nil, err
	}

	httpClient := httpclient.NewHTTPClient(cfg)

	youtubeService := youtube.NewService(cfg, httpClient, a.logger.Named("youtube"))
	var pages youtube.PageFetcher = youtube.NewHTTPPageFetcher(httpClient)
	if cfg.YouTubeBrowserRender {
		pages = youtube.NewBrowserFetcher(cfg.ChromePath, cfg.HTTPClientTimeout)
	}
	resolver := youtube.NewPageResolver(youtubeService, httpClient, pages, a.logger.Named("resolver"),
		youtube.WithInvidious(youtube.NewInvidiousClient(httpClient)))

	keys := cfg.YouTubeCredentials()
	if len(keys) == 0 {
		a.logger.Warn("no YouTube API key configured, runs will use synthetic candidates")
	}
	src := source.NewSmartSource(youtubeService, resolver, source.NewSyntheticGenerator(), keys, a.metrics, a.logger.Named("source"))

	classifier := a.newClassifier(ctx, httpClient)

	a.pipeline = usecase.NewPipeline(
		src,
		usecase.NewQualityValidator(usecase.QualityRulesFromConfig(cfg)),
		usecase.NewDuplicateDetectorFromConfig(cfg, a.reviews, a.logger.Named("duplicates")),
		classifier,
		a.reviews,
		a.metrics,
		usecase.PipelineOptionsFromConfig(cfg),
		a.logger.Named("pipeline"),
	)

	a.scheduler = cron.NewScheduler(a.pipeline, a.logs, a.reviews, a.settings, a.metrics,
		cron.OptionsFromConfig(cfg), a.logger.Named("scheduler"))
	return a, nil
}

func (a *app) newClassifier(ctx context.Context, httpClient *httpclient.HTTPClient) domain.Classifier {
	keywords := usecase.NewKeywordClassifier(a.logger.Named("classifier"))
	if a.cfg.ClassifierStrategy != "embedding" {
		return keywords
	}

	encoder := embedding.NewClient(a.cfg.EmbeddingURL, a.cfg.EmbeddingTimeout, httpClient)
	genres := usecase.NewEmbeddingGenreClassifier(encoder)
	if err := genres.Warmup(ctx); err != nil {
		// retried lazily on the first classification
		a.logger.Warn("embedding classifier warmup failed", zap.Error(err))
	}
	return usecase.NewCompositeClassifier(keywords, genres, a.logger.Named("classifier"))
}

// Close releases the database and flushes the log files.
func (a *app) Close() error {
	var errs []error
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	if err := logger.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close log files: %w", err))
	}
	return errors.Join(errs...)
}
