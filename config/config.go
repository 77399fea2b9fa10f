package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// placeholderAPIKey is the value shipped in sample configs; it never counts as a credential.
const placeholderAPIKey = "YOUR_YOUTUBE_API_KEY_HERE"

// credentialEnvVars are checked, in order, for additional YouTube API keys.
var credentialEnvVars = []string{
	"YOUTUBE_API_KEY",
	"YOUTUBE_API_KEY_1",
	"YOUTUBE_API_KEY_2",
	"YOUTUBE_API_KEY_3",
}

// DefaultSearchQueries are the reviewer channels searched when no queries are configured.
var DefaultSearchQueries = []string{
	"Chơi Phim Review",
	"NiNi Mê Phim",
	"Mèo Mê Phim",
	"PIKACHU Review Phim",
	"Ớt Review Phim",
	"All In One Movie",
	"FC Review",
	"Vus Review",
	"Vus Review phim",
	"Chú Cuội Review Phim",
	"Review phim Nguyễn Review 2",
	"Review phim Cuồng Phim Hay",
	"Review phim Chén Phim Review",
	"Review phim Động Phim Review",
}

// DefaultBlacklist holds piracy and spam terms rejected by the quality validator.
var DefaultBlacklist = []string{"cam", "lậu", "download", "link phim", "full hd free", "hack", "crack"}

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerPort string `yaml:"server.port"`

	// YouTube API configuration
	YouTubeAPIKeys        []string `yaml:"youtube.api_keys"`
	YouTubeBaseURL        string   `yaml:"youtube.base_url"`
	YouTubeRegion         string   `yaml:"youtube.region"`
	YouTubeLanguage       string   `yaml:"youtube.language"`
	YouTubeRequestsPerSec float64  `yaml:"youtube.requests_per_second"`
	YouTubeBrowserRender  bool     `yaml:"youtube.browser_render"` // Render watch pages with headless Chrome
	ChromePath            string   `yaml:"youtube.chrome_path"`

	// Candidate sources
	SearchQueries      []string `yaml:"sources.queries"`
	MaxResultsPerQuery int      `yaml:"sources.max_results"`

	// Quality gate
	MinTitleLength int      `yaml:"quality.min_title_length"`
	MinViews       int64    `yaml:"quality.min_views"`
	MinDuration    int      `yaml:"quality.min_duration"`
	MaxDuration    int      `yaml:"quality.max_duration"` // 0 = unlimited
	Blacklist      []string `yaml:"quality.blacklist"`

	// Duplicate detection against stored records
	TitleSimilarityThreshold       float64 `yaml:"duplicates.title_threshold"`
	DescriptionSimilarityThreshold float64 `yaml:"duplicates.description_threshold"`
	MovieSimilarityThreshold       float64 `yaml:"duplicates.movie_threshold"`
	DuplicateStoreWindow           int     `yaml:"duplicates.store_window"`

	// Duplicate detection within one run, defaults to the store thresholds
	BatchTitleThreshold       float64 `yaml:"duplicates.batch.title_threshold"`
	BatchDescriptionThreshold float64 `yaml:"duplicates.batch.description_threshold"`
	BatchMovieThreshold       float64 `yaml:"duplicates.batch.movie_threshold"`

	// Classification
	ClassifierStrategy  string        `yaml:"classifier.strategy"` // keyword | embedding
	EmbeddingURL        string        `yaml:"classifier.embedding_url"`
	EmbeddingTimeout    time.Duration `yaml:"-"`
	EmbeddingTimeoutStr string        `yaml:"classifier.embedding_timeout"`

	// Ingestion
	MaxNewPerRun  int  `yaml:"ingest.max_new_per_run"` // 0 = unlimited
	AutoPublish   bool `yaml:"ingest.auto_publish"`
	DefaultRating int  `yaml:"ingest.default_rating"`

	// Scheduler configuration
	Schedule             string        `yaml:"scheduler.schedule"` // cron expression, overrides interval
	SchedulerInterval    time.Duration `yaml:"-"`
	SchedulerIntervalStr string        `yaml:"scheduler.interval"`
	SchedulerEnabled     bool          `yaml:"scheduler.enabled"`
	RunOnStart           bool          `yaml:"scheduler.run_on_start"`
	RunTimeout           time.Duration `yaml:"-"`
	RunTimeoutStr        string        `yaml:"scheduler.run_timeout"`

	// Database configuration
	DatabaseURL string `yaml:"database.url"`

	// Performance tuning
	HTTPClientTimeout    time.Duration `yaml:"-"`
	HTTPClientTimeoutStr string        `yaml:"performance.http_client_timeout"`
	MaxIdleConns         int           `yaml:"performance.max_idle_conns"`
	MaxConnsPerHost      int           `yaml:"performance.max_conns_per_host"`

	// Logging configuration
	LogDirectory  string `yaml:"logging.dir"`
	LogOutputFile string `yaml:"logging.output_file"`
	LogErrorFile  string `yaml:"logging.error_file"`
	LogLevel      string `yaml:"logging.level"`
}

type serverSection struct {
	Port string `yaml:"port"`
}

type youtubeSection struct {
	APIKey            string   `yaml:"api_key,omitempty"`
	APIKeys           []string `yaml:"api_keys"`
	BaseURL           string   `yaml:"base_url"`
	Region            string   `yaml:"region"`
	Language          string   `yaml:"language"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	BrowserRender     bool     `yaml:"browser_render"`
	ChromePath        string   `yaml:"chrome_path,omitempty"`
}

type sourcesSection struct {
	Queries    []string `yaml:"queries"`
	MaxResults int      `yaml:"max_results"`
}

type qualitySection struct {
	MinTitleLength int      `yaml:"min_title_length"`
	MinViews       int64    `yaml:"min_views"`
	MinDuration    int      `yaml:"min_duration"`
	MaxDuration    int      `yaml:"max_duration"`
	Blacklist      []string `yaml:"blacklist"`
}

type batchThresholds struct {
	TitleThreshold       float64 `yaml:"title_threshold,omitempty"`
	DescriptionThreshold float64 `yaml:"description_threshold,omitempty"`
	MovieThreshold       float64 `yaml:"movie_threshold,omitempty"`
}

type duplicatesSection struct {
	TitleThreshold       float64         `yaml:"title_threshold"`
	DescriptionThreshold float64         `yaml:"description_threshold"`
	MovieThreshold       float64         `yaml:"movie_threshold"`
	StoreWindow          int             `yaml:"store_window"`
	Batch                batchThresholds `yaml:"batch"`
}

type classifierSection struct {
	Strategy         string `yaml:"strategy"`
	EmbeddingURL     string `yaml:"embedding_url"`
	EmbeddingTimeout string `yaml:"embedding_timeout"`
}

type ingestSection struct {
	MaxNewPerRun  *int  `yaml:"max_new_per_run"`
	AutoPublish   *bool `yaml:"auto_publish"`
	DefaultRating int   `yaml:"default_rating"`
}

type schedulerSection struct {
	Schedule   string `yaml:"schedule"`
	Interval   string `yaml:"interval"`
	Enabled    *bool  `yaml:"enabled"`
	RunOnStart bool   `yaml:"run_on_start"`
	RunTimeout string `yaml:"run_timeout"`
}

type databaseSection struct {
	URL string `yaml:"url"`
}

type performanceSection struct {
	HTTPClientTimeout string `yaml:"http_client_timeout"`
	MaxIdleConns      int    `yaml:"max_idle_conns"`
	MaxConnsPerHost   int    `yaml:"max_conns_per_host"`
}

type loggingSection struct {
	Directory  string `yaml:"dir"`
	OutputFile string `yaml:"output_file"`
	ErrorFile  string `yaml:"error_file"`
	Level      string `yaml:"level"`
}

// configFile represents the YAML structure
type configFile struct {
	Server      serverSection      `yaml:"server"`
	YouTube     youtubeSection     `yaml:"youtube"`
	Sources     sourcesSection     `yaml:"sources"`
	Quality     qualitySection     `yaml:"quality"`
	Duplicates  duplicatesSection  `yaml:"duplicates"`
	Classifier  classifierSection  `yaml:"classifier"`
	Ingest      ingestSection      `yaml:"ingest"`
	Scheduler   schedulerSection   `yaml:"scheduler"`
	Database    databaseSection    `yaml:"database"`
	Performance performanceSection `yaml:"performance"`
	Logging     loggingSection     `yaml:"logging"`
}

// Manager handles configuration loading and saving
type Manager struct {
	mu         sync.RWMutex
	config     *Config
	configPath string
}

// NewManager creates a new configuration manager
func NewManager(configPath string) *Manager {
	if configPath == "" {
		configPath = "config.yaml"
	}
	return &Manager{
		configPath: configPath,
	}
}

// Load reads configuration from YAML file
func (m *Manager) Load() (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		// If file doesn't exist, create default config
		if os.IsNotExist(err) {
			return m.createDefaultConfig()
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfgFile configFile
	if err := yaml.Unmarshal(data, &cfgFile); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg := fromFile(&cfgFile)
	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m.config = cfg
	return cfg, nil
}

func fromFile(f *configFile) *Config {
	cfg := &Config{
		ServerPort:            f.Server.Port,
		YouTubeAPIKeys:        append([]string(nil), f.YouTube.APIKeys...),
		YouTubeBaseURL:        f.YouTube.BaseURL,
		YouTubeRegion:         f.YouTube.Region,
		YouTubeLanguage:       f.YouTube.Language,
		YouTubeRequestsPerSec: f.YouTube.RequestsPerSecond,
		YouTubeBrowserRender:  f.YouTube.BrowserRender,
		ChromePath:            f.YouTube.ChromePath,

		SearchQueries:      f.Sources.Queries,
		MaxResultsPerQuery: f.Sources.MaxResults,

		MinTitleLength: f.Quality.MinTitleLength,
		MinViews:       f.Quality.MinViews,
		MinDuration:    f.Quality.MinDuration,
		MaxDuration:    f.Quality.MaxDuration,
		Blacklist:      f.Quality.Blacklist,

		TitleSimilarityThreshold:       f.Duplicates.TitleThreshold,
		DescriptionSimilarityThreshold: f.Duplicates.DescriptionThreshold,
		MovieSimilarityThreshold:       f.Duplicates.MovieThreshold,
		DuplicateStoreWindow:           f.Duplicates.StoreWindow,
		BatchTitleThreshold:            f.Duplicates.Batch.TitleThreshold,
		BatchDescriptionThreshold:      f.Duplicates.Batch.DescriptionThreshold,
		BatchMovieThreshold:            f.Duplicates.Batch.MovieThreshold,

		ClassifierStrategy:  f.Classifier.Strategy,
		EmbeddingURL:        f.Classifier.EmbeddingURL,
		EmbeddingTimeoutStr: f.Classifier.EmbeddingTimeout,

		MaxNewPerRun:  20,
		AutoPublish:   true,
		DefaultRating: f.Ingest.DefaultRating,

		Schedule:             f.Scheduler.Schedule,
		SchedulerIntervalStr: f.Scheduler.Interval,
		SchedulerEnabled:     true,
		RunOnStart:           f.Scheduler.RunOnStart,
		RunTimeoutStr:        f.Scheduler.RunTimeout,

		DatabaseURL: f.Database.URL,

		HTTPClientTimeoutStr: f.Performance.HTTPClientTimeout,
		MaxIdleConns:         f.Performance.MaxIdleConns,
		MaxConnsPerHost:      f.Performance.MaxConnsPerHost,

		LogDirectory:  f.Logging.Directory,
		LogOutputFile: f.Logging.OutputFile,
		LogErrorFile:  f.Logging.ErrorFile,
		LogLevel:      f.Logging.Level,
	}

	// Older files carry a single api_key
	if key := strings.TrimSpace(f.YouTube.APIKey); key != "" {
		cfg.YouTubeAPIKeys = append([]string{key}, cfg.YouTubeAPIKeys...)
	}
	if f.Ingest.MaxNewPerRun != nil {
		cfg.MaxNewPerRun = *f.Ingest.MaxNewPerRun
	}
	if f.Ingest.AutoPublish != nil {
		cfg.AutoPublish = *f.Ingest.AutoPublish
	}
	if f.Scheduler.Enabled != nil {
		cfg.SchedulerEnabled = *f.Scheduler.Enabled
	}
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.YouTubeBaseURL == "" {
		cfg.YouTubeBaseURL = "https://www.googleapis.com/youtube/v3"
	}
	if cfg.YouTubeRegion == "" {
		cfg.YouTubeRegion = "VN"
	}
	if cfg.YouTubeLanguage == "" {
		cfg.YouTubeLanguage = "vi"
	}
	if cfg.YouTubeRequestsPerSec <= 0 {
		cfg.YouTubeRequestsPerSec = 2
	}
	if len(cfg.SearchQueries) == 0 {
		cfg.SearchQueries = append([]string(nil), DefaultSearchQueries...)
	}
	if cfg.MaxResultsPerQuery <= 0 {
		cfg.MaxResultsPerQuery = 8
	}
	if cfg.MinTitleLength <= 0 {
		cfg.MinTitleLength = 10
	}
	if cfg.MinViews <= 0 {
		cfg.MinViews = 100
	}
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = 600
	}
	if cfg.Blacklist == nil {
		cfg.Blacklist = append([]string(nil), DefaultBlacklist...)
	}
	if cfg.TitleSimilarityThreshold == 0 {
		cfg.TitleSimilarityThreshold = 0.80
	}
	if cfg.DescriptionSimilarityThreshold == 0 {
		cfg.DescriptionSimilarityThreshold = 0.75
	}
	if cfg.MovieSimilarityThreshold == 0 {
		cfg.MovieSimilarityThreshold = 0.80
	}
	if cfg.DuplicateStoreWindow <= 0 {
		cfg.DuplicateStoreWindow = 1000
	}
	if cfg.BatchTitleThreshold == 0 {
		cfg.BatchTitleThreshold = cfg.TitleSimilarityThreshold
	}
	if cfg.BatchDescriptionThreshold == 0 {
		cfg.BatchDescriptionThreshold = cfg.DescriptionSimilarityThreshold
	}
	if cfg.BatchMovieThreshold == 0 {
		cfg.BatchMovieThreshold = cfg.MovieSimilarityThreshold
	}
	if cfg.ClassifierStrategy == "" {
		cfg.ClassifierStrategy = "keyword"
	}
	if cfg.DefaultRating <= 0 {
		cfg.DefaultRating = 7
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "sqlite3:./db.sqlite"
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 100
	}
	if cfg.MaxConnsPerHost == 0 {
		cfg.MaxConnsPerHost = 20
	}
	if cfg.LogDirectory == "" {
		cfg.LogDirectory = "./logs"
	}
	if cfg.LogOutputFile == "" {
		cfg.LogOutputFile = "app.log"
	}
	if cfg.LogErrorFile == "" {
		cfg.LogErrorFile = "app.error.log"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	// Parse durations
	cfg.SchedulerInterval = parseDuration(cfg.SchedulerIntervalStr, 24*time.Hour)
	cfg.RunTimeout = parseDuration(cfg.RunTimeoutStr, 30*time.Minute)
	cfg.HTTPClientTimeout = parseDuration(cfg.HTTPClientTimeoutStr, 30*time.Second)
	cfg.EmbeddingTimeout = parseDuration(cfg.EmbeddingTimeoutStr, 10*time.Second)
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func applyEnvOverrides(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		cfg.ServerPort = port
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if url := os.Getenv("EMBEDDING_URL"); url != "" {
		cfg.EmbeddingURL = url
	}
}

// Validate reports configuration values the pipeline cannot work with.
func (c *Config) Validate() error {
	var errs []error
	for name, v := range map[string]float64{
		"duplicates.title_threshold":             c.TitleSimilarityThreshold,
		"duplicates.description_threshold":       c.DescriptionSimilarityThreshold,
		"duplicates.movie_threshold":             c.MovieSimilarityThreshold,
		"duplicates.batch.title_threshold":       c.BatchTitleThreshold,
		"duplicates.batch.description_threshold": c.BatchDescriptionThreshold,
		"duplicates.batch.movie_threshold":       c.BatchMovieThreshold,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0, 1], got %v", name, v))
		}
	}
	if c.MaxDuration < 0 {
		errs = append(errs, fmt.Errorf("quality.max_duration must not be negative"))
	}
	if c.MaxDuration > 0 && c.MaxDuration < c.MinDuration {
		errs = append(errs, fmt.Errorf("quality.max_duration (%d) is below quality.min_duration (%d)", c.MaxDuration, c.MinDuration))
	}
	if c.MaxNewPerRun < 0 {
		errs = append(errs, fmt.Errorf("ingest.max_new_per_run must not be negative"))
	}
	switch c.ClassifierStrategy {
	case "keyword":
	case "embedding":
		if c.EmbeddingURL == "" {
			errs = append(errs, fmt.Errorf("classifier.embedding_url is required for the embedding strategy"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown classifier.strategy %q", c.ClassifierStrategy))
	}
	return errors.Join(errs...)
}

// YouTubeCredentials returns configured and environment API keys, deduplicated, in order.
func (c *Config) YouTubeCredentials() []string {
	candidates := append([]string(nil), c.YouTubeAPIKeys...)
	for _, name := range credentialEnvVars {
		candidates = append(candidates, os.Getenv(name))
	}

	seen := make(map[string]struct{}, len(candidates))
	keys := make([]string, 0, len(candidates))
	for _, key := range candidates {
		key = strings.TrimSpace(key)
		if key == "" || key == placeholderAPIKey {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}

// Save writes configuration to YAML file
func (m *Manager) Save(cfg *Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.saveUnlocked(cfg)
}

// saveUnlocked persists config assuming caller already holds the write lock.
func (m *Manager) saveUnlocked(cfg *Config) error {
	maxNew := cfg.MaxNewPerRun
	autoPublish := cfg.AutoPublish
	enabled := cfg.SchedulerEnabled

	cfgFile := configFile{
		Server: serverSection{Port: cfg.ServerPort},
		YouTube: youtubeSection{
			APIKeys:           cfg.YouTubeAPIKeys,
			BaseURL:           cfg.YouTubeBaseURL,
			Region:            cfg.YouTubeRegion,
			Language:          cfg.YouTubeLanguage,
			RequestsPerSecond: cfg.YouTubeRequestsPerSec,
			BrowserRender:     cfg.YouTubeBrowserRender,
			ChromePath:        cfg.ChromePath,
		},
		Sources: sourcesSection{
			Queries:    cfg.SearchQueries,
			MaxResults: cfg.MaxResultsPerQuery,
		},
		Quality: qualitySection{
			MinTitleLength: cfg.MinTitleLength,
			MinViews:       cfg.MinViews,
			MinDuration:    cfg.MinDuration,
			MaxDuration:    cfg.MaxDuration,
			Blacklist:      cfg.Blacklist,
		},
		Duplicates: duplicatesSection{
			TitleThreshold:       cfg.TitleSimilarityThreshold,
			DescriptionThreshold: cfg.DescriptionSimilarityThreshold,
			MovieThreshold:       cfg.MovieSimilarityThreshold,
			StoreWindow:          cfg.DuplicateStoreWindow,
			Batch: batchThresholds{
				TitleThreshold:       cfg.BatchTitleThreshold,
				DescriptionThreshold: cfg.BatchDescriptionThreshold,
				MovieThreshold:       cfg.BatchMovieThreshold,
			},
		},
		Classifier: classifierSection{
			Strategy:         cfg.ClassifierStrategy,
			EmbeddingURL:     cfg.EmbeddingURL,
			EmbeddingTimeout: cfg.EmbeddingTimeout.String(),
		},
		Ingest: ingestSection{
			MaxNewPerRun:  &maxNew,
			AutoPublish:   &autoPublish,
			DefaultRating: cfg.DefaultRating,
		},
		Scheduler: schedulerSection{
			Schedule:   cfg.Schedule,
			Interval:   cfg.SchedulerInterval.String(),
			Enabled:    &enabled,
			RunOnStart: cfg.RunOnStart,
			RunTimeout: cfg.RunTimeout.String(),
		},
		Database: databaseSection{URL: cfg.DatabaseURL},
		Performance: performanceSection{
			HTTPClientTimeout: cfg.HTTPClientTimeout.String(),
			MaxIdleConns:      cfg.MaxIdleConns,
			MaxConnsPerHost:   cfg.MaxConnsPerHost,
		},
		Logging: loggingSection{
			Directory:  cfg.LogDirectory,
			OutputFile: cfg.LogOutputFile,
			ErrorFile:  cfg.LogErrorFile,
			Level:      cfg.LogLevel,
		},
	}

	data, err := yaml.Marshal(&cfgFile)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	m.config = cfg
	return nil
}

// Get returns the current configuration (thread-safe)
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Path returns the file the manager reads and writes.
func (m *Manager) Path() string {
	return m.configPath
}

// Default returns a configuration populated with every default value.
func Default() *Config {
	cfg := fromFile(&configFile{})
	applyDefaults(cfg)
	return cfg
}

// createDefaultConfig creates a default configuration file
func (m *Manager) createDefaultConfig() (*Config, error) {
	cfg := Default()

	if err := m.saveUnlocked(cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Global config manager instance
var globalManager *Manager

// LoadEnv loads variables from a .env file when one exists.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	existing := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// Load loads configuration from YAML file using the global manager
func Load() (*Config, error) {
	if err := LoadEnv(); err != nil {
		return nil, err
	}
	return GetManager().Load()
}

// GetManager returns the global config manager
func GetManager() *Manager {
	if globalManager == nil {
		configPath := "config.yaml"
		// Check if config/config.yaml exists, if so use it as default
		if _, err := os.Stat("config/config.yaml"); err == nil {
			configPath = "config/config.yaml"
		}
		globalManager = NewManager(configPath)
	}
	return globalManager
}

// SetPath points the global manager at a specific file.
func SetPath(configPath string) {
	globalManager = NewManager(configPath)
}
