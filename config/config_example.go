package config

// Example usage of the Config Manager
//
// Example 1: Load configuration (reads .env first, then config/config.yaml or config.yaml)
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Example 2: Tune the duplicate detector and save to YAML file
//
//	manager := config.GetManager()
//	cfg := manager.Get()
//
//	cfg.TitleSimilarityThreshold = 0.85
//	cfg.BatchTitleThreshold = 0.9
//
//	if err := manager.Save(cfg); err != nil {
//		log.Fatal(err)
//	}
//
// Example 3: Use a custom config path
//
//	manager := config.NewManager("reviews.yaml")
//	cfg, err := manager.Load()
//
// A complete file looks like:
//
//	server:
//	  port: "8080"
//	youtube:
//	  api_keys: ["key-1", "key-2"]
//	  region: VN
//	  language: vi
//	  requests_per_second: 2
//	  browser_render: false
//	sources:
//	  queries: ["Chơi Phim Review", "Vus Review"]
//	  max_results: 8
//	quality:
//	  min_title_length: 10
//	  min_views: 100
//	  min_duration: 600
//	  max_duration: 0
//	  blacklist: ["lậu", "link phim"]
//	duplicates:
//	  title_threshold: 0.80
//	  description_threshold: 0.75
//	  movie_threshold: 0.80
//	  store_window: 1000
//	  batch:
//	    title_threshold: 0.80
//	classifier:
//	  strategy: keyword
//	  embedding_url: http://localhost:8000
//	ingest:
//	  max_new_per_run: 20
//	  auto_publish: true
//	  default_rating: 7
//	scheduler:
//	  interval: 24h
//	  enabled: true
//	  run_on_start: false
//	database:
//	  url: sqlite3:./db.sqlite
//	logging:
//	  dir: ./logs
//	  level: info
