package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string

	MySQLDSN  string
	RedisAddr string
	RedisDB   int
	RedisPass string

	MapsBase string
	MapsKey  string
	MapsRPS  int

	LLMBase  string
	LLMKey   string
	LLMModel string

	ElasticURL     string
	KnowledgeIndex string
	KnowledgeDir   string
	IndexWorkers   int

	DefaultRadiusM int
	EnrichWorkers  int
	HistoryWindow  int
	CacheTTL       time.Duration
}

func Load() Config {
	// local .env is a dev convenience; absence is fine
	_ = godotenv.Load()

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),

		MySQLDSN:  env("MYSQL_DSN", "root:root@tcp(localhost:3306)/guardia?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr: env("REDIS_ADDR", "localhost:6379"),
		RedisPass: env("REDIS_PASSWORD", ""),
		RedisDB:   atoi("REDIS_DB", 0),

		MapsBase: env("MAPS_BASE_URL", "https://maps.googleapis.com/maps/api"),
		MapsKey:  env("MAPS_API_KEY", ""),
		MapsRPS:  atoi("MAPS_RPS", 10),

		LLMBase:  env("LLM_BASE_URL", "https://api.deepseek.com"),
		LLMKey:   env("LLM_API_KEY", ""),
		LLMModel: env("LLM_MODEL", "deepseek-chat"),

		ElasticURL:     env("ELASTIC_URL", "http://localhost:9200"),
		KnowledgeIndex: env("KNOWLEDGE_INDEX", "guardia-knowledge"),
		KnowledgeDir:   env("KNOWLEDGE_DIR", "data"),
		IndexWorkers:   atoi("INDEX_WORKERS", 8),

		DefaultRadiusM: atoi("DEFAULT_RADIUS_M", 5000),
		EnrichWorkers:  atoi("ENRICH_WORKERS", 4),
		HistoryWindow:  atoi("HISTORY_WINDOW", 8),
		CacheTTL:       time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
	}
	if c.MapsKey == "" {
		log.Warn().Msg("MAPS_API_KEY is empty")
	}
	if c.LLMKey == "" {
		log.Warn().Msg("LLM_API_KEY is empty")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
