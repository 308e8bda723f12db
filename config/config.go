package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Source         SourceConfig
	Scheduler      SchedulerConfig
	Telegram       TelegramConfig
	S3             S3Config
	CacheTTL       time.Duration
	BulkFetchSize  int
	ResultsPerPage int
	RecentLimit    int
	DBPath         string
	PostgresURL    string
	LogLevel       string
}

// SourceConfig describes the upstream listing API. Defaults target the
// Flatfox public listing endpoint; a YAML file under config/sources/ can
// override any of it per deployment.
type SourceConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	BaseURL     string `yaml:"base_url"`
	Region      string `yaml:"region"`
	PageSize    int    `yaml:"page_size"`
	RateLimitMS int    `yaml:"rate_limit_ms"`
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type TelegramConfig struct {
	Token string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, for DO Spaces / R2
	AccessKeyID     string
	SecretAccessKey string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Source: SourceConfig{
			ID:          "flatfox",
			Name:        "Flatfox",
			BaseURL:     getEnv("FLATFOX_API_URL", "https://flatfox.ch/api/v1/public-listing/"),
			Region:      getEnv("TARGET_REGION", "TI"),
			PageSize:    getEnvInt("FETCH_PAGE_SIZE", 100),
			RateLimitMS: getEnvInt("FETCH_DELAY_MS", 500),
		},
		Scheduler: SchedulerConfig{
			Interval: getEnvDuration("CHECK_INTERVAL", 60*time.Minute),
			Cron:     os.Getenv("CHECK_CRON"),
		},
		Telegram: TelegramConfig{
			Token: os.Getenv("TELEGRAM_BOT_TOKEN"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		CacheTTL:       getEnvDuration("CACHE_TTL", time.Hour),
		BulkFetchSize:  getEnvInt("BULK_FETCH_SIZE", 3000),
		ResultsPerPage: getEnvInt("RESULTS_PER_PAGE", 5),
		RecentLimit:    getEnvInt("RECENT_LIMIT", 50),
		DBPath:         getEnv("DB_PATH", "flatwatch.db"),
		PostgresURL:    os.Getenv("DATABASE_URL"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.loadSourceConfig(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadSourceConfig overlays the first YAML file found under config/sources/
// onto the env-derived source settings.
func (c *Config) loadSourceConfig() error {
	configDir := "config/sources"
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(configDir, entry.Name()))
		if err != nil {
			return err
		}

		var src SourceConfig
		if err := yaml.Unmarshal(data, &src); err != nil {
			return err
		}
		c.mergeSource(src)
		break
	}

	return nil
}

func (c *Config) mergeSource(src SourceConfig) {
	if src.ID != "" {
		c.Source.ID = src.ID
	}
	if src.Name != "" {
		c.Source.Name = src.Name
	}
	if src.BaseURL != "" {
		c.Source.BaseURL = src.BaseURL
	}
	if src.Region != "" {
		c.Source.Region = src.Region
	}
	if src.PageSize > 0 {
		c.Source.PageSize = src.PageSize
	}
	if src.RateLimitMS > 0 {
		c.Source.RateLimitMS = src.RateLimitMS
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
