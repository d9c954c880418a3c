// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like SCORER_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay (config.development, config.production)
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig() // ignore error if not found

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Load .env from multiple possible locations (running from different directories)
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env", // for tests in test/e2e/
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// Direct override if config values are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	if cfg.Scorer.APIKey == "" {
		if val := os.Getenv("SCORER_API_KEY"); val != "" {
			cfg.Scorer.APIKey = val
		}
	}
	if cfg.Scorer.BaseURL == "" {
		if val := os.Getenv("SCORER_BASE_URL"); val != "" {
			cfg.Scorer.BaseURL = val
		}
	}

	if cfg.Notifications.Slack.WebhookURL == "" {
		if val := os.Getenv("SLACK_WEBHOOK_URL"); val != "" {
			cfg.Notifications.Slack.WebhookURL = val
		}
	}

	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}

	// Flat env names for the pipeline knobs win over file values.
	if val, ok := envFloat("SIMILARITY_THRESHOLD"); ok {
		cfg.Pipeline.SimilarityThreshold = val
	}
	if val, ok := envFloat("RELEVANCE_THRESHOLD"); ok {
		cfg.Pipeline.RelevanceThreshold = val
	}
	if val, ok := envInt("VECTOR_DIMENSION"); ok {
		cfg.Pipeline.VectorDimension = val
	}
	if val, ok := envInt("SCRAPING_INTERVAL"); ok {
		cfg.Pipeline.ScrapingInterval = val
	}
	if val, ok := envInt("MAX_RETRIES"); ok {
		cfg.Pipeline.MaxRetries = val
	}
	if val, ok := envInt("RETRY_DELAY"); ok {
		cfg.Pipeline.RetryDelay = val
	}
	if val, ok := envInt("MAX_CONCURRENT_REQUESTS"); ok {
		cfg.Pipeline.MaxConcurrentRequests = val
	}
	if val, ok := envInt("MAX_LEADS_PER_QUERY"); ok {
		cfg.Pipeline.MaxLeadsPerQuery = val
	}
	if val, ok := envBool("ENABLE_SLACK_NOTIFICATIONS"); ok {
		cfg.Notifications.Slack.Enabled = val
	}
	if val, ok := envBool("ENABLE_EMAIL_NOTIFICATIONS"); ok {
		cfg.Notifications.Email.Enabled = val
	}
}

func envFloat(name string) (float64, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return val, true
}

func envInt(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return val, true
}

func envBool(name string) (bool, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return false, false
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return val, true
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10000
	}

	// Database defaults
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.LeadIndex == "" {
		cfg.Database.Elasticsearch.LeadIndex = "leads"
	}

	// Elasticsearch URL fallback
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	// Pipeline defaults
	if cfg.Pipeline.VectorDimension == 0 {
		cfg.Pipeline.VectorDimension = 1536
	}
	if cfg.Pipeline.SimilarityThreshold == 0 {
		cfg.Pipeline.SimilarityThreshold = 0.85
	}
	if cfg.Pipeline.RelevanceThreshold == 0 {
		cfg.Pipeline.RelevanceThreshold = 0.5
	}
	if cfg.Pipeline.ScrapingInterval == 0 {
		cfg.Pipeline.ScrapingInterval = 3600
	}
	if cfg.Pipeline.MaxRetries == 0 {
		cfg.Pipeline.MaxRetries = 3
	}
	if cfg.Pipeline.RetryDelay == 0 {
		cfg.Pipeline.RetryDelay = 5
	}
	if cfg.Pipeline.BatchSize == 0 {
		cfg.Pipeline.BatchSize = 5
	}
	if cfg.Pipeline.MaxConcurrentRequests == 0 {
		cfg.Pipeline.MaxConcurrentRequests = 3
	}
	if cfg.Pipeline.MaxLeadsPerQuery == 0 {
		cfg.Pipeline.MaxLeadsPerQuery = 5
	}
	if cfg.Pipeline.DefaultTimeRange == "" {
		cfg.Pipeline.DefaultTimeRange = "7d"
	}

	// Scorer defaults
	if cfg.Scorer.Timeout == 0 {
		cfg.Scorer.Timeout = 60000
	}

	// Notification defaults
	if cfg.Notifications.Slack.Timeout == 0 {
		cfg.Notifications.Slack.Timeout = 5000
	}
	if cfg.Notifications.SMS.UrgencyThreshold == 0 {
		cfg.Notifications.SMS.UrgencyThreshold = 0.9
	}
	if cfg.Notifications.AWS.Region == "" {
		cfg.Notifications.AWS.Region = "us-east-1"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Scorer.BaseURL == "" {
		return fmt.Errorf("scorer.base_url is required")
	}

	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	if len(cfg.Database.Elasticsearch.Addresses) == 0 && cfg.Database.Elasticsearch.URL == "" {
		return fmt.Errorf("database.elasticsearch.addresses or url is required")
	}

	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	if cfg.Pipeline.SimilarityThreshold <= 0 || cfg.Pipeline.SimilarityThreshold > 1 {
		return fmt.Errorf("pipeline.similarity_threshold must be in (0, 1]")
	}
	if cfg.Pipeline.RelevanceThreshold < 0 || cfg.Pipeline.RelevanceThreshold > 1 {
		return fmt.Errorf("pipeline.relevance_threshold must be in [0, 1]")
	}

	for portfolio, companies := range cfg.Portfolios {
		seen := make(map[string]bool, len(companies))
		for _, company := range companies {
			key := strings.ToLower(strings.TrimSpace(company))
			if key == "" {
				return fmt.Errorf("portfolio %q contains an empty company name", portfolio)
			}
			if seen[key] {
				return fmt.Errorf("portfolio %q lists company %q more than once", portfolio, company)
			}
			seen[key] = true
		}
	}

	if cfg.Notifications.Slack.Enabled && cfg.Notifications.Slack.WebhookURL == "" {
		return fmt.Errorf("notifications.slack.webhook_url is required when slack is enabled")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetSeconds converts seconds from config to time.Duration
func GetSeconds(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
