package config

import (
	"errors"
	"finops-usage/analysis"
	dc "finops-usage/domain/config"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when CONFIG_PATH is unset.
const DefaultPath = "./finops.yaml"

// Path returns CONFIG_PATH or DefaultPath.
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

// Load returns a Config using the hierarchy: defaults < YAML < .env < ENV.
// Both the YAML file and .env are optional.
func Load(path string) (*dc.Config, error) {
	c := dc.Defaults()

	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		slog.Info("config.loaded", "path", path)
	case errors.Is(err, os.ErrNotExist):
		slog.Debug("config.file.missing", "path", path)
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	// .env never overrides variables already present in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("config.dotenv.error", "error", err)
	}
	loadEnv(&c)

	if c.Source.Kind == "" {
		c.Source.Kind = dc.SourceFile
		if c.Azure.AccountName != "" || c.Azure.Endpoint != "" {
			c.Source.Kind = dc.SourceAzureBlob
		}
	}
	if err := validate(&c); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &c, nil
}

func loadEnv(c *dc.Config) {
	setString(&c.Source.Kind, "USAGE_SOURCE")
	if v := os.Getenv("USAGE_FILE"); v != "" {
		c.Source.Path = v
		if os.Getenv("USAGE_SOURCE") == "" {
			c.Source.Kind = dc.SourceFile
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	setString(&c.Azure.AccountName, "AZURE_STORAGE_ACCOUNT_NAME")
	setString(&c.Azure.Container, "AZURE_STORAGE_CONTAINER_NAME")
	setString(&c.Azure.SASToken, "AZURE_STORAGE_SAS_TOKEN")
	setString(&c.Azure.TenantID, "AZURE_TENANT_ID")
	setString(&c.Azure.ClientID, "AZURE_CLIENT_ID")
	setString(&c.Azure.ClientSecret, "AZURE_CLIENT_SECRET")
	setDuration(&c.Cache.TTL, "CACHE_TTL")
	setDuration(&c.Cache.FetchTimeout, "FETCH_TIMEOUT")
	setInt(&c.Analysis.PeriodDays, "PERIOD_DAYS")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")
}

func validate(c *dc.Config) error {
	if c.Analysis.PeriodDays <= 0 || c.Analysis.PeriodDays > analysis.MaxPeriodDays {
		return fmt.Errorf("analysis.period_days must be between 1 and %d", analysis.MaxPeriodDays)
	}
	if c.Cache.TTL <= 0 {
		return errors.New("cache.ttl must be > 0")
	}
	if c.Cache.RetryInterval < 0 || c.Cache.FetchTimeout < 0 {
		return errors.New("cache.retry_interval and cache.fetch_timeout must be >= 0")
	}
	if c.Analysis.RankingLimit < 0 {
		return errors.New("analysis.ranking_limit must be >= 0")
	}
	switch c.Source.Kind {
	case dc.SourceFile:
		if c.Source.Path == "" {
			return errors.New("source.path is required for file sources")
		}
	case dc.SourceAzureBlob:
		if c.Azure.AccountName == "" && c.Azure.Endpoint == "" {
			return errors.New("azure.account_name is required for azureblob sources")
		}
		if c.Azure.Container == "" {
			return errors.New("azure.container is required for azureblob sources")
		}
	default:
		return fmt.Errorf("unknown source.kind %q", c.Source.Kind)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// setDuration accepts Go durations ("90m") or a plain number of seconds.
func setDuration(dst *time.Duration, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(n) * time.Second
	}
}
