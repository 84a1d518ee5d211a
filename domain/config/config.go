package config

import (
	"finops-usage/recommend"
	"time"
)

// Source kinds.
const (
	SourceFile      = "file"
	SourceAzureBlob = "azureblob"
)

// Config represents the structure of finops.yaml used by the tool.
type Config struct {
	Server    Server           `yaml:"server"`
	Source    Source           `yaml:"source"`
	Azure     Azure            `yaml:"azure"`
	Cache     Cache            `yaml:"cache"`
	Analysis  Analysis         `yaml:"analysis"`
	Recommend recommend.Policy `yaml:"recommend"`
	Logging   Logging          `yaml:"logging"`
}

type Server struct {
	Addr    string `yaml:"addr"`
	UIDir   string `yaml:"ui_dir"`
	DataDir string `yaml:"data_dir"`
}

// Source selects where usage exports are read from. An empty Kind resolves to
// azureblob when an Azure account is configured and to file otherwise.
type Source struct {
	Kind     string        `yaml:"kind"`
	Path     string        `yaml:"path"`
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
}

type Azure struct {
	AccountName  string `yaml:"account_name"`
	Container    string `yaml:"container"`
	Prefix       string `yaml:"prefix"`
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	SASToken     string `yaml:"sas_token"`
	Endpoint     string `yaml:"endpoint"`
}

type Cache struct {
	TTL           time.Duration `yaml:"ttl"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`
	BlobCacheMB   int64         `yaml:"blob_cache_mb"`
}

type Analysis struct {
	PeriodDays            int     `yaml:"period_days"`
	CaseSensitiveGrouping bool    `yaml:"case_sensitive_grouping"`
	LeastUsedThreshold    float64 `yaml:"least_used_threshold"`
	// RankingLimit is the default number of entries returned by ranking endpoints.
	RankingLimit int `yaml:"ranking_limit"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		Server: Server{
			Addr:    ":8080",
			UIDir:   "./ui/dist",
			DataDir: "./data",
		},
		Source: Source{
			Path:     "./data/usage.csv",
			Debounce: 500 * time.Millisecond,
		},
		Cache: Cache{
			TTL:           time.Hour,
			RetryInterval: time.Minute,
			FetchTimeout:  2 * time.Minute,
			BlobCacheMB:   64,
		},
		Analysis: Analysis{
			PeriodDays:            30,
			CaseSensitiveGrouping: true,
			LeastUsedThreshold:    100,
			RankingLimit:          10,
		},
		Recommend: recommend.DefaultPolicy(),
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}
