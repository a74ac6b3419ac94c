package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/dgallion1/docjournal/internal/ids"
	"github.com/dgallion1/docjournal/internal/structure"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool

	// Output
	OutputDir     string
	PublishURL    string
	PublishAPIKey string

	// Conversion
	TOCTitle        string
	PageOrderPolicy structure.Policy
	IDCacheSize     int
}

var defaults = map[string]any{
	"port":                   "8090",
	"api_key":                "",
	"worker_count":           4,
	"max_queue_size":         100,
	"max_upload_bytes":       int64(52428800), // 50MB
	"job_ttl":                time.Hour,
	"pdf_fallback_pdftotext": true,
	"output_dir":             "",
	"publish_url":            "",
	"publish_api_key":        "",
	"toc_title":              "Table of Contents",
	"page_order_policy":      string(structure.PolicyReject),
	"id_cache_size":          ids.DefaultCacheSize,
}

// Load reads defaults, an optional YAML file at path and environment
// variables, in increasing precedence. Keys map to upper-case variables:
// worker_count is WORKER_COUNT.
func Load(path string) (Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	policy, err := structure.ParsePolicy(v.GetString("page_order_policy"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:                 v.GetString("port"),
		APIKey:               v.GetString("api_key"),
		WorkerCount:          v.GetInt("worker_count"),
		MaxQueueSize:         v.GetInt("max_queue_size"),
		MaxUploadBytes:       v.GetInt64("max_upload_bytes"),
		JobTTL:               v.GetDuration("job_ttl"),
		PDFFallbackPdftotext: v.GetBool("pdf_fallback_pdftotext"),
		OutputDir:            v.GetString("output_dir"),
		PublishURL:           v.GetString("publish_url"),
		PublishAPIKey:        v.GetString("publish_api_key"),
		TOCTitle:             v.GetString("toc_title"),
		PageOrderPolicy:      policy,
		IDCacheSize:          v.GetInt("id_cache_size"),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.IDCacheSize <= 0 {
		cfg.IDCacheSize = ids.DefaultCacheSize
	}

	return cfg, nil
}

// Validate checks settings every entry point needs.
func (c Config) Validate() error {
	if c.PublishAPIKey != "" && c.PublishURL == "" {
		return errors.New("PUBLISH_API_KEY is set but PUBLISH_URL is empty")
	}
	if _, err := structure.ParsePolicy(string(c.PageOrderPolicy)); err != nil {
		return err
	}
	return nil
}

// ValidateServer additionally requires the settings of the HTTP service.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	return nil
}
