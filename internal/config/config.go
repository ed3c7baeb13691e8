// Package config loads the fully-resolved service configuration from
// defaults, an optional YAML file, and environment variables, in that
// order of precedence (lowest first). The pipeline core never reads the
// environment itself.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/promptops/llmpipe/internal/pipeline"
)

// envPrefix namespaces the service's environment variables. Nesting uses a
// double underscore: LLMPIPE_LLM__API_KEY maps to llm.api_key.
const envPrefix = "LLMPIPE_"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	LLM      LLMConfig      `koanf:"llm"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Storage  StorageConfig  `koanf:"storage"`
}

type ServerConfig struct {
	Port                  int `koanf:"port"`
	RequestTimeoutSeconds int `koanf:"request_timeout_seconds"`
}

type LLMConfig struct {
	APIURL         string `koanf:"api_url"`
	APIKey         string `koanf:"api_key"`
	Model          string `koanf:"model"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
	MaxRetries     int    `koanf:"max_retries"`
}

type PipelineConfig struct {
	StripInput      bool   `koanf:"strip_input"`
	LowercaseInput  bool   `koanf:"lowercase_input"`
	UppercaseOutput bool   `koanf:"uppercase_output"`
	TemplateDir     string `koanf:"template_dir"`
	DefaultTemplate string `koanf:"default_template"`
	ValidateSchemas bool   `koanf:"validate_schemas"`
}

type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
	Expose  bool `koanf:"expose"`
	Port    int  `koanf:"port"`
}

type StorageConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

var defaults = map[string]any{
	"server.port":                    8080,
	"server.request_timeout_seconds": 60,
	"llm.api_url":                    "https://api.openai.com/v1/chat/completions",
	"llm.api_key":                    "",
	"llm.model":                      "gpt-3.5-turbo",
	"llm.timeout_seconds":            10,
	"llm.max_retries":                3,
	"pipeline.strip_input":           true,
	"pipeline.lowercase_input":       true,
	"pipeline.uppercase_output":      false,
	"pipeline.template_dir":          "prompt_templates",
	"pipeline.default_template":      "default.txt",
	"pipeline.validate_schemas":      true,
	"metrics.enabled":                true,
	"metrics.expose":                 false,
	"metrics.port":                   9090,
	"storage.enabled":                true,
	"storage.path":                   "llmpipe.db",
}

// Load resolves the configuration. path names an optional YAML file; an
// empty path or a missing file is not an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// PipelineConfig maps the service configuration onto the pipeline's flat
// tunable record.
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		APIURL:          c.LLM.APIURL,
		APIKey:          c.LLM.APIKey,
		Model:           c.LLM.Model,
		Timeout:         time.Duration(c.LLM.TimeoutSeconds) * time.Second,
		MaxRetries:      c.LLM.MaxRetries,
		StripInput:      c.Pipeline.StripInput,
		LowercaseInput:  c.Pipeline.LowercaseInput,
		UppercaseOutput: c.Pipeline.UppercaseOutput,
		TemplateDir:     c.Pipeline.TemplateDir,
		DefaultTemplate: c.Pipeline.DefaultTemplate,
	}
}

// RequestTimeout returns the HTTP request deadline.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}
