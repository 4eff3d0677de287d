package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"

	"github.com/hed-standard/hed-lsp/pkg/schema"
	"github.com/hed-standard/hed-lsp/pkg/semantic"
)

// EnvPrefix prefixes environment overrides: HEDLSP__SCHEMAVERSION=8.3.0.
const EnvPrefix = "HEDLSP"

// Config holds every setting of the engine and its host surfaces.
type Config struct {
	SchemaVersion        string `koanf:"schemaVersion" json:"schemaVersion"`
	MaxNumberOfProblems  int    `koanf:"maxNumberOfProblems" json:"maxNumberOfProblems"`
	ValidateOnChange     bool   `koanf:"validateOnChange" json:"validateOnChange"`
	DebounceMs           int    `koanf:"debounceMs" json:"debounceMs"`
	EnableSemanticSearch bool   `koanf:"enableSemanticSearch" json:"enableSemanticSearch"`
	CheckForWarnings     bool   `koanf:"checkForWarnings" json:"checkForWarnings"`
	SchemaDir            string `koanf:"schemaDir" json:"schemaDir"`
	LogLevel             string `koanf:"logLevel" json:"logLevel"`
	LogFormat            string `koanf:"logFormat" json:"logFormat"`

	Embedding EmbeddingConfig `koanf:"embedding" json:"embedding"`
	Server    ServerConfig    `koanf:"server" json:"server"`
}

// EmbeddingConfig selects the embedding provider and its data files.
type EmbeddingConfig struct {
	Provider string `koanf:"provider" json:"provider"`
	Model    string `koanf:"model" json:"model"`
	APIKey   string `koanf:"apiKey" json:"-"`
	Endpoint string `koanf:"endpoint" json:"endpoint"`
	// StorePath is a precomputed embedding file.
	StorePath string `koanf:"storePath" json:"storePath"`
	// CachePath is the badger directory for generated vectors.
	CachePath string `koanf:"cachePath" json:"cachePath"`
	// KeywordsPath is a YAML keyword file merged over the built-in keywords.
	KeywordsPath string `koanf:"keywordsPath" json:"keywordsPath"`
}

// Embedder returns the provider settings.
func (e EmbeddingConfig) Embedder() semantic.EmbedderConfig {
	return semantic.EmbedderConfig{Provider: e.Provider, Model: e.Model, APIKey: e.APIKey, Endpoint: e.Endpoint}
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `koanf:"addr" json:"addr"`
	// Mode is the gin mode: debug, release or test.
	Mode string `koanf:"mode" json:"mode"`
}

// Defaults returns the built-in settings.
func Defaults() Config {
	return Config{
		SchemaVersion:        "8.4.0",
		MaxNumberOfProblems:  100,
		ValidateOnChange:     true,
		DebounceMs:           300,
		EnableSemanticSearch: true,
		SchemaDir:            "schemas",
		LogLevel:             "info",
		LogFormat:            "text",
		Embedding: EmbeddingConfig{
			Provider: semantic.ProviderNone,
		},
		Server: ServerConfig{
			Addr: ":8080",
			Mode: "release",
		},
	}
}

// FlagMappings maps command-line flag names to configuration keys.
var FlagMappings = map[string]string{
	"schema-version":     "schemaVersion",
	"schema-dir":         "schemaDir",
	"max-problems":       "maxNumberOfProblems",
	"semantic":           "enableSemanticSearch",
	"log-level":          "logLevel",
	"log-format":         "logFormat",
	"embedding-provider": "embedding.provider",
	"embedding-model":    "embedding.model",
	"embedding-store":    "embedding.storePath",
	"addr":               "server.addr",
}

// Load reads defaults, the optional YAML file at path, HEDLSP__ environment
// variables and the flags the user set, then validates the result.
func Load(path string, flags *pflag.FlagSet) (*Config, *Loader, error) {
	loader := NewLoader(EnvPrefix)
	if err := loader.LoadWithDefaults(Defaults(), path); err != nil {
		return nil, nil, err
	}
	if flags != nil {
		if err := loader.LoadFlags(flags, FlagMappings); err != nil {
			return nil, nil, err
		}
	}

	var cfg Config
	if err := loader.UnmarshalAndValidate("", &cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, loader, nil
}

// Validate checks the settings.
func (c *Config) Validate() error {
	var errs ValidationErrors
	if c.MaxNumberOfProblems < 0 {
		errs = append(errs, &FieldError{Field: "maxNumberOfProblems", Message: "must not be negative"})
	}
	if c.DebounceMs < 0 {
		errs = append(errs, &FieldError{Field: "debounceMs", Message: "must not be negative"})
	}
	if c.SchemaVersion != "" {
		if _, err := schema.ParseVersionSpec(c.SchemaVersion); err != nil {
			errs = append(errs, &FieldError{Field: "schemaVersion", Message: err.Error()})
		}
	}
	if _, ok := logLevels[strings.ToLower(c.LogLevel)]; !ok {
		errs = append(errs, &FieldError{Field: "logLevel", Message: fmt.Sprintf("unknown level %q", c.LogLevel)})
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, &FieldError{Field: "logFormat", Message: "must be text or json"})
	}
	switch c.Embedding.Provider {
	case "", semantic.ProviderNone, semantic.ProviderOllama, semantic.ProviderGenAI:
	default:
		errs = append(errs, &FieldError{Field: "embedding.provider", Message: fmt.Sprintf("unsupported provider %q", c.Embedding.Provider)})
	}
	return errs.OrNil()
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	if level, ok := logLevels[strings.ToLower(c.LogLevel)]; ok {
		return level
	}
	return slog.LevelInfo
}

// EmbeddingEnabled reports whether a live embedding provider is configured.
// The keyword tier of semantic search works without one.
func (c *Config) EmbeddingEnabled() bool {
	return c.EnableSemanticSearch && c.Embedding.Provider != "" && c.Embedding.Provider != semantic.ProviderNone
}

// FieldError is a validation error for one setting.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects field errors.
type ValidationErrors []*FieldError

func (ve ValidationErrors) Error() string {
	var b strings.Builder
	for i, e := range ve {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(e.Error())
	}
	return b.String()
}

// OrNil returns nil if there are no errors.
func (ve ValidationErrors) OrNil() error {
	if len(ve) == 0 {
		return nil
	}
	return ve
}
