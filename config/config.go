// Package config loads expmem settings from YAML and builds the store from them.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/becomeliminal/expmem/memory"
)

// Config is the full configuration. Zero values are replaced by Default.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Retriever RetrieverConfig `yaml:"retriever"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Merger    MergerConfig    `yaml:"merger"`
	Memory    MemoryConfig    `yaml:"memory"`
	Policy    PolicyConfig    `yaml:"policy"`
	LogLevel  string          `yaml:"log_level"`
}

type StoreConfig struct {
	Backend    string `yaml:"backend"` // fs | sqlite
	Dir        string `yaml:"dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

type RetrieverConfig struct {
	Backend    string `yaml:"backend"` // chromem | mock
	PersistDir string `yaml:"persist_dir"`
	Compress   bool   `yaml:"compress"`
	Collection string `yaml:"collection"`
}

type EmbedderConfig struct {
	Backend       string `yaml:"backend"` // mock | onnx
	ModelPath     string `yaml:"model_path"`
	TokenizerPath string `yaml:"tokenizer_path"`
	LibraryPath   string `yaml:"library_path"`
	Dimensions    int    `yaml:"dimensions"`
	CacheSize     int64  `yaml:"cache_size"` // 0 disables the cache
}

type MergerConfig struct {
	Backend   string `yaml:"backend"` // anthropic | openai | none
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	RateLimit int    `yaml:"rate_limit"` // merges per second, 0 = unlimited
}

type MemoryConfig struct {
	WrapShortfall    *bool `yaml:"wrap_shortfall"`
	ReindexOnRecover *bool `yaml:"reindex_on_recover"`
}

type PolicyConfig struct {
	SpecificK         *int  `yaml:"specific_k"`
	SpecificTolerance *int  `yaml:"specific_tolerance"`
	AbstractTarget    *int  `yaml:"abstract_target"`
	AbstractTolerance *int  `yaml:"abstract_tolerance"`
	SkipExact         *bool `yaml:"skip_exact"`
	Evolve            *bool `yaml:"evolve"`
	RecordFailures    *bool `yaml:"record_failures"`
	Forget            *bool `yaml:"forget"`
	ReinforceExtra    *int  `yaml:"reinforce_extra"`
	Capacity          *int  `yaml:"capacity"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Store:     StoreConfig{Backend: "fs", Dir: "memory"},
		Retriever: RetrieverConfig{Backend: "chromem"},
		Embedder:  EmbedderConfig{Backend: "mock", CacheSize: 4096},
		Merger:    MergerConfig{Backend: "none"},
		LogLevel:  "info",
	}
}

// Load reads path, expands ${VAR} references and applies defaults.
// Unknown keys are rejected. An empty path returns Default.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a YAML document.
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	c := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks backend names and required paths.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "fs":
		if c.Store.Dir == "" {
			return errors.New("config: store.dir is required for the fs backend")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return errors.New("config: store.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("config: store.backend %q must be fs or sqlite", c.Store.Backend)
	}

	switch c.Retriever.Backend {
	case "chromem", "mock":
	default:
		return fmt.Errorf("config: retriever.backend %q must be chromem or mock", c.Retriever.Backend)
	}

	switch c.Embedder.Backend {
	case "mock":
	case "onnx":
		if c.Embedder.ModelPath == "" || c.Embedder.TokenizerPath == "" {
			return errors.New("config: embedder.model_path and embedder.tokenizer_path are required for onnx")
		}
	default:
		return fmt.Errorf("config: embedder.backend %q must be mock or onnx", c.Embedder.Backend)
	}

	switch c.Merger.Backend {
	case "none", "":
	case "anthropic", "openai":
		if c.Merger.APIKey == "" {
			return fmt.Errorf("config: merger.api_key is required for %s", c.Merger.Backend)
		}
	default:
		return fmt.Errorf("config: merger.backend %q must be anthropic, openai or none", c.Merger.Backend)
	}
	return nil
}

// MemoryOptions returns the memory.Config described by the memory section.
func (c *Config) MemoryOptions() *memory.Config {
	mc := *memory.DefaultConfig
	if c.Memory.WrapShortfall != nil {
		mc.WrapShortfall = *c.Memory.WrapShortfall
	}
	if c.Memory.ReindexOnRecover != nil {
		mc.ReindexOnRecover = *c.Memory.ReindexOnRecover
	}
	return &mc
}

// RecallOptions returns memory.DefaultRecallOptions overridden by the policy section.
func (c *Config) RecallOptions() memory.RecallOptions {
	o := memory.DefaultRecallOptions
	p := c.Policy
	setInt(&o.SpecificK, p.SpecificK)
	setInt(&o.SpecificTolerance, p.SpecificTolerance)
	setInt(&o.AbstractTarget, p.AbstractTarget)
	setInt(&o.AbstractTolerance, p.AbstractTolerance)
	setBool(&o.SkipExact, p.SkipExact)
	return o
}

// RecordPolicy returns memory.DefaultRecordPolicy overridden by the policy section.
func (c *Config) RecordPolicy() memory.RecordPolicy {
	r := memory.DefaultRecordPolicy
	p := c.Policy
	setBool(&r.Evolve, p.Evolve)
	setBool(&r.RecordFailures, p.RecordFailures)
	setBool(&r.Forget, p.Forget)
	setInt(&r.ReinforceExtra, p.ReinforceExtra)
	setInt(&r.Capacity, p.Capacity)
	return r
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
