// Copyright 2026 © The NeuroSync Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads NeuroSync settings from defaults, a YAML file, an
// optional profile file, NEUROSYNC_ environment variables and --set
// overrides, in that order.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment variables read as overrides.
const EnvPrefix = "NEUROSYNC_"

type Config struct {
	Log       LogConfig       `koanf:"log"`
	LLM       LLMConfig       `koanf:"llm"`
	Fallback  FallbackConfig  `koanf:"fallback"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Memory    MemoryConfig    `koanf:"memory"`
	Storage   StorageConfig   `koanf:"storage"`
	Session   SessionConfig   `koanf:"session"`
	Server    ServerConfig    `koanf:"server"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Search    SearchConfig    `koanf:"search"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type LLMConfig struct {
	Provider        string  `koanf:"provider"` // gemini, mock
	Model           string  `koanf:"model"`
	APIKey          string  `koanf:"api_key"`
	Temperature     float64 `koanf:"temperature"`
	MaxOutputTokens int     `koanf:"max_output_tokens"`
	MaxIterations   int     `koanf:"max_iterations"`
}

type FallbackConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Provider string `koanf:"provider"` // ollama
	BaseURL  string `koanf:"base_url"`
	Model    string `koanf:"model"`
}

type RateLimitConfig struct {
	MinInterval time.Duration `koanf:"min_interval"`
	Cooldown    time.Duration `koanf:"cooldown"`
}

type MemoryConfig struct {
	Window int `koanf:"window"`
}

type StorageConfig struct {
	AuthPath string `koanf:"auth_path"`
	ChatPath string `koanf:"chat_path"`
}

type SessionConfig struct {
	TTL time.Duration `koanf:"ttl"`
}

type ServerConfig struct {
	Addr string `koanf:"addr"`
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // stdout, otlp, none
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

type SearchConfig struct {
	UserAgent     string `koanf:"user_agent"`
	WikipediaLang string `koanf:"wikipedia_lang"`
	MaxResults    int    `koanf:"max_results"`
}

var defaults = map[string]any{
	"log.level":              "info",
	"log.format":             "text",
	"llm.provider":           "gemini",
	"llm.model":              "gemini-2.0-flash",
	"llm.temperature":        0.7,
	"llm.max_output_tokens":  1024,
	"llm.max_iterations":     5,
	"fallback.enabled":       true,
	"fallback.provider":      "ollama",
	"fallback.base_url":      "http://localhost:11434",
	"fallback.model":         "llama3.2:1b",
	"ratelimit.min_interval": "2s",
	"ratelimit.cooldown":     "5s",
	"memory.window":          10,
	"storage.auth_path":      "users.db",
	"storage.chat_path":      "chats.db",
	"session.ttl":            "168h",
	"server.addr":            ":8080",
	"telemetry.exporter":     "none",
	"search.user_agent":      "NeuroSync/1.0",
	"search.wikipedia_lang":  "en",
	"search.max_results":     3,
}

// Load reads path (optional) on top of the defaults.
func Load(path string) (*Config, error) {
	return load(path, "", nil)
}

// LoadWithProfile also merges config.<profile>.yaml from the directory of
// path when that file exists.
func LoadWithProfile(path, profile string) (*Config, error) {
	return load(path, profile, nil)
}

// LoadWithCLI understands --config, --profile (alias --env) and repeated
// --set key=value arguments. Unrelated arguments are ignored.
func LoadWithCLI(args []string) (*Config, error) {
	opts, sets, err := parseCLIOverrides(args)
	if err != nil {
		return nil, err
	}
	return load(opts.path, opts.profile, sets)
}

func load(path, profile string, sets map[string]any) (*Config, error) {
	k := koanf.New(".")
	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return nil, err
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	if p := profileConfigPath(path, profile); p != "" {
		if err := k.Load(file.Provider(p), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load profile %s: %w", p, err)
		}
	}

	// NEUROSYNC_LLM_API_KEY -> llm.api_key: the first underscore separates
	// the section from the key.
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}

	if k.String("llm.api_key") == "" {
		for _, name := range []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"} {
			if v := os.Getenv(name); v != "" {
				_ = k.Set("llm.api_key", v)
				break
			}
		}
	}

	for key, v := range sets {
		if err := k.Set(key, v); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// profileConfigPath returns config.<profile>.yaml beside base, or "" when
// there is no such file.
func profileConfigPath(base, profile string) string {
	if base == "" || profile == "" {
		return ""
	}
	ext := filepath.Ext(base)
	if ext == "" {
		ext = ".yaml"
	}
	name := strings.TrimSuffix(filepath.Base(base), filepath.Ext(base))
	candidate := filepath.Join(filepath.Dir(base), name+"."+profile+ext)
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}

type cliOptions struct {
	path    string
	profile string
}

func parseCLIOverrides(args []string) (cliOptions, map[string]any, error) {
	var opts cliOptions
	sets := map[string]any{}

	for i := 0; i < len(args); i++ {
		name, value, hasValue := strings.Cut(args[i], "=")
		switch name {
		case "--config", "-config", "--profile", "-profile", "--env", "-env", "--set", "-set":
		default:
			continue
		}
		if !hasValue {
			if i+1 >= len(args) {
				return opts, nil, fmt.Errorf("missing value for %s", name)
			}
			i++
			value = args[i]
		}

		switch strings.TrimLeft(name, "-") {
		case "config":
			opts.path = value
		case "profile", "env":
			opts.profile = value
		case "set":
			key, raw, ok := strings.Cut(value, "=")
			key = strings.TrimSpace(key)
			if !ok || key == "" {
				return opts, nil, fmt.Errorf("invalid --set value %q, want key=value", value)
			}
			sets[key] = parseValue(raw)
		}
	}
	return opts, sets, nil
}

// parseValue keeps JSON objects and arrays structured; everything else is
// a string left to koanf's weak decoding.
func parseValue(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return v
		}
	}
	return raw
}

// Validate rejects settings the runtime cannot honor.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "gemini", "mock":
	default:
		return fmt.Errorf("llm.provider %q is not supported (gemini, mock)", c.LLM.Provider)
	}
	if c.LLM.Provider == "gemini" && c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required for gemini (or set GOOGLE_API_KEY)")
	}
	if c.LLM.MaxIterations <= 0 {
		return fmt.Errorf("llm.max_iterations must be positive")
	}
	if c.Fallback.Enabled && c.Fallback.Provider != "ollama" {
		return fmt.Errorf("fallback.provider %q is not supported (ollama)", c.Fallback.Provider)
	}
	if c.Memory.Window <= 0 {
		return fmt.Errorf("memory.window must be positive")
	}
	if c.RateLimit.MinInterval < 0 || c.RateLimit.Cooldown < 0 {
		return fmt.Errorf("ratelimit intervals must not be negative")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}
	switch c.Telemetry.Exporter {
	case "", "none", "stdout", "otlp":
	default:
		return fmt.Errorf("telemetry.exporter %q is not supported", c.Telemetry.Exporter)
	}
	return nil
}
