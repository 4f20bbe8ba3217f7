package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/intervoq/intervoq/internal/gateway"
	"github.com/intervoq/intervoq/internal/pool"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "openrouter", "gemini", "anthropic", "ollama", "deepseek", "mistral", "groq"},
	"stt":        {"deepgram"},
	"tts":        {"deepgram", "openai"},
	"embeddings": {"openai", "ollama"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. ${ENV_VAR} references in the file are expanded before parsing, so
// credentials can stay out of the file itself.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	expanded := os.Expand(string(raw), func(name string) string {
		// Leave untouched anything that is not a plain env var reference so
		// YAML using $ for other purposes survives.
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return ""
	})

	cfg := &Config{}
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Interview
	if cfg.Interview.TimeLimitMinutes < 0 {
		errs = append(errs, fmt.Errorf("interview.time_limit_minutes %d is negative", cfg.Interview.TimeLimitMinutes))
	}
	if sf := cfg.Interview.Voice.SpeedFactor; sf != 0 && (sf < 0.5 || sf > 2.0) {
		errs = append(errs, fmt.Errorf("interview.voice.speed_factor %.2f is out of range [0.5, 2.0]", sf))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	// LLM gateway
	llm := cfg.Providers.LLM
	if llm.PoolStrategy != "" && !slices.Contains(pool.ValidStrategies, llm.PoolStrategy) {
		errs = append(errs, fmt.Errorf("providers.llm.pool_strategy %q is invalid; valid values: %v", llm.PoolStrategy, pool.ValidStrategies))
	}
	for provider, accounts := range llm.Accounts {
		validateProviderName("llm", provider)
		seen := make(map[string]bool, len(accounts))
		for i, acct := range accounts {
			prefix := fmt.Sprintf("providers.llm.accounts.%s[%d]", provider, i)
			if acct.Name == "" {
				errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			} else if seen[acct.Name] {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate", prefix, acct.Name))
			}
			seen[acct.Name] = true
			if acct.APIKey == "" {
				errs = append(errs, fmt.Errorf("%s.api_key is required", prefix))
			}
		}
	}
	for task, route := range llm.Routes {
		errs = append(errs, validateRoute(fmt.Sprintf("providers.llm.routes.%s", task), route, llm.Accounts)...)
	}
	if llm.DefaultRoute.Primary.Provider != "" {
		errs = append(errs, validateRoute("providers.llm.default_route", llm.DefaultRoute, llm.Accounts)...)
	} else if len(llm.Routes) == 0 {
		slog.Warn("no LLM routes configured; completions will fail until routes are added")
	}

	// Audio
	if sr := cfg.Audio.SampleRate; sr != 0 && sr != 8000 && sr != 16000 && sr != 24000 && sr != 48000 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is unsupported; use 8000, 16000, 24000, or 48000", sr))
	}
	if ch := cfg.Audio.Channels; ch < 0 || ch > 2 {
		errs = append(errs, fmt.Errorf("audio.channels %d is out of range [0, 2]", ch))
	}

	// Memory
	if cfg.Memory.PostgresDSN == "" {
		slog.Warn("memory.postgres_dsn is empty; interviews and reports will not survive restarts")
	}
	if cfg.Memory.RedisAddr == "" {
		slog.Warn("memory.redis_addr is empty; the hot session tier is disabled")
	}
	if cfg.Providers.Embeddings.Name != "" && cfg.Memory.EmbeddingDimensions <= 0 {
		slog.Warn("providers.embeddings is configured but memory.embedding_dimensions is not set; defaulting to 1536")
	}

	return errors.Join(errs...)
}

// validateRoute checks that every model in a route names a provider that has
// pooled accounts configured.
func validateRoute(prefix string, route gateway.Route, accounts map[string][]AccountConfig) []error {
	var errs []error
	check := func(label string, ref gateway.ModelRef) {
		if ref.Provider == "" {
			errs = append(errs, fmt.Errorf("%s.%s.provider is required", prefix, label))
			return
		}
		if ref.Model == "" {
			errs = append(errs, fmt.Errorf("%s.%s.model is required", prefix, label))
		}
		if len(accounts[ref.Provider]) == 0 {
			errs = append(errs, fmt.Errorf("%s.%s references provider %q with no accounts configured", prefix, label, ref.Provider))
		}
	}
	check("primary", route.Primary)
	for i, fb := range route.Fallbacks {
		check(fmt.Sprintf("fallbacks[%d]", i), fb)
	}
	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
