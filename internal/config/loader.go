package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"deepgram", "whisper"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
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
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout %v must not be negative", cfg.Server.ShutdownTimeout))
	}

	// Store
	for i, p := range cfg.Store.SeedFiles {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Errorf("store.seed_files[%d] is empty", i))
		}
	}
	if cfg.Store.PostgresDSN == "" {
		slog.Warn("store.postgres_dsn is empty; point sets are kept in memory only")
	}

	// Game
	g := cfg.Game
	for _, d := range []struct {
		name string
		v    time.Duration
	}{
		{"grace_period", g.GracePeriod},
		{"correct_delay", g.CorrectDelay},
		{"skip_delay", g.SkipDelay},
	} {
		if d.v < 0 {
			errs = append(errs, fmt.Errorf("game.%s %v must not be negative", d.name, d.v))
		}
	}
	for i, w := range g.SkipWords {
		if strings.TrimSpace(w) == "" {
			errs = append(errs, fmt.Errorf("game.skip_words[%d] is empty", i))
		}
	}
	if g.MaxSkipsPerPoint < 0 {
		errs = append(errs, fmt.Errorf("game.max_skips_per_point %d must not be negative", g.MaxSkipsPerPoint))
	}
	if g.MinTranscriptLength < 0 {
		errs = append(errs, fmt.Errorf("game.min_transcript_length %d must not be negative", g.MinTranscriptLength))
	}
	if g.PhoneticThreshold <= 0 || g.PhoneticThreshold > 1 {
		errs = append(errs, fmt.Errorf("game.phonetic_threshold %.2f is out of range (0, 1]", g.PhoneticThreshold))
	}

	// Recognition
	if cfg.Recognition.RestartBackoff < 0 {
		errs = append(errs, fmt.Errorf("recognition.restart_backoff %v must not be negative", cfg.Recognition.RestartBackoff))
	}
	if sr := cfg.Recognition.SampleRate; sr < 8000 || sr > 48000 {
		errs = append(errs, fmt.Errorf("recognition.sample_rate %d is out of range [8000, 48000]", sr))
	}
	if cfg.Recognition.KeywordBoost < 0 {
		errs = append(errs, fmt.Errorf("recognition.keyword_boost %.2f must not be negative", cfg.Recognition.KeywordBoost))
	}

	// Providers
	validateProviderName("stt", cfg.Providers.STT.Name)
	if cfg.Providers.STT.Name == "" && len(cfg.Providers.STTFallbacks) > 0 {
		errs = append(errs, errors.New("providers.stt_fallbacks requires providers.stt"))
	}
	seen := map[string]bool{providerKey(cfg.Providers.STT): true}
	for i, fb := range cfg.Providers.STTFallbacks {
		prefix := fmt.Sprintf("providers.stt_fallbacks[%d]", i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		validateProviderName("stt", fb.Name)
		key := providerKey(fb)
		if seen[key] {
			errs = append(errs, fmt.Errorf("%s duplicates an earlier stt provider", prefix))
		}
		seen[key] = true
	}
	if cfg.Providers.STT.Name == "deepgram" && cfg.Providers.STT.APIKey == "" {
		errs = append(errs, errors.New("providers.stt: deepgram requires api_key"))
	}

	// Telemetry
	if !strings.HasPrefix(cfg.Telemetry.MetricsPath, "/") {
		errs = append(errs, fmt.Errorf("telemetry.metrics_path %q must start with /", cfg.Telemetry.MetricsPath))
	}

	return errors.Join(errs...)
}

func providerKey(e ProviderEntry) string {
	return e.Name + "|" + e.BaseURL + "|" + e.Model
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
	slog.Warn("unknown provider name; may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
