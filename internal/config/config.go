// Package config provides the configuration schema, loader, and provider
// registry for the geoquiz server.
package config

import (
	"time"

	"github.com/MrWong99/geoquiz/internal/game"
)

// LogLevel controls log verbosity for the geoquiz server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for geoquiz.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Store       StoreConfig       `yaml:"store"`
	Game        GameConfig        `yaml:"game"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on. Default: ":8080".
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`

	// ShutdownTimeout bounds graceful shutdown. Default: 10s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// AllowedOrigins are extra origins accepted for game WebSockets, as host
	// patterns (e.g. "quiz.example.com", "*.example.com").
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// StoreConfig selects where point sets live.
type StoreConfig struct {
	// PostgresDSN enables the PostgreSQL store. When empty, sets are kept in
	// memory and lost on restart.
	PostgresDSN string `yaml:"postgres_dsn"`

	// SeedFiles are YAML files whose sets are loaded at startup.
	SeedFiles []string `yaml:"seed_files"`
}

// GameConfig tunes gameplay. Changes apply to games started after a reload.
type GameConfig struct {
	// GracePeriod suppresses wrong-answer feedback at round start.
	// Default: 1500ms.
	GracePeriod time.Duration `yaml:"grace_period"`

	// CorrectDelay is the pause after a correct spoken answer. Default: 1s.
	CorrectDelay time.Duration `yaml:"correct_delay"`

	// SkipDelay is the pause after a skip. Default: 500ms.
	SkipDelay time.Duration `yaml:"skip_delay"`

	// SkipWords are the commands that skip a target. Default: [pasar].
	SkipWords []string `yaml:"skip_words"`

	// MaxSkipsPerPoint caps how often a point is requeued. 0 is unlimited.
	MaxSkipsPerPoint int `yaml:"max_skips_per_point"`

	// MinTranscriptLength is the number of normalised characters below
	// which a transcript is ignored. Default: 2.
	MinTranscriptLength int `yaml:"min_transcript_length"`

	// PhoneticFallback accepts answers that sound like the target.
	PhoneticFallback bool `yaml:"phonetic_fallback"`

	// PhoneticThreshold is the similarity the fallback requires.
	// Default: 0.85.
	PhoneticThreshold float64 `yaml:"phonetic_threshold"`

	// Messages overrides player-facing texts. Empty entries keep the
	// Spanish defaults.
	Messages game.Messages `yaml:"messages"`
}

// Timing returns the game delays.
func (g GameConfig) Timing() game.Timing {
	return game.Timing{
		GracePeriod:  g.GracePeriod,
		CorrectDelay: g.CorrectDelay,
		SkipDelay:    g.SkipDelay,
	}
}

// RecognitionConfig tunes speech recognition.
type RecognitionConfig struct {
	// Language is the BCP-47 tag sent to recognizers. Default: es-ES.
	Language string `yaml:"language"`

	// RestartBackoff delays re-arming a recognizer that ended. Default: 0.
	RestartBackoff time.Duration `yaml:"restart_backoff"`

	// SampleRate of the PCM clients stream for server-side recognition.
	// Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// KeywordBoost is the weight given to the set's place names.
	// Default: 2.
	KeywordBoost float64 `yaml:"keyword_boost"`
}

// ProvidersConfig declares the server-side speech-to-text backends. When
// STT is unset, clients recognise speech themselves.
type ProvidersConfig struct {
	STT          ProviderEntry   `yaml:"stt"`
	STTFallbacks []ProviderEntry `yaml:"stt_fallbacks"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "deepgram").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "nova-3").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above.
	Options map[string]any `yaml:"options"`
}

// TelemetryConfig configures metrics and tracing.
type TelemetryConfig struct {
	// ServiceName is reported in telemetry. Default: geoquiz.
	ServiceName string `yaml:"service_name"`

	// MetricsPath is where Prometheus metrics are served. Default: /metrics.
	MetricsPath string `yaml:"metrics_path"`
}

// ApplyDefaults fills zero values with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	def := game.DefaultTiming()
	if cfg.Game.GracePeriod == 0 {
		cfg.Game.GracePeriod = def.GracePeriod
	}
	if cfg.Game.CorrectDelay == 0 {
		cfg.Game.CorrectDelay = def.CorrectDelay
	}
	if cfg.Game.SkipDelay == 0 {
		cfg.Game.SkipDelay = def.SkipDelay
	}
	if len(cfg.Game.SkipWords) == 0 {
		cfg.Game.SkipWords = []string{"pasar"}
	}
	if cfg.Game.MinTranscriptLength == 0 {
		cfg.Game.MinTranscriptLength = 2
	}
	if cfg.Game.PhoneticThreshold == 0 {
		cfg.Game.PhoneticThreshold = 0.85
	}
	cfg.Game.Messages = cfg.Game.Messages.Merge(game.DefaultMessages())

	if cfg.Recognition.Language == "" {
		cfg.Recognition.Language = "es-ES"
	}
	if cfg.Recognition.SampleRate == 0 {
		cfg.Recognition.SampleRate = 16000
	}
	if cfg.Recognition.KeywordBoost == 0 {
		cfg.Recognition.KeywordBoost = 2
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "geoquiz"
	}
	if cfg.Telemetry.MetricsPath == "" {
		cfg.Telemetry.MetricsPath = "/metrics"
	}
}
