// Package config provides the configuration schema and loader for the Quincy
// voice companion.
//
// Configuration comes from a YAML file layered over [Default], with secrets
// overridable through the environment (QUINCY_DISCORD_TOKEN,
// QUINCY_ELEVEN_API_KEY).
package config

import "time"

// LogLevel controls log verbosity.
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

// Config is the root configuration structure for Quincy.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Discord DiscordConfig `yaml:"discord"`

	// SoundDir is the root of the soundboard library; its immediate
	// subdirectories are the categories.
	SoundDir string `yaml:"sound_dir" env:"QUINCY_SOUND_DIR"`

	// VCTimeoutMins is how many minutes a voice session may sit without user
	// activity before the reaper disconnects it.
	VCTimeoutMins int `yaml:"vc_timeout_mins"`

	// VCTimeoutCheckIntervalSecs is how often, in seconds, the reaper scans
	// for idle sessions.
	VCTimeoutCheckIntervalSecs int `yaml:"vc_timeout_check_interval_secs"`

	// SBNumNew is how many sounds the "newest sounds" listing shows.
	SBNumNew int `yaml:"sb_num_new"`

	// SBRequestFile is the path of the append-only sound-request file.
	SBRequestFile string `yaml:"sb_request_file"`

	// SBRequestFileMaxSize caps the request file, in bytes. Requests beyond
	// the cap are rejected, never truncated.
	SBRequestFileMaxSize int64 `yaml:"sb_request_file_max_size"`

	Resolver  ResolverConfig  `yaml:"resolver"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	TTS       TTSEntry        `yaml:"tts"`

	// MetricsAddr is the listen address of the Prometheus /metrics endpoint.
	// Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level" env:"QUINCY_LOG_LEVEL"`
}

// DiscordConfig holds the Discord gateway credentials.
type DiscordConfig struct {
	// Token is the bot token. Usually supplied via QUINCY_DISCORD_TOKEN
	// rather than the YAML file.
	Token string `yaml:"token" env:"QUINCY_DISCORD_TOKEN"`
}

// ResolverConfig tunes the fuzzy sound matcher.
type ResolverConfig struct {
	// MaxDistance is the Levenshtein ceiling for typo suggestions.
	MaxDistance int `yaml:"max_distance"`

	// MaxSuggestions caps the candidate list shown on an ambiguous match.
	MaxSuggestions int `yaml:"max_suggestions"`
}

// RateLimitConfig bounds how fast one guild can start playbacks.
type RateLimitConfig struct {
	// PlaybacksPerMinute is the sustained per-guild budget. Zero disables
	// limiting.
	PlaybacksPerMinute int `yaml:"playbacks_per_minute"`

	// Burst is the short-term allowance above the sustained rate.
	Burst int `yaml:"burst"`
}

// TTSEntry selects and configures the text-to-speech backend.
type TTSEntry struct {
	// Name selects the backend: "gtrans" or "eleven".
	Name string `yaml:"name"`

	// APIKey authenticates against the backend, for backends that need one.
	// Usually supplied via QUINCY_ELEVEN_API_KEY.
	APIKey string `yaml:"api_key" env:"QUINCY_ELEVEN_API_KEY"`

	// BaseURL overrides the backend's default endpoint. Leave empty for the
	// built-in default.
	BaseURL string `yaml:"base_url"`

	// DefaultLanguage is the language code used when a say command names
	// none.
	DefaultLanguage string `yaml:"default_language"`
}

// Default returns the configuration used when the YAML file leaves a value
// unset.
func Default() *Config {
	return &Config{
		SoundDir:                   "sounds",
		VCTimeoutMins:              15,
		VCTimeoutCheckIntervalSecs: 60,
		SBNumNew:                   5,
		SBRequestFile:              "sound_requests.txt",
		SBRequestFileMaxSize:       64 * 1024,
		Resolver: ResolverConfig{
			MaxDistance:    3,
			MaxSuggestions: 5,
		},
		RateLimit: RateLimitConfig{
			PlaybacksPerMinute: 30,
			Burst:              3,
		},
		TTS: TTSEntry{
			Name:            "gtrans",
			DefaultLanguage: "en-uk",
		},
		MetricsAddr: ":9090",
		LogLevel:    LogInfo,
	}
}

// VCTimeout returns the idle threshold as a duration.
func (c *Config) VCTimeout() time.Duration {
	return time.Duration(c.VCTimeoutMins) * time.Minute
}

// VCCheckInterval returns the reaper scan period as a duration.
func (c *Config) VCCheckInterval() time.Duration {
	return time.Duration(c.VCTimeoutCheckIntervalSecs) * time.Second
}
