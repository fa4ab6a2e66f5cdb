package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ttsBackends lists the recognised values of tts.name.
var ttsBackends = []string{"gtrans", "eleven"}

// Load reads the YAML configuration file at path, applies the environment
// overlay, and returns a validated [Config]. The file starts from [Default],
// so it only needs to mention values that differ.
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

// LoadFromReader decodes a YAML config from r over [Default], applies the
// environment overlay, and validates the result. Useful in tests where
// configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: apply environment overlay: %w", err)
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

	if cfg.Discord.Token == "" {
		errs = append(errs, errors.New("discord.token is required (set QUINCY_DISCORD_TOKEN)"))
	}
	if cfg.SoundDir == "" {
		errs = append(errs, errors.New("sound_dir is required"))
	}
	if cfg.VCTimeoutMins <= 0 {
		errs = append(errs, fmt.Errorf("vc_timeout_mins must be positive, got %d", cfg.VCTimeoutMins))
	}
	if cfg.VCTimeoutCheckIntervalSecs <= 0 {
		errs = append(errs, fmt.Errorf("vc_timeout_check_interval_secs must be positive, got %d", cfg.VCTimeoutCheckIntervalSecs))
	}
	if cfg.SBNumNew <= 0 {
		errs = append(errs, fmt.Errorf("sb_num_new must be positive, got %d", cfg.SBNumNew))
	}
	if cfg.SBRequestFile != "" && cfg.SBRequestFileMaxSize <= 0 {
		errs = append(errs, fmt.Errorf("sb_request_file_max_size must be positive, got %d", cfg.SBRequestFileMaxSize))
	}
	if cfg.Resolver.MaxDistance <= 0 {
		errs = append(errs, fmt.Errorf("resolver.max_distance must be positive, got %d", cfg.Resolver.MaxDistance))
	}
	if cfg.Resolver.MaxSuggestions <= 0 {
		errs = append(errs, fmt.Errorf("resolver.max_suggestions must be positive, got %d", cfg.Resolver.MaxSuggestions))
	}
	if cfg.RateLimit.PlaybacksPerMinute < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.playbacks_per_minute must not be negative, got %d", cfg.RateLimit.PlaybacksPerMinute))
	}
	if cfg.RateLimit.PlaybacksPerMinute > 0 && cfg.RateLimit.Burst <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit.burst must be positive when limiting is enabled, got %d", cfg.RateLimit.Burst))
	}

	switch cfg.TTS.Name {
	case "gtrans":
	case "eleven":
		if cfg.TTS.APIKey == "" {
			errs = append(errs, errors.New("tts.api_key is required for the eleven backend (set QUINCY_ELEVEN_API_KEY)"))
		}
	default:
		errs = append(errs, fmt.Errorf("tts.name %q is invalid; valid values: %v", cfg.TTS.Name, ttsBackends))
	}

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
