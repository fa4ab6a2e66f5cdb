package config_test

// Loader tests run serially: the environment overlay makes LoadFromReader
// sensitive to process-wide state, and several tests use t.Setenv.

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quincybot/quincy/internal/config"
)

func TestLoadFromReaderAppliesDefaults(t *testing.T) {
	yml := `
discord:
  token: test-token
`
	cfg, err := config.LoadFromReader(strings.NewReader(yml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Discord.Token != "test-token" {
		t.Errorf("Token = %q, want test-token", cfg.Discord.Token)
	}
	if cfg.VCTimeoutMins != 15 {
		t.Errorf("VCTimeoutMins = %d, want the default 15", cfg.VCTimeoutMins)
	}
	if cfg.Resolver.MaxDistance != 3 || cfg.Resolver.MaxSuggestions != 5 {
		t.Errorf("Resolver = %+v, want defaults {3 5}", cfg.Resolver)
	}
	if cfg.TTS.Name != "gtrans" || cfg.TTS.DefaultLanguage != "en-uk" {
		t.Errorf("TTS = %+v, want the gtrans default", cfg.TTS)
	}
	if cfg.LogLevel != config.LogInfo {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadFromReaderOverrides(t *testing.T) {
	yml := `
discord:
  token: test-token
sound_dir: /srv/sounds
vc_timeout_mins: 5
vc_timeout_check_interval_secs: 10
sb_num_new: 8
sb_request_file: /var/quincy/requests.txt
sb_request_file_max_size: 1024
resolver:
  max_distance: 2
  max_suggestions: 3
rate_limit:
  playbacks_per_minute: 10
  burst: 2
tts:
  name: eleven
  api_key: k-123
  default_language: de
metrics_addr: ":9191"
log_level: debug
`
	cfg, err := config.LoadFromReader(strings.NewReader(yml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.SoundDir != "/srv/sounds" {
		t.Errorf("SoundDir = %q", cfg.SoundDir)
	}
	if cfg.VCTimeoutMins != 5 || cfg.VCTimeoutCheckIntervalSecs != 10 {
		t.Errorf("timeouts = %d/%d, want 5/10", cfg.VCTimeoutMins, cfg.VCTimeoutCheckIntervalSecs)
	}
	if cfg.Resolver.MaxDistance != 2 || cfg.Resolver.MaxSuggestions != 3 {
		t.Errorf("Resolver = %+v, want {2 3}", cfg.Resolver)
	}
	if cfg.TTS.Name != "eleven" || cfg.TTS.APIKey != "k-123" || cfg.TTS.DefaultLanguage != "de" {
		t.Errorf("TTS = %+v", cfg.TTS)
	}
	if cfg.LogLevel != config.LogDebug {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	yml := `
discord:
  token: test-token
sund_dir: typo
`
	if _, err := config.LoadFromReader(strings.NewReader(yml)); err == nil {
		t.Fatal("LoadFromReader with unknown key: want error")
	}
}

func TestEnvOverlay(t *testing.T) {
	t.Setenv("QUINCY_DISCORD_TOKEN", "env-token")
	t.Setenv("QUINCY_ELEVEN_API_KEY", "env-key")

	yml := `
tts:
  name: eleven
`
	cfg, err := config.LoadFromReader(strings.NewReader(yml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Discord.Token != "env-token" {
		t.Errorf("Token = %q, want the environment value", cfg.Discord.Token)
	}
	if cfg.TTS.APIKey != "env-key" {
		t.Errorf("TTS.APIKey = %q, want the environment value", cfg.TTS.APIKey)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		cfg := config.Default()
		cfg.Discord.Token = "test-token"
		return cfg
	}

	if err := config.Validate(valid()); err != nil {
		t.Fatalf("Validate on a complete config: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"missing token", func(c *config.Config) { c.Discord.Token = "" }},
		{"empty sound dir", func(c *config.Config) { c.SoundDir = "" }},
		{"zero timeout", func(c *config.Config) { c.VCTimeoutMins = 0 }},
		{"zero check interval", func(c *config.Config) { c.VCTimeoutCheckIntervalSecs = 0 }},
		{"zero num new", func(c *config.Config) { c.SBNumNew = 0 }},
		{"request file without cap", func(c *config.Config) { c.SBRequestFileMaxSize = 0 }},
		{"zero max distance", func(c *config.Config) { c.Resolver.MaxDistance = 0 }},
		{"zero max suggestions", func(c *config.Config) { c.Resolver.MaxSuggestions = 0 }},
		{"negative rate limit", func(c *config.Config) { c.RateLimit.PlaybacksPerMinute = -1 }},
		{"rate limit without burst", func(c *config.Config) { c.RateLimit.Burst = 0 }},
		{"unknown tts backend", func(c *config.Config) { c.TTS.Name = "espeak" }},
		{"eleven without api key", func(c *config.Config) { c.TTS.Name = "eleven" }},
		{"bad log level", func(c *config.Config) { c.LogLevel = "loud" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			if err := config.Validate(cfg); err == nil {
				t.Error("Validate: want error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quincy.yml")
	yml := "discord:\n  token: file-token\n"
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Discord.Token != "file-token" {
		t.Errorf("Token = %q, want file-token", cfg.Discord.Token)
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatal("Load missing file: want error")
	}
}
