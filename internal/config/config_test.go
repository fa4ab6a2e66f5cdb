package config_test

import (
	"testing"
	"time"

	"github.com/quincybot/quincy/internal/config"
)

func TestLogLevelIsValid(t *testing.T) {
	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("%q reported invalid", l)
		}
	}
	if config.LogLevel("verbose").IsValid() {
		t.Error("unknown level reported valid")
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := &config.Config{
		VCTimeoutMins:              7,
		VCTimeoutCheckIntervalSecs: 45,
	}
	if got, want := cfg.VCTimeout(), 7*time.Minute; got != want {
		t.Errorf("VCTimeout() = %v, want %v", got, want)
	}
	if got, want := cfg.VCCheckInterval(), 45*time.Second; got != want {
		t.Errorf("VCCheckInterval() = %v, want %v", got, want)
	}
}
