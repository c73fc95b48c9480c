package config

import (
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.AudioAssembler != "pcm" {
		t.Fatalf("AudioAssembler = %q, want %q", cfg.AudioAssembler, "pcm")
	}
	if cfg.QuotaMonthlyLimit != 10000 {
		t.Fatalf("QuotaMonthlyLimit = %d, want 10000", cfg.QuotaMonthlyLimit)
	}
	if cfg.ArtifactTTL != 0 {
		t.Fatalf("ArtifactTTL = %v, want 0 (keep forever)", cfg.ArtifactTTL)
	}
	if cfg.SynthesisModelID != "eleven_multilingual_v2" {
		t.Fatalf("SynthesisModelID = %q, want default model", cfg.SynthesisModelID)
	}
}

func TestLoadReadsExplicitValues(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("AUDIO_ASSEMBLER", "ffmpeg")
	t.Setenv("QUOTA_MONTHLY_LIMIT", "500")
	t.Setenv("SYNTHESIS_TIMEOUT", "30s")
	t.Setenv("ARTIFACT_TTL", "2h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AudioAssembler != "ffmpeg" {
		t.Fatalf("AudioAssembler = %q, want %q", cfg.AudioAssembler, "ffmpeg")
	}
	if cfg.QuotaMonthlyLimit != 500 {
		t.Fatalf("QuotaMonthlyLimit = %d, want 500", cfg.QuotaMonthlyLimit)
	}
	if cfg.SynthesisTimeout != 30*time.Second {
		t.Fatalf("SynthesisTimeout = %v, want 30s", cfg.SynthesisTimeout)
	}
	if cfg.ArtifactTTL != 2*time.Hour {
		t.Fatalf("ArtifactTTL = %v, want 2h", cfg.ArtifactTTL)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown assembler", "AUDIO_ASSEMBLER", "sox"},
		{"non-numeric limit", "QUOTA_MONTHLY_LIMIT", "lots"},
		{"zero limit", "QUOTA_MONTHLY_LIMIT", "0"},
		{"bad duration", "SYNTHESIS_TIMEOUT", "soon"},
		{"sub-second synthesis timeout", "SYNTHESIS_TIMEOUT", "100ms"},
		{"negative ttl", "ARTIFACT_TTL", "-1h"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setCoreEnvEmpty(t)
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() accepted %s=%q", tc.key, tc.value)
			}
		})
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"SYNTHESIS_BASE_URL",
		"SYNTHESIS_MODEL_ID",
		"SYNTHESIS_TIMEOUT",
		"AUDIO_ASSEMBLER",
		"FFMPEG_PATH",
		"PCM_SAMPLE_RATE",
		"DATABASE_URL",
		"QUOTA_MONTHLY_LIMIT",
		"ARTIFACT_TTL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
