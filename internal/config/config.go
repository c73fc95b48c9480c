package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the speech composer service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	SynthesisBaseURL string
	SynthesisModelID string
	SynthesisTimeout time.Duration

	// AudioAssembler selects how segments are joined: "pcm" assembles
	// raw PCM in process, "ffmpeg" shells out to an external encoder.
	AudioAssembler string
	FFmpegPath     string
	PCMSampleRate  int

	DatabaseURL       string
	QuotaMonthlyLimit int

	// ArtifactTTL of zero keeps artifacts forever.
	ArtifactTTL time.Duration
}

// Load reads environment variables and applies safe defaults. There is
// deliberately no default synthesis credential: every request carries
// the caller's own key, and requests without one fail closed.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:          envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:  envOrDefault("APP_METRICS_NAMESPACE", "composer"),
		SynthesisBaseURL:  envOrDefault("SYNTHESIS_BASE_URL", "https://api.elevenlabs.io"),
		SynthesisModelID:  envOrDefault("SYNTHESIS_MODEL_ID", "eleven_multilingual_v2"),
		AudioAssembler:    strings.ToLower(envOrDefault("AUDIO_ASSEMBLER", "pcm")),
		FFmpegPath:        envOrDefault("FFMPEG_PATH", "ffmpeg"),
		DatabaseURL:       trimSpaceEnv("DATABASE_URL"),
		ShutdownTimeout:   15 * time.Second,
		SynthesisTimeout:  60 * time.Second,
		PCMSampleRate:     16000,
		QuotaMonthlyLimit: 10000,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SynthesisTimeout, err = durationFromEnv("SYNTHESIS_TIMEOUT", cfg.SynthesisTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ArtifactTTL, err = durationFromEnv("ARTIFACT_TTL", 0)
	if err != nil {
		return Config{}, err
	}
	cfg.PCMSampleRate, err = intFromEnv("PCM_SAMPLE_RATE", cfg.PCMSampleRate)
	if err != nil {
		return Config{}, err
	}
	cfg.QuotaMonthlyLimit, err = intFromEnv("QUOTA_MONTHLY_LIMIT", cfg.QuotaMonthlyLimit)
	if err != nil {
		return Config{}, err
	}

	if cfg.AudioAssembler != "pcm" && cfg.AudioAssembler != "ffmpeg" {
		return Config{}, fmt.Errorf("AUDIO_ASSEMBLER must be pcm or ffmpeg, got %q", cfg.AudioAssembler)
	}
	if cfg.PCMSampleRate <= 0 {
		return Config{}, fmt.Errorf("PCM_SAMPLE_RATE must be positive")
	}
	if cfg.QuotaMonthlyLimit <= 0 {
		return Config{}, fmt.Errorf("QUOTA_MONTHLY_LIMIT must be positive")
	}
	if cfg.SynthesisTimeout < time.Second {
		return Config{}, fmt.Errorf("SYNTHESIS_TIMEOUT must be at least 1s")
	}
	if cfg.ArtifactTTL < 0 {
		return Config{}, fmt.Errorf("ARTIFACT_TTL must not be negative")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimSpaceEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimSpaceEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimSpaceEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}
