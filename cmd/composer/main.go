package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Asmit-coder-Arduino/TTS/internal/artifact"
	"github.com/Asmit-coder-Arduino/TTS/internal/audio"
	"github.com/Asmit-coder-Arduino/TTS/internal/config"
	"github.com/Asmit-coder-Arduino/TTS/internal/httpapi"
	"github.com/Asmit-coder-Arduino/TTS/internal/observability"
	"github.com/Asmit-coder-Arduino/TTS/internal/quota"
	"github.com/Asmit-coder-Arduino/TTS/internal/speech"
	"github.com/Asmit-coder-Arduino/TTS/internal/voice"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	ledger, err := quota.NewLedger(ctx, cfg.DatabaseURL, cfg.QuotaMonthlyLimit)
	if err != nil {
		log.Fatalf("quota ledger init failed: %v", err)
	}
	defer ledger.Close()

	artifacts, err := artifact.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("artifact store init failed: %v", err)
	}
	defer artifacts.Close()

	var assembler audio.Assembler
	switch cfg.AudioAssembler {
	case "ffmpeg":
		assembler = audio.NewFFmpegAssembler(cfg.FFmpegPath)
		log.Printf("audio assembler: ffmpeg (%s)", cfg.FFmpegPath)
	default:
		assembler = audio.NewPCMAssembler(cfg.PCMSampleRate)
		log.Printf("audio assembler: pcm (%d Hz)", cfg.PCMSampleRate)
	}

	synth := voice.NewElevenLabsClient(voice.ElevenLabsConfig{
		BaseURL:      cfg.SynthesisBaseURL,
		ModelID:      cfg.SynthesisModelID,
		OutputFormat: assembler.OutputFormat(),
		Timeout:      cfg.SynthesisTimeout,
	})

	orchestrator := speech.NewOrchestrator(ledger, synth, assembler, artifacts, metrics)

	api := httpapi.New(cfg, orchestrator, ledger, artifacts, synth, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	if cfg.ArtifactTTL > 0 {
		artifact.StartSweeper(runCtx, artifacts, cfg.ArtifactTTL, time.Minute)
		log.Printf("artifact sweeper enabled (ttl %s)", cfg.ArtifactTTL)
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
