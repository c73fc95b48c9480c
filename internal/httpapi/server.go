package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/Asmit-coder-Arduino/TTS/internal/artifact"
	"github.com/Asmit-coder-Arduino/TTS/internal/audio"
	"github.com/Asmit-coder-Arduino/TTS/internal/config"
	"github.com/Asmit-coder-Arduino/TTS/internal/observability"
	"github.com/Asmit-coder-Arduino/TTS/internal/quota"
	"github.com/Asmit-coder-Arduino/TTS/internal/speech"
	"github.com/Asmit-coder-Arduino/TTS/internal/voice"
	"github.com/Asmit-coder-Arduino/TTS/internal/words"
)

// Generator runs one speech generation end to end.
type Generator interface {
	Generate(ctx context.Context, req speech.GenerationRequest, notify speech.ProgressFunc) (speech.Result, error)
}

type Server struct {
	cfg       config.Config
	generator Generator
	ledger    quota.Ledger
	artifacts artifact.Store
	synth     voice.Synthesizer
	metrics   *observability.Metrics
	upgrader  websocket.Upgrader
}

func New(cfg config.Config, generator Generator, ledger quota.Ledger, artifacts artifact.Store, synth voice.Synthesizer, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:       cfg,
		generator: generator,
		ledger:    ledger,
		artifacts: artifacts,
		synth:     synth,
		metrics:   metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/api/generate-speech", s.handleGenerateSpeech)
	r.Get("/api/generate-speech/ws", s.handleGenerateSpeechWS)
	r.Get("/api/audio/{filename}", s.handleServeAudio)
	r.Post("/api/usage", s.handleUsage)
	r.Post("/api/test-api-key", s.handleTestAPIKey)
	r.Post("/api/voices", s.handleListVoices)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"ledger_mode": storeMode(s.cfg.DatabaseURL),
	})
}

type generateResponse struct {
	Success        bool   `json:"success"`
	AudioURL       string `json:"audioUrl,omitempty"`
	WordsUsed      int    `json:"wordsUsed,omitempty"`
	TotalWordsUsed int    `json:"totalWordsUsed,omitempty"`
	WordsRemaining int    `json:"wordsRemaining,omitempty"`
	MonthlyLimit   int    `json:"monthlyLimit,omitempty"`
	Error          string `json:"error,omitempty"`
}

func (s *Server) handleGenerateSpeech(w http.ResponseWriter, r *http.Request) {
	var req speech.GenerationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, generateResponse{
			Success: false,
			Error:   "Invalid request data. Please check your input.",
		})
		return
	}

	res, err := s.generator.Generate(r.Context(), req, nil)
	if err != nil {
		s.respondGenerationError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, generateResponse{
		Success:        true,
		AudioURL:       "/api/audio/" + res.AudioName,
		WordsUsed:      res.WordsUsed,
		TotalWordsUsed: res.TotalWordsUsed,
		WordsRemaining: res.WordsRemaining,
		MonthlyLimit:   res.MonthlyLimit,
	})
}

type quotaErrorResponse struct {
	Success        bool   `json:"success"`
	Error          string `json:"error"`
	WordsUsed      int    `json:"wordsUsed"`
	MonthlyLimit   int    `json:"monthlyLimit"`
	WordsRemaining int    `json:"wordsRemaining"`
	RequestedWords int    `json:"requestedWords"`
}

func (s *Server) respondGenerationError(w http.ResponseWriter, err error) {
	var qe *speech.QuotaError
	if errors.As(err, &qe) {
		respondJSON(w, http.StatusBadRequest, quotaErrorResponse{
			Success:        false,
			Error:          err.Error(),
			WordsUsed:      qe.Validation.WordsUsed,
			MonthlyLimit:   qe.Validation.MonthlyLimit,
			WordsRemaining: qe.Validation.WordsRemaining,
			RequestedWords: qe.Validation.RequestedWords,
		})
		return
	}

	respondJSON(w, statusForGenerationError(err), generateResponse{
		Success: false,
		Error:   err.Error(),
	})
}

func statusForGenerationError(err error) int {
	switch {
	case errors.Is(err, speech.ErrInvalidRequest),
		errors.Is(err, speech.ErrNoContent),
		errors.Is(err, speech.ErrQuotaExceeded),
		errors.Is(err, voice.ErrInvalidCredential),
		errors.Is(err, voice.ErrInvalidParameters),
		errors.Is(err, voice.ErrRateLimited),
		errors.Is(err, voice.ErrEmptyAudio):
		return http.StatusBadRequest
	case errors.Is(err, voice.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, audio.ErrAssembly), errors.Is(err, speech.ErrStorage):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleServeAudio(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if !artifact.ValidName(filename) {
		respondError(w, http.StatusBadRequest, "invalid_filename", "invalid audio filename")
		return
	}

	data, ok, err := s.artifacts.Fetch(r.Context(), filename)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", "audio file not found")
		return
	}

	w.Header().Set("Content-Type", contentTypeForName(filename))
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func contentTypeForName(name string) string {
	if strings.HasSuffix(name, ".wav") {
		return "audio/wav"
	}
	return "audio/mpeg"
}

type credentialRequest struct {
	APIKey string `json:"apiKey"`
}

type usageResponse struct {
	Success        bool   `json:"success"`
	WordsUsed      int    `json:"wordsUsed"`
	MonthlyLimit   int    `json:"monthlyLimit"`
	WordsRemaining int    `json:"wordsRemaining"`
	CurrentMonth   string `json:"currentMonth"`
	Error          string `json:"error,omitempty"`
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCredential(w, r)
	if !ok {
		return
	}

	rec, err := s.ledger.Upsert(r.Context(), words.HashCredential(req.APIKey))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "ledger_error", err.Error())
		return
	}

	remaining := rec.MonthlyLimit - rec.WordsUsed
	if remaining < 0 {
		remaining = 0
	}
	respondJSON(w, http.StatusOK, usageResponse{
		Success:        true,
		WordsUsed:      rec.WordsUsed,
		MonthlyLimit:   rec.MonthlyLimit,
		WordsRemaining: remaining,
		CurrentMonth:   rec.CurrentPeriod,
	})
}

func (s *Server) handleTestAPIKey(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCredential(w, r)
	if !ok {
		return
	}

	if _, err := s.synth.ListVoices(r.Context(), req.APIKey); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "Invalid API key or API service unavailable",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "API key is valid",
	})
}

func (s *Server) handleListVoices(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCredential(w, r)
	if !ok {
		return
	}

	voices, err := s.synth.ListVoices(r.Context(), req.APIKey)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, voice.ErrInvalidCredential) {
			status = http.StatusBadRequest
		}
		respondError(w, status, "voices_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"voices":  voices,
	})
}

func (s *Server) decodeCredential(w http.ResponseWriter, r *http.Request) (credentialRequest, bool) {
	var req credentialRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return credentialRequest{}, false
	}
	if !strings.HasPrefix(req.APIKey, "sk_") {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "Invalid API key format. ElevenLabs API key should start with 'sk_'",
		})
		return credentialRequest{}, false
	}
	return req, true
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func storeMode(databaseURL string) string {
	if strings.TrimSpace(databaseURL) == "" {
		return "in-memory"
	}
	return "postgres"
}
