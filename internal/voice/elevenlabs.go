package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	defaultModelID = "eleven_multilingual_v2"
	defaultTimeout = 60 * time.Second

	maxErrorBody = 1 << 20
)

type ElevenLabsConfig struct {
	BaseURL      string
	ModelID      string
	OutputFormat string // e.g. mp3_44100_128 or pcm_16000
	Timeout      time.Duration
}

// ElevenLabsClient calls the provider's REST text-to-speech endpoint.
// The credential travels with each call; the client holds no key of
// its own.
type ElevenLabsClient struct {
	cfg        ElevenLabsConfig
	httpClient *http.Client
}

func NewElevenLabsClient(cfg ElevenLabsConfig) *ElevenLabsClient {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = defaultModelID
	}
	if strings.TrimSpace(cfg.OutputFormat) == "" {
		cfg.OutputFormat = "mp3_44100_128"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &ElevenLabsClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type synthesisRequest struct {
	Text          string             `json:"text"`
	ModelID       string             `json:"model_id"`
	VoiceSettings *voiceSettingsBody `json:"voice_settings,omitempty"`
}

type voiceSettingsBody struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

func (c *ElevenLabsClient) Synthesize(ctx context.Context, text, voiceID string, settings Settings, credential string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is empty", ErrInvalidParameters)
	}
	if strings.TrimSpace(voiceID) == "" {
		return nil, fmt.Errorf("%w: voice_id is required", ErrInvalidParameters)
	}

	body := synthesisRequest{
		Text:    text,
		ModelID: c.cfg.ModelID,
		VoiceSettings: &voiceSettingsBody{
			Stability:       effectiveStability(settings),
			SimilarityBoost: settings.SimilarityBoost,
			Style:           0,
			UseSpeakerBoost: true,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal synthesis request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") +
		"/v1/text-to-speech/" + url.PathEscape(voiceID) +
		"?output_format=" + url.QueryEscape(c.cfg.OutputFormat)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", acceptFor(c.cfg.OutputFormat))
	req.Header.Set("xi-api-key", credential)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.classifyError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read audio: %v", ErrUpstream, err)
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	return audio, nil
}

// acceptFor matches the Accept header to the requested output format;
// the provider keys the response codec off output_format either way.
func acceptFor(outputFormat string) string {
	switch {
	case strings.HasPrefix(outputFormat, "pcm_"):
		return "audio/pcm"
	case strings.HasPrefix(outputFormat, "ulaw_"):
		return "audio/basic"
	default:
		return "audio/mpeg"
	}
}

func (c *ElevenLabsClient) ListVoices(ctx context.Context, credential string) ([]Voice, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/voices"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create voices request: %w", err)
	}
	req.Header.Set("xi-api-key", credential)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.classifyError(resp)
	}

	var parsed struct {
		Voices []Voice `json:"voices"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode voices: %v", ErrUpstream, err)
	}
	return parsed.Voices, nil
}

type providerError struct {
	Detail struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"detail"`
}

// classifyError maps provider status codes onto the package's failure
// kinds, preferring the structured detail message and falling back to
// the raw body.
func (c *ElevenLabsClient) classifyError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	detail := strings.TrimSpace(string(raw))
	var parsed providerError
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Detail.Message != "" {
		detail = parsed.Detail.Message
	}

	var kind error
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = ErrInvalidCredential
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		kind = ErrInvalidParameters
	case http.StatusTooManyRequests:
		kind = ErrRateLimited
	default:
		kind = ErrUpstream
	}

	if detail == "" {
		return fmt.Errorf("%w: status %s", kind, resp.Status)
	}
	return fmt.Errorf("%w: status %s: %s", kind, resp.Status, detail)
}
