// Package speech drives the generation pipeline: quota gate,
// per-paragraph synthesis, silence insertion, assembly, persistence
// and usage commit.
package speech

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Asmit-coder-Arduino/TTS/internal/quota"
	"github.com/Asmit-coder-Arduino/TTS/internal/voice"
)

// Failure kinds owned by the pipeline. Synthesis failures pass
// through as the voice package's kinds, assembly failures as
// audio.ErrAssembly.
var (
	ErrInvalidRequest = errors.New("invalid generation request")
	ErrNoContent      = errors.New("no paragraph produced audio")
	ErrQuotaExceeded  = errors.New("monthly word quota exceeded")
	ErrStorage        = errors.New("artifact persistence failed")
)

// QuotaError carries the usage numbers alongside the quota failure so
// the boundary can surface remaining/requested counts.
type QuotaError struct {
	Validation quota.ValidationResult
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("monthly word quota exceeded: %d requested, %d remaining of %d",
		e.Validation.RequestedWords, e.Validation.WordsRemaining, e.Validation.MonthlyLimit)
}

func (e *QuotaError) Unwrap() error { return ErrQuotaExceeded }

// VoiceSettings are the per-paragraph tuning parameters, bounds per
// the request contract.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed"`
	Pitch           float64 `json:"pitch"`
	SilenceInterval float64 `json:"silenceInterval"`
}

// DefaultVoiceSettings are applied to fields the request leaves out.
// Speed and pitch are optional modulation; absent means neutral.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.5,
		SimilarityBoost: 0.5,
		Speed:           1.0,
		Pitch:           1.0,
		SilenceInterval: 1.0,
	}
}

// UnmarshalJSON seeds defaults first so omitted fields keep their
// neutral values while explicit ones, zero included, win.
func (s *VoiceSettings) UnmarshalJSON(data []byte) error {
	type plain VoiceSettings
	v := plain(DefaultVoiceSettings())
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = VoiceSettings(v)
	return nil
}

func (s VoiceSettings) validate() error {
	switch {
	case s.Stability < 0 || s.Stability > 1:
		return fmt.Errorf("%w: stability %v outside [0,1]", ErrInvalidRequest, s.Stability)
	case s.SimilarityBoost < 0 || s.SimilarityBoost > 1:
		return fmt.Errorf("%w: similarity_boost %v outside [0,1]", ErrInvalidRequest, s.SimilarityBoost)
	case s.Speed < 0.5 || s.Speed > 2:
		return fmt.Errorf("%w: speed %v outside [0.5,2]", ErrInvalidRequest, s.Speed)
	case s.Pitch < 0 || s.Pitch > 2:
		return fmt.Errorf("%w: pitch %v outside [0,2]", ErrInvalidRequest, s.Pitch)
	case s.SilenceInterval < 0 || s.SilenceInterval > 10:
		return fmt.Errorf("%w: silenceInterval %v outside [0,10]", ErrInvalidRequest, s.SilenceInterval)
	}
	return nil
}

func (s VoiceSettings) voiceSettings() voice.Settings {
	return voice.Settings{
		Stability:       s.Stability,
		SimilarityBoost: s.SimilarityBoost,
		Speed:           s.Speed,
		Pitch:           s.Pitch,
	}
}

// Paragraph is one unit of text to be spoken. IDs are assigned by the
// caller and only echoed back; Language is advisory and never gates a
// synthesis call.
type Paragraph struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	VoiceID  string        `json:"voiceId"`
	Language string        `json:"language"`
	Settings VoiceSettings `json:"settings"`
}

// UnmarshalJSON keeps a paragraph with no settings object on the
// neutral defaults instead of the zero value, which validate would
// reject.
func (p *Paragraph) UnmarshalJSON(data []byte) error {
	type plain Paragraph
	v := plain{Settings: DefaultVoiceSettings()}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Paragraph(v)
	return nil
}

// GenerationRequest is the atomic unit of work: an ordered paragraph
// sequence plus the caller's provider credential.
type GenerationRequest struct {
	Paragraphs []Paragraph `json:"paragraphs"`
	APIKey     string      `json:"apiKey"`
}

const credentialPrefix = "sk_"

// Validate rejects malformed requests before any external call.
func (r GenerationRequest) Validate() error {
	if !strings.HasPrefix(r.APIKey, credentialPrefix) {
		return fmt.Errorf("%w: API key must start with %q", ErrInvalidRequest, credentialPrefix)
	}
	if len(r.Paragraphs) == 0 {
		return fmt.Errorf("%w: at least one paragraph is required", ErrInvalidRequest)
	}

	allEmpty := true
	for i, p := range r.Paragraphs {
		if strings.TrimSpace(p.Text) != "" {
			allEmpty = false
			if strings.TrimSpace(p.VoiceID) == "" {
				return fmt.Errorf("%w: paragraph %d has no voice id", ErrInvalidRequest, i+1)
			}
		}
		if err := p.Settings.validate(); err != nil {
			return fmt.Errorf("paragraph %d: %w", i+1, err)
		}
	}
	if allEmpty {
		return fmt.Errorf("%w: every paragraph is empty", ErrNoContent)
	}
	return nil
}

// Texts returns the paragraph texts in order, for word accounting.
func (r GenerationRequest) Texts() []string {
	out := make([]string, len(r.Paragraphs))
	for i, p := range r.Paragraphs {
		out[i] = p.Text
	}
	return out
}

// Result reports a successful generation.
type Result struct {
	AudioName      string
	ContentType    string
	WordsUsed      int
	TotalWordsUsed int
	WordsRemaining int
	MonthlyLimit   int
}

// ProgressEvent is emitted as a run advances, for callers that stream
// progress to the composer UI.
type ProgressEvent struct {
	Stage          string
	ParagraphIndex int
	ParagraphID    string
	Words          int
	Segments       int
}

// Progress stages.
const (
	StageStarted     = "started"
	StageSynthesized = "paragraph_synthesized"
	StageAssembling  = "assembling"
	StagePersisted   = "persisted"
)

// ProgressFunc observes pipeline progress; nil disables reporting.
type ProgressFunc func(ProgressEvent)
