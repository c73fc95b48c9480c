// Package voice wraps the external speech-synthesis provider. One
// Synthesize call is exactly one outbound request; retry policy, if
// any, belongs to the caller.
package voice

import (
	"context"
	"errors"
)

// Failure kinds surfaced by Synthesize. Callers classify with
// errors.Is; the wrapped message carries the provider detail.
var (
	ErrInvalidCredential = errors.New("synthesis credential rejected")
	ErrInvalidParameters = errors.New("invalid voice id or settings")
	ErrRateLimited       = errors.New("synthesis rate limit exceeded")
	ErrUpstream          = errors.New("synthesis service unavailable")
	ErrEmptyAudio        = errors.New("synthesis returned empty audio")
)

// Settings are the prosody parameters forwarded with one paragraph.
// Stability and SimilarityBoost pass through to the provider
// unchanged; Speed and Pitch are folded into stability best-effort.
type Settings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed"`
	Pitch           float64 `json:"pitch"`
}

// Voice describes one synthesis voice from the provider catalog.
type Voice struct {
	ID       string            `json:"voice_id"`
	Name     string            `json:"name"`
	Category string            `json:"category,omitempty"`
	Labels   map[string]string `json:"labels,omitempty"`
}

// Synthesizer converts one paragraph of text into audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string, settings Settings, credential string) ([]byte, error)

	// ListVoices performs a lightweight catalog call, used both for the
	// composer voice picker and to confirm a credential is accepted.
	ListVoices(ctx context.Context, credential string) ([]Voice, error)
}

// effectiveStability folds speed and pitch modulation into the
// stability value sent upstream. The provider has no native speed or
// pitch control on this endpoint, so the original product approximated
// both by scaling stability; kept verbatim as a placeholder transform
// pending product review.
func effectiveStability(s Settings) float64 {
	stability := s.Stability
	if s.Speed != 0 && s.Speed != 1.0 || s.Pitch != 0 && s.Pitch != 1.0 {
		speed := s.Speed
		if speed == 0 {
			speed = 1.0
		}
		stability = s.Stability * speed
	}
	if stability < 0 {
		return 0
	}
	if stability > 1 {
		return 1
	}
	return stability
}
