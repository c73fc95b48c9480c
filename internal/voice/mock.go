package voice

import (
	"context"
	"sync"
)

// SynthCall records the arguments of one Synthesize invocation.
type SynthCall struct {
	Text       string
	VoiceID    string
	Settings   Settings
	Credential string
}

// MockSynthesizer is a scriptable in-process synthesizer for tests.
// By default each call returns audio derived from the input text; a
// FailAt index or per-call errors override that.
type MockSynthesizer struct {
	mu     sync.Mutex
	calls  []SynthCall
	errAt  map[int]error
	voices []Voice
}

func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{errAt: make(map[int]error)}
}

// FailCall makes the n-th Synthesize call (zero-based) return err.
func (m *MockSynthesizer) FailCall(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errAt[n] = err
}

func (m *MockSynthesizer) SetVoices(voices []Voice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voices = voices
}

func (m *MockSynthesizer) Calls() []SynthCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SynthCall, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockSynthesizer) Synthesize(_ context.Context, text, voiceID string, settings Settings, credential string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.calls)
	m.calls = append(m.calls, SynthCall{Text: text, VoiceID: voiceID, Settings: settings, Credential: credential})
	if err, ok := m.errAt[n]; ok {
		return nil, err
	}
	return []byte("audio:" + text), nil
}

func (m *MockSynthesizer) ListVoices(_ context.Context, _ string) ([]Voice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.voices, nil
}
