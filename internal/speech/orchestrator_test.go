package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Asmit-coder-Arduino/TTS/internal/quota"
	"github.com/Asmit-coder-Arduino/TTS/internal/voice"
	"github.com/Asmit-coder-Arduino/TTS/internal/words"
)

// fakeAssembler keeps segments verbatim so tests can assert exact
// ordering: silence segments encode their duration.
type fakeAssembler struct {
	mu           sync.Mutex
	concatCalls  int
	failAssembly bool
}

func (a *fakeAssembler) Silence(_ context.Context, d time.Duration) ([]byte, error) {
	return []byte(fmt.Sprintf("silence:%s", d)), nil
}

func (a *fakeAssembler) Concatenate(_ context.Context, segments [][]byte) ([]byte, error) {
	a.mu.Lock()
	a.concatCalls++
	fail := a.failAssembly
	a.mu.Unlock()
	if fail {
		return nil, fmt.Errorf("%w: codecs incompatible", errAssemblyForTest)
	}
	if len(segments) == 1 {
		return segments[0], nil
	}
	return bytes.Join(segments, []byte("|")), nil
}

func (a *fakeAssembler) OutputFormat() string { return "mp3_44100_128" }
func (a *fakeAssembler) ContentType() string  { return "audio/mpeg" }
func (a *fakeAssembler) FileExt() string      { return "mp3" }

var errAssemblyForTest = errors.New("audio assembly failed")

type fakeStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	names   []string
	failing bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{blobs: make(map[string][]byte)}
}

func (s *fakeStore) Store(_ context.Context, data []byte, ext string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return "", errors.New("disk full")
	}
	name := fmt.Sprintf("speech_test-%d.%s", len(s.names), ext)
	blob := make([]byte, len(data))
	copy(blob, data)
	s.blobs[name] = blob
	s.names = append(s.names, name)
	return name, nil
}

func (s *fakeStore) Fetch(_ context.Context, name string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[name]
	return b, ok, nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) storedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.names)
}

type commitFailingLedger struct {
	quota.Ledger
}

func (l *commitFailingLedger) Commit(context.Context, string, int) error {
	return errors.New("ledger unavailable")
}

func paragraph(id, text string, silence float64) Paragraph {
	return Paragraph{
		ID:      id,
		Text:    text,
		VoiceID: "voice-1",
		Settings: VoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Speed:           1.0,
			Pitch:           1.0,
			SilenceInterval: silence,
		},
	}
}

type fixture struct {
	orch  *Orchestrator
	synth *voice.MockSynthesizer
	store *fakeStore
	asm   *fakeAssembler
	led   quota.Ledger
	dir   string
}

func newFixture(t *testing.T, led quota.Ledger) *fixture {
	t.Helper()
	if led == nil {
		led = quota.NewInMemoryLedger(10000)
	}
	f := &fixture{
		synth: voice.NewMockSynthesizer(),
		store: newFakeStore(),
		asm:   &fakeAssembler{},
		led:   led,
		dir:   t.TempDir(),
	}
	f.orch = NewOrchestrator(f.led, f.synth, f.asm, f.store, nil)
	f.orch.SetScratchDir(f.dir)
	return f
}

func (f *fixture) assertScratchEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		t.Fatalf("read scratch dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("scratch dir holds %d leftover entries after run, want 0", len(entries))
	}
}

func TestGenerateSingleParagraph(t *testing.T) {
	f := newFixture(t, nil)

	req := GenerationRequest{
		Paragraphs: []Paragraph{paragraph("p1", "Hello world", 0)},
		APIKey:     "sk_valid",
	}
	res, err := f.orch.Generate(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	calls := f.synth.Calls()
	if len(calls) != 1 {
		t.Fatalf("synthesis calls = %d, want 1", len(calls))
	}
	if calls[0].Text != "Hello world" || calls[0].Credential != "sk_valid" {
		t.Fatalf("synthesis call = %+v, want text and credential forwarded", calls[0])
	}

	blob, ok, _ := f.store.Fetch(context.Background(), res.AudioName)
	if !ok {
		t.Fatalf("artifact %q not stored", res.AudioName)
	}
	if string(blob) != "audio:Hello world" {
		t.Fatalf("artifact = %q, want the single segment's bytes unchanged", blob)
	}

	if res.WordsUsed != 2 {
		t.Fatalf("WordsUsed = %d, want 2", res.WordsUsed)
	}
	if res.TotalWordsUsed != 2 || res.WordsRemaining != 9998 || res.MonthlyLimit != 10000 {
		t.Fatalf("usage numbers = %+v, want 2 used of 10000", res)
	}

	rec, ok, _ := f.led.Get(context.Background(), words.HashCredential("sk_valid"))
	if !ok || rec.WordsUsed != 2 {
		t.Fatalf("ledger WordsUsed = %d (present=%v), want 2", rec.WordsUsed, ok)
	}

	f.assertScratchEmpty(t)
}

func TestGenerateInsertsSilenceBetweenParagraphs(t *testing.T) {
	f := newFixture(t, nil)

	req := GenerationRequest{
		Paragraphs: []Paragraph{
			paragraph("a", "x", 2),
			paragraph("b", "y", 5), // last paragraph: its interval is skipped
		},
		APIKey: "sk_valid",
	}
	res, err := f.orch.Generate(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	blob, _, _ := f.store.Fetch(context.Background(), res.AudioName)
	want := "audio:x|silence:2s|audio:y"
	if string(blob) != want {
		t.Fatalf("assembled order = %q, want %q", blob, want)
	}
}

func TestGenerateZeroIntervalInsertsNoSilence(t *testing.T) {
	f := newFixture(t, nil)

	req := GenerationRequest{
		Paragraphs: []Paragraph{
			paragraph("a", "x", 0),
			paragraph("b", "y", 0),
		},
		APIKey: "sk_valid",
	}
	res, err := f.orch.Generate(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	blob, _, _ := f.store.Fetch(context.Background(), res.AudioName)
	if string(blob) != "audio:x|audio:y" {
		t.Fatalf("assembled order = %q, want %q", blob, "audio:x|audio:y")
	}
}

func TestGenerateSkipsEmptyParagraphs(t *testing.T) {
	f := newFixture(t, nil)

	req := GenerationRequest{
		Paragraphs: []Paragraph{
			paragraph("a", "   ", 3),
			paragraph("b", "spoken text", 0),
		},
		APIKey: "sk_valid",
	}
	res, err := f.orch.Generate(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	calls := f.synth.Calls()
	if len(calls) != 1 || calls[0].Text != "spoken text" {
		t.Fatalf("synthesis calls = %+v, want only the non-empty paragraph", calls)
	}
	blob, _, _ := f.store.Fetch(context.Background(), res.AudioName)
	if string(blob) != "audio:spoken text" {
		t.Fatalf("artifact = %q, empty paragraph leaked into assembly", blob)
	}
}

func TestGenerateQuotaExceededMakesNoSynthesisCalls(t *testing.T) {
	led := quota.NewInMemoryLedger(10)
	if _, err := led.Upsert(context.Background(), words.HashCredential("sk_full")); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := led.Commit(context.Background(), words.HashCredential("sk_full"), 10); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	f := newFixture(t, led)
	req := GenerationRequest{
		Paragraphs: []Paragraph{paragraph("p1", "any words at all", 0)},
		APIKey:     "sk_full",
	}

	_, err := f.orch.Generate(context.Background(), req, nil)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Generate() error = %v, want ErrQuotaExceeded", err)
	}

	var qe *QuotaError
	if !errors.As(err, &qe) {
		t.Fatalf("error %v does not carry quota numbers", err)
	}
	if qe.Validation.WordsRemaining != 0 || qe.Validation.RequestedWords != 4 {
		t.Fatalf("quota numbers = %+v, want 0 remaining, 4 requested", qe.Validation)
	}

	if n := len(f.synth.Calls()); n != 0 {
		t.Fatalf("synthesis calls = %d, want 0", n)
	}
	if f.store.storedCount() != 0 {
		t.Fatalf("artifact stored despite quota rejection")
	}
}

func TestGenerateSecondParagraphFailureAbortsCleanly(t *testing.T) {
	f := newFixture(t, nil)
	f.synth.FailCall(1, fmt.Errorf("%w: slow down", voice.ErrRateLimited))

	req := GenerationRequest{
		Paragraphs: []Paragraph{
			paragraph("a", "first", 1),
			paragraph("b", "second", 0),
		},
		APIKey: "sk_valid",
	}
	_, err := f.orch.Generate(context.Background(), req, nil)
	if !errors.Is(err, voice.ErrRateLimited) {
		t.Fatalf("Generate() error = %v, want ErrRateLimited", err)
	}

	if f.store.storedCount() != 0 {
		t.Fatalf("artifact persisted despite synthesis failure")
	}
	rec, ok, _ := f.led.Get(context.Background(), words.HashCredential("sk_valid"))
	if ok && rec.WordsUsed != 0 {
		t.Fatalf("ledger WordsUsed = %d after failed run, want 0", rec.WordsUsed)
	}
	f.assertScratchEmpty(t)
}

func TestGenerateRejectsMalformedRequests(t *testing.T) {
	f := newFixture(t, nil)
	cases := []struct {
		name string
		req  GenerationRequest
		want error
	}{
		{
			"bad credential prefix",
			GenerationRequest{Paragraphs: []Paragraph{paragraph("a", "x", 0)}, APIKey: "not-a-key"},
			ErrInvalidRequest,
		},
		{
			"empty paragraph list",
			GenerationRequest{APIKey: "sk_valid"},
			ErrInvalidRequest,
		},
		{
			"all paragraphs empty",
			GenerationRequest{Paragraphs: []Paragraph{paragraph("a", "  ", 0)}, APIKey: "sk_valid"},
			ErrNoContent,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.orch.Generate(context.Background(), tc.req, nil)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Generate() error = %v, want %v", err, tc.want)
			}
		})
	}
	if n := len(f.synth.Calls()); n != 0 {
		t.Fatalf("synthesis calls = %d for rejected requests, want 0", n)
	}
}

func TestGenerateRejectsOutOfRangeSettings(t *testing.T) {
	f := newFixture(t, nil)

	p := paragraph("a", "x", 0)
	p.Settings.Speed = 3.0
	req := GenerationRequest{Paragraphs: []Paragraph{p}, APIKey: "sk_valid"}

	_, err := f.orch.Generate(context.Background(), req, nil)
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("Generate() error = %v, want ErrInvalidRequest", err)
	}
	if n := len(f.synth.Calls()); n != 0 {
		t.Fatalf("synthesis calls = %d before boundary validation, want 0", n)
	}
}

func TestGenerateStorageFailureCommitsNothing(t *testing.T) {
	f := newFixture(t, nil)
	f.store.failing = true

	req := GenerationRequest{
		Paragraphs: []Paragraph{paragraph("a", "some words", 0)},
		APIKey:     "sk_valid",
	}
	_, err := f.orch.Generate(context.Background(), req, nil)
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("Generate() error = %v, want ErrStorage", err)
	}

	rec, _, _ := f.led.Get(context.Background(), words.HashCredential("sk_valid"))
	if rec.WordsUsed != 0 {
		t.Fatalf("ledger WordsUsed = %d after storage failure, want 0", rec.WordsUsed)
	}
	f.assertScratchEmpty(t)
}

func TestGenerateCommitFailureStillReportsSuccess(t *testing.T) {
	inner := quota.NewInMemoryLedger(10000)
	f := newFixture(t, &commitFailingLedger{Ledger: inner})

	req := GenerationRequest{
		Paragraphs: []Paragraph{paragraph("a", "three small words", 0)},
		APIKey:     "sk_valid",
	}
	res, err := f.orch.Generate(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v, want success despite commit drift", err)
	}
	if res.AudioName == "" {
		t.Fatalf("Result.AudioName empty, want persisted artifact")
	}

	// The drift is real: nothing was recorded.
	rec, _, _ := inner.Get(context.Background(), words.HashCredential("sk_valid"))
	if rec.WordsUsed != 0 {
		t.Fatalf("ledger WordsUsed = %d, want 0 (commit failed)", rec.WordsUsed)
	}
}

func TestGenerateEmitsProgressInOrder(t *testing.T) {
	f := newFixture(t, nil)

	var stages []string
	notify := func(ev ProgressEvent) { stages = append(stages, ev.Stage) }

	req := GenerationRequest{
		Paragraphs: []Paragraph{
			paragraph("a", "x", 1),
			paragraph("b", "y", 0),
		},
		APIKey: "sk_valid",
	}
	if _, err := f.orch.Generate(context.Background(), req, notify); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	want := []string{StageStarted, StageSynthesized, StageSynthesized, StageAssembling, StagePersisted}
	if len(stages) != len(want) {
		t.Fatalf("progress stages = %v, want %v", stages, want)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Fatalf("stage %d = %q, want %q", i, stages[i], want[i])
		}
	}
}

func TestGenerateConcurrentRunsAreIsolated(t *testing.T) {
	f := newFixture(t, nil)

	const runs = 8
	var wg sync.WaitGroup
	errs := make([]error, runs)
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			req := GenerationRequest{
				Paragraphs: []Paragraph{
					paragraph("a", fmt.Sprintf("run %d first", n), 1),
					paragraph("b", fmt.Sprintf("run %d second", n), 0),
				},
				APIKey: "sk_shared",
			}
			_, errs[n] = f.orch.Generate(context.Background(), req, nil)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("run %d error = %v", i, err)
		}
	}

	// Every commit applied: 3 words per paragraph pair * 2 paragraphs.
	rec, _, _ := f.led.Get(context.Background(), words.HashCredential("sk_shared"))
	if rec.WordsUsed != runs*6 {
		t.Fatalf("ledger WordsUsed = %d, want %d", rec.WordsUsed, runs*6)
	}
	f.assertScratchEmpty(t)
}
