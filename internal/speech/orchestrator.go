package speech

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Asmit-coder-Arduino/TTS/internal/artifact"
	"github.com/Asmit-coder-Arduino/TTS/internal/audio"
	"github.com/Asmit-coder-Arduino/TTS/internal/observability"
	"github.com/Asmit-coder-Arduino/TTS/internal/quota"
	"github.com/Asmit-coder-Arduino/TTS/internal/voice"
	"github.com/Asmit-coder-Arduino/TTS/internal/words"
)

// Orchestrator runs one generation request end to end. Instances are
// safe for concurrent use; every run owns its own scratch space.
type Orchestrator struct {
	ledger     quota.Ledger
	synth      voice.Synthesizer
	assembler  audio.Assembler
	store      artifact.Store
	metrics    *observability.Metrics
	scratchDir string
}

func NewOrchestrator(ledger quota.Ledger, synth voice.Synthesizer, assembler audio.Assembler, store artifact.Store, metrics *observability.Metrics) *Orchestrator {
	return &Orchestrator{
		ledger:    ledger,
		synth:     synth,
		assembler: assembler,
		store:     store,
		metrics:   metrics,
	}
}

// SetScratchDir overrides the parent directory for run-scoped
// intermediate artifacts. Empty means the system temp directory.
func (o *Orchestrator) SetScratchDir(dir string) { o.scratchDir = dir }

// Generate validates quota, synthesizes every non-empty paragraph in
// order, inserts configured silence between paragraphs, concatenates
// the segments, persists the result and commits usage. Intermediate
// segments are deleted on every exit path.
func (o *Orchestrator) Generate(ctx context.Context, req GenerationRequest, notify ProgressFunc) (Result, error) {
	o.metrics.GenerationStarted()
	defer o.metrics.GenerationFinished()

	res, err := o.generate(ctx, req, notify)
	if err != nil {
		o.metrics.ObserveGeneration(outcomeFor(err))
		return Result{}, err
	}
	o.metrics.ObserveGeneration("success")
	return res, nil
}

func (o *Orchestrator) generate(ctx context.Context, req GenerationRequest, notify ProgressFunc) (Result, error) {
	// Validating.
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	totalWords := words.CountTotal(req.Texts())
	credentialHash := words.HashCredential(req.APIKey)

	validation, err := o.ledger.Validate(ctx, credentialHash, totalWords)
	if err != nil {
		return Result{}, fmt.Errorf("quota validation: %w", err)
	}
	if !validation.CanProceed {
		o.metrics.ObserveQuotaRejection()
		return Result{}, &QuotaError{Validation: validation}
	}

	emit(notify, ProgressEvent{Stage: StageStarted, Words: totalWords})

	run, err := newRun(o.scratchDir)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer run.release()

	// Synthesizing(i), in original order.
	last := len(req.Paragraphs) - 1
	for i, p := range req.Paragraphs {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}

		start := time.Now()
		speechBytes, err := o.synth.Synthesize(ctx, p.Text, p.VoiceID, p.Settings.voiceSettings(), req.APIKey)
		if err != nil {
			o.metrics.ObserveSynthesis("error", time.Since(start))
			return Result{}, fmt.Errorf("paragraph %d: %w", i+1, err)
		}
		o.metrics.ObserveSynthesis("ok", time.Since(start))

		if err := run.addSegment(speechBytes); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		emit(notify, ProgressEvent{
			Stage:          StageSynthesized,
			ParagraphIndex: i,
			ParagraphID:    p.ID,
			Words:          words.Count(p.Text),
		})

		if i < last && p.Settings.SilenceInterval > 0 {
			d := time.Duration(p.Settings.SilenceInterval * float64(time.Second))
			silence, err := o.assembler.Silence(ctx, d)
			if err != nil {
				return Result{}, err
			}
			if err := run.addSegment(silence); err != nil {
				return Result{}, fmt.Errorf("%w: %v", ErrStorage, err)
			}
		}
	}

	// Assembling.
	segments, err := run.readSegments()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if len(segments) == 0 {
		return Result{}, ErrNoContent
	}
	emit(notify, ProgressEvent{Stage: StageAssembling, Segments: len(segments)})

	combined, err := o.assembler.Concatenate(ctx, segments)
	if err != nil {
		return Result{}, err
	}

	// Persisting.
	name, err := o.store.Store(ctx, combined, o.assembler.FileExt())
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	emit(notify, ProgressEvent{Stage: StagePersisted})

	// Committing. The artifact is already persisted: a ledger failure
	// here is logged accounting drift, not a user-visible error.
	if err := o.ledger.Commit(ctx, credentialHash, totalWords); err != nil {
		o.metrics.ObserveLedgerCommitFailure()
		log.Printf("ledger commit drift: %d words not recorded for %s: %v", totalWords, credentialHash, err)
	} else {
		o.metrics.ObserveWordsCommitted(totalWords)
	}

	totalUsed := validation.WordsUsed + totalWords
	remaining := validation.MonthlyLimit - totalUsed
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		AudioName:      name,
		ContentType:    o.assembler.ContentType(),
		WordsUsed:      totalWords,
		TotalWordsUsed: totalUsed,
		WordsRemaining: remaining,
		MonthlyLimit:   validation.MonthlyLimit,
	}, nil
}

func emit(notify ProgressFunc, ev ProgressEvent) {
	if notify != nil {
		notify(ev)
	}
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrNoContent):
		return "no_content"
	case errors.Is(err, audio.ErrAssembly):
		return "assembly_failed"
	case errors.Is(err, ErrStorage):
		return "storage_failed"
	case errors.Is(err, voice.ErrInvalidCredential),
		errors.Is(err, voice.ErrInvalidParameters),
		errors.Is(err, voice.ErrRateLimited),
		errors.Is(err, voice.ErrUpstream),
		errors.Is(err, voice.ErrEmptyAudio):
		return "synthesis_failed"
	default:
		return "error"
	}
}

// run owns the intermediate artifacts of one generation. All segments
// live in a private directory removed exactly once, on every exit
// path.
type run struct {
	dir      string
	segments []string
}

func newRun(parent string) (*run, error) {
	dir, err := os.MkdirTemp(parent, "composer-run-*")
	if err != nil {
		return nil, err
	}
	return &run{dir: dir}, nil
}

func (r *run) addSegment(data []byte) error {
	path := filepath.Join(r.dir, fmt.Sprintf("seg_%03d", len(r.segments)))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	r.segments = append(r.segments, path)
	return nil
}

func (r *run) readSegments() ([][]byte, error) {
	out := make([][]byte, 0, len(r.segments))
	for _, path := range r.segments {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

func (r *run) release() {
	if err := os.RemoveAll(r.dir); err != nil {
		log.Printf("failed to release run scratch dir %s: %v", r.dir, err)
	}
}
