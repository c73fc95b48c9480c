package audio

import (
	"context"
	"fmt"
	"time"
)

// PCMAssembler assembles raw PCM16LE mono segments in process and
// wraps the result in a WAV container. It needs no external tooling.
type PCMAssembler struct {
	sampleRate int
}

func NewPCMAssembler(sampleRate int) *PCMAssembler {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &PCMAssembler{sampleRate: sampleRate}
}

func (a *PCMAssembler) Silence(_ context.Context, d time.Duration) ([]byte, error) {
	if d <= 0 {
		return nil, fmt.Errorf("%w: non-positive silence duration %v", ErrAssembly, d)
	}
	samples := int(d.Seconds() * float64(a.sampleRate))
	// 16-bit mono: two zero bytes per sample.
	return make([]byte, samples*2), nil
}

func (a *PCMAssembler) Concatenate(_ context.Context, segments [][]byte) ([]byte, error) {
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}

	total := 0
	for _, seg := range segments {
		total += len(seg)
	}
	pcm := make([]byte, 0, total)
	for _, seg := range segments {
		pcm = append(pcm, seg...)
	}

	out, err := EncodeWAVPCM16LE(pcm, a.sampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssembly, err)
	}
	return out, nil
}

func (a *PCMAssembler) OutputFormat() string {
	return fmt.Sprintf("pcm_%d", a.sampleRate)
}

func (a *PCMAssembler) ContentType() string { return "audio/wav" }

func (a *PCMAssembler) FileExt() string { return "wav" }
