package audio

import (
	"context"
	"errors"
	"time"
)

// ErrAssembly marks a failed concatenation; it aborts the whole
// generation that requested it.
var ErrAssembly = errors.New("audio assembly failed")

// ErrNoSegments is returned when Concatenate receives an empty list.
var ErrNoSegments = errors.New("no audio segments to assemble")

// Assembler is the capability that turns ordered speech and silence
// segments into one playable stream. Segments are bytes in the
// assembler's native form: the synthesis client must be configured
// with the matching OutputFormat.
type Assembler interface {
	// Silence produces a silent segment of the given duration.
	// Durations of zero or less must never be requested.
	Silence(ctx context.Context, d time.Duration) ([]byte, error)

	// Concatenate joins segments in the exact order given. A single
	// segment may be returned unchanged when its native form is
	// already playable.
	Concatenate(ctx context.Context, segments [][]byte) ([]byte, error)

	// OutputFormat is the provider output_format whose bytes this
	// assembler consumes.
	OutputFormat() string

	ContentType() string
	FileExt() string
}
