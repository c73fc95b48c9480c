package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FFmpegAssembler assembles MP3 segments by shelling out to ffmpeg.
// Each call owns a private scratch directory that is removed before
// the call returns.
type FFmpegAssembler struct {
	ffmpegPath string
}

func NewFFmpegAssembler(ffmpegPath string) *FFmpegAssembler {
	if strings.TrimSpace(ffmpegPath) == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegAssembler{ffmpegPath: ffmpegPath}
}

func (a *FFmpegAssembler) Silence(ctx context.Context, d time.Duration) ([]byte, error) {
	if d <= 0 {
		return nil, fmt.Errorf("%w: non-positive silence duration %v", ErrAssembly, d)
	}

	tmpDir, err := os.MkdirTemp("", "composer-silence-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssembly, err)
	}
	defer os.RemoveAll(tmpDir)

	outPath := filepath.Join(tmpDir, "silence.mp3")
	args := []string{
		"-f", "lavfi",
		"-i", "anullsrc=r=44100:cl=mono",
		"-t", strconv.FormatFloat(d.Seconds(), 'f', 3, 64),
		"-codec:a", "libmp3lame",
		"-b:a", "128k",
		"-y", outPath,
	}
	if err := a.run(ctx, args); err != nil {
		return nil, err
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssembly, err)
	}
	return out, nil
}

func (a *FFmpegAssembler) Concatenate(ctx context.Context, segments [][]byte) ([]byte, error) {
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}
	// A lone MP3 segment is already playable; skip re-encoding.
	if len(segments) == 1 {
		return segments[0], nil
	}

	tmpDir, err := os.MkdirTemp("", "composer-concat-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssembly, err)
	}
	defer os.RemoveAll(tmpDir)

	var list bytes.Buffer
	for i, seg := range segments {
		name := fmt.Sprintf("seg_%03d.mp3", i)
		if err := os.WriteFile(filepath.Join(tmpDir, name), seg, 0o600); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAssembly, err)
		}
		fmt.Fprintf(&list, "file '%s'\n", name)
	}
	listPath := filepath.Join(tmpDir, "segments.txt")
	if err := os.WriteFile(listPath, list.Bytes(), 0o600); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssembly, err)
	}

	outPath := filepath.Join(tmpDir, "combined.mp3")
	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-codec:a", "libmp3lame",
		"-b:a", "128k",
		"-y", outPath,
	}
	if err := a.run(ctx, args); err != nil {
		return nil, err
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssembly, err)
	}
	return out, nil
}

func (a *FFmpegAssembler) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, a.ffmpegPath, args...)
	cmd.Stdout = io.Discard
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		// ffmpeg is chatty; keep the tail, which carries the actual error.
		if len(detail) > 4<<10 {
			detail = strings.TrimSpace(detail[len(detail)-(4<<10):])
		}
		if detail == "" {
			detail = err.Error()
		}
		return fmt.Errorf("%w: ffmpeg: %s", ErrAssembly, detail)
	}
	return nil
}

func (a *FFmpegAssembler) OutputFormat() string { return "mp3_44100_128" }

func (a *FFmpegAssembler) ContentType() string { return "audio/mpeg" }

func (a *FFmpegAssembler) FileExt() string { return "mp3" }
