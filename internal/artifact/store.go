// Package artifact stores generated audio blobs under fresh
// collision-resistant names and serves them back by name.
package artifact

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// namePattern is the only shape ever handed out by Store; anything
// else is rejected before lookup.
var namePattern = regexp.MustCompile(`^speech_[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.(mp3|wav)$`)

// Store retains final audio artifacts. No update or delete operation
// is part of the serving contract; eviction is operational hygiene.
type Store interface {
	// Store retains data under a fresh name with the given extension
	// and returns the name.
	Store(ctx context.Context, data []byte, ext string) (string, error)

	// Fetch returns the bytes for name, reporting absence without error.
	Fetch(ctx context.Context, name string) ([]byte, bool, error)

	Close() error
}

// Sweeper is implemented by stores that can evict artifacts older
// than a retention window.
type Sweeper interface {
	Sweep(ctx context.Context, olderThan time.Duration) (int, error)
}

// ValidName reports whether name matches the pattern Store hands out.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

func newName(ext string) string {
	return fmt.Sprintf("speech_%s.%s", uuid.NewString(), ext)
}

// StartSweeper evicts artifacts older than ttl on the given interval
// until ctx is done. It is a no-op for stores without eviction
// support.
func StartSweeper(ctx context.Context, store Store, ttl, interval time.Duration) {
	sweeper, ok := store.(Sweeper)
	if !ok || ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := sweeper.Sweep(ctx, ttl)
				if err != nil {
					log.Printf("artifact sweep failed: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("artifact sweep evicted %d artifacts", n)
				}
			}
		}
	}()
}
