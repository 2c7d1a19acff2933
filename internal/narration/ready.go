package narration

import (
	"context"
	"time"
)

// DefaultReadyTimeout bounds how long WaitReady waits for voices.
const DefaultReadyTimeout = 10 * time.Second

// WaitReady blocks until the engine reports its voices are loaded, or until
// timeout, then checks the voice list. An empty list is ErrEngineUnavailable.
// Engines that do not implement Readiness are ready immediately.
func WaitReady(ctx context.Context, engine Engine, timeout time.Duration) error {
	r, ok := engine.(Readiness)
	if !ok {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-r.Ready():
	case <-t.C:
	case <-ctx.Done():
		return ctx.Err()
	}

	if len(r.Voices()) == 0 {
		return ErrEngineUnavailable
	}
	return nil
}
