//go:build !unix

package speech

import "os"

// Processes cannot be suspended here; the audio keeps playing while the
// cursor is paused.
func suspend(p *os.Process) {}

func resume(p *os.Process) {}
