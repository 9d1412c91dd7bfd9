//go:build windows

package daemon

import (
	"fmt"
	"os"
	"syscall"
)

// On Windows, FindProcess always succeeds; check liveness with a zero signal.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// Signal sends sig to the recorded process. Only SIGKILL is reliable on Windows.
func (p *PIDFile) Signal(sig syscall.Signal) error {
	rec, err := p.Read()
	if err != nil {
		return fmt.Errorf("read PID file: %w", err)
	}
	proc, err := os.FindProcess(rec.PID)
	if err != nil {
		return fmt.Errorf("find process %d: %w", rec.PID, err)
	}
	return proc.Signal(sig)
}
