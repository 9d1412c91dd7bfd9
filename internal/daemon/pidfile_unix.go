//go:build !windows

package daemon

import (
	"fmt"
	"syscall"
)

// Signal 0 tests if the process exists without sending a signal.
func processAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

// Signal sends sig to the recorded process.
func (p *PIDFile) Signal(sig syscall.Signal) error {
	rec, err := p.Read()
	if err != nil {
		return fmt.Errorf("read PID file: %w", err)
	}
	return syscall.Kill(rec.PID, sig)
}
