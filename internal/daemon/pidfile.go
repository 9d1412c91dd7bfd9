// Package daemon tracks a background civic server through a state file.
package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Record describes a running background server.
type Record struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"`
	LogPath   string    `json:"log_path,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// PIDFile stores the Record of the background server.
type PIDFile struct {
	Path string
}

// NewPIDFile creates a PIDFile for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// Write stores rec, replacing any previous record atomically. A zero PID
// means the current process.
func (p *PIDFile) Write(rec Record) error {
	if rec.PID == 0 {
		rec.PID = os.Getpid()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp := p.Path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p.Path)
}

// Read loads the stored record.
func (p *PIDFile) Read() (*Record, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("invalid PID file content: %w", err)
	}
	if rec.PID <= 0 {
		return nil, fmt.Errorf("invalid PID file content: pid %d", rec.PID)
	}
	return &rec, nil
}

// Remove deletes the file. A missing file is not an error.
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Running returns the stored record and whether its process is alive.
func (p *PIDFile) Running() (*Record, bool) {
	rec, err := p.Read()
	if err != nil {
		return nil, false
	}
	return rec, processAlive(rec.PID)
}
