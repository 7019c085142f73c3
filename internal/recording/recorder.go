// Package recording writes shell transcripts in asciicast v2 format.
package recording

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/acolita/openswitch-harness/internal/ports"
)

// Recorder records terminal I/O of one shell connection in asciicast v2
// format. See: https://docs.asciinema.org/manual/asciicast/v2/
type Recorder struct {
	mu        sync.Mutex
	file      ports.FileHandle
	startTime time.Time
	closed    bool
	clock     ports.Clock
}

// Header is the asciicast v2 header.
type Header struct {
	Version   int               `json:"version"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Timestamp int64             `json:"timestamp"`
	Title     string            `json:"title,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
}

// Event is an asciicast v2 event [time, type, data].
type Event struct {
	Time float64
	Type string
	Data string
}

// MarshalJSON encodes the event as a JSON array.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{e.Time, e.Type, e.Data})
}

// NewRecorder creates a recorder at path. The file must not exist.
func NewRecorder(path, title string, fs ports.FileSystem, clock ports.Clock) (*Recorder, error) {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create recording directory: %w", err)
	}

	file, err := fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("create recording file: %w", err)
	}

	r := &Recorder{
		file:      file,
		startTime: clock.Now(),
		clock:     clock,
	}

	header := Header{
		Version:   2,
		Width:     200,
		Height:    24,
		Timestamp: r.startTime.Unix(),
		Title:     title,
		Env:       map[string]string{"TERM": "dumb"},
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("marshal header: %w", err)
	}
	if _, err := file.Write(append(headerJSON, '\n')); err != nil {
		file.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}

	return r, nil
}

// RecordOutput records data printed by the shell.
func (r *Recorder) RecordOutput(data string) error {
	return r.record("o", data)
}

// RecordInput records data sent to the shell.
func (r *Recorder) RecordInput(data string) error {
	return r.record("i", data)
}

func (r *Recorder) record(eventType, data string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	event := Event{
		Time: r.clock.Now().Sub(r.startTime).Seconds(),
		Type: eventType,
		Data: data,
	}
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := r.file.Write(append(eventJSON, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// Close closes the recording file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

// Path returns the path to the recording file.
func (r *Recorder) Path() string {
	return r.file.Name()
}

// fileName builds "<container>_<shell>_<time>_<seq>.cast".
func fileName(container, shell string, at time.Time, seq int) string {
	id := container
	if len(id) > 12 {
		id = id[:12]
	}
	shell = strings.ReplaceAll(shell, string(filepath.Separator), "_")
	return fmt.Sprintf("%s_%s_%s_%d.cast", id, shell, at.Format("20060102_150405"), seq)
}
