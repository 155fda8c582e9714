// Package diagnostics spools inbound/outbound V1 frames and free-form
// events to local disk so an operator can reconstruct a session after the
// fact. It never reaches back into the wire protocol: the codec stays
// ignorant of this package and this package only ever sees bytes and
// idents it was handed.
package diagnostics

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	v1frame "github.com/alxayo/go-v1proto/internal/v1/frame"
)

var sessionNameCleaner = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Direction labels which side originated a recorded frame.
type Direction string

const (
	DirectionInbound  Direction = "in"
	DirectionOutbound Direction = "out"
)

// Manifest describes a recording's on-disk layout for later tooling.
type Manifest struct {
	Version    int    `json:"version"`
	CreatedAt  string `json:"created_at"`
	EventsPath string `json:"events_path"`
	FramesPath string `json:"frames_path"`
}

// Recorder streams frames and events to a compressed pair of files under
// one session directory: a snappy-compressed JSONL event log for
// low-frequency structured events, and a zstd-compressed binary log for
// every frame crossing the wire.
type Recorder struct {
	mu          sync.Mutex
	dir         string
	now         func() time.Time
	eventFile   *os.File
	eventStream *snappy.Writer
	frameFile   *os.File
	frameStream *zstd.Encoder
}

// NewRecorder creates a fresh session directory under root and opens both
// compressed sinks. clock defaults to time.Now when nil.
func NewRecorder(root, sessionID string, clock func() time.Time) (*Recorder, Manifest, error) {
	if root == "" {
		return nil, Manifest{}, fmt.Errorf("diagnostics: root directory must be provided")
	}
	if clock == nil {
		clock = time.Now
	}

	cleaned := sessionNameCleaner.ReplaceAllString(sessionID, "")
	if cleaned == "" {
		cleaned = "session"
	}
	created := clock().UTC()
	dir := filepath.Join(root, fmt.Sprintf("%s-%s", cleaned, created.Format("20060102T150405Z")))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, Manifest{}, err
	}

	eventsPath := filepath.Join(dir, "events.jsonl.sz")
	framesPath := filepath.Join(dir, "frames.bin.zst")
	manifestPath := filepath.Join(dir, "manifest.json")

	eventFile, err := os.Create(eventsPath)
	if err != nil {
		return nil, Manifest{}, err
	}
	eventStream := snappy.NewBufferedWriter(eventFile)

	frameFile, err := os.Create(framesPath)
	if err != nil {
		eventStream.Close()
		eventFile.Close()
		return nil, Manifest{}, err
	}
	frameStream, err := zstd.NewWriter(frameFile)
	if err != nil {
		frameFile.Close()
		eventStream.Close()
		eventFile.Close()
		return nil, Manifest{}, err
	}

	manifest := Manifest{
		Version:    1,
		CreatedAt:  created.Format(time.RFC3339Nano),
		EventsPath: "events.jsonl.sz",
		FramesPath: "frames.bin.zst",
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		frameStream.Close()
		frameFile.Close()
		eventStream.Close()
		eventFile.Close()
		return nil, Manifest{}, err
	}
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		frameStream.Close()
		frameFile.Close()
		eventStream.Close()
		eventFile.Close()
		return nil, Manifest{}, err
	}

	return &Recorder{dir: dir, now: clock, eventFile: eventFile, eventStream: eventStream, frameFile: frameFile, frameStream: frameStream}, manifest, nil
}

// Directory returns the session directory backing this recorder.
func (r *Recorder) Directory() string {
	if r == nil {
		return ""
	}
	return r.dir
}

// RecordFrame appends one wire frame to the binary log as a fixed header
// (timestamp, direction, ident, seq, payload length) followed by the raw
// payload bytes.
func (r *Recorder) RecordFrame(dir Direction, f *v1frame.Frame) error {
	if r == nil {
		return fmt.Errorf("diagnostics: recorder not initialised")
	}
	captured := r.now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	header := make([]byte, 8+1+1+1+2+4)
	off := 0
	binary.LittleEndian.PutUint64(header[off:], uint64(captured.UnixNano()))
	off += 8
	if dir == DirectionOutbound {
		header[off] = 1
	}
	off++
	header[off] = f.Ident.CmdSet
	off++
	header[off] = f.Ident.CmdID
	off++
	binary.LittleEndian.PutUint16(header[off:], f.Seq)
	off += 2
	binary.LittleEndian.PutUint32(header[off:], uint32(len(f.Payload)))

	if _, err := r.frameStream.Write(header); err != nil {
		return err
	}
	if _, err := r.frameStream.Write(f.Payload); err != nil {
		return err
	}
	return nil
}

// RecordEvent appends one structured diagnostic event to the event log.
func (r *Recorder) RecordEvent(kind string, fields map[string]any) error {
	if r == nil {
		return fmt.Errorf("diagnostics: recorder not initialised")
	}
	captured := r.now().UTC()

	record := struct {
		CapturedAt string         `json:"captured_at"`
		Kind       string         `json:"kind"`
		Fields     map[string]any `json:"fields,omitempty"`
	}{
		CapturedAt: captured.Format(time.RFC3339Nano),
		Kind:       kind,
		Fields:     fields,
	}
	line, err := json.Marshal(record)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.eventStream.Write(line); err != nil {
		return err
	}
	if _, err := r.eventStream.Write([]byte("\n")); err != nil {
		return err
	}
	return r.eventStream.Flush()
}

// RecordRawEvent base64-encodes an arbitrary payload into an event record,
// for callers that have bytes but no map-shaped fields handy.
func (r *Recorder) RecordRawEvent(kind string, payload []byte) error {
	return r.RecordEvent(kind, map[string]any{"payload_b64": base64.StdEncoding.EncodeToString(payload)})
}

// Close flushes and releases every open file handle, surfacing the first
// error encountered while still attempting every subsequent close.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	if err := r.eventStream.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := r.eventStream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := r.eventFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := r.frameStream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := r.frameFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
