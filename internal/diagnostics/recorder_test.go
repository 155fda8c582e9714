package diagnostics

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"

	v1frame "github.com/alxayo/go-v1proto/internal/v1/frame"
)

func TestNewRecorderWritesManifest(t *testing.T) {
	root := t.TempDir()
	current := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	rec, manifest, err := NewRecorder(root, "sess one!!", clock)
	require.NoError(t, err)
	defer rec.Close()

	require.Equal(t, 1, manifest.Version)

	data, err := os.ReadFile(filepath.Join(rec.Directory(), "manifest.json"))
	require.NoError(t, err)
	var got Manifest
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, manifest, got)
}

func TestRecordFrameRoundTripsThroughZstd(t *testing.T) {
	root := t.TempDir()
	rec, _, err := NewRecorder(root, "sess", time.Now)
	require.NoError(t, err)

	f := &v1frame.Frame{Ident: v1frame.Ident{CmdSet: 0x01, CmdID: 0x20}, Seq: 42, Payload: []byte{0xAA, 0xBB, 0xCC}}
	require.NoError(t, rec.RecordFrame(DirectionOutbound, f))
	require.NoError(t, rec.Close())

	raw, err := os.Open(filepath.Join(rec.Directory(), "frames.bin.zst"))
	require.NoError(t, err)
	defer raw.Close()

	dec, err := zstd.NewReader(raw)
	require.NoError(t, err)
	defer dec.Close()

	header := make([]byte, 8+1+1+1+2+4)
	_, err = io.ReadFull(dec, header)
	require.NoError(t, err)
	require.Equal(t, byte(1), header[8], "expected outbound direction marker")
	require.Equal(t, []byte{0x01, 0x20}, header[9:11], "unexpected ident bytes")
	require.Equal(t, uint16(42), binary.LittleEndian.Uint16(header[11:13]))
	require.Equal(t, uint32(3), binary.LittleEndian.Uint32(header[13:17]))

	payload := make([]byte, 3)
	_, err = io.ReadFull(dec, payload)
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA, 0xBB, 0xCC}, payload)
}

func TestRecordEventRoundTripsThroughSnappy(t *testing.T) {
	root := t.TempDir()
	rec, _, err := NewRecorder(root, "sess", time.Now)
	require.NoError(t, err)

	require.NoError(t, rec.RecordEvent("connected", map[string]any{"remote": "10.0.0.1:20020"}))
	require.NoError(t, rec.RecordRawEvent("ack-timeout", []byte{0x01, 0x02}))
	require.NoError(t, rec.Close())

	raw, err := os.Open(filepath.Join(rec.Directory(), "events.jsonl.sz"))
	require.NoError(t, err)
	defer raw.Close()

	scanner := bufio.NewScanner(snappy.NewReader(raw))
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	require.Len(t, lines, 2)

	var first struct {
		Kind   string         `json:"kind"`
		Fields map[string]any `json:"fields"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.Equal(t, "connected", first.Kind)
	require.Equal(t, "10.0.0.1:20020", first.Fields["remote"])
}

func TestNewRecorderRequiresRoot(t *testing.T) {
	_, _, err := NewRecorder("", "sess", time.Now)
	require.Error(t, err)
}
