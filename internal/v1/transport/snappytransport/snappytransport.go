// Package snappytransport wraps any transport.Pair to snappy-compress each
// outbound frame and decompress each inbound one, for links where payload
// bytes (vision frames, point clouds) dominate bandwidth. Compression is a
// transport-level byte transform underneath the codec: the codec still
// packs and unpacks uncompressed frames, so it never needs to know payload
// semantics.
package snappytransport

import (
	"github.com/golang/snappy"

	"github.com/alxayo/go-v1proto/internal/v1/transport"
)

// Transport compresses on Send and decompresses on Recv, delegating the
// underlying I/O and close semantics to the wrapped pair.
type Transport struct {
	inner transport.Pair
}

// New wraps inner with snappy framing.
func New(inner transport.Pair) *Transport {
	return &Transport{inner: inner}
}

func (t *Transport) Send(data []byte) error {
	return t.inner.Send(snappy.Encode(nil, data))
}

// Recv reads one compressed unit from the inner transport, decompresses it,
// and copies the result into buf, returning the number of bytes copied
// (output beyond len(buf) is dropped). A zero-length inner read (closed
// signal) passes through unchanged.
func (t *Transport) Recv(buf []byte) (int, error) {
	raw := make([]byte, len(buf)*4)
	n, err := t.inner.Recv(raw)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	decoded, err := snappy.Decode(nil, raw[:n])
	if err != nil {
		return 0, err
	}
	return copy(buf, decoded), nil
}

func (t *Transport) Close() error {
	return t.inner.Close()
}
