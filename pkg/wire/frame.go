package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize bounds the payload length accepted by ReadFrame. Frames
// larger than this indicate a corrupt or hostile peer.
const MaxFrameSize = 64 * 1024 * 1024

// WriteFrame writes a 4-byte big-endian unsigned length prefix followed
// by the payload bytes.
func WriteFrame(w io.Writer, payload []byte) error {
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(payload)))
	copy(buf[4:], payload)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("wire: write frame: %w", err)
	}
	return nil
}

// ReadFrame reads a 4-byte big-endian length prefix and then exactly
// that many payload bytes.
func ReadFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("wire: read frame header: %w", err)
	}

	length := binary.BigEndian.Uint32(header)
	if length == 0 {
		return nil, fmt.Errorf("wire: empty frame")
	}
	if length > MaxFrameSize {
		return nil, fmt.Errorf("wire: frame of %d bytes exceeds limit of %d", length, MaxFrameSize)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("wire: read frame payload: %w", err)
	}
	return payload, nil
}
