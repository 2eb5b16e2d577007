package remotestore

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Wire protocol: a length-prefixed binary frame, the transport spec.md
// leaves unspecified beyond naming vm_alloc/vm_free/vm_fetch/vm_store as the
// operations it carries (SPEC_FULL.md §4.3a).
//
//	opcode(1) | requestID(8, BE) | payloadLen(4, BE) | payload
type opcode uint8

const (
	opHello opcode = iota
	opAlloc
	opFree
	opFetch
	opStore
)

const frameHeaderSize = 1 + 8 + 4

// maxFrame bounds payload size generously above one page, guarding against a
// malformed daemon response wedging the client on a giant read.
const maxFrame = 1 << 20

type frame struct {
	op        opcode
	requestID uint64
	payload   []byte
}

func writeFrame(w io.Writer, f frame) error {
	var hdr [frameHeaderSize]byte

	hdr[0] = byte(f.op)
	binary.BigEndian.PutUint64(hdr[1:9], f.requestID)
	binary.BigEndian.PutUint32(hdr[9:13], uint32(len(f.payload)))

	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}

	if len(f.payload) > 0 {
		if _, err := w.Write(f.payload); err != nil {
			return fmt.Errorf("write frame payload: %w", err)
		}
	}

	return nil
}

func readFrame(r io.Reader) (frame, error) {
	var hdr [frameHeaderSize]byte

	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return frame{}, fmt.Errorf("read frame header: %w", err)
	}

	payloadLen := binary.BigEndian.Uint32(hdr[9:13])
	if payloadLen > maxFrame {
		return frame{}, fmt.Errorf("frame payload too large: %d bytes", payloadLen)
	}

	f := frame{
		op:        opcode(hdr[0]),
		requestID: binary.BigEndian.Uint64(hdr[1:9]),
	}

	if payloadLen > 0 {
		f.payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(r, f.payload); err != nil {
			return frame{}, fmt.Errorf("read frame payload: %w", err)
		}
	}

	return f, nil
}
