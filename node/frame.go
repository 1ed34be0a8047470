package node

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Message types on the node socket. Requests are low, responses have the
// high bit set.
const (
	msgSubmitTx   uint16 = 0x0001
	msgEvaluateTx uint16 = 0x0002
	msgHasTx      uint16 = 0x0003

	msgAccepted  uint16 = 0x8001
	msgRejected  uint16 = 0x8002
	msgEvaluated uint16 = 0x8003
	msgTxStatus  uint16 = 0x8004
)

// maxFrameSize bounds a single frame well above the largest transaction the
// ledger accepts, so a corrupt length prefix cannot trigger a huge
// allocation.
const maxFrameSize = 1 << 20

// writeFrame emits one frame: a 4-byte big-endian length covering the type
// and payload, a 2-byte message type, then the CBOR payload.
func writeFrame(w io.Writer, msgType uint16, payload []byte) error {
	header := make([]byte, 6)
	binary.BigEndian.PutUint32(header[:4], uint32(2+len(payload)))
	binary.BigEndian.PutUint16(header[4:], msgType)
	if _, err := w.Write(header); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// readFrame reads one frame and returns its message type and payload.
func readFrame(r io.Reader) (uint16, []byte, error) {
	var lengthBuf [4]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		return 0, nil, err
	}
	length := binary.BigEndian.Uint32(lengthBuf[:])
	if length < 2 || length > maxFrameSize {
		return 0, nil, fmt.Errorf("%w: length %d", ErrBadFrame, length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	return binary.BigEndian.Uint16(body[:2]), body[2:], nil
}
