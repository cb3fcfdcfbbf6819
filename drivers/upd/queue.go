package upd

import (
	"context"
	"encoding/binary"
	"errors"
)

// InterruptQueue is the named kernel queue carrying GPIO interrupt ids.
const InterruptQueue = "/mdw_int"

// MessageSize is the fixed size of an interrupt queue message.
const MessageSize = 16

var ErrClosed = errors.New("upd: closed")

// Queue is a read-only message queue fed by the kernel.
type Queue interface {
	// Receive blocks for the next message or until ctx is done.
	Receive(ctx context.Context, buf []byte) (int, error)
	Close() error
}

// DecodeIRQ extracts the interrupt id from the leading four bytes.
func DecodeIRQ(msg []byte) (uint32, bool) {
	if len(msg) < 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(msg), true
}

// EncodeIRQ builds a queue message carrying id.
func EncodeIRQ(id uint32) [MessageSize]byte {
	var m [MessageSize]byte
	binary.LittleEndian.PutUint32(m[:], id)
	return m
}
