// Package chunk packs payloads into the 32-bit words the encryption engine operates on.
//
// A payload of n bytes becomes ceil(n/4) big-endian words, the last one padded with zero bytes.
// Decoding strips every trailing zero byte, so payloads that end in 0x00 do not round-trip.
package chunk

import (
	"bytes"
	"encoding/binary"

	"github.com/DianaJonathan/timecapsule/client/capsuleerr"
)

// Bytes per word.
const WordSize = 4

// MaxPayloadBytes is the largest payload a capsule can hold.
const MaxPayloadBytes = 1024

// WordCount returns the number of words a payload of n bytes encodes to.
func WordCount(n int) int {
	return (n + WordSize - 1) / WordSize
}

func Encode(payload []byte) ([]uint32, error) {
	if len(payload) == 0 {
		return nil, capsuleerr.Wrapf(capsuleerr.ErrInvalidInput, "payload is empty")
	}
	if len(payload) > MaxPayloadBytes {
		return nil, capsuleerr.Wrapf(capsuleerr.ErrInvalidInput, "payload of %d bytes exceeds %d", len(payload), MaxPayloadBytes)
	}

	words := make([]uint32, WordCount(len(payload)))
	var group [WordSize]byte
	for i := range words {
		group = [WordSize]byte{}
		copy(group[:], payload[i*WordSize:])
		words[i] = binary.BigEndian.Uint32(group[:])
	}
	return words, nil
}

func Decode(words []uint32) []byte {
	out := make([]byte, len(words)*WordSize)
	for i, w := range words {
		binary.BigEndian.PutUint32(out[i*WordSize:], w)
	}
	return bytes.TrimRight(out, "\x00")
}
