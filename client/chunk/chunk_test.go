package chunk_test

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xorcare/golden"

	"github.com/DianaJonathan/timecapsule/client/capsuleerr"
	"github.com/DianaJonathan/timecapsule/client/chunk"
)

func TestEncode(t *testing.T) {
	t.Run("hi", func(t *testing.T) {
		words, err := chunk.Encode([]byte("hi"))
		require.NoError(t, err)
		assert.Equal(t, []uint32{0x68690000}, words)
	})

	t.Run("word aligned", func(t *testing.T) {
		words, err := chunk.Encode([]byte("abcdefgh"))
		require.NoError(t, err)
		assert.Equal(t, []uint32{0x61626364, 0x65666768}, words)
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := chunk.Encode(nil)
		assert.True(t, errors.Is(err, capsuleerr.ErrInvalidInput))
	})

	t.Run("size limit", func(t *testing.T) {
		words, err := chunk.Encode(bytes.Repeat([]byte{1}, chunk.MaxPayloadBytes))
		require.NoError(t, err)
		assert.Len(t, words, chunk.MaxPayloadBytes/chunk.WordSize)

		_, err = chunk.Encode(bytes.Repeat([]byte{1}, chunk.MaxPayloadBytes+1))
		assert.True(t, errors.Is(err, capsuleerr.ErrInvalidInput))
	})
}

func TestRoundTrip(t *testing.T) {
	for n := 1; n <= 13; n++ {
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(0x41 + i)
		}
		words, err := chunk.Encode(payload)
		require.NoError(t, err)
		assert.Len(t, words, chunk.WordCount(n))
		assert.Equal(t, payload, chunk.Decode(words), "length %d", n)
	}
}

func TestDecode(t *testing.T) {
	t.Run("strips padding", func(t *testing.T) {
		assert.Equal(t, []byte("abcde"), chunk.Decode([]uint32{0x61626364, 0x65000000}))
	})

	t.Run("genuine trailing zeros are lost", func(t *testing.T) {
		payload := []byte{'o', 'k', 0, 0, 0}
		words, err := chunk.Encode(payload)
		require.NoError(t, err)
		assert.Equal(t, []byte("ok"), chunk.Decode(words))
	})

	t.Run("interior zeros survive", func(t *testing.T) {
		payload := []byte{'a', 0, 0, 0, 0, 'b'}
		words, err := chunk.Encode(payload)
		require.NoError(t, err)
		assert.Equal(t, payload, chunk.Decode(words))
	})

	t.Run("all zero input", func(t *testing.T) {
		assert.Empty(t, chunk.Decode([]uint32{0, 0, 0}))
		assert.Empty(t, chunk.Decode(nil))
	})
}

func TestWordCount(t *testing.T) {
	assert.Equal(t, 0, chunk.WordCount(0))
	assert.Equal(t, 1, chunk.WordCount(1))
	assert.Equal(t, 1, chunk.WordCount(4))
	assert.Equal(t, 2, chunk.WordCount(5))
	assert.Equal(t, 256, chunk.WordCount(chunk.MaxPayloadBytes))
}

func TestEncodeGolden(t *testing.T) {
	var buf bytes.Buffer
	for _, payload := range []string{"hi", "abcd", "hello world", "\x00\x01", "capsule"} {
		words, err := chunk.Encode([]byte(payload))
		require.NoError(t, err)
		fmt.Fprintf(&buf, "%q:", payload)
		for _, w := range words {
			fmt.Fprintf(&buf, " %08x", w)
		}
		buf.WriteString("\n")
	}
	golden.Assert(t, buf.Bytes())
}
