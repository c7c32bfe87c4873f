package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	c := New(true, 3)
	in := bytes.Repeat([]byte("hello world "), 200)
	out := c.Compress(in)
	require.Less(t, len(out), len(in))
	back := c.Decompress(out)
	assert.Equal(t, in, back)
}

func TestCompressDisabledReturnsInputUnchanged(t *testing.T) {
	c := New(false, 3)
	in := []byte("hello")
	assert.Equal(t, in, c.Compress(in))
}

func TestCompressEmptyReturnsUnchanged(t *testing.T) {
	c := New(true, 3)
	assert.Equal(t, []byte{}, c.Compress([]byte{}))
}

func TestDecompressNonZstdPassthrough(t *testing.T) {
	c := New(true, 3)
	in := []byte("not compressed")
	assert.Equal(t, in, c.Decompress(in))
}

func TestDecompressShortInputPassthrough(t *testing.T) {
	c := New(true, 3)
	in := []byte{1, 2}
	assert.Equal(t, in, c.Decompress(in))
}

func TestCompressIdempotentWhenAlreadySmallest(t *testing.T) {
	c := New(true, 3)
	in := []byte("x")
	out := c.Compress(in)
	assert.Equal(t, in, out)
}

func TestChecksumIsSixteenHexChars(t *testing.T) {
	sum := Checksum([]byte("hello"))
	assert.Len(t, sum, 16)
	assert.Equal(t, "2cf24dba5fb0a30e", sum)
}

func TestCompressDecompressCompressIdempotent(t *testing.T) {
	c := New(true, 3)
	in := bytes.Repeat([]byte("abc"), 500)
	first := c.Compress(in)
	back := c.Decompress(first)
	second := c.Compress(back)
	assert.Equal(t, first, second)
}
