// Package codec implements the optional Zstandard compression and integrity
// checksum applied to stored values.
package codec

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// MaxDecompressBytes is the hard ceiling on decompressed output size, a
// defense against decompression bombs hidden in stored blobs.
const MaxDecompressBytes = 10 * 1024 * 1024

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Codec compresses and checksums values at a configured level. The zero
// value is not usable; construct with New.
type Codec struct {
	enabled bool
	level   zstd.EncoderLevel

	encOnce sync.Once
	enc     *zstd.Encoder
	decOnce sync.Once
	dec     *zstd.Decoder
}

// New returns a Codec. level follows Zstandard's 1-22 convention and is
// clamped to the nearest klauspost/compress EncoderLevel.
func New(enabled bool, level int) *Codec {
	return &Codec{enabled: enabled, level: levelFromInt(level)}
}

func levelFromInt(level int) zstd.EncoderLevel {
	switch {
	case level <= 1:
		return zstd.SpeedFastest
	case level <= 3:
		return zstd.SpeedDefault
	case level <= 9:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

func (c *Codec) encoder() *zstd.Encoder {
	c.encOnce.Do(func() {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(c.level))
		if err != nil {
			panic("codec: failed to construct zstd encoder: " + err.Error())
		}
		c.enc = enc
	})
	return c.enc
}

func (c *Codec) decoder() *zstd.Decoder {
	c.decOnce.Do(func() {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxDecompressBytes))
		if err != nil {
			panic("codec: failed to construct zstd decoder: " + err.Error())
		}
		c.dec = dec
	})
	return c.dec
}

// Compress returns the Zstandard encoding of b at the configured level, or b
// unchanged if compression is disabled, b is empty, encoding fails, or the
// encoded form is not strictly smaller than b. No framing byte records the
// decision; Decompress recovers it from the Zstandard magic prefix.
func (c *Codec) Compress(b []byte) []byte {
	if !c.enabled || len(b) == 0 {
		return b
	}
	out := c.encoder().EncodeAll(b, nil)
	if len(out) >= len(b) {
		return b
	}
	return out
}

// Decompress reverses Compress. Input not beginning with the Zstandard magic
// is returned unchanged. Decoding failures, or output that would exceed
// MaxDecompressBytes, fail open and return the raw input.
func (c *Codec) Decompress(b []byte) []byte {
	if len(b) < 4 || !bytes.Equal(b[:4], zstdMagic) {
		return b
	}
	out, err := c.decoder().DecodeAll(b, nil)
	if err != nil || len(out) > MaxDecompressBytes {
		return b
	}
	return out
}

// Checksum returns the hex-encoded first 8 bytes of SHA-256 over b (16
// characters). Callers pass the uncompressed representation.
func Checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8])
}
