// Package compress provides ZStandard compression for row payloads.
package compress

import (
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Encoding is the HTTP content coding served by this package.
const Encoding = "zstd"

// Codec compresses response bodies and decompresses them in clients and
// tests. It is safe for concurrent use.
type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCodec returns a codec compressing at level. Close releases it.
func NewCodec(level zstd.EncoderLevel) (*Codec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		_ = encoder.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &Codec{encoder: encoder, decoder: decoder}, nil
}

// Compress returns the zstd frame of data, or nil for empty data.
func (c *Codec) Compress(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	// Row JSON is repetitive.
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
}

// Decompress reverses Compress.
func (c *Codec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	out, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}

func (c *Codec) Close() error {
	c.decoder.Close()
	return c.encoder.Close()
}

// Accepts reports whether an Accept-Encoding header value lists zstd with
// a non-zero quality.
func Accepts(acceptEncoding string) bool {
	for _, part := range strings.Split(acceptEncoding, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(coding), Encoding) {
			continue
		}
		q := strings.ReplaceAll(strings.TrimSpace(params), " ", "")
		return q != "q=0" && q != "q=0.0" && q != "q=0.00" && q != "q=0.000"
	}
	return false
}
