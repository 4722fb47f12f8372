package codec

import (
	"bytes"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
)

func compress(c Compression, plaintext []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return plaintext, nil
	case CompressionDeflate:
		var buf bytes.Buffer
		w, err := flate.NewWriter(&buf, flate.BestCompression)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(plaintext); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionBrotli:
		var buf bytes.Buffer
		w := brotli.NewWriter(&buf)
		if _, err := w.Write(plaintext); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, errUnknownCompression
	}
}

func decompress(c Compression, compressed []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return compressed, nil
	case CompressionDeflate:
		r := flate.NewReader(bytes.NewReader(compressed))
		defer r.Close()
		return io.ReadAll(r)
	case CompressionBrotli:
		r := brotli.NewReader(bytes.NewReader(compressed))
		return io.ReadAll(r)
	default:
		return nil, errUnknownCompression
	}
}
