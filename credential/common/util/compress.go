package util

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// Compress gzips data.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decompress gunzips data, refusing to inflate beyond limit bytes when limit
// is positive.
func Decompress(data []byte, limit int64) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	if limit <= 0 {
		return io.ReadAll(gz)
	}
	out, err := io.ReadAll(io.LimitReader(gz, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(out)) > limit {
		return nil, fmt.Errorf("decompressed data exceeds %d bytes", limit)
	}
	return out, nil
}

// CompressToBase64URL gzips data and encodes it as unpadded base64url.
func CompressToBase64URL(data []byte) (string, error) {
	compressed, err := Compress(data)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(compressed), nil
}

// DecompressFromBase64 accepts base64url or standard base64, padded or not,
// and gunzips the result.
func DecompressFromBase64(data string, limit int64) ([]byte, error) {
	compressed, err := DecodeBase64(data)
	if err != nil {
		return nil, err
	}
	return Decompress(compressed, limit)
}

// DecodeBase64 decodes any of the four common base64 alphabets.
func DecodeBase64(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	encodings := []*base64.Encoding{
		base64.RawURLEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.StdEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		out, err := enc.DecodeString(data)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("invalid base64: %w", lastErr)
}
