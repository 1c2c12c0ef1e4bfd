package store

import (
	"bytes"
	"compress/gzip"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/sha3"
)

// keyPrefix namespaces global variables inside the archive.
const keyPrefix = "var:"

// archiveKey maps a variable name to its fixed width archive key.
func archiveKey(name string) []byte {
	sum := sha3.Sum224([]byte(name))
	key := make([]byte, len(keyPrefix)+hex.EncodedLen(len(sum)))
	copy(key, keyPrefix)
	hex.Encode(key[len(keyPrefix):], sum[:])
	return key
}

// encodeValue renders value as gzipped JSON.
func encodeValue(value any) ([]byte, error) {
	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if err := json.NewEncoder(gz).Encode(value); err != nil {
		return nil, fmt.Errorf("failed to encode value: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeValue reverses encodeValue. The inflated document may not exceed
// limit bytes.
func decodeValue(data []byte, limit int64) (any, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress value: %w", err)
	}
	defer gz.Close()

	raw, err := io.ReadAll(io.LimitReader(gz, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress value: %w", err)
	}
	if int64(len(raw)) > limit {
		return nil, fmt.Errorf("value inflates past %d bytes", limit)
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("failed to decode value: %w", err)
	}
	return value, nil
}
