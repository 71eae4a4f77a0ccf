// Package checksum computes and represents file content digests.
//
// Two algorithms are supported: MD5 for compatibility with records written by
// older releases, and SHA-256 as the current default. A Checksum always knows
// which algorithm produced it, so a stored digest can be compared without
// guessing its type.
package checksum

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"os"
)

// Algorithm identifies a supported digest algorithm.
type Algorithm string

const (
	// MD5 is retained for records written by older releases.
	MD5 Algorithm = "md5"
	// SHA256 is the default algorithm for new records.
	SHA256 Algorithm = "sha256"
)

// DefaultAlgorithm is used when no algorithm is configured.
const DefaultAlgorithm = SHA256

// hexLen returns the expected hex digest length for the algorithm.
func (a Algorithm) hexLen() int {
	switch a {
	case MD5:
		return md5.Size * 2
	case SHA256:
		return sha256.Size * 2
	}
	return 0
}

// ParseAlgorithm validates a raw algorithm name from configuration.
func ParseAlgorithm(raw string) (Algorithm, error) {
	switch Algorithm(raw) {
	case MD5:
		return MD5, nil
	case SHA256:
		return SHA256, nil
	case "":
		return DefaultAlgorithm, nil
	}
	return "", fmt.Errorf("unknown checksum algorithm %q (supported: md5, sha256)", raw)
}

func (a Algorithm) newHash() hash.Hash {
	if a == MD5 {
		return md5.New()
	}
	return sha256.New()
}

// Checksum is an algorithm-tagged content digest.
// The zero value means "no checksum" (file absent).
type Checksum struct {
	Algorithm Algorithm
	Hex       string
}

// IsZero reports whether the checksum is unset.
func (c Checksum) IsZero() bool { return c.Hex == "" }

// String renders the checksum as "algorithm(hex)".
func (c Checksum) String() string {
	return fmt.Sprintf("%s(%s)", c.Algorithm, c.Hex)
}

// MarshalJSON encodes the checksum as {"<algorithm>": "<hex>"} so the digest
// type is recorded alongside the digest itself.
func (c Checksum) MarshalJSON() ([]byte, error) {
	if c.IsZero() {
		return nil, fmt.Errorf("cannot marshal empty checksum")
	}
	return json.Marshal(map[Algorithm]string{c.Algorithm: c.Hex})
}

// UnmarshalJSON decodes either tagged form: {"md5": hex} or {"sha256": hex}.
func (c *Checksum) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decoding checksum: %w", err)
	}
	if len(m) != 1 {
		return fmt.Errorf("checksum must have exactly one algorithm tag, got %d", len(m))
	}
	for raw, hexDigest := range m {
		alg, err := ParseAlgorithm(raw)
		if err != nil {
			return err
		}
		if len(hexDigest) != alg.hexLen() {
			return fmt.Errorf("%s checksum must be %d hex characters, got %d", alg, alg.hexLen(), len(hexDigest))
		}
		if _, err := hex.DecodeString(hexDigest); err != nil {
			return fmt.Errorf("invalid %s checksum %q: %w", alg, hexDigest, err)
		}
		*c = Checksum{Algorithm: alg, Hex: hexDigest}
	}
	return nil
}

// Sum computes the digest of data with the given algorithm.
func Sum(data []byte, alg Algorithm) Checksum {
	h := alg.newHash()
	h.Write(data)
	return Checksum{Algorithm: alg, Hex: hex.EncodeToString(h.Sum(nil))}
}

// File computes the digest of the file at path, streaming its content.
// The only failure mode is an I/O error reading the file.
func File(path string, alg Algorithm) (Checksum, error) {
	f, err := os.Open(path)
	if err != nil {
		return Checksum{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := alg.newHash()
	buf := make([]byte, 32*1024)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return Checksum{}, fmt.Errorf("hash %s: %w", path, err)
	}
	return Checksum{Algorithm: alg, Hex: hex.EncodeToString(h.Sum(nil))}, nil
}
