// ABOUTME: Stable SHA-256 digests of cache dependencies
// ABOUTME: Strings hash verbatim; trees hash their canonical encoding
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest is the hex SHA-256 of one tracked cache input. The empty digest
// stands for an absent optional input.
type Digest string

// Short returns the first 12 characters, for logs and cache keys.
func (d Digest) Short() string {
	if len(d) > 12 {
		return string(d[:12])
	}
	return string(d)
}

// Digests maps dependency names to their current digests.
type Digests map[string]Digest

// Digester computes order- and metadata-insensitive digests.
type Digester struct {
	canon *Canonicalizer
}

// NewDigester wraps a canonicalizer. A nil canonicalizer uses the default
// volatile field set.
func NewDigester(canon *Canonicalizer) *Digester {
	if canon == nil {
		canon = NewCanonicalizer(nil)
	}
	return &Digester{canon: canon}
}

// Canonicalizer exposes the canonicalizer so the diff engine can share the
// exact same exclusion rules.
func (d *Digester) Canonicalizer() *Canonicalizer {
	return d.canon
}

// Digest hashes value under a dependency name. The name is folded into the
// hash so equal payloads under different names never collide. Text (string
// or []byte) is hashed verbatim; nil yields the empty digest.
func (d *Digester) Digest(name string, value any) (Digest, error) {
	var payload []byte
	switch t := value.(type) {
	case nil:
		return "", nil
	case string:
		payload = []byte(t)
	case []byte:
		payload = t
	default:
		enc, err := d.canon.Encode(t)
		if err != nil {
			return "", err
		}
		payload = enc
	}

	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write(payload)
	return Digest(hex.EncodeToString(h.Sum(nil))), nil
}

// Text hashes an optional text input; empty text is treated as absent.
func (d *Digester) Text(name, text string) Digest {
	if text == "" {
		return ""
	}
	dg, _ := d.Digest(name, text)
	return dg
}
