// Package crypto implements the agent's cryptographic primitives: the
// SHA-256 hash used by password verification and HMAC authorization, and
// the canonical-JSON body serialization that HMAC signing is computed over.
package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Hash returns the lowercase hex SHA-256 digest of s, the same primitive
// the original implementation calls calculate_hash: used both for login
// password verification and for HMAC message digests.
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// CanonicalJSON re-encodes an arbitrary JSON document with every object's
// keys sorted, in the key order of Python's json.dumps(obj, sort_keys=True)
// but with compact separators (no space after ',' or ':'). An empty
// or nil body canonicalizes to the empty string, per spec.md §4.4.
func CanonicalJSON(body []byte) (string, error) {
	if len(body) == 0 {
		return "", nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := encodeCanonical(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func encodeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := encodeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeCanonical(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(b)
	}
	return nil
}
