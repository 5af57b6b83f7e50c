package object

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// HashSize is the length in bytes of a raw OID.
const HashSize = 20

// HashBytes computes the raw SHA-1 hash of data and returns it as a
// lowercase hex-encoded Hash.
func HashBytes(data []byte) Hash {
	sum := sha1.Sum(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// HashObject computes the SHA-1 of the envelope "type len\0content", Git's
// canonical object hashing scheme.
func HashObject(objType ObjectType, data []byte) Hash {
	h := sha1.New()
	fmt.Fprintf(h, "%s %d\x00", objType, len(data))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// Envelope returns the canonical "type len\0content" byte representation
// that HashObject digests, for callers that need to forward raw bytes to
// the pack encoder without re-hashing.
func Envelope(objType ObjectType, data []byte) []byte {
	header := fmt.Sprintf("%s %d\x00", objType, len(data))
	out := make([]byte, 0, len(header)+len(data))
	out = append(out, header...)
	out = append(out, data...)
	return out
}

// RawBytes decodes a hex Hash into its 20-byte form.
func RawBytes(h Hash) ([]byte, error) {
	b, err := hex.DecodeString(string(h))
	if err != nil {
		return nil, fmt.Errorf("malformed oid %q: %w", h, err)
	}
	if len(b) != HashSize {
		return nil, fmt.Errorf("malformed oid %q: want %d bytes, got %d", h, HashSize, len(b))
	}
	return b, nil
}

// HashFromRaw encodes a 20-byte raw OID into a Hash.
func HashFromRaw(b []byte) Hash {
	return Hash(hex.EncodeToString(b))
}
