package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// Fingerprint is the hash of an analysis output. Two runs over identical
// inputs must produce equal fingerprints; the determinism tests rely on this.
type Fingerprint Hash

// NewFingerprint hashes a set of labeled float fields in canonical key order.
// Values are formatted with %x on their bit patterns via %b-independent
// hex float formatting so that bit-identical floats hash identically and
// nothing is lost to decimal rounding.
func NewFingerprint(fields map[string]float64) Fingerprint {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString(fmt.Sprintf("=%x;", fields[key]))
	}

	return Fingerprint(NewHash([]byte(data.String())))
}

// String returns the string representation
func (f Fingerprint) String() string { return Hash(f).String() }

// Equals checks if two fingerprints are equal
func (f Fingerprint) Equals(other Fingerprint) bool { return f == other }
