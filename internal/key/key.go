// Package key implements the 256-byte permutation password shared by both
// relays, along with its base64url wire encoding.
package key

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
)

// Length is the number of octets a valid Key holds — one entry per byte
// value, 0..255.
const Length = 256

// ErrInvalidKey is returned when a key fails the length or permutation
// check, or when its base64url wire form fails to decode.
var ErrInvalidKey = errors.New("lightsocks: invalid key")

// Key is an ordered permutation of 0..255. It is immutable once returned
// from Generate or Decode — callers must not mutate the slice in place.
type Key []byte

// Identity is the permutation that maps every byte to itself. A Cipher
// built from it is the identity transform; tests exercise this as the
// boundary case for the substitution cipher.
func Identity() Key {
	k := make(Key, Length)
	for i := range k {
		k[i] = byte(i)
	}
	return k
}

// Generate produces a uniformly random permutation of 0..255 by
// Fisher-Yates shuffling the identity permutation. The key only needs to
// distinguish unrelated deployments, not resist cryptanalysis.
func Generate() (Key, error) {
	k := Identity()
	for i := Length - 1; i > 0; i-- {
		jBig, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return nil, fmt.Errorf("generate key: %w", err)
		}
		j := int(jBig.Int64())
		k[i], k[j] = k[j], k[i]
	}
	return k, nil
}

// Validate reports whether b is exactly 256 bytes and every value 0..255
// appears exactly once.
func Validate(b []byte) bool {
	if len(b) != Length {
		return false
	}
	var seen [Length]bool
	for _, v := range b {
		if seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}

// Encode returns the base64url (padded) encoding of k.
func Encode(k Key) string {
	return base64.URLEncoding.EncodeToString(k)
}

// Decode parses a base64url-encoded key, failing with ErrInvalidKey if
// decoding fails or the result is not a valid permutation.
func Decode(s string) (Key, error) {
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidKey
	}
	if !Validate(raw) {
		return nil, ErrInvalidKey
	}
	return Key(raw), nil
}
