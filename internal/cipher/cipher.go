// Package cipher implements the byte-substitution obfuscation codec: a
// pair of 256-byte lookup tables derived from a key.Key, each the other's
// inverse. This is obfuscation, not cryptography; it provides no
// confidentiality or integrity against an attacker who can observe
// plaintext.
package cipher

import (
	"fmt"

	"lightsocks/internal/key"
)

// Cipher holds the encode/decode table pair. It is read-only after
// construction and safe for concurrent use by any number of sessions.
type Cipher struct {
	encTable [key.Length]byte
	decTable [key.Length]byte
}

// New builds a Cipher from k, treating k as the encode table and deriving
// the decode table as its functional inverse. k must already be a valid
// permutation (key.Validate(k)); New does not re-validate it.
func New(k key.Key) (*Cipher, error) {
	if len(k) != key.Length {
		return nil, fmt.Errorf("cipher: key has wrong length %d", len(k))
	}
	c := &Cipher{}
	for i, v := range k {
		c.encTable[i] = v
		c.decTable[v] = byte(i)
	}
	return c, nil
}

// Encode replaces every byte of buf with its encTable image, in place.
func (c *Cipher) Encode(buf []byte) {
	for i, v := range buf {
		buf[i] = c.encTable[v]
	}
}

// Decode replaces every byte of buf with its decTable image, in place.
// Decode(Encode(b)) == b and Encode(Decode(b)) == b for any b.
func (c *Cipher) Decode(buf []byte) {
	for i, v := range buf {
		buf[i] = c.decTable[v]
	}
}
