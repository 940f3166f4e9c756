// Package merklehash computes the canonical 32-byte digest that binds a
// trie node to its key substring, its children's hashes, and — for leaves —
// its value. The preimage layout follows spec.md §4.B bit for bit; its
// packed key substring is also the on-disk layout of a DiskNode's substring
// field, which is what lets diskstore reuse the same packing helper
// (element.PackSubstring) for hashing and for serialization.
//
// SHA-256 is the one place this module reaches for the standard library
// instead of a third-party package: the digest is a file-format commitment
// fixed at compile time (spec.md §6), and substituting a different hash
// family would silently produce an incompatible disk format. See DESIGN.md
// for the full reasoning.
package merklehash

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/dapperlabs/merklemap/element"
)

// Size is the width of a digest, in bytes.
const Size = element.HashBytes

// Hash is a 32-byte node digest.
type Hash [Size]byte

// Zero is the digest of an absent child slot.
var Zero Hash

// Digest computes the canonical digest of a node from its key substring
// (0..KeyElements nibbles), its 16 child digests (Zero for empty slots),
// and its value (Zero-valued for non-leaves).
//
// Preimage layout: substring length (uint64 LE) || substring packed to
// KeyBytes || 16 child hashes in slot order || value.
func Digest(substring []byte, children [element.Children]Hash, value [element.HashBytes]byte) Hash {
	preimage := make([]byte, 0, 8+element.KeyBytes+element.Children*Size+element.HashBytes)

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(substring)))
	preimage = append(preimage, lenBuf[:]...)

	packed := element.PackSubstring(substring)
	preimage = append(preimage, packed[:]...)

	for _, h := range children {
		preimage = append(preimage, h[:]...)
	}

	preimage = append(preimage, value[:]...)

	return sha256.Sum256(preimage)
}
