// Package proof defines the authenticated path returned alongside every
// lookup: a pruned copy of the trie along one root-to-target descent, with
// every off-path subtree replaced by its root digest. A Path is sufficient
// for a remote holder of only the root hash to confirm membership or
// non-membership of a key — see Verify.
//
// Path is modeled as a tagged struct rather than an interface hierarchy
// (spec.md's design notes call for "decode by tag, not by polymorphism");
// this keeps the zero value meaningful and avoids a type switch at every
// call site.
package proof

import (
	"github.com/dapperlabs/merklemap/element"
	"github.com/dapperlabs/merklemap/merklehash"
)

// Kind tags which of the three TreePath variants a Path value holds.
type Kind uint8

const (
	// Branch is an inner node on the descent: it carries its own hash, its
	// key substring, and one entry per child slot (nil, HashOnly, or a
	// recursive Path).
	Branch Kind = iota
	// HashOnly is a sibling subtree that was not descended into; only its
	// root hash is published.
	HashOnly
	// Target is the terminal node an exact match lands on. A descent that
	// diverges before reaching a leaf ends in a Branch instead.
	Target
)

// Path is a detached snapshot of one trie node taken at query time. It owns
// its substring and hash and never aliases the trie's storage, so it
// remains valid across later mutations of the Map it was produced from.
type Path struct {
	Kind      Kind
	Hash      merklehash.Hash
	Substring []byte // meaningful for Branch and Target

	// Children holds one entry per slot for a Branch node. A nil entry
	// means the slot is empty. A non-nil entry is either {Kind: HashOnly}
	// for an un-descended sibling, or a recursive Path for the slot that
	// was followed during the descent.
	Children [element.Children]*Path
}

// NewHashOnly returns a Path that publishes only a subtree's root hash.
func NewHashOnly(hash merklehash.Hash) *Path {
	return &Path{Kind: HashOnly, Hash: hash}
}

// NewTarget returns a Path for the node an exact match lands on at the end
// of a descent.
func NewTarget(hash merklehash.Hash, substring []byte) *Path {
	return &Path{Kind: Target, Hash: hash, Substring: append([]byte(nil), substring...)}
}

// NewBranch returns a Path for an inner node, given its already-populated
// Children array.
func NewBranch(hash merklehash.Hash, substring []byte, children [element.Children]*Path) *Path {
	return &Path{Kind: Branch, Hash: hash, Substring: append([]byte(nil), substring...), Children: children}
}
