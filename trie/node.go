// Package trie implements the in-memory radix trie node: the owner of a key
// substring, an optional leaf value, 16 child slots, and a cached Merkle
// hash. Node exposes Find, Insert, and Remove, following the recursive
// owned-tree shape used throughout this codebase's lineage (no
// back-pointers; mutation returns the possibly-replaced node so the caller
// can update its own slot or root pointer) — see DESIGN.md for the
// grounding of the split/merge algorithm.
//
// Nodes are read-only once hashed except through Insert/Remove, which
// either return a node with a freshly recomputed hash or replace it
// outright. Callers must not mutate a Node's exported accessors' return
// values.
package trie

import (
	"github.com/dapperlabs/merklemap/element"
	"github.com/dapperlabs/merklemap/merklehash"
	"github.com/dapperlabs/merklemap/proof"
)

// KeyElements is the fixed number of nibbles in a key; a node is a leaf
// exactly when the nibbles consumed to reach it (its depth) plus its own
// substring length equals KeyElements.
const KeyElements = element.KeyElements

// Node is a radix-trie vertex. The zero value is not usable; construct one
// with NewLeaf or NewBranch.
type Node struct {
	substring []byte // nibble elements, 0..KeyElements long
	value     [element.HashBytes]byte
	children  [element.Children]*Node
	hash      merklehash.Hash
}

// NewLeaf creates a leaf node with the given key substring and value and
// computes its hash immediately.
func NewLeaf(substring []byte, value [element.HashBytes]byte) *Node {
	n := &Node{substring: cloneSubstring(substring), value: value}
	n.rehash()
	return n
}

// NewBranch creates an interior node with the given key substring and
// children and computes its hash immediately. The returned node's value is
// zero, as it is meaningless for a non-leaf.
func NewBranch(substring []byte, children [element.Children]*Node) *Node {
	n := &Node{substring: cloneSubstring(substring), children: children}
	n.rehash()
	return n
}

func cloneSubstring(s []byte) []byte {
	if len(s) == 0 {
		return nil
	}
	return append([]byte(nil), s...)
}

// Hash returns the node's cached Merkle digest. Do not modify the returned
// value.
func (n *Node) Hash() merklehash.Hash { return n.hash }

// Substring returns the node's key substring. Do not modify the returned
// slice.
func (n *Node) Substring() []byte { return n.substring }

// Value returns the node's stored value. It is only meaningful when the
// node is a leaf.
func (n *Node) Value() [element.HashBytes]byte { return n.value }

// Child returns the child at slot i, or nil if the slot is empty.
func (n *Node) Child(i int) *Node { return n.children[i] }

// NewRaw constructs a node from already-known fields without recomputing
// its hash. It exists for diskstore's reconstruction path, which trusts
// the hashes stored in the disk image (spec.md §4.E) rather than
// rehashing every node on every load. Callers that build a node any other
// way should use NewLeaf or NewBranch instead.
func NewRaw(substring []byte, value [element.HashBytes]byte) *Node {
	return &Node{substring: cloneSubstring(substring), value: value}
}

// SetChild installs child at slot i without triggering a rehash. Used only
// during disk reconstruction, where the final hash is supplied separately
// by SetHash once every child is in place.
func (n *Node) SetChild(i int, child *Node) { n.children[i] = child }

// SetHash overwrites the node's cached hash directly, bypassing
// recomputation. Used only during disk reconstruction.
func (n *Node) SetHash(h merklehash.Hash) { n.hash = h }

// IsLeafAt reports whether this node is a leaf, given the number of nibbles
// already consumed to reach it from the root.
func (n *Node) IsLeafAt(depth int) bool {
	return depth+len(n.substring) == KeyElements
}

// childHashes assembles the child digest vector for hashing, zero for every
// empty slot.
func (n *Node) childHashes() [element.Children]merklehash.Hash {
	var out [element.Children]merklehash.Hash
	for i, c := range n.children {
		if c != nil {
			out[i] = c.hash
		}
	}
	return out
}

// rehash recomputes n.hash from its current substring, children, and value.
// Precondition: every child's cached hash is already current (guaranteed by
// depth-first mutation order in Insert/Remove).
func (n *Node) rehash() {
	n.hash = merklehash.Digest(n.substring, n.childHashes(), n.value)
}

func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// Find descends the trie looking for remaining (the unmatched suffix of the
// query key, at depth nibbles already consumed). It returns the stored
// value when remaining lands exactly on a leaf, and an authenticated Path
// that proves the answer against the subtree rooted at n.
func (n *Node) Find(remaining []byte, depth int) (*[element.HashBytes]byte, *proof.Path) {
	s := n.substring
	switch {
	case len(remaining) == len(s) && commonPrefixLen(remaining, s) == len(s):
		// Exact terminal match.
		value := n.value
		return &value, proof.NewTarget(n.hash, s)

	case commonPrefixLen(remaining, s) == len(s):
		// s is a proper prefix of remaining: descend.
		idx := int(remaining[len(s)])
		rest := remaining[len(s)+1:]

		var children [element.Children]*proof.Path
		for i, c := range n.children {
			if i == idx || c == nil {
				continue
			}
			children[i] = proof.NewHashOnly(c.hash)
		}

		child := n.children[idx]
		if child == nil {
			return nil, proof.NewBranch(n.hash, s, children)
		}
		value, childPath := child.Find(rest, depth+len(s)+1)
		children[idx] = childPath
		return value, proof.NewBranch(n.hash, s, children)

	default:
		// Divergence before s is exhausted: proves non-membership.
		var children [element.Children]*proof.Path
		for i, c := range n.children {
			if c != nil {
				children[i] = proof.NewHashOnly(c.hash)
			}
		}
		return nil, proof.NewBranch(n.hash, s, children)
	}
}

// Insert sets remaining (the unmatched suffix of the key, depth nibbles
// already consumed) to value, returning the node that should replace n in
// its parent's slot (or as the trie root) and the value that was previously
// stored there, if any.
func (n *Node) Insert(remaining []byte, depth int, value [element.HashBytes]byte) (*Node, *[element.HashBytes]byte) {
	s := n.substring
	p := commonPrefixLen(remaining, s)

	switch {
	case p == len(s) && p == len(remaining):
		// Case 1: overwrite this leaf's value. No structural change.
		old := n.value
		n.value = value
		n.rehash()
		return n, &old

	case p == len(s):
		// Case 2: s is a proper prefix of remaining. Descend.
		idx := int(remaining[p])
		rest := remaining[p+1:]

		child := n.children[idx]
		if child == nil {
			n.children[idx] = NewLeaf(rest, value)
			n.rehash()
			return n, nil
		}
		newChild, old := child.Insert(rest, depth+p+1, value)
		n.children[idx] = newChild
		n.rehash()
		return n, old

	default:
		// Case 3: p is a proper prefix of s. Split.
		branchSubstring := s[:p]

		oldChild := &Node{
			substring: cloneSubstring(s[p+1:]),
			value:     n.value,
			children:  n.children,
		}
		oldChild.rehash()

		var children [element.Children]*Node
		children[s[p]] = oldChild

		if p == len(remaining) {
			// The inserted key ends exactly at the split point: the new
			// branch itself becomes the leaf. Under the fixed KeyElements
			// depth invariant this is provably unreachable (it would
			// require len(s) > len(remaining)), but is implemented to
			// follow the spec's case split exactly.
			branch := NewBranch(branchSubstring, children)
			branch.value = value
			branch.rehash()
			return branch, nil
		}

		children[remaining[p]] = NewLeaf(remaining[p+1:], value)
		branch := NewBranch(branchSubstring, children)
		return branch, nil
	}
}

// Remove deletes remaining (the unmatched suffix of the key, depth nibbles
// already consumed) from the subtree rooted at n. isRoot suppresses the
// lone-child merge step on n itself: when true, n keeps its own substring
// and a single remaining child instead of absorbing that child.
//
// It returns the node that should replace n (nil if n should be removed
// entirely from its parent's slot) and the removed value, if any.
func (n *Node) Remove(remaining []byte, depth int, isRoot bool) (*Node, *[element.HashBytes]byte) {
	s := n.substring
	p := commonPrefixLen(remaining, s)

	if p < len(s) {
		// Divergence: key not present in this subtree.
		return n, nil
	}

	if p == len(remaining) {
		// Exact leaf match.
		old := n.value
		if !n.hasAnyChild() {
			return nil, &old
		}
		// Per spec.md §4.C: clearing a leaf that still has children is
		// only meaningful for variable-length keys; under the fixed
		// KeyElements invariant a node at full depth never has children,
		// so this branch is defensive and unreachable in practice.
		n.value = [element.HashBytes]byte{}
		n.rehash()
		return n, &old
	}

	// Descend.
	idx := int(remaining[p])
	rest := remaining[p+1:]

	child := n.children[idx]
	if child == nil {
		return n, nil
	}
	newChild, old := child.Remove(rest, depth+p+1, false)
	if old == nil {
		return n, nil
	}
	n.children[idx] = newChild

	// Restore invariant 1: a now-empty non-leaf child slot is cleared.
	if newChild != nil && !newChild.hasAnyChild() && !newChild.IsLeafAt(depth+p+1) {
		n.children[idx] = nil
	}

	// Restore invariant 1: a non-leaf, non-root node with exactly one
	// populated child merges that child into itself.
	if !isRoot && !n.IsLeafAt(depth) {
		if soleIdx, ok := n.soleChildIndex(); ok {
			sole := n.children[soleIdx]
			n.substring = append(append(cloneSubstring(s), byte(soleIdx)), sole.substring...)
			n.value = sole.value
			n.children = sole.children
		}
	}

	n.rehash()
	return n, old
}

func (n *Node) hasAnyChild() bool {
	for _, c := range n.children {
		if c != nil {
			return true
		}
	}
	return false
}

// soleChildIndex returns the index of the only populated child slot, and
// true, if exactly one slot is populated.
func (n *Node) soleChildIndex() (int, bool) {
	idx, count := -1, 0
	for i, c := range n.children {
		if c != nil {
			idx, count = i, count+1
			if count > 1 {
				return 0, false
			}
		}
	}
	return idx, count == 1
}
