package merklemap

import (
	"fmt"

	"github.com/dapperlabs/merklemap/element"
	"github.com/dapperlabs/merklemap/merklehash"
	"github.com/dapperlabs/merklemap/trie"
)

// VerifyDiskImage recomputes every node's hash from its substring,
// children, and value and confirms it matches the hash stored in that
// node. Open trusts an image's self-reported hashes (spec.md §4.E); this
// is the optional separate check the specification mentions for callers
// who want to confirm a loaded image wasn't tampered with or corrupted in
// a way ParseDiskNode's structural checks wouldn't catch.
func (m *Map) VerifyDiskImage() error {
	if m.root == nil {
		return nil
	}
	return verifyNode(m.root, 0)
}

func verifyNode(n *trie.Node, depth int) error {
	var children [element.Children]merklehash.Hash
	for i := 0; i < element.Children; i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		if err := verifyNode(c, depth+len(n.Substring())+1); err != nil {
			return err
		}
		children[i] = c.Hash()
	}

	value := n.Value()
	if !n.IsLeafAt(depth) {
		value = Value{}
	}
	want := merklehash.Digest(n.Substring(), children, value)
	if want != n.Hash() {
		return fmt.Errorf("merklemap: stored hash mismatch at depth %d: got %x, want %x", depth, n.Hash(), want)
	}
	return nil
}
