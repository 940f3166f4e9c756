package trie_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dapperlabs/merklemap/element"
	"github.com/dapperlabs/merklemap/merklehash"
	"github.com/dapperlabs/merklemap/trie"
)

func nibbles(key [32]byte) []byte {
	return element.PackKey(key)
}

func TestSingleInsertProducesFullDepthLeaf(t *testing.T) {
	var key [32]byte
	key[0] = 0xAB
	var value [32]byte
	value[0] = 1

	n := trie.NewLeaf(nibbles(key), value)
	require.True(t, n.IsLeafAt(0))
	require.Equal(t, nibbles(key), n.Substring())

	want := merklehash.Digest(nibbles(key), [element.Children]merklehash.Hash{}, value)
	require.Equal(t, want, n.Hash())
}

func TestInsertOverwriteReturnsOldValue(t *testing.T) {
	var key [32]byte
	key[0] = 0x11
	v1 := [32]byte{1}
	v2 := [32]byte{2}

	n := trie.NewLeaf(nibbles(key), v1)
	n2, old := n.Insert(nibbles(key), 0, v2)
	require.NotNil(t, old)
	require.Equal(t, v1, *old)
	require.Equal(t, v2, n2.Value())
}

func TestSplitOnSecondDivergentInsert(t *testing.T) {
	var k1, k2 [32]byte
	k1[0] = 0x00
	k2[0] = 0x10 // diverges at nibble 1 (high nibble of byte 0 differs: 0 vs 1)
	v1 := [32]byte{1}
	v2 := [32]byte{2}

	root := trie.NewLeaf(nibbles(k1), v1)
	root, old := root.Insert(nibbles(k2), 0, v2)
	require.Nil(t, old)
	require.False(t, root.IsLeafAt(0))

	val, path := root.Find(nibbles(k1), 0)
	require.NotNil(t, val)
	require.Equal(t, v1, *val)
	require.True(t, path.Hash == root.Hash())

	val2, _ := root.Find(nibbles(k2), 0)
	require.NotNil(t, val2)
	require.Equal(t, v2, *val2)
}

func TestFindMissingKeyReturnsNilValue(t *testing.T) {
	var k1, k2 [32]byte
	k1[0] = 0x00
	k2[0] = 0xF0
	v1 := [32]byte{1}

	root := trie.NewLeaf(nibbles(k1), v1)
	val, path := root.Find(nibbles(k2), 0)
	require.Nil(t, val)
	require.NotNil(t, path)
}

func TestRemoveReturnsToPriorRootHash(t *testing.T) {
	var k1, k2, k3 [32]byte
	k1[0] = 0x01
	k2[0] = 0x02
	k3[0] = 0x03
	v1, v2, v3 := [32]byte{1}, [32]byte{2}, [32]byte{3}

	root := trie.NewLeaf(nibbles(k1), v1)
	root, _ = root.Insert(nibbles(k2), 0, v2)
	afterTwo := root.Hash()

	root, _ = root.Insert(nibbles(k3), 0, v3)
	require.NotEqual(t, afterTwo, root.Hash())

	root, old := root.Remove(nibbles(k3), 0, true)
	require.NotNil(t, old)
	require.Equal(t, v3, *old)
	require.Equal(t, afterTwo, root.Hash())
}

func TestRemoveLastKeyYieldsNilRoot(t *testing.T) {
	var k1 [32]byte
	k1[0] = 0x42
	v1 := [32]byte{9}

	root := trie.NewLeaf(nibbles(k1), v1)
	root, old := root.Remove(nibbles(k1), 0, true)
	require.Nil(t, root)
	require.NotNil(t, old)
	require.Equal(t, v1, *old)
}

func TestRemoveNonExistentKeyIsNoop(t *testing.T) {
	var k1, k2 [32]byte
	k1[0] = 0x01
	k2[0] = 0xFE
	v1 := [32]byte{1}

	root := trie.NewLeaf(nibbles(k1), v1)
	before := root.Hash()
	root, old := root.Remove(nibbles(k2), 0, true)
	require.Nil(t, old)
	require.Equal(t, before, root.Hash())
}

// TestInsertionOrderIndependence is a property-based fuzz-style test: it
// builds the same key/value set in many random insertion orders and checks
// every resulting root hash agrees, since a trie's hash is a function of
// its contents alone, never of the order entries arrived in.
func TestInsertionOrderIndependence(t *testing.T) {
	const numKeys = 20
	const numOrderings = 8

	rng := rand.New(rand.NewSource(1))
	keys := make([][]byte, numKeys)
	values := make([][32]byte, numKeys)
	for i := range keys {
		var key [32]byte
		rng.Read(key[:])
		var value [32]byte
		rng.Read(value[:])
		keys[i] = nibbles(key)
		values[i] = value
	}

	build := func(order []int) *trie.Node {
		var root *trie.Node
		for _, idx := range order {
			if root == nil {
				root = trie.NewLeaf(keys[idx], values[idx])
				continue
			}
			root, _ = root.Insert(keys[idx], 0, values[idx])
		}
		return root
	}

	identity := make([]int, numKeys)
	for i := range identity {
		identity[i] = i
	}
	want := build(identity).Hash()

	for trial := 0; trial < numOrderings; trial++ {
		order := append([]int(nil), identity...)
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		got := build(order).Hash()
		require.Equal(t, want, got, "trial %d: order %v produced a different root hash", trial, order)
	}
}
