package merklehash_test

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dapperlabs/merklemap/element"
	"github.com/dapperlabs/merklemap/merklehash"
)

func TestDigestOfEmptyLeafMatchesSpecPreimage(t *testing.T) {
	var zeroValue [32]byte
	var children [element.Children]merklehash.Hash

	got := merklehash.Digest(nil, children, zeroValue)

	preimage := make([]byte, 0, 8+32+16*32+32)
	preimage = append(preimage, 0, 0, 0, 0, 0, 0, 0, 0) // substring_length = 0, LE
	preimage = append(preimage, make([]byte, 32)...)    // zero substring
	preimage = append(preimage, make([]byte, 16*32)...) // zero children
	preimage = append(preimage, make([]byte, 32)...)    // zero value
	want := sha256.Sum256(preimage)

	require.Equal(t, merklehash.Hash(want), got)
}

func TestDigestIsDeterministic(t *testing.T) {
	var children [element.Children]merklehash.Hash
	children[3] = merklehash.Hash{1, 2, 3}
	value := [32]byte{9}

	h1 := merklehash.Digest([]byte{1, 2, 3}, children, value)
	h2 := merklehash.Digest([]byte{1, 2, 3}, children, value)
	require.Equal(t, h1, h2)

	h3 := merklehash.Digest([]byte{1, 2, 4}, children, value)
	require.NotEqual(t, h1, h3)
}
