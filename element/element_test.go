package element_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dapperlabs/merklemap/element"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	in := []byte{0x01, 0xAB, 0xFF, 0x00}
	nibbles := element.Pack(in)
	require.Equal(t, []byte{0x0, 0x1, 0xA, 0xB, 0xF, 0xF, 0x0, 0x0}, nibbles)
	require.Equal(t, in, element.Unpack(nibbles))
}

func TestUnpackOddLength(t *testing.T) {
	nibbles := []byte{0xA, 0xB, 0xC}
	out := element.Unpack(nibbles)
	require.Equal(t, []byte{0xAB, 0xC0}, out)
}

func TestPackSubstringPadsWithZeros(t *testing.T) {
	short := []byte{0xF}
	packed := element.PackSubstring(short)
	require.Equal(t, byte(0xF0), packed[0])
	for _, b := range packed[1:] {
		require.Zero(t, b)
	}
}

func TestPackKeyLength(t *testing.T) {
	var key [element.KeyBytes]byte
	for i := range key {
		key[i] = byte(i)
	}
	nibbles := element.PackKey(key)
	require.Len(t, nibbles, element.KeyElements)
	require.Equal(t, element.Unpack(nibbles), key[:])
}
