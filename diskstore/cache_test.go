package diskstore_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dapperlabs/merklemap/diskstore"
	"github.com/dapperlabs/merklemap/element"
	"github.com/dapperlabs/merklemap/trie"
)

type countingReader struct {
	r     diskstore.Reader
	reads int
}

func (c *countingReader) ReadAt(p []byte, off int64) (int, error) {
	c.reads++
	return c.r.ReadAt(p, off)
}

func TestCachedReaderServesRepeatedPageReadsFromCache(t *testing.T) {
	k1, k2 := [32]byte{1}, [32]byte{2}
	v1, v2 := [32]byte{10}, [32]byte{20}
	root := trie.NewLeaf(element.PackKey(k1), v1)
	root, _ = root.Insert(element.PackKey(k2), 0, v2)

	var buf bytes.Buffer
	_, err := diskstore.Save(&buf, root)
	require.NoError(t, err)

	inner := &countingReader{r: bytes.NewReader(buf.Bytes())}
	cached, err := diskstore.NewCachedReader(inner, 8)
	require.NoError(t, err)

	_, leaves1, err := diskstore.Open(cached, 0)
	require.NoError(t, err)
	require.Equal(t, 2, leaves1)
	firstPassReads := inner.reads

	_, leaves2, err := diskstore.Open(cached, 0)
	require.NoError(t, err)
	require.Equal(t, 2, leaves2)

	require.Less(t, inner.reads-firstPassReads, firstPassReads,
		"second pass should hit the cache instead of re-reading every page")
}
