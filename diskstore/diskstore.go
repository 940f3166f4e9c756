// Package diskstore implements the fixed-size paged binary format that
// persists a trie to disk and rebuilds it on load. The layout mirrors the
// header-plus-fixed-slot-pages scheme this codebase's lineage uses for its
// own trie checkpoints (see DESIGN.md), generalised from a 2-ary to a
// 16-ary branching factor.
//
// A DiskNode is a flat, position-independent record: child pointers are
// page indices rather than in-memory pointers, so a whole trie can be
// flattened to a table, written sequentially, and rebuilt by following
// indices back into the table. Page index 0 is reserved as the "absent
// child" sentinel; real pages are numbered 1..N.
package diskstore

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/dapperlabs/merklemap/element"
	"github.com/dapperlabs/merklemap/merklehash"
	"github.com/dapperlabs/merklemap/trie"
)

const (
	// HeaderSize is the number of bytes reserved for the file header before
	// the first node page.
	HeaderSize = 1024

	// NodeSize is the fixed size, in bytes, of one node page.
	NodeSize = 1024

	recordSize = 16*8 + 16*32 + 32 + 32 + 8 + 32
)

func init() {
	if recordSize > NodeSize {
		panic("diskstore: DiskNode record does not fit in NodeSize")
	}
}

// ErrCorrupt is returned when a disk image fails a structural check: an
// out-of-range child pointer, an oversized substring length, or a cycle
// detected while rebuilding.
var ErrCorrupt = errors.New("diskstore: corrupt image")

// ErrShortRead is returned when fewer bytes than expected could be read
// from the underlying source.
var ErrShortRead = errors.New("diskstore: short read")

// Reader is the random-access capability Open needs: read at arbitrary
// offsets, matching how a page index maps directly to a byte offset in this
// format.
type Reader = io.ReaderAt

// Writer is the sequential capability Save needs. Because page offsets are
// only known once every subtree has been flattened, Save buffers every page
// in memory and then writes the header and the pages in order.
type Writer = io.Writer

// DiskNode is the exact 1024-byte on-wire record for one trie node.
type DiskNode struct {
	Children     [element.Children]uint64
	ChildHashes  [element.Children]merklehash.Hash
	Hash         merklehash.Hash
	Value        [element.HashBytes]byte
	SubstringLen uint64
	Substring    [element.KeyBytes]byte
}

// Encode serializes d into a NodeSize-byte page, zero-padded after the
// record.
func (d *DiskNode) Encode() []byte {
	buf := make([]byte, NodeSize)
	off := 0
	for _, c := range d.Children {
		binary.LittleEndian.PutUint64(buf[off:], c)
		off += 8
	}
	for _, h := range d.ChildHashes {
		copy(buf[off:], h[:])
		off += 32
	}
	copy(buf[off:], d.Hash[:])
	off += 32
	copy(buf[off:], d.Value[:])
	off += 32
	binary.LittleEndian.PutUint64(buf[off:], d.SubstringLen)
	off += 8
	copy(buf[off:], d.Substring[:])
	off += 32
	return buf
}

// ParseDiskNode decodes one page's worth of bytes into a DiskNode. It fails
// if fewer than recordSize bytes are supplied.
func ParseDiskNode(page []byte) (*DiskNode, error) {
	if len(page) < recordSize {
		return nil, fmt.Errorf("%w: page has %d bytes, need %d", ErrShortRead, len(page), recordSize)
	}
	d := &DiskNode{}
	off := 0
	for i := range d.Children {
		d.Children[i] = binary.LittleEndian.Uint64(page[off:])
		off += 8
	}
	for i := range d.ChildHashes {
		copy(d.ChildHashes[i][:], page[off:off+32])
		off += 32
	}
	copy(d.Hash[:], page[off:off+32])
	off += 32
	copy(d.Value[:], page[off:off+32])
	off += 32
	d.SubstringLen = binary.LittleEndian.Uint64(page[off:])
	off += 8
	copy(d.Substring[:], page[off:off+32])
	off += 32
	return d, nil
}

func pageOffset(index uint64) int64 {
	return HeaderSize + int64(index-1)*NodeSize
}

func readPage(r Reader, index uint64) ([]byte, error) {
	buf := make([]byte, NodeSize)
	n, err := r.ReadAt(buf, pageOffset(index))
	if err != nil && !(err == io.EOF && n >= recordSize) {
		return nil, errors.Wrapf(err, "diskstore: reading page %d", index)
	}
	return buf, nil
}

// Save flattens root (nil for an empty map) into a disk image and writes it
// to w. It returns the number of node pages written.
func Save(w Writer, root *trie.Node) (int, error) {
	var pages [][]byte
	if root != nil {
		flatten(root, &pages)
	}

	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint64(header, uint64(len(pages)))
	if _, err := w.Write(header); err != nil {
		return 0, errors.Wrap(err, "diskstore: writing header")
	}
	for _, p := range pages {
		if _, err := w.Write(p); err != nil {
			return 0, errors.Wrap(err, "diskstore: writing page")
		}
	}
	return len(pages), nil
}

// flatten appends a post-order DiskNode encoding of the subtree rooted at n
// to pages, returning the 1-based page index assigned to n.
func flatten(n *trie.Node, pages *[][]byte) uint64 {
	d := &DiskNode{
		Hash:         n.Hash(),
		Value:        n.Value(),
		SubstringLen: uint64(len(n.Substring())),
		Substring:    element.PackSubstring(n.Substring()),
	}
	for i := 0; i < element.Children; i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		idx := flatten(c, pages)
		d.Children[i] = idx
		d.ChildHashes[i] = c.Hash()
	}
	*pages = append(*pages, d.Encode())
	return uint64(len(*pages))
}

// Open rebuilds a trie and leaf count from a disk image read through r.
// rootIndex selects which page is the root; 0 means "use the last page
// written" (the natural root of a Save'd image, since flatten appends the
// true root last).
func Open(r Reader, rootIndex uint64) (root *trie.Node, leafCount int, err error) {
	header := make([]byte, HeaderSize)
	n, err := r.ReadAt(header, 0)
	if err != nil && !(err == io.EOF && n >= 8) {
		return nil, 0, fmt.Errorf("%w: reading header: %v", ErrShortRead, err)
	}
	itemCount := binary.LittleEndian.Uint64(header[:8])

	if itemCount == 0 {
		return nil, 0, nil
	}

	if rootIndex == 0 {
		rootIndex = itemCount
	}
	if rootIndex < 1 || rootIndex > itemCount {
		return nil, 0, fmt.Errorf("%w: root index %d out of range [1, %d]", ErrCorrupt, rootIndex, itemCount)
	}

	records := make([]*DiskNode, itemCount+1) // index 0 is the nil sentinel
	visiting := make([]bool, itemCount+1)

	var load func(idx uint64) (*DiskNode, error)
	load = func(idx uint64) (*DiskNode, error) {
		if records[idx] != nil {
			return records[idx], nil
		}
		page, err := readPage(r, idx)
		if err != nil {
			return nil, err
		}
		d, err := ParseDiskNode(page)
		if err != nil {
			return nil, err
		}
		records[idx] = d
		return d, nil
	}

	var rebuild func(idx uint64, depth int) (*trie.Node, int, error)
	rebuild = func(idx uint64, depth int) (*trie.Node, int, error) {
		if idx == 0 {
			return nil, 0, nil
		}
		if idx > itemCount {
			return nil, 0, fmt.Errorf("%w: child pointer %d exceeds item count %d", ErrCorrupt, idx, itemCount)
		}
		if visiting[idx] {
			return nil, 0, fmt.Errorf("%w: cycle detected at page %d", ErrCorrupt, idx)
		}
		visiting[idx] = true
		defer func() { visiting[idx] = false }()

		d, err := load(idx)
		if err != nil {
			return nil, 0, err
		}
		if d.SubstringLen > element.KeyElements {
			return nil, 0, fmt.Errorf("%w: substring length %d exceeds %d", ErrCorrupt, d.SubstringLen, element.KeyElements)
		}

		substring := element.Pack(d.Substring[:])[:d.SubstringLen]

		n := trie.NewRaw(substring, d.Value)
		leaves := 0
		childDepth := depth + len(substring) + 1
		hasChild := false
		for i, childIdx := range d.Children {
			if childIdx == 0 {
				continue
			}
			hasChild = true
			child, count, err := rebuild(childIdx, childDepth)
			if err != nil {
				return nil, 0, err
			}
			n.SetChild(i, child)
			leaves += count
		}
		n.SetHash(d.Hash)
		if !hasChild && n.IsLeafAt(depth) {
			leaves++
		}
		return n, leaves, nil
	}

	root, leafCount, err = rebuild(rootIndex, 0)
	if err != nil {
		return nil, 0, err
	}
	return root, leafCount, nil
}

// PageCount reads just the header of a disk image and returns the number
// of node pages it claims to contain, without reading or validating any of
// them. Callers use this for reporting (e.g. a PagesRead metric) alongside
// Open, which re-derives the same count as a side effect of rebuilding.
func PageCount(r Reader) (uint64, error) {
	header := make([]byte, 8)
	n, err := r.ReadAt(header, 0)
	if err != nil && !(err == io.EOF && n >= 8) {
		return 0, errors.Wrap(err, "diskstore: reading header")
	}
	return binary.LittleEndian.Uint64(header), nil
}

// OpenFile opens the disk image at path and rebuilds a trie from it, as
// Open does for an already-open Reader. It is the directory/file
// convenience entry point external tooling reaches for instead of wiring
// up an *os.File as a Reader itself.
func OpenFile(path string, rootIndex uint64) (root *trie.Node, leafCount int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "diskstore: opening %s", path)
	}
	defer f.Close()
	return Open(f, rootIndex)
}

// SaveFile writes a fresh disk image of root to path, creating it if it
// does not exist and truncating it if it does.
func SaveFile(path string, root *trie.Node) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, errors.Wrapf(err, "diskstore: creating %s", path)
	}
	defer f.Close()
	pages, err := Save(f, root)
	if err != nil {
		return 0, err
	}
	if err := f.Sync(); err != nil {
		return 0, errors.Wrapf(err, "diskstore: syncing %s", path)
	}
	return pages, nil
}
