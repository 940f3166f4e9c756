// Package merklemap ties the element, merklehash, trie, proof, and
// diskstore packages into the public persistent authenticated key-value
// map: Map. It owns the single root pointer, the running leaf count, and
// the logger/metrics collaborators a host application wires in, following
// the constructor-option style this codebase's lineage uses for its own
// trie storage entry points rather than a config struct or file.
package merklemap

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dapperlabs/merklemap/diskstore"
	"github.com/dapperlabs/merklemap/element"
	"github.com/dapperlabs/merklemap/internal/metrics"
	"github.com/dapperlabs/merklemap/merklehash"
	"github.com/dapperlabs/merklemap/proof"
	"github.com/dapperlabs/merklemap/trie"
)

// Key and Value are fixed-width 32-byte arrays; any higher-level encoding
// (hex, base64, ...) is the caller's concern.
type Key = [element.KeyBytes]byte
type Value = [element.HashBytes]byte

// ErrDepthViolation marks the panic Insert raises if the supplied key's
// nibble expansion does not consume exactly element.KeyElements on
// descent. Since Key is a fixed-size array this can only happen from an
// internal logic bug, never from caller input (spec.md §7 notes this
// condition is "guarded by the fixed 32-byte input type, so unreachable in
// practice"); per this module's error handling design, internal invariant
// violations panic rather than returning an error a caller could ignore.
var ErrDepthViolation = fmt.Errorf("merklemap: key did not fully consume trie depth")

// Map is a persistent authenticated key-value map: a Merkle-ised 16-ary
// radix trie over fixed 32-byte keys and values. The zero value is not
// usable; construct one with New or Open.
type Map struct {
	root   *trie.Node
	length int

	log       zerolog.Logger
	collector metrics.Collector
}

// Option configures a Map at construction time.
type Option func(*Map)

// WithLogger injects a logger. The default is zerolog's no-op logger,
// matching the convention this codebase's lineage uses for optional
// collaborators (see ledger/complete/wal.NewWAL).
func WithLogger(log zerolog.Logger) Option {
	return func(m *Map) { m.log = log }
}

// WithCollector injects a metrics collector. The default is
// metrics.NopCollector.
func WithCollector(c metrics.Collector) Option {
	return func(m *Map) { m.collector = c }
}

func newMap(opts ...Option) *Map {
	m := &Map{
		log:       zerolog.Nop(),
		collector: metrics.NopCollector{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// New returns an empty Map.
func New(opts ...Option) *Map {
	return newMap(opts...)
}

// Open reconstructs a Map from a disk image previously written by Save.
// rootIndex selects which page is the root; 0 uses the page written last,
// which is always the true root of an image produced by Save.
func Open(r diskstore.Reader, rootIndex uint64, opts ...Option) (*Map, error) {
	m := newMap(opts...)

	root, leaves, err := diskstore.Open(r, rootIndex)
	if err != nil {
		return nil, fmt.Errorf("merklemap: open: %w", err)
	}
	m.root = root
	m.length = leaves
	if pages, err := diskstore.PageCount(r); err == nil {
		m.collector.PagesRead(int(pages))
	}
	m.collector.Leaves(leaves)
	m.log.Debug().Int("leaves", leaves).Msg("merklemap opened from disk image")
	return m, nil
}

// OpenVerified behaves like Open but additionally calls VerifyDiskImage on
// the reconstructed trie before returning it, failing if the stored hashes
// don't match what the key substrings, children, and values actually hash
// to.
func OpenVerified(r diskstore.Reader, rootIndex uint64, opts ...Option) (*Map, error) {
	m, err := Open(r, rootIndex, opts...)
	if err != nil {
		return nil, err
	}
	if err := m.VerifyDiskImage(); err != nil {
		return nil, fmt.Errorf("merklemap: open: %w", err)
	}
	return m, nil
}

// RootHash returns the cached digest of the whole trie. An empty map's
// root hash is the digest of a node with no substring, no children, and no
// value, since an empty Map's root pointer is nil rather than a permanent
// placeholder node (root, unlike every other node, carries no parent edge
// to compress away).
func (m *Map) RootHash() merklehash.Hash {
	if m.root == nil {
		var zeroChildren [element.Children]merklehash.Hash
		var zeroValue Value
		return merklehash.Digest(nil, zeroChildren, zeroValue)
	}
	return m.root.Hash()
}

// Len returns the number of keys currently stored.
func (m *Map) Len() int { return m.length }

// Lookup returns the value stored at key, if any, together with an
// authenticated Path proving the answer against RootHash().
func (m *Map) Lookup(key Key) (*Value, *proof.Path) {
	nibbles := element.PackKey(key)
	if m.root == nil {
		var zeroChildren [element.Children]merklehash.Hash
		var zeroValue Value
		emptyHash := merklehash.Digest(nil, zeroChildren, zeroValue)
		return nil, proof.NewBranch(emptyHash, nil, [element.Children]*proof.Path{})
	}
	return m.root.Find(nibbles, 0)
}

// Find is a convenience wrapper around Lookup that discards the proof.
func (m *Map) Find(key Key) *Value {
	value, _ := m.Lookup(key)
	return value
}

// Insert sets key to value, returning the previous value if key was
// already present.
func (m *Map) Insert(key Key, value Value) *Value {
	nibbles := element.PackKey(key)
	if len(nibbles) != element.KeyElements {
		panic(ErrDepthViolation)
	}

	if m.root == nil {
		m.root = trie.NewLeaf(nibbles, value)
		m.length++
		m.collector.RootHashRecomputed()
		m.collector.Leaves(m.length)
		return nil
	}

	newRoot, old := m.root.Insert(nibbles, 0, value)
	m.root = newRoot
	if old == nil {
		m.length++
	}
	m.collector.RootHashRecomputed()
	m.collector.Leaves(m.length)
	return old
}

// Remove deletes key, returning its value if it was present.
func (m *Map) Remove(key Key) *Value {
	if m.root == nil {
		return nil
	}
	nibbles := element.PackKey(key)
	// The root takes part in the lone-child merge like any other node, so a
	// removal leaves the same shape that inserting the remaining keys builds.
	newRoot, old := m.root.Remove(nibbles, 0, false)
	m.root = newRoot
	if old != nil {
		m.length--
		m.collector.RootHashRecomputed()
		m.collector.Leaves(m.length)
	}
	return old
}

// Clear empties the map. The underlying trie is released for garbage
// collection; no disk I/O occurs.
func (m *Map) Clear() {
	m.root = nil
	m.length = 0
	m.collector.Leaves(0)
}

// Save writes a disk image of the map to w, readable back by Open.
func (m *Map) Save(w diskstore.Writer) error {
	pages, err := diskstore.Save(w, m.root)
	if err != nil {
		return fmt.Errorf("merklemap: save: %w", err)
	}
	m.collector.PagesWritten(pages)
	m.log.Debug().Int("pages", pages).Msg("merklemap saved to disk image")
	return nil
}

// Walk visits every (key, value) pair in the map in ascending key order,
// stopping early if visit returns false. The original specification scopes
// out range iteration, but a full unconditional walk is cheap to support
// and useful for verification and export tooling, so it is kept here as a
// supplemental operation.
func (m *Map) Walk(visit func(key Key, value Value) bool) {
	if m.root == nil {
		return
	}
	var nibbles [element.KeyElements]byte
	walkNode(m.root, nibbles[:0], visit)
}

func walkNode(n *trie.Node, prefix []byte, visit func(key Key, value Value) bool) bool {
	path := append(append([]byte(nil), prefix...), n.Substring()...)
	depth := len(path)
	if depth == element.KeyElements {
		var key Key
		copy(key[:], element.Unpack(path))
		if !visit(key, n.Value()) {
			return false
		}
	}
	for i := 0; i < element.Children; i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		if !walkNode(c, append(path, byte(i)), visit) {
			return false
		}
	}
	return true
}

// BulkInsert builds a fresh Map from entries by calling Insert for each
// entry in order; the result is the same as inserting them one by one into
// a Map returned by New.
func BulkInsert(entries []Entry, opts ...Option) *Map {
	m := newMap(opts...)
	for _, e := range entries {
		m.Insert(e.Key, e.Value)
	}
	return m
}

// Entry is one key/value pair, used by BulkInsert.
type Entry struct {
	Key   Key
	Value Value
}
