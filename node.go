package yakushima

import "sync/atomic"

// fanout (F) and child capacity are fixed per spec §3.
const (
	fanout        = 15
	childCapacity = fanout + 1
)

// keySlice is one 8-byte chunk of a key, ordered as an unsigned big-endian
// integer (spec §3).
type keySlice = uint64

// lengthTag is in [0,9]: 0..8 means "final slice, key has exactly that many
// bytes in this slice"; 9 means "key continues in the next layer".
type lengthTag = uint8

const lengthTagContinues lengthTag = 9

// valueBox is the heap-owned payload of a terminal key, spec §3. In Go the
// backing array is reclaimed by the runtime GC; valueBox's job is purely to
// be the thing epoch GC defers *dropping the last live reference to*, which
// is what actually matters for the correctness properties in spec §8
// ("memory reclamation") — see epoch.go.
type valueBox struct {
	data  []byte
	align int
}

func newValueBox(data []byte, align int) *valueBox {
	cp := make([]byte, len(data))
	copy(cp, data)
	return &valueBox{data: cp, align: align}
}

// linkOrValue is the tagged-union per-slot cell of spec §3: exactly one of
// value (lengthTag <= 8) or layer (lengthTag == 9) is non-nil at a time.
type linkOrValue struct {
	value *valueBox
	layer *node
}

// node is the unified tagged-union base node of design note §9: one Go
// struct serves as both border and interior, discriminated by the version
// word's border bit (free, since every accessor already reads the version).
// This directly follows the teacher's own discriminator, page.Lvl == 0,
// generalized from a disk page to an in-memory struct.
type node struct {
	version version64
	parent  atomic.Pointer[node]

	// --- border fields (valid iff version word's border bit is set) ---
	slices  [fanout]keySlice
	lengths [fanout]lengthTag
	lov     [fanout]linkOrValue
	perm    permutation
	prev    atomic.Pointer[node]
	next    atomic.Pointer[node]

	// --- interior fields (valid iff border bit is clear) ---
	keys     [fanout]keySlice
	keyTags  [fanout]lengthTag
	children [childCapacity]atomic.Pointer[node]
	nKeys    atomic.Int32
}

func newBorderNode() *node {
	n := &node{}
	n.version.setBorder(true)
	return n
}

func newInteriorNode() *node {
	n := &node{}
	n.version.setBorder(false)
	return n
}

func (n *node) isBorder() bool { return n.version.raw().isBorder() }

// childAt reads interior child i lock-free with no version validation; its
// caller, scan.go's firstBorder, follows the pointer as read.
func (n *node) childAt(i int) *node { return n.children[i].Load() }

func (n *node) nKeysLoad() int { return int(n.nKeys.Load()) }
