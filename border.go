package yakushima

// rankScan walks the first count ranks of order looking for (slice, tag),
// per spec §4.2's exact rank computation: ties on the 8-byte slice are
// broken by tag ascending, so the scan can stop as soon as a key strictly
// greater than the candidate is seen. Returns the insertion rank (first
// rank whose key is >= candidate; count if none), the physical slot of an
// exact match, and whether one was found.
func rankScan(n *node, count int, order [fanout]uint8, slice keySlice, tag lengthTag) (rank int, matchSlot int, found bool) {
	for r := 0; r < count; r++ {
		slot := order[r]
		c := compareSliceTag(n.slices[slot], n.lengths[slot], slice, tag)
		if c == 0 {
			return r, int(slot), true
		}
		if c > 0 {
			return r, -1, false
		}
	}
	return count, -1, false
}

// getLvOf is the lockless lookup of spec §4.2: it returns the link-or-value
// cell for (slice, tag), the tag actually stored there, and the stable
// version snapshot observed at the moment the read was validated. Internal
// retries absorb concurrent splits/inserts; the returned snapshot is handed
// to the caller (put/get/remove) for the next level of validation against
// the border-level snapshot obtained during descent.
func (n *node) getLvOf(slice keySlice, tag lengthTag) (lov linkOrValue, storedTag lengthTag, v snapshot, found bool) {
	for {
		v1 := n.version.stableVersion()
		count, order := n.perm.load()
		_, matchSlot, ok := rankScan(n, count, order, slice, tag)
		var result linkOrValue
		var resultTag lengthTag
		if ok {
			result = n.lov[matchSlot]
			resultTag = n.lengths[matchSlot]
		}
		v2 := n.version.stableVersion()
		if !v1.sameSplit(v2) || !v1.sameInsertDelete(v2) {
			continue
		}
		return result, resultTag, v2, ok
	}
}

// insertAt writes (slice, tag, value_or_layer) into a free physical slot and
// updates the permutation so rank holds it, per spec §4.2. Precondition:
// caller holds n's lock and n has at least one free slot. A next-layer
// pointer is created by the caller (insertKeyValue), not here.
func (n *node) insertAt(rank int, slice keySlice, tag lengthTag, value *valueBox, layer *node) {
	n.version.markInsertingDeleting()
	count, order := n.perm.load()
	free := freeSlot(count, order)
	n.slices[free] = slice
	n.lengths[free] = tag
	n.lov[free] = linkOrValue{value: value, layer: layer}
	n.perm.insertRank(rank, uint8(free))
}

// freeSlot finds a physical slot not referenced by any live rank.
func freeSlot(count int, order [fanout]uint8) int {
	var used [fanout]bool
	for i := 0; i < count; i++ {
		used[order[i]] = true
	}
	for i := 0; i < fanout; i++ {
		if !used[i] {
			return i
		}
	}
	panic("yakushima: insertAt called on a full border node")
}

// newChainBorder builds a brand-new single-slot layer (and, recursively, as
// many deeper single-slot layers as the key needs) for a key that has never
// been seen before at this point in the trie. The returned node is the
// topmost border of the chain, with its root bit set; the caller is
// responsible for pointing some owner (a Tree instance or a border's
// link-or-value cell) at it and, in the latter case, setting its parent.
func newChainBorder(remaining []byte, value *valueBox) *node {
	slice, tag, rest := sliceKey(remaining)
	b := newBorderNode()
	b.version.setRoot(true)
	if tag == lengthTagContinues {
		child := newChainBorder(rest, value)
		child.parent.Store(b)
		b.slices[0], b.lengths[0] = slice, tag
		b.lov[0] = linkOrValue{layer: child}
	} else {
		b.slices[0], b.lengths[0] = slice, tag
		b.lov[0] = linkOrValue{value: value}
	}
	b.perm.store(1, [fanout]uint8{0})
	return b
}

// insertKeyValue places a new (slice, tag) key into free rank of an
// already-known-nonfull border, building a fresh next-layer chain when tag
// is lengthTagContinues. Precondition: caller holds n's lock.
func (n *node) insertKeyValue(rank int, slice keySlice, tag lengthTag, rest []byte, value *valueBox) {
	if tag == lengthTagContinues {
		layer := newChainBorder(rest, value)
		layer.parent.Store(n)
		n.insertAt(rank, slice, tag, nil, layer)
		return
	}
	n.insertAt(rank, slice, tag, value, nil)
}

// insertLV is border_node::insert_lv (spec §4.2): insert (slice, tag) with
// its value (or, for tag == lengthTagContinues, the residual suffix that
// seeds a new next-layer chain) into b, splitting first if b is full.
// Precondition: caller holds b's lock; on return the lock has been released
// (by this function or by borderSplit's cascade).
func insertLV(tok *session, b *node, slice keySlice, tag lengthTag, rest []byte, value *valueBox, publish rootPublisher) (*node, Status) {
	count, order := b.perm.load()
	if count < fanout {
		rank, _, _ := rankScan(b, count, order, slice, tag)
		b.insertKeyValue(rank, slice, tag, rest, value)
		b.version.unlock()
		return b, OK
	}
	return borderSplit(tok, b, slice, tag, rest, value, publish)
}

// deleteResult tells the caller whether the node was emptied, so it can
// start a collapse upward.
type deleteResult struct {
	nodeEmptied bool
	retired     *valueBox
}

// deleteAt removes the entry at rank, enqueuing any retired value box onto
// the session's GC list, and reports whether the last key was removed. It
// does not mark, unlink or detach an emptied node; remove.go's caller does
// that (detachEmptyBorder) and continues the collapse upward. Precondition:
// caller holds n's lock.
func (n *node) deleteAt(tok *session, rank int) deleteResult {
	n.version.markInsertingDeleting()
	count, order := n.perm.load()
	slot := order[rank]
	if n.lov[slot].value != nil {
		tok.retireValue(n.lov[slot].value)
	}
	n.lov[slot] = linkOrValue{}
	n.perm.deleteRank(rank)
	return deleteResult{nodeEmptied: count-1 == 0}
}
