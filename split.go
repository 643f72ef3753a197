package yakushima

// This file implements spec §4.4 (border split, interior split, parent
// relinking) grounded on hmarui66-blink-tree-go/bltree.go's
// splitPage/splitKeys/splitRoot: split the full node, lock the parent chain
// one level at a time (re-reading the parent pointer after each failed lock
// attempt), install the separator, and unlock innermost-first.

// rootPublisher lets propagateSplit install a freshly created interior as
// the new root when a node's parent is nil. Only ever invoked for the
// outermost (layer 0 / storage) Tree instance: every deeper layer's root
// always has a non-nil border parent (invariant 6), so publish is nil and
// unused when splitting within a deeper layer.
type rootPublisher func(*node)

// entry is a (slice, tag, value-or-layer) tuple used to build the virtual
// F+1 sorted array a border split redistributes.
type entry struct {
	slice keySlice
	tag   lengthTag
	value *valueBox
	layer *node
}

// lockParentOf returns child's locked parent, re-reading and re-locking if
// the parent pointer changed between load and lock (design note §9: "the
// edge is re-validated by parent == child.parent() after lock acquisition").
// Returns nil if child has no parent (child is the outermost layer root).
func lockParentOf(child *node) *node {
	for {
		p := child.parent.Load()
		if p == nil {
			return nil
		}
		p.version.lock()
		if child.parent.Load() == p {
			return p
		}
		p.version.unlock()
	}
}

// replaceLayerPointer finds the physical slot in p whose next-layer pointer
// is old and repoints it to next. p must be locked by the caller.
func replaceLayerPointer(p *node, old, next *node) {
	for i := 0; i < fanout; i++ {
		if p.lov[i].layer == old {
			p.lov[i].layer = next
			return
		}
	}
}

// propagateSplit attaches the freshly split pair (left, right) — separated
// by (pivotSlice, pivotTag), with left holding the smaller keys — into
// left's parent chain, per spec §4.4 step 5. left must already be locked by
// the caller; right is locked after a border split and is a fresh, unlocked
// interior after an interior split (unlocking a word with no lock or dirty
// bit set leaves it unchanged). propagateSplit unlocks both once they are correctly
// attached, even if the parent itself must now recursively split (an
// already-attached child is safe to make visible while its parent's own
// split is still in flight — interior child pointers are updated before the
// parent is locked, per spec §4.4's ordering invariant).
func propagateSplit(tok *session, left, right *node, pivotSlice keySlice, pivotTag lengthTag, publish rootPublisher) Status {
	p := lockParentOf(left)

	switch {
	case p == nil:
		i := newInteriorNode()
		i.version.setRoot(true)
		i.children[0].Store(left)
		i.children[1].Store(right)
		i.keys[0], i.keyTags[0] = pivotSlice, pivotTag
		i.nKeys.Store(1)

		left.version.setRoot(false)
		left.parent.Store(i)
		right.parent.Store(i)

		if publish != nil {
			publish(i)
		}

		left.version.unlock()
		right.version.unlock()
		i.version.unlock()
		return OK

	case p.isBorder():
		p.version.markSplitting()
		newInterior := newInteriorNode()
		newInterior.version.setRoot(true)
		newInterior.parent.Store(p)
		newInterior.children[0].Store(left)
		newInterior.children[1].Store(right)
		newInterior.keys[0], newInterior.keyTags[0] = pivotSlice, pivotTag
		newInterior.nKeys.Store(1)

		left.version.setRoot(false)
		left.parent.Store(newInterior)
		right.parent.Store(newInterior)

		replaceLayerPointer(p, left, newInterior)

		left.version.unlock()
		right.version.unlock()
		p.version.unlock()
		newInterior.version.unlock()
		return OK

	default: // p is an interior node
		left.parent.Store(p)
		right.parent.Store(p)
		left.version.unlock()

		if p.nKeysLoad() < fanout {
			p.insert(right, pivotSlice, pivotTag)
			right.version.unlock()
			p.version.unlock()
			return OK
		}

		right.version.unlock()
		return splitInteriorAndPropagate(tok, p, right, pivotSlice, pivotTag, publish)
	}
}

// splitInteriorAndPropagate splits a full interior p that needs to absorb
// one more (pivot, newChild) pair, then recurses into propagateSplit one
// level up. p must be locked (and full) on entry; newChild must be
// unlocked (interior children, unlike border splits, are not held locked
// across the parent chain).
func splitInteriorAndPropagate(tok *session, p *node, newChild *node, pivotSlice keySlice, pivotTag lengthTag, publish rootPublisher) Status {
	if tok.mgr.metrics != nil {
		tok.mgr.metrics.splits.Inc()
	}
	p.version.markSplitting()

	nk := p.nKeysLoad() // == fanout
	type childEntry struct {
		key   keySlice
		tag   lengthTag
		child *node
	}
	// Build the virtual (fanout+1)-key, (fanout+2)-child sorted layout.
	var keys [fanout + 1]keySlice
	var tags [fanout + 1]lengthTag
	var children [fanout + 2]*node

	insPos := interiorInsertionRank(p, pivotSlice, pivotTag)
	src := 0
	for i := 0; i <= nk; i++ {
		if i == insPos {
			keys[i], tags[i] = pivotSlice, pivotTag
		} else if i < insPos {
			keys[i], tags[i] = p.keys[src], p.keyTags[src]
			src++
		} else {
			keys[i], tags[i] = p.keys[src], p.keyTags[src]
			src++
		}
	}
	csrc := 0
	for i := 0; i <= nk+1; i++ {
		if i == insPos+1 {
			children[i] = newChild
		} else {
			children[i] = p.children[csrc].Load()
			csrc++
		}
	}

	mid := (nk + 1) / 2 // promoted key index
	leftKeys := mid
	rightKeys := nk - mid // total keys nk+1, minus leftKeys, minus the promoted one

	right := newInteriorNode()
	right.nKeys.Store(int32(rightKeys))
	for i := 0; i < rightKeys; i++ {
		right.keys[i] = keys[mid+1+i]
		right.keyTags[i] = tags[mid+1+i]
	}
	for i := 0; i <= rightKeys; i++ {
		c := children[mid+1+i]
		right.children[i].Store(c)
		c.parent.Store(right)
	}

	for i := 0; i <= leftKeys; i++ {
		p.children[i].Store(children[i])
	}
	for i := leftKeys + 1; i < childCapacity; i++ {
		p.children[i].Store(nil)
	}
	for i := leftKeys; i < fanout; i++ {
		p.keys[i] = 0
		p.keyTags[i] = 0
	}
	p.nKeys.Store(int32(leftKeys))

	promotedSlice, promotedTag := keys[mid], tags[mid]
	return propagateSplit(tok, p, right, promotedSlice, promotedTag, publish)
}

// borderSplit implements spec §4.4's border-split algorithm. b must already
// be locked and full (perm.count() == fanout); tok is the session performing
// the insert, for any GC bookkeeping the redistribution triggers (moved
// entries are never retired, only re-parented, so none is expected in
// practice). publish installs a new layer-0 root if the split climbs all
// the way to a nil parent.
func borderSplit(tok *session, b *node, slice keySlice, tag lengthTag, rest []byte, value *valueBox, publish rootPublisher) (*node, Status) {
	if tok.mgr.metrics != nil {
		tok.mgr.metrics.splits.Inc()
	}
	bPrime := newBorderNode()
	bPrime.version.lock()

	oldNext := b.next.Load()
	bPrime.next.Store(oldNext)
	bPrime.prev.Store(b)
	b.next.Store(bPrime)
	if oldNext != nil {
		oldNext.prev.Store(bPrime)
	}

	b.version.markSplitting()

	count, order := b.perm.load()
	var entries [fanout + 1]entry
	insPos, _, _ := rankScan(b, count, order, slice, tag)

	src := 0
	for i := 0; i <= count; i++ {
		if i == insPos {
			entries[i] = entry{slice: slice, tag: tag}
		} else {
			slot := order[src]
			entries[i] = entry{slice: b.slices[slot], tag: b.lengths[slot], value: b.lov[slot].value, layer: b.lov[slot].layer}
			src++
		}
	}

	total := count + 1
	leftCount := (total + 1) / 2
	rightCount := total - leftCount

	var insertedInto *node

	// materialize fills in the pending placeholder entry (value box, or a
	// freshly built next-layer chain) once we know which node it lands in,
	// and otherwise leaves an already-moved entry untouched.
	materialize := func(e entry, idx int, owner *node) entry {
		if idx != insPos {
			return e
		}
		if tag == lengthTagContinues {
			layer := newChainBorder(rest, value)
			layer.parent.Store(owner)
			e.layer = layer
		} else {
			e.value = value
		}
		return e
	}

	// Rebuild b with the left half.
	for i := 0; i < fanout; i++ {
		b.lov[i] = linkOrValue{}
	}
	for i := 0; i < leftCount; i++ {
		e := materialize(entries[i], i, b)
		b.slices[i], b.lengths[i] = e.slice, e.tag
		b.lov[i] = linkOrValue{value: e.value, layer: e.layer}
		if i == insPos {
			insertedInto = b
		}
	}
	b.perm.reset(leftCount)

	// Populate bPrime with the right half, re-parenting any moved next-layer
	// roots per spec §4.4 step 2.
	for i := 0; i < rightCount; i++ {
		e := materialize(entries[leftCount+i], leftCount+i, bPrime)
		bPrime.slices[i], bPrime.lengths[i] = e.slice, e.tag
		bPrime.lov[i] = linkOrValue{value: e.value, layer: e.layer}
		if e.layer != nil {
			e.layer.parent.Store(bPrime)
		}
		if leftCount+i == insPos {
			insertedInto = bPrime
		}
	}
	bPrime.perm.reset(rightCount)

	pivotSlice, pivotTag := bPrime.slices[0], bPrime.lengths[0]
	status := propagateSplit(tok, b, bPrime, pivotSlice, pivotTag, publish)
	return insertedInto, status
}
