package yakushima

// Remove implements spec §4.8: delete key from the tree rooted at t. When a
// border empties out, it is detached from its containing structure — the
// leaf list, its parent interior (collapsing a now-single-child interior
// into its remaining child), or, for a deeper layer's root, the owning
// key in the layer above (cascading the same collapse upward across
// layers). A Tree's own root is allowed to go empty and simply stays put.
func Remove(tok *session, t *Tree, key []byte) Status {
	for {
		status := removeRec(tok, t.loadRoot, t.storeRoot, key)
		if status.isRetry() {
			continue
		}
		return status
	}
}

func removeRec(tok *session, source rootSource, publish rootPublisher, key []byte) Status {
	slice, tag, rest := sliceKey(key)

	for {
		b, vB, status := findBorder(source, slice, tag)
		switch {
		case status == OKRootIsNull:
			return WarnNotExist
		case status.isRetry():
			continue
		case status != OK:
			return status
		}

		_, storedTag, v2, found := b.getLvOf(slice, tag)
		if !vB.sameSplit(v2) {
			continue
		}
		if !found {
			return WarnNotExist
		}
		if storedTag == lengthTagContinues {
			st := removeRec(tok, layerRootSource(b, slice, tag), publish, rest)
			if st.isRetry() {
				continue
			}
			return st
		}

		b.version.lock()
		if !vB.sameSplit(b.version.raw()) {
			b.version.unlock()
			continue
		}
		count, order := b.perm.load()
		rank, _, ok := rankScan(b, count, order, slice, tag)
		if !ok {
			b.version.unlock()
			continue
		}

		result := b.deleteAt(tok, rank)
		if !result.nodeEmptied {
			b.version.unlock()
			return OK
		}
		return detachEmptyBorder(tok, b, publish)
	}
}

// detachEmptyBorder removes an emptied border b from whatever structure
// contains it. b must be locked on entry (deleteAt's postcondition); the
// lock is always released by the time this returns.
func detachEmptyBorder(tok *session, b *node, publish rootPublisher) Status {
	parent := lockParentOf(b)

	switch {
	case parent == nil:
		// b is the outermost Tree root with no keys left; an empty root is
		// valid and simply stays.
		b.version.unlock()
		return OK

	case parent.isBorder():
		// b is a deeper layer's root; parent owns the (slice, tag) entry in
		// the layer above whose cell points at b. That entry no longer
		// covers any key, so it is removed too, possibly cascading.
		return detachLayerRoot(tok, parent, b, publish)

	default:
		return detachFromInterior(tok, parent, b, publish)
	}
}

// detachLayerRoot removes owner's link-or-value cell that points at the now
// empty layer root b. owner is locked on entry (lockParentOf's
// postcondition); b is locked on entry (detachEmptyBorder's precondition).
func detachLayerRoot(tok *session, owner *node, b *node, publish rootPublisher) Status {
	count, order := owner.perm.load()
	rank, slot, ok := -1, uint8(0), false
	for r := 0; r < count; r++ {
		s := order[r]
		if owner.lov[s].layer == b {
			rank, slot, ok = r, s, true
			break
		}
	}

	unlinkLeafList(b)
	b.version.markDeleted()
	b.version.unlock()
	tok.retireNode(b)

	if !ok {
		// Already detached by a racing removal; nothing left to do.
		owner.version.unlock()
		return OK
	}

	owner.version.markInsertingDeleting()
	owner.lov[slot] = linkOrValue{}
	owner.perm.deleteRank(rank)
	emptied := count == 1

	if emptied {
		return detachEmptyBorder(tok, owner, publish)
	}
	owner.version.unlock()
	return OK
}

// detachFromInterior removes child b from interior parent p, collapsing p
// into its remaining child if b's removal leaves p with none. p and b are
// both locked on entry.
func detachFromInterior(tok *session, p *node, b *node, publish rootPublisher) Status {
	unlinkLeafList(b)
	b.version.markDeleted()
	b.version.unlock()
	tok.retireNode(b)

	remaining := p.deleteOf(b)
	if remaining == nil {
		p.version.unlock()
		return OK
	}
	return collapseInterior(tok, p, remaining, publish)
}

// collapseInterior replaces a now-single-child interior p by its remaining
// child wherever p itself was referenced: the Tree root, an owning border's
// cell, or a grandparent interior's child slot. p is locked on entry;
// remaining is unlocked and was not previously attached under any lock.
func collapseInterior(tok *session, p *node, remaining *node, publish rootPublisher) Status {
	gp := lockParentOf(p)

	switch {
	case gp == nil:
		remaining.parent.Store(nil)
		remaining.version.setRoot(true)
		p.version.markDeleted()
		p.version.unlock()
		tok.retireNode(p)
		if publish != nil {
			publish(remaining)
		}
		return OK

	case gp.isBorder():
		replaceLayerPointer(gp, p, remaining)
		remaining.parent.Store(gp)
		remaining.version.setRoot(true)
		p.version.markDeleted()
		p.version.unlock()
		gp.version.unlock()
		tok.retireNode(p)
		return OK

	default:
		idx := gp.childIndex(p)
		gp.version.markInsertingDeleting()
		gp.children[idx].Store(remaining)
		remaining.parent.Store(gp)
		p.version.markDeleted()
		p.version.unlock()
		gp.version.unlock()
		tok.retireNode(p)
		return OK
	}
}

// unlinkLeafList splices b out of the border leaf list, locking its
// neighbors in a fixed order (prev, then next) and re-validating after each
// lock, mirroring lockParentOf's re-check-after-lock pattern.
func unlinkLeafList(b *node) {
	for {
		p := b.prev.Load()
		n := b.next.Load()

		if p != nil {
			p.version.lock()
			if p.next.Load() != b {
				p.version.unlock()
				continue
			}
		}
		if n != nil {
			n.version.lock()
			if n.prev.Load() != b {
				if p != nil {
					p.version.unlock()
				}
				n.version.unlock()
				continue
			}
		}

		if p != nil {
			p.next.Store(n)
		}
		if n != nil {
			n.prev.Store(p)
		}
		if p != nil {
			p.version.unlock()
		}
		if n != nil {
			n.version.unlock()
		}
		return
	}
}
