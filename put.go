package yakushima

// Put implements spec §4.6: insert or overwrite key with value in the tree
// rooted at t, consuming 8 bytes of key per trie layer and recursing into a
// freshly or already established next-layer tree whenever a key shares an
// 8-byte prefix with something already stored. uniqueRestriction, when set,
// leaves an existing terminal value untouched and reports
// WarnUniqueRestriction instead of overwriting it. outVersions, if non-nil,
// is appended with one
// NodeVersion per border the insert/overwrite actually landed on (expanded-
// spec C.1); pass nil to skip the bookkeeping entirely.
func Put(tok *session, t *Tree, key []byte, value []byte, uniqueRestriction bool, outVersions *[]NodeVersion) Status {
	vb := newValueBox(value, 0)
	for {
		if t.loadRoot() == nil {
			first := newChainBorder(key, vb)
			if t.installFirstRoot(first) {
				appendNodeVersion(outVersions, first, first.version.raw())
				return OK
			}
			continue
		}
		status := putRec(tok, t.loadRoot, t.storeRoot, key, vb, uniqueRestriction, outVersions)
		if status.isRetry() {
			continue
		}
		return status
	}
}

// putRec handles a single trie layer: it slices the next 8 bytes off key,
// descends to the covering border (spec §4.5), and either recurses into an
// existing next-layer tree, overwrites/rejects an existing terminal value,
// or inserts a brand-new entry (splitting the border first if it is full,
// spec §4.4). source/publish address the Tree-vs-next-layer-cell root
// ambiguity described in descent.go; publish is nil for every layer but 0,
// since a deeper layer's root always has a non-nil border parent.
func putRec(tok *session, source rootSource, publish rootPublisher, key []byte, value *valueBox, unique bool, outVersions *[]NodeVersion) Status {
	slice, tag, rest := sliceKey(key)

	for {
		b, vB, status := findBorder(source, slice, tag)
		switch {
		case status == OKRootIsNull:
			// A deeper layer's root is installed atomically with its first
			// key (newChainBorder) and never removed while its parent cell
			// still points at it, so this can only mean structural
			// corruption upstream.
			return ErrFatal
		case status.isRetry():
			continue
		case status != OK:
			return status
		}

		_, storedTag, v2, found := b.getLvOf(slice, tag)
		if !vB.sameSplit(v2) {
			continue
		}

		if found && storedTag == lengthTagContinues {
			next := layerRootSource(b, slice, tag)
			st := putRec(tok, next, nil, rest, value, unique, outVersions)
			if st.isRetry() {
				continue
			}
			return st
		}

		if found {
			if unique {
				return WarnUniqueRestriction
			}
			b.version.lock()
			if !vB.sameSplit(b.version.raw()) {
				b.version.unlock()
				continue
			}
			count, order := b.perm.load()
			_, slot, ok := rankScan(b, count, order, slice, tag)
			if !ok {
				b.version.unlock()
				continue
			}
			old := b.lov[slot].value
			b.lov[slot].value = value
			after := b.version.raw()
			b.version.unlock()
			tok.retireValue(old)
			appendNodeVersion(outVersions, b, after)
			return OK
		}

		b.version.lock()
		if !vB.sameSplit(b.version.raw()) {
			b.version.unlock()
			continue
		}
		count, order := b.perm.load()
		if _, _, ok := rankScan(b, count, order, slice, tag); ok {
			b.version.unlock()
			continue
		}
		landed, status := insertLV(tok, b, slice, tag, rest, value, publish)
		if status == OK {
			appendNodeVersion(outVersions, landed, landed.version.raw())
		}
		return status
	}
}

func appendNodeVersion(out *[]NodeVersion, n *node, v snapshot) {
	if out == nil {
		return
	}
	*out = append(*out, NodeVersion{node: n, Version: v})
}
