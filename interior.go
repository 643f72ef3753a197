package yakushima

// childOf implements spec §4.3's lockless child lookup: given a snapshot v
// already known stable by the caller (find-border, §4.5), scan the n_keys
// separator entries and return the leftmost child whose separator is
// strictly greater than the query, or the last child. The caller is
// responsible for re-validating n's version after this read; childOf itself
// performs no retry.
func (n *node) childOf(slice keySlice, tag lengthTag) *node {
	nk := n.nKeysLoad()
	for i := 0; i < nk; i++ {
		if compareSliceTag(n.keys[i], n.keyTags[i], slice, tag) > 0 {
			return n.children[i].Load()
		}
	}
	return n.children[nk].Load()
}

// interiorInsertionRank returns the physical position a new (pivot, child)
// pair belongs at, keeping keys[0:nKeys] sorted ascending.
func interiorInsertionRank(n *node, pivotSlice keySlice, pivotTag lengthTag) int {
	nk := n.nKeysLoad()
	for i := 0; i < nk; i++ {
		if compareSliceTag(n.keys[i], n.keyTags[i], pivotSlice, pivotTag) > 0 {
			return i
		}
	}
	return nk
}

// insert installs (pivotSlice, pivotTag) as a new separator with child as
// the child immediately to its right, per spec §4.3. Precondition: n is not
// full and the caller holds n's lock.
func (n *node) insert(child *node, pivotSlice keySlice, pivotTag lengthTag) {
	n.version.markInsertingDeleting()
	pos := interiorInsertionRank(n, pivotSlice, pivotTag)
	nk := n.nKeysLoad()

	for i := nk; i > pos; i-- {
		n.keys[i] = n.keys[i-1]
		n.keyTags[i] = n.keyTags[i-1]
	}
	for i := nk + 1; i > pos+1; i-- {
		n.children[i].Store(n.children[i-1].Load())
	}

	n.keys[pos] = pivotSlice
	n.keyTags[pos] = pivotTag
	n.children[pos+1].Store(child)
	child.parent.Store(n)
	n.nKeys.Add(1)
}

// childIndex returns the physical index of child among n's children, or -1.
func (n *node) childIndex(child *node) int {
	nk := n.nKeysLoad()
	for i := 0; i <= nk; i++ {
		if n.children[i].Load() == child {
			return i
		}
	}
	return -1
}

// deleteOf removes child (and its adjacent separator) from n, per spec
// §4.3. If n has only one key, the caller (remove.go's collapse chain) must
// instead replace n by its remaining child in n's own parent, or promote it
// to the layer root if n is the root; deleteOf signals that case via
// collapseToSingleChild so the caller can do so before retiring n.
// Precondition: n is locked.
func (n *node) deleteOf(child *node) (collapseToSingleChild *node) {
	nk := n.nKeysLoad()
	idx := n.childIndex(child)
	if idx < 0 {
		return nil
	}

	if nk == 1 {
		remaining := n.children[1-idx].Load()
		return remaining
	}

	n.version.markInsertingDeleting()
	keyIdx := idx
	if keyIdx >= nk {
		keyIdx = nk - 1
	}
	for i := keyIdx; i < nk-1; i++ {
		n.keys[i] = n.keys[i+1]
		n.keyTags[i] = n.keyTags[i+1]
	}
	for i := idx; i < nk; i++ {
		n.children[i].Store(n.children[i+1].Load())
	}
	n.children[nk].Store(nil)
	n.nKeys.Add(-1)
	return nil
}
