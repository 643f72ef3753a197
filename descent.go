package yakushima

// rootSource abstracts where a layer's root pointer is loaded from: the
// layer-0 Tree's atomic field, or a deeper layer's owning link-or-value
// cell (spec invariant 6: every deeper layer's root has a non-nil border
// parent, so its current pointer is always re-derivable from that parent's
// cell for (slice, tag)).
type rootSource func() *node

// treeRootSource adapts a Tree (layer 0 / a storage) to rootSource.
func treeRootSource(t *Tree) rootSource {
	return t.loadRoot
}

// layerRootSource adapts a next-layer pointer reached through owner's cell
// for (slice, tag) to rootSource, so a retry re-reads the current pointer
// instead of a possibly-stale one captured before a split.
func layerRootSource(owner *node, slice keySlice, tag lengthTag) rootSource {
	return func() *node {
		lov, _, _, found := owner.getLvOf(slice, tag)
		if !found {
			return nil
		}
		return lov.layer
	}
}

// findBorder implements spec §4.5: descend from the layer root to the
// border that is guaranteed to cover (slice, tag) at the moment its
// returned snapshot was taken.
//
// Returns (border, vB, OK) on success. Returns (nil, 0, OKRootIsNull) if the
// layer is empty. Returns (nil, 0, warnRetryFromRootOfAll) when the cached
// root turned out to be stale (deleted or no longer a root) — the caller
// must reload the root via source and retry the entire operation. Returns
// (nil, 0, okRetryFromRoot) when a split was detected mid-descent — the
// caller retries findBorder with the same root.
func findBorder(source rootSource, slice keySlice, tag lengthTag) (*node, snapshot, Status) {
	n := source()
	if n == nil {
		return nil, 0, OKRootIsNull
	}

	v := n.version.stableVersion()
	if v.deleted() || !v.isRoot() {
		return nil, 0, warnRetryFromRootOfAll
	}

	for !v.isBorder() {
		c := n.childOf(slice, tag)
		if c == nil {
			return nil, 0, ErrFatal
		}
		vc := c.version.stableVersion()
		vPrime := n.version.stableVersion()

		if v == vPrime {
			n, v = c, vc
			continue
		}
		if !v.sameSplit(vPrime) || vPrime.deleted() {
			return nil, 0, okRetryFromRoot
		}
		// vinsert_delete alone changed: re-scan this node under the fresh
		// snapshot instead of committing to c.
		v = vPrime
	}

	return n, v, OK
}
