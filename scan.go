package yakushima

import "bytes"

// EndpointKind selects how a Scan bound compares against candidate keys,
// spec §4.9.
type EndpointKind int

const (
	// Inclusive matches keys equal to or beyond the bound.
	Inclusive EndpointKind = iota
	// Exclusive matches keys strictly beyond the bound.
	Exclusive
	// Unbounded means the scan has no limit on this side.
	Unbounded
)

// Endpoint is one side of a Scan range. Key is ignored when Kind is
// Unbounded.
type Endpoint struct {
	Kind EndpointKind
	Key  []byte
}

// Entry is one key/value pair yielded by Scan.
type Entry struct {
	Key   []byte
	Value []byte
}

// Scan implements spec §4.9: walk every key in [left, right] (per each
// endpoint's own inclusive/exclusive/unbounded kind), in ascending byte
// order, up to maxSize results (0 means unlimited). Returns OKScanEnd when
// the whole range was covered, or OKScanContinue when the scan stopped on
// reaching maxSize results (even if no further key lies in the range). outVersions, if non-nil, is appended with one
// NodeVersion per border visited (expanded-spec C.2), mirroring the
// original's scan_helper.h version-vector echo.
func Scan(t *Tree, left, right Endpoint, maxSize int, outVersions *[]NodeVersion) ([]Entry, Status) {
	if maxSize < 0 {
		return nil, ErrBadUsage
	}
	if left.Kind != Unbounded && right.Kind != Unbounded {
		c := bytes.Compare(left.Key, right.Key)
		if c > 0 {
			return nil, ErrBadUsage
		}
		// spec §4.9's invalid-input rule and §9's open-question note: equal
		// bounds with either endpoint EXCLUSIVE is malformed, but only when
		// neither side is Unbounded — INF on either side means "all range"
		// even when the caller also passed matching left/right keys.
		if c == 0 && (left.Kind == Exclusive || right.Kind == Exclusive) {
			return nil, ErrBadUsage
		}
	}

	var results []Entry
	cutShort := false
	scanLayer(t.loadRoot(), nil, left, right, outVersions, func(key, value []byte) bool {
		results = append(results, Entry{
			Key:   append([]byte(nil), key...),
			Value: append([]byte(nil), value...),
		})
		if maxSize > 0 && len(results) >= maxSize {
			cutShort = true
			return false
		}
		return true
	})

	if cutShort {
		return results, OKScanContinue
	}
	return results, OKScanEnd
}

// scanLayer walks the border leaf list of one layer rooted at root,
// recursing into next-layer roots for tag == lengthTagContinues slots.
// prefix is the fully materialized key bytes consumed by ancestor layers.
// Returns false once visit has asked to stop (maxSize reached) or the right
// endpoint has been provably passed, so every enclosing call can unwind
// without walking the rest of the structure.
func scanLayer(root *node, prefix []byte, left, right Endpoint, outVersions *[]NodeVersion, visit func(key, value []byte) bool) bool {
	if root == nil {
		return true
	}
	b := firstBorder(root)
	for b != nil {
		entries, next, v := snapshotBorder(b)
		appendNodeVersion(outVersions, b, v)
		for _, e := range entries {
			chunk := encodeSlice(e.slice, e.tag)
			full := appendChunk(prefix, chunk)

			if right.Kind != Unbounded && exceedsRight(full, right) {
				return false
			}

			if e.tag == lengthTagContinues {
				if !scanLayer(e.layer, full, left, right, outVersions, visit) {
					return false
				}
				continue
			}

			if withinBounds(full, left, right) {
				if !visit(full, e.value.data) {
					return false
				}
			}
		}
		b = next
	}
	return true
}

// firstBorder descends the leftmost path from root to the border that
// covers the smallest key in this layer.
func firstBorder(root *node) *node {
	n := root
	for !n.isBorder() {
		c := n.childAt(0)
		if c == nil {
			return nil
		}
		n = c
	}
	return n
}

// snapshotBorder copies out b's live entries, leaf-list successor, and the
// version word they were read under, under optimistic version validation,
// the same read-retry shape as getLvOf.
func snapshotBorder(b *node) ([]entry, *node, snapshot) {
	for {
		v1 := b.version.stableVersion()
		count, order := b.perm.load()
		out := make([]entry, 0, count)
		for r := 0; r < count; r++ {
			s := order[r]
			out = append(out, entry{
				slice: b.slices[s],
				tag:   b.lengths[s],
				value: b.lov[s].value,
				layer: b.lov[s].layer,
			})
		}
		next := b.next.Load()
		v2 := b.version.stableVersion()
		if v1 == v2 {
			return out, next, v2
		}
	}
}

func appendChunk(prefix, chunk []byte) []byte {
	out := make([]byte, len(prefix)+len(chunk))
	copy(out, prefix)
	copy(out[len(prefix):], chunk)
	return out
}

func withinBounds(key []byte, left, right Endpoint) bool {
	if left.Kind != Unbounded {
		c := bytes.Compare(key, left.Key)
		if left.Kind == Inclusive && c < 0 {
			return false
		}
		if left.Kind == Exclusive && c <= 0 {
			return false
		}
	}
	if right.Kind != Unbounded {
		c := bytes.Compare(key, right.Key)
		if right.Kind == Inclusive && c > 0 {
			return false
		}
		if right.Kind == Exclusive && c >= 0 {
			return false
		}
	}
	return true
}

// exceedsRight reports whether key (or, for a next-layer chunk, every key
// that could ever be found under it) is already beyond right.
func exceedsRight(key []byte, right Endpoint) bool {
	c := bytes.Compare(key, right.Key)
	if right.Kind == Inclusive {
		return c > 0
	}
	return c >= 0
}
