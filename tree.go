package yakushima

import "sync/atomic"

// Tree is one tree instance: the atomic root pointer of a layer or storage
// (spec §3). A nil root means an empty layer.
type Tree struct {
	root atomic.Pointer[node]
}

func newTree() *Tree { return &Tree{} }

func (t *Tree) loadRoot() *node { return t.root.Load() }

// installFirstRoot CAS-installs n as the root if the tree is currently
// empty (spec §4.6 step 1). Returns false if another writer won the race.
func (t *Tree) installFirstRoot(n *node) bool {
	n.version.setRoot(true)
	return t.root.CompareAndSwap(nil, n)
}

// storeRoot unconditionally replaces the root. Used by split/collapse paths
// that already hold whatever lock makes this safe (spec §4.4/§4.8).
func (t *Tree) storeRoot(n *node) { t.root.Store(n) }
