package yakushima

import "golang.org/x/sync/errgroup"

// destroyWorkerLimit bounds how many child subtrees of one node are torn
// down concurrently; every level of the recursion uses its own group with
// this limit, so the total across a Destroy call is not bounded by it.
// Grounded on the original's destroy_manager worker pool, adapted from a
// fixed OS thread pool to an errgroup.Group per spec §4.10.
const destroyWorkerLimit = 8

// Destroy tears down every node in the named storage's tree bottom-up,
// fanning out across interior children and next-layer chains concurrently,
// then empties the storage's root (spec §4.10). The storage registration
// itself is left in place; call DeleteStorage separately to remove it too.
func (c *Context) Destroy(name string) Status {
	t, status := c.FindStorage(name)
	if status != OK {
		return status
	}
	if root := t.loadRoot(); root != nil {
		g := new(errgroup.Group)
		g.SetLimit(destroyWorkerLimit)
		destroyNode(g, root)
		g.Wait()
	}
	t.storeRoot(nil)
	return OK
}

// DestroyAll tears down and unregisters every storage, spec §4.10, and
// reports OKDestroyAll rather than OK to distinguish "destroyed everything"
// from a single-storage Destroy.
func (c *Context) DestroyAll() Status {
	for _, name := range c.ListStorages() {
		if status := c.Destroy(name); status != OK {
			return status
		}
		if status := c.DeleteStorage(name); status != OK {
			return status
		}
	}
	return OKDestroyAll
}

// destroyNode recursively schedules n's children (interior) or next-layer
// chains (border) onto g, marking each deleted once its own subtree has
// finished. n itself is left for the caller to detach from its owner.
func destroyNode(g *errgroup.Group, n *node) {
	if n == nil {
		return
	}
	if n.isBorder() {
		count, order := n.perm.load()
		for r := 0; r < count; r++ {
			slot := order[r]
			layer := n.lov[slot].layer
			if layer == nil {
				continue
			}
			g.Go(func() error {
				destroySubtree(layer)
				return nil
			})
		}
		return
	}
	nk := n.nKeysLoad()
	for i := 0; i <= nk; i++ {
		child := n.children[i].Load()
		if child == nil {
			continue
		}
		g.Go(func() error {
			destroySubtree(child)
			return nil
		})
	}
}

// destroySubtree runs one worker's share of the teardown: recurse into a
// fresh bounded group for this subtree's own children, wait for them, then
// mark this node deleted.
func destroySubtree(n *node) {
	inner := new(errgroup.Group)
	inner.SetLimit(destroyWorkerLimit)
	destroyNode(inner, n)
	inner.Wait()
	n.version.markDeleted()
}
