package yakushima

import (
	"encoding/binary"
	"sync"
)

// storageTable is the storage registry of spec §3/§6: a Tree instance
// (registry) whose keys are storage names and whose values are 8-byte
// handle indices into handles, so registry lookups and mutations flow
// through the exact same put/get/remove code path as any other key in the
// index, rather than a bespoke map.
type storageTable struct {
	ctx *Context

	mu       sync.Mutex
	handles  []*Tree
	deleting map[uint64]bool
}

func newStorageTable(ctx *Context) *storageTable {
	return &storageTable{ctx: ctx, deleting: make(map[uint64]bool)}
}

func encodeHandle(h uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], h)
	return buf[:]
}

func decodeHandle(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// withRegistrySession runs fn with a transient internal session, the same
// way any other caller would, so the registry's own epoch bookkeeping never
// needs special-casing against the rest of the GC machinery.
func (c *Context) withRegistrySession(fn func(s *session) Status) Status {
	tok, status := c.sessions.enter()
	if status != OK {
		return status
	}
	defer c.sessions.leave(tok)
	s, _ := c.sessions.resolve(tok)
	return fn(s)
}

// CreateStorage registers a brand-new, empty tree under name (spec §6).
// Returns WarnUniqueRestriction if name is already registered (the registry
// put always runs with unique_restriction, so a colliding name leaves the
// existing tree handle untouched rather than overwriting it).
func (c *Context) CreateStorage(name string) Status {
	return c.withRegistrySession(func(s *session) Status {
		c.store.mu.Lock()
		t := newTree()
		c.store.handles = append(c.store.handles, t)
		handle := uint64(len(c.store.handles) - 1)
		c.store.mu.Unlock()

		status := Put(s, c.registry, []byte(name), encodeHandle(handle), true, nil)
		if status != OK {
			// Roll back the reserved handle slot; nothing else can have
			// observed it since it was never published in the registry.
			c.store.mu.Lock()
			c.store.handles[handle] = nil
			c.store.mu.Unlock()
			return status
		}
		if c.metrics != nil {
			c.metrics.storages.Inc()
		}
		return OK
	})
}

// FindStorage returns the Tree registered under name, or WarnStorageNotExist.
func (c *Context) FindStorage(name string) (*Tree, Status) {
	raw, status := Get(c.registry, []byte(name))
	if status != OK {
		return nil, WarnStorageNotExist
	}
	handle := decodeHandle(raw)

	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if int(handle) >= len(c.store.handles) || c.store.handles[handle] == nil {
		return nil, WarnStorageNotExist
	}
	return c.store.handles[handle], OK
}

// DeleteStorage removes name from the registry and retires its Tree, spec
// §6. Detects a concurrent DeleteStorage on the same name best-effort via
// an in-progress marker and reports WarnConcurrentOperations rather than
// racing two callers' cleanups against each other.
func (c *Context) DeleteStorage(name string) Status {
	raw, status := Get(c.registry, []byte(name))
	if status != OK {
		return WarnStorageNotExist
	}
	handle := decodeHandle(raw)

	c.store.mu.Lock()
	if c.store.deleting[handle] {
		c.store.mu.Unlock()
		return WarnConcurrentOperations
	}
	c.store.deleting[handle] = true
	c.store.mu.Unlock()

	defer func() {
		c.store.mu.Lock()
		delete(c.store.deleting, handle)
		c.store.mu.Unlock()
	}()

	result := c.withRegistrySession(func(s *session) Status {
		return Remove(s, c.registry, []byte(name))
	})
	if result != OK {
		return result
	}

	c.store.mu.Lock()
	c.store.handles[handle] = nil
	c.store.mu.Unlock()
	if c.metrics != nil {
		c.metrics.storages.Dec()
	}
	return OK
}

// ListStorages returns every currently registered storage name, spec §6.
func (c *Context) ListStorages() []string {
	entries, _ := Scan(c.registry, Endpoint{Kind: Unbounded}, Endpoint{Kind: Unbounded}, 0, nil)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, string(e.Key))
	}
	return names
}
