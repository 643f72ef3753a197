package yakushima

// Put inserts or overwrites key/value under the named storage, spec §4.6.
func (c *Context) Put(tok Token, storage string, key, value []byte, uniqueRestriction bool) Status {
	return c.PutTracked(tok, storage, key, value, uniqueRestriction, nil)
}

// PutTracked behaves like Put but also appends the NodeVersion of the
// border the write landed on to outVersions (expanded-spec C.1), for a
// concurrency-control layer built on top of this package to use for
// phantom detection. Pass nil to skip the bookkeeping, which is what Put
// does.
func (c *Context) PutTracked(tok Token, storage string, key, value []byte, uniqueRestriction bool, outVersions *[]NodeVersion) Status {
	t, status := c.FindStorage(storage)
	if status != OK {
		return status
	}
	return c.withSession(tok, func(s *session) Status {
		return Put(s, t, key, value, uniqueRestriction, outVersions)
	})
}

// Get looks up key under the named storage, spec §4.7.
func (c *Context) Get(storage string, key []byte) ([]byte, Status) {
	t, status := c.FindStorage(storage)
	if status != OK {
		return nil, status
	}
	return Get(t, key)
}

// Remove deletes key under the named storage, spec §4.8.
func (c *Context) Remove(tok Token, storage string, key []byte) Status {
	t, status := c.FindStorage(storage)
	if status != OK {
		return status
	}
	return c.withSession(tok, func(s *session) Status {
		return Remove(s, t, key)
	})
}

// Scan walks a key range under the named storage, spec §4.9.
func (c *Context) Scan(storage string, left, right Endpoint, maxSize int) ([]Entry, Status) {
	return c.ScanTracked(storage, left, right, maxSize, nil)
}

// ScanTracked behaves like Scan but also appends the NodeVersion of every
// border visited to outVersions (expanded-spec C.2). Pass nil to skip the
// bookkeeping, which is what Scan does.
func (c *Context) ScanTracked(storage string, left, right Endpoint, maxSize int, outVersions *[]NodeVersion) ([]Entry, Status) {
	t, status := c.FindStorage(storage)
	if status != OK {
		return nil, status
	}
	return Scan(t, left, right, maxSize, outVersions)
}
