package yakushima

import (
	"bytes"
	"encoding/gob"
)

// PutValue is a generic convenience wrapper over Context.Put for callers
// storing Go values rather than raw bytes, grounded on the original's
// generic kvs.h template wrappers (there: C++ templates over a fixed byte
// encoding; here: gob, the standard library's own answer to the same
// problem of encoding an arbitrary T without a user-supplied schema).
func PutValue[T any](c *Context, tok Token, storage string, key []byte, value T, uniqueRestriction bool) Status {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(value); err != nil {
		return ErrBadUsage
	}
	return c.Put(tok, storage, key, buf.Bytes(), uniqueRestriction)
}

// GetValue is PutValue's read-side counterpart.
func GetValue[T any](c *Context, storage string, key []byte) (T, Status) {
	var out T
	raw, status := c.Get(storage, key)
	if status != OK {
		return out, status
	}
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&out); err != nil {
		return out, ErrBadUsage
	}
	return out, OK
}
