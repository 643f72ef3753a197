// Package yakushima is an in-memory, concurrent, ordered key-value index
// built as a trie of B+-trees (a Masstree-style layout): each 8-byte chunk
// of a key owns one layer, and keys that share a chunk descend into a
// next-layer tree rooted at that chunk's slot. Readers and writers
// coordinate through a per-node optimistic version counter rather than
// reader/writer locks, and memory is reclaimed through epoch-based garbage
// collection once no active session can still observe a retired node or
// value.
package yakushima
