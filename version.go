package yakushima

import (
	"runtime"
	"sync/atomic"
)

// version64 is the packed version word described in spec §3/§4.1. It lives
// embedded in every node and doubles as a spinlock (the locked bit) and an
// optimistic read-validation counter pair (vinsert_delete, vsplit).
//
// Bit layout, low to high:
//
//	0       locked
//	1       inserting_deleting (dirty)
//	2       splitting (dirty)
//	3       deleted
//	4       root
//	5       border
//	6..34   vinsert_delete (29 bits)
//	35..63  vsplit (29 bits)
//
// This mirrors the teacher's BLTRWLock/SpinLatch (latchmgr.go) generalized
// from a per-page latch-table entry to an embedded per-node word, and the
// exact field layout of _examples/original_source/include/version.h.
type version64 struct {
	w atomic.Uint64
}

const (
	vLockedBit  = uint64(1) << 0
	vInsDelBit  = uint64(1) << 1
	vSplitBit   = uint64(1) << 2
	vDeletedBit = uint64(1) << 3
	vRootBit    = uint64(1) << 4
	vBorderBit  = uint64(1) << 5

	vCounterBits  = 29
	vInsDelShift  = 6
	vSplitShift   = vInsDelShift + vCounterBits
	vCounterMask  = (uint64(1) << vCounterBits) - 1
	vDirtyBitMask = vLockedBit | vInsDelBit | vSplitBit
)

// snapshot is a stable or in-flight copy of a version64's bits at a point in
// time, as returned by stableVersion or a raw load.
type snapshot uint64

func (v snapshot) locked() bool            { return uint64(v)&vLockedBit != 0 }
func (v snapshot) insertingDeleting() bool { return uint64(v)&vInsDelBit != 0 }
func (v snapshot) splitting() bool         { return uint64(v)&vSplitBit != 0 }
func (v snapshot) deleted() bool           { return uint64(v)&vDeletedBit != 0 }
func (v snapshot) isRoot() bool            { return uint64(v)&vRootBit != 0 }
func (v snapshot) isBorder() bool          { return uint64(v)&vBorderBit != 0 }
func (v snapshot) vInsertDelete() uint64   { return (uint64(v) >> vInsDelShift) & vCounterMask }
func (v snapshot) vSplit() uint64          { return (uint64(v) >> vSplitShift) & vCounterMask }

// sameSplit reports whether v and other agree on vsplit, the condition that
// lets a reader trust the set of children/slots it already traversed.
func (v snapshot) sameSplit(other snapshot) bool { return v.vSplit() == other.vSplit() }

// sameInsertDelete reports whether v and other agree on vinsert_delete, the
// finer-grained condition for trusting a specific slot position.
func (v snapshot) sameInsertDelete(other snapshot) bool {
	return v.vInsertDelete() == other.vInsertDelete()
}

func (v *version64) raw() snapshot { return snapshot(v.w.Load()) }

// stableVersion spins until none of {locked, inserting_deleting, splitting}
// is set and returns that snapshot. Pure read, no CAS — spec §4.1.
func (v *version64) stableVersion() snapshot {
	spins := 0
	for {
		s := snapshot(v.w.Load())
		if uint64(s)&vDirtyBitMask == 0 {
			return s
		}
		spins++
		if spins > 10 {
			runtime.Gosched()
		}
	}
}

// lock CAS-spins to set the locked bit, backing off after ~10 spins, the
// same shape as the teacher's SpinLatch.SpinWriteLock.
func (v *version64) lock() {
	spins := 0
	for {
		old := v.w.Load()
		if old&vLockedBit == 0 {
			if v.w.CompareAndSwap(old, old|vLockedBit) {
				return
			}
		}
		spins++
		if spins > 10 {
			runtime.Gosched()
		}
	}
}

// tryLock attempts to set the locked bit once, without spinning.
func (v *version64) tryLock() bool {
	old := v.w.Load()
	if old&vLockedBit != 0 {
		return false
	}
	return v.w.CompareAndSwap(old, old|vLockedBit)
}

// markInsertingDeleting sets the dirty bit a lock holder uses while
// mutating slots/permutation. Must be called only while locked.
func (v *version64) markInsertingDeleting() {
	for {
		old := v.w.Load()
		if v.w.CompareAndSwap(old, old|vInsDelBit) {
			return
		}
	}
}

// markSplitting sets the dirty bit a lock holder uses while redistributing
// keys across nodes. Must be called only while locked.
func (v *version64) markSplitting() {
	for {
		old := v.w.Load()
		if v.w.CompareAndSwap(old, old|vSplitBit) {
			return
		}
	}
}

// markDeleted sets the terminal deleted bit. Must be called only while
// locked; never cleared again (spec invariant 3).
func (v *version64) markDeleted() {
	for {
		old := v.w.Load()
		if v.w.CompareAndSwap(old, old|vDeletedBit) {
			return
		}
	}
}

// setRoot sets or clears the root flag. Must be called only while locked.
func (v *version64) setRoot(isRoot bool) {
	for {
		old := v.w.Load()
		var n uint64
		if isRoot {
			n = old | vRootBit
		} else {
			n = old &^ vRootBit
		}
		if v.w.CompareAndSwap(old, n) {
			return
		}
	}
}

// setBorder initializes the border bit at construction time, before the
// node is ever published to another goroutine, so no CAS is required.
func (v *version64) setBorder(isBorder bool) {
	if isBorder {
		v.w.Store(v.w.Load() | vBorderBit)
	} else {
		v.w.Store(v.w.Load() &^ vBorderBit)
	}
}

// unlock clears the locked bit. If inserting_deleting was set it is cleared
// and vinsert_delete incremented; if splitting was set it is cleared and
// vsplit incremented. Exactly one CAS, per spec §4.1.
func (v *version64) unlock() {
	for {
		old := v.w.Load()
		n := old &^ vLockedBit
		if old&vInsDelBit != 0 {
			n = (n &^ vInsDelBit) + (uint64(1) << vInsDelShift)
		}
		if old&vSplitBit != 0 {
			n = (n &^ vSplitBit) + (uint64(1) << vSplitShift)
		}
		if v.w.CompareAndSwap(old, n) {
			return
		}
	}
}

// unlockNoBump clears only the locked bit, leaving dirty bits and counters
// untouched. For a holder that set no dirty bit the result equals unlock's;
// the package's own abandon paths call unlock.
func (v *version64) unlockNoBump() {
	for {
		old := v.w.Load()
		if v.w.CompareAndSwap(old, old&^vLockedBit) {
			return
		}
	}
}

// NodeVersion is an opaque, caller-visible record of one border's version
// word at the moment put/scan touched it (expanded-spec C.1/C.2, modeled on
// original_source/include/interface_put.h's phantom-protection out-vector).
// It exists so a concurrency-control layer built on top of this package can
// later detect whether a border it read has since split or mutated, without
// this package itself needing to know anything about that layer.
type NodeVersion struct {
	node    *node
	Version snapshot
}
