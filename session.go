package yakushima

import "sync"

// Token is the opaque session handle returned by Enter (spec §6). It is
// copied by value; operations validate it against the live session table
// before using it.
type Token struct {
	idx int
	gen uint64
}

// retired is one item queued for epoch-deferred reclamation (spec §3
// "Sessions" lifecycle / §5 "Memory safety"). Exactly one of value/n is set.
type retired struct {
	epoch uint64
	value *valueBox
	n     *node
}

// session is a claimed slot in the fixed-size session table (spec §5). Only
// the goroutine holding the matching Token mutates its own fields outside
// of the mutex-guarded retirement lists, which the background GC sweep also
// touches.
type session struct {
	mu         sync.Mutex
	inUse      bool
	gen        uint64
	beginEpoch uint64
	retiredList []retired
	mgr        *epochManager
}

// retireValue queues v for reclamation once no session could still observe
// it (spec §4.2 delete_at / put-update).
func (s *session) retireValue(v *valueBox) {
	if v == nil {
		return
	}
	s.mu.Lock()
	s.retiredList = append(s.retiredList, retired{epoch: s.mgr.currentEpoch(), value: v})
	s.mu.Unlock()
}

// retireNode queues a node for reclamation once no session could still
// observe it (spec §3 border/interior node lifecycle).
func (s *session) retireNode(n *node) {
	if n == nil {
		return
	}
	s.mu.Lock()
	s.retiredList = append(s.retiredList, retired{epoch: s.mgr.currentEpoch(), n: n})
	s.mu.Unlock()
}

// sweepOwn drops every retirement this session holds that is provably
// unobservable (its retire epoch is older than the current global minimum
// active begin-epoch). Called both by the background GC thread and, for a
// fast local pass, by leave (spec §5, §9 "leave triggers a local GC pass").
func (s *session) sweepOwn(safeBefore uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.retiredList[:0]
	for _, r := range s.retiredList {
		if r.epoch < safeBefore {
			reclaim(r)
			continue
		}
		kept = append(kept, r)
	}
	s.retiredList = kept
}

// reclaim drops the last live references held by a retirement record. Go's
// GC physically frees the backing memory once nothing reachable points to
// it; this function's job is to be the single place that stops the core
// from reaching it, which is the actual correctness contract spec §8's
// "memory reclamation" property is testing.
func reclaim(r retired) {
	if r.value != nil {
		r.value.data = nil
	}
	if r.n != nil {
		r.n.parent.Store(nil)
		r.n.prev.Store(nil)
		r.n.next.Store(nil)
		for i := range r.n.lov {
			r.n.lov[i] = linkOrValue{}
		}
		for i := range r.n.children {
			r.n.children[i].Store(nil)
		}
	}
}

// sessionTable is the fixed-size array of spec §5. enter scans for a free
// slot; a plain mutex guards the scan (claiming a slot is not a hot path
// the way node version words are).
type sessionTable struct {
	mu    sync.Mutex
	slots []session
	mgr   *epochManager
}

func newSessionTable(size int, mgr *epochManager) *sessionTable {
	t := &sessionTable{slots: make([]session, size), mgr: mgr}
	for i := range t.slots {
		t.slots[i].mgr = mgr
	}
	return t
}

// enter claims a free slot and records the caller's begin-epoch, spec §5.
func (t *sessionTable) enter() (Token, Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.slots {
		if !t.slots[i].inUse {
			s := &t.slots[i]
			s.inUse = true
			s.gen++
			s.beginEpoch = t.mgr.currentEpoch()
			// Deliberately not clearing retiredList: a prior occupant of this
			// slot may have left before every one of its retirements aged
			// past the safe-to-free point (forEachSlot still walks this slot
			// regardless of who currently holds it, so those entries keep
			// getting swept rather than silently discarded).
			return Token{idx: i, gen: s.gen}, OK
		}
	}
	return Token{}, WarnMaxSessions
}

// leave releases tok's slot after running a local GC pass, spec §5/§9.
func (t *sessionTable) leave(tok Token) Status {
	s, status := t.resolve(tok)
	if status != OK {
		return status
	}
	s.sweepOwn(t.mgr.minActiveBeginEpoch())
	t.mu.Lock()
	s.inUse = false
	t.mu.Unlock()
	return OK
}

// resolve validates tok against the live session table and returns the
// backing session slot.
func (t *sessionTable) resolve(tok Token) (*session, Status) {
	if tok.idx < 0 || tok.idx >= len(t.slots) {
		return nil, WarnInvalidToken
	}
	s := &t.slots[tok.idx]
	s.mu.Lock()
	ok := s.inUse && s.gen == tok.gen
	s.mu.Unlock()
	if !ok {
		return nil, WarnInvalidToken
	}
	return s, OK
}

// forEachActive calls fn for every currently claimed session slot; used by
// the epoch manager to compute the minimum active begin-epoch, which must
// only ever reflect sessions that could still be observing something.
func (t *sessionTable) forEachActive(fn func(*session)) {
	t.mu.Lock()
	active := make([]*session, 0, len(t.slots))
	for i := range t.slots {
		if t.slots[i].inUse {
			active = append(active, &t.slots[i])
		}
	}
	t.mu.Unlock()
	for _, s := range active {
		fn(s)
	}
}

// forEachSlot calls fn for every slot in the table regardless of whether it
// is currently claimed. The background GC sweep must walk every slot, not
// just active ones: a session that left before its own local sweep (leave's
// "run a local GC pass first", spec §9) fully drained its retirement list
// still owns entries nobody else will ever sweep otherwise.
func (t *sessionTable) forEachSlot(fn func(*session)) {
	for i := range t.slots {
		fn(&t.slots[i])
	}
}
