package yakushima

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// epochManager runs the global epoch clock and the background GC sweep,
// grounded on original_source/epoch.h + original_source/garbage_collection.h:
// a single ticking counter advances on a fixed interval, and a sweeper walks
// the retirement list of every session slot (claimed or not), freeing
// anything retired before the oldest still-active session's begin-epoch.
type epochManager struct {
	global atomic.Uint64
	table  *sessionTable

	tickInterval time.Duration
	logger       *log.Logger
	metrics      *metrics

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// defaultEpochMillis is spec §5/§9's EPOCH_MS.
const defaultEpochMillis = 40

func newEpochManager(tickInterval time.Duration, logger *log.Logger, m *metrics) *epochManager {
	if tickInterval <= 0 {
		tickInterval = defaultEpochMillis * time.Millisecond
	}
	return &epochManager{
		tickInterval: tickInterval,
		logger:       logger,
		metrics:      m,
		stopCh:       make(chan struct{}),
	}
}

// attachTable wires the session table the manager walks for min-epoch
// computation and GC sweeps. Must be called before start (context.go's
// NewContext does this once, at construction time, to avoid a nil-table race).
func (m *epochManager) attachTable(t *sessionTable) {
	m.table = t
}

func (m *epochManager) currentEpoch() uint64 {
	return m.global.Load()
}

// minActiveBeginEpoch returns the oldest begin-epoch among currently active
// sessions, or the current global epoch if none are active (nothing is
// pinned, so everything retired so far is safe to free).
func (m *epochManager) minActiveBeginEpoch() uint64 {
	min := m.global.Load()
	found := false
	m.table.forEachActive(func(s *session) {
		s.mu.Lock()
		be := s.beginEpoch
		s.mu.Unlock()
		if !found || be < min {
			min = be
			found = true
		}
	})
	return min
}

// start launches the epoch-tick goroutine and the GC-sweep goroutine (spec
// §5/§9's background threads). NewContext calls it once; each further call
// starts another pair of goroutines.
func (m *epochManager) start() {
	m.wg.Add(2)
	go m.tickLoop()
	go m.sweepLoop()
}

// stop halts both background goroutines and waits for them to exit.
func (m *epochManager) stop() {
	m.once.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

func (m *epochManager) tickLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			n := m.global.Add(1)
			if m.metrics != nil {
				m.metrics.globalEpoch.Set(float64(n))
			}
		}
	}
}

// sweepLoop runs one GC pass per epoch tick, reclaiming every session's
// retirements that predate the current minimum active begin-epoch.
func (m *epochManager) sweepLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.sweepOnce()
		}
	}
}

func (m *epochManager) sweepOnce() {
	safeBefore := m.minActiveBeginEpoch()
	swept := 0
	m.table.forEachSlot(func(s *session) {
		before := len(s.retiredList)
		s.sweepOwn(safeBefore)
		swept += before - len(s.retiredList)
	})
	if swept > 0 && m.logger != nil {
		m.logger.Printf("yakushima: epoch gc reclaimed %d item(s) before epoch %d", swept, safeBefore)
	}
	if m.metrics != nil && swept > 0 {
		m.metrics.gcReclaimed.Add(float64(swept))
	}
}
