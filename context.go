package yakushima

import (
	"io"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// defaultMaxSessions is spec §5/§6's MAX_SESSIONS.
const defaultMaxSessions = 300

// Context is the top-level handle onto a running index: the session table,
// epoch manager, metrics, and storage registry. Callers construct one with
// NewContext and use it for the lifetime of the process (or test), rather
// than reaching through a package-level singleton — design note §9 calls
// out an explicit Context as preferable to hidden global state.
type Context struct {
	sessions *sessionTable
	epoch    *epochManager
	metrics  *metrics
	logger   *log.Logger

	registry *Tree
	store    *storageTable
}

// config holds the options NewContext assembles before building a Context.
type config struct {
	epochMillis int
	maxSessions int
	logger      *log.Logger
	registerer  prometheus.Registerer
}

// Option configures NewContext, the functional-options convention the
// teacher's own config surface follows.
type Option func(*config)

// WithEpochMillis overrides the epoch tick/GC sweep interval (default 40ms).
func WithEpochMillis(ms int) Option {
	return func(c *config) { c.epochMillis = ms }
}

// WithMaxSessions overrides the session table size (default 300).
func WithMaxSessions(n int) Option {
	return func(c *config) { c.maxSessions = n }
}

// WithLogger overrides the logger the epoch GC sweep reports through.
func WithLogger(l *log.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithRegisterer registers the prometheus metrics with a caller-supplied
// registry. Without it the metrics are created but not registered anywhere,
// so several Contexts can coexist in one process. Registering two Contexts
// with the same registry fails on the duplicate metric names; give each
// its own registry (e.g. a fresh prometheus.NewRegistry()).
func WithRegisterer(r prometheus.Registerer) Option {
	return func(c *config) { c.registerer = r }
}

// NewContext builds a Context and starts its background epoch-tick and
// GC-sweep goroutines. Callers must call Close when done.
func NewContext(opts ...Option) *Context {
	cfg := config{
		epochMillis: defaultEpochMillis,
		maxSessions: defaultMaxSessions,
		logger:      log.New(io.Discard, "", 0),
	}
	for _, o := range opts {
		o(&cfg)
	}

	m := newMetrics(cfg.registerer)
	em := newEpochManager(time.Duration(cfg.epochMillis)*time.Millisecond, cfg.logger, m)
	st := newSessionTable(cfg.maxSessions, em)
	em.attachTable(st)
	em.start()

	c := &Context{
		sessions: st,
		epoch:    em,
		metrics:  m,
		logger:   cfg.logger,
		registry: newTree(),
	}
	c.store = newStorageTable(c)
	return c
}

// Close stops the background goroutines. The Context must not be used
// afterward.
func (c *Context) Close() {
	c.epoch.stop()
}

// Enter claims a session slot (spec §5/§6). Every subsequent operation with
// this Token must be matched by a later Leave.
func (c *Context) Enter() (Token, Status) {
	tok, status := c.sessions.enter()
	if status == OK && c.metrics != nil {
		c.metrics.activeSessions.Inc()
	}
	return tok, status
}

// Leave releases a session slot after running a local GC pass (spec §5/§9).
func (c *Context) Leave(tok Token) Status {
	status := c.sessions.leave(tok)
	if status == OK && c.metrics != nil {
		c.metrics.activeSessions.Dec()
	}
	return status
}

// withSession resolves tok and runs fn with the backing session, the
// pattern every public per-session operation (Put/Remove; Get and Scan take
// no Token) funnels through so token validation lives in one place.
func (c *Context) withSession(tok Token, fn func(s *session) Status) Status {
	s, status := c.sessions.resolve(tok)
	if status != OK {
		return status
	}
	return fn(s)
}
