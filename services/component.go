package services

import (
	"time"

	"go.uber.org/zap"
)

// componentBase carries what every stateful component shares.
type componentBase struct {
	logger *zap.Logger
	now    func() time.Time
}

func newComponentBase(name string, opts []Option) componentBase {
	b := componentBase{logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(&b)
	}
	b.logger = b.logger.Named(name)
	return b
}

// Option configures a component.
type Option func(*componentBase)

func WithLogger(l *zap.Logger) Option {
	return func(b *componentBase) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(b *componentBase) {
		if now != nil {
			b.now = now
		}
	}
}

// generation orders overlapping fetches of one resource. A response is
// applied only if no later-started fetch has been applied already.
type generation struct {
	started uint64
	applied uint64
}

func (g *generation) next() uint64 {
	g.started++
	return g.started
}

// accept reports whether the fetch numbered n may apply its result, and
// records it as applied when so.
func (g *generation) accept(n uint64) bool {
	if n < g.applied {
		return false
	}
	g.applied = n
	return true
}

// current reports whether n is still the newest fetch result seen.
func (g *generation) current(n uint64) bool {
	return n >= g.applied
}

// reset drops every in-flight fetch.
func (g *generation) reset() {
	g.started++
	g.applied = g.started
}
