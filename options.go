package declsite

import (
	"github.com/go-kit/log"

	"github.com/grafana/declsite/symtab"
)

// Option configures a scan.
type Option func(*options)

type options struct {
	logger  log.Logger
	metrics *symtab.Metrics
	cache   *symtab.IndexCache
}

// WithLogger routes the engine's debug and error logging to l. The
// default discards everything.
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics shares one Metrics instance across scans. Create it once
// with symtab.NewMetrics and a registerer; passing a fresh registered
// instance per scan would panic on duplicate registration.
func WithMetrics(m *symtab.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithCache reuses parsed debug metadata across scans; see NewCache.
func WithCache(c *Cache) Option {
	return func(o *options) {
		o.cache = c
	}
}

func newScanner(opts []Option) *symtab.Scanner {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return symtab.NewScanner(symtab.ScannerOptions{
		Logger:  o.logger,
		Metrics: o.metrics,
		Cache:   o.cache,
	})
}
