package sopdoc

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// Pool sizing constants.
const (
	// MinPoolSize ensures at least one exporter is available.
	MinPoolSize = 1

	// MaxPoolSize caps browser instances to limit memory (~200MB each).
	MaxPoolSize = 8

	// cpuDivisor leaves headroom for Chrome child processes.
	cpuDivisor = 2
)

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("exporter pool closed")

// ExporterPool shares up to size Exporters, each with its own browser,
// between concurrent exports. Exporters are created lazily on first use.
// A single export still runs sequentially inside its exporter.
type ExporterPool struct {
	size    int
	factory func() (*Exporter, error)

	mu        sync.Mutex
	exporters []*Exporter
	idle      chan *Exporter
	created   int
	closed    bool
	done      chan struct{}
}

// NewExporterPool creates a pool of n exporters built with opts.
func NewExporterPool(n int, opts ...ExportOption) *ExporterPool {
	return newExporterPool(n, func() (*Exporter, error) { return NewExporter(opts...) })
}

func newExporterPool(n int, factory func() (*Exporter, error)) *ExporterPool {
	n = max(n, MinPoolSize)
	return &ExporterPool{
		size:      n,
		factory:   factory,
		exporters: make([]*Exporter, 0, n),
		idle:      make(chan *Exporter, n),
		done:      make(chan struct{}),
	}
}

// Acquire returns an idle exporter, creating one while under capacity.
// Blocks until one is released, ctx is done or the pool is closed.
func (p *ExporterPool) Acquire(ctx context.Context) (*Exporter, error) {
	select {
	case e := <-p.idle:
		return e, nil
	default:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if p.created < p.size {
		p.created++
		p.mu.Unlock()

		e, err := p.factory()
		p.mu.Lock()
		defer p.mu.Unlock()
		if err != nil {
			p.created--
			return nil, err
		}
		if p.closed {
			_ = e.Close()
			return nil, ErrPoolClosed
		}
		p.exporters = append(p.exporters, e)
		return e, nil
	}
	p.mu.Unlock()

	select {
	case e := <-p.idle:
		return e, nil
	case <-p.done:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns e to the pool. Releasing after Close is a no-op.
func (p *ExporterPool) Release(e *Exporter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	// idle has capacity size, so this never blocks.
	p.idle <- e
}

// Export runs doc through a pooled exporter.
func (p *ExporterPool) Export(ctx context.Context, doc Document) (*Artifact, error) {
	e, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(e)
	return e.Export(ctx, doc)
}

// Close shuts down every exporter created so far.
func (p *ExporterPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.done)
	exporters := p.exporters
	p.exporters = nil
	p.mu.Unlock()

	var errs []error
	for _, e := range exporters {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Size returns the pool capacity.
func (p *ExporterPool) Size() int {
	return p.size
}

// ResolvePoolSize picks the pool size: explicit workers, otherwise half of
// GOMAXPROCS (container-aware via automaxprocs) within [MinPoolSize, MaxPoolSize].
func ResolvePoolSize(workers int) int {
	if workers > 0 {
		return workers
	}
	n := runtime.GOMAXPROCS(0) / cpuDivisor
	return min(max(n, MinPoolSize), MaxPoolSize)
}
