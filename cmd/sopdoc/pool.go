package main

import (
	"context"
	"fmt"

	sopdoc "github.com/alnah/go-sopdoc"
)

// poolAdapter exposes *sopdoc.ExporterPool through the Pool interface.
type poolAdapter struct {
	pool *sopdoc.ExporterPool
}

// Compile-time interface implementation check.
var _ Pool = (*poolAdapter)(nil)

// newExporterPool creates a pool of size lazily started exporters.
func newExporterPool(size int, opts ...sopdoc.ExportOption) Pool {
	return &poolAdapter{pool: sopdoc.NewExporterPool(size, opts...)}
}

func (a *poolAdapter) Acquire(ctx context.Context) (Exporter, error) {
	e, err := a.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Release returns an exporter to the pool.
// Panics if e was not acquired from this adapter (programmer error).
func (a *poolAdapter) Release(e Exporter) {
	exp, ok := e.(*sopdoc.Exporter)
	if !ok {
		panic(fmt.Sprintf("poolAdapter.Release: unexpected type %T", e))
	}
	a.pool.Release(exp)
}

func (a *poolAdapter) Size() int {
	return a.pool.Size()
}

func (a *poolAdapter) Close() error {
	return a.pool.Close()
}
