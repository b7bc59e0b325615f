package compiler

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/graphc/internal/errs"
	"github.com/born-ml/graphc/internal/graph"
	"github.com/born-ml/graphc/internal/kernels"
)

// Selector chooses and builds a kernel for every node of a program.
type Selector struct {
	catalog *kernels.Catalog
	cache   *Cache
	log     *logrus.Entry
}

// NewSelector creates a selector over catalog. Programs compiled with one selector
// share its cache.
func NewSelector(catalog *kernels.Catalog, cache *Cache, log *logrus.Entry) *Selector {
	if cache == nil {
		cache = NewCache()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Selector{catalog: catalog, cache: cache, log: log}
}

// Cache returns the kernel cache.
func (s *Selector) Cache() *Cache {
	return s.cache
}

// Select returns the kernel for n, compiling it on a cache miss. A node no
// implementation supports is a CompilationError.
func (s *Selector) Select(p *graph.Program, n *graph.Node) (graph.Kernel, error) {
	sig := kernels.SignatureOf(p, n)
	k, hit, err := s.cache.Get(sig.Key(), func() (graph.Kernel, error) {
		impl, err := s.catalog.Lookup(sig)
		if err != nil {
			return nil, err
		}
		return impl.Build(n.Op, sig)
	})
	if err != nil {
		return nil, &errs.CompilationError{Node: n.Name, Kind: string(n.Kind()), Signature: sig.String(), Err: err}
	}
	s.log.WithFields(logrus.Fields{
		"node":   n.Name,
		"kernel": k.Name(),
		"hit":    hit,
	}).Debug("kernel selected")
	return k, nil
}

// Assign selects kernels for every node of p on up to workers goroutines and binds
// them. When several nodes fail, the error of the first one in dependency order is
// returned and no kernel is bound.
func (s *Selector) Assign(ctx context.Context, p *graph.Program, workers int) error {
	nodes := p.Nodes()
	selected := make([]graph.Kernel, len(nodes))
	failures := make([]error, len(nodes))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, n := range nodes {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				failures[i] = err
				return err
			}
			k, err := s.Select(p, n)
			if err != nil {
				failures[i] = err
				return err
			}
			selected[i] = k
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, f := range failures {
			if f != nil && !errors.Is(f, context.Canceled) {
				return f
			}
		}
		return err
	}

	for i, n := range nodes {
		if err := p.SetKernel(n.ID, selected[i]); err != nil {
			return err
		}
	}
	return nil
}
