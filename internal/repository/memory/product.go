// Package memory provides an in-process product repository for single-node
// deployments and tests.
package memory

import (
	"context"
	"sync"

	"github.com/ignite/smart-affiliate/internal/discovery"
	"github.com/ignite/smart-affiliate/internal/opportunity"
)

var _ discovery.Repository = (*ProductRepo)(nil)

// ProductRepo stores deep copies of products keyed by dedupe key.
type ProductRepo struct {
	mu       sync.RWMutex
	products map[string]*opportunity.DiscoveredProduct
}

// NewProductRepo creates an empty repository.
func NewProductRepo() *ProductRepo {
	return &ProductRepo{products: make(map[string]*opportunity.DiscoveredProduct)}
}

func (r *ProductRepo) Get(_ context.Context, key string) (*opportunity.DiscoveredProduct, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[key]
	if !ok {
		return nil, opportunity.ErrProductNotFound
	}
	return p.Clone(), nil
}

func (r *ProductRepo) Put(_ context.Context, p *opportunity.DiscoveredProduct) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.Key()] = p.Clone()
	return nil
}

func (r *ProductRepo) GetByID(_ context.Context, id string) (*opportunity.DiscoveredProduct, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.products {
		if p.ID == id {
			return p.Clone(), nil
		}
	}
	return nil, opportunity.ErrProductNotFound
}

func (r *ProductRepo) List(_ context.Context, f discovery.ListFilter) ([]*opportunity.DiscoveredProduct, error) {
	r.mu.RLock()
	all := make([]*opportunity.DiscoveredProduct, 0, len(r.products))
	for _, p := range r.products {
		all = append(all, p.Clone())
	}
	r.mu.RUnlock()
	return f.Apply(opportunity.Rank(all)), nil
}
