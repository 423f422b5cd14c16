package service

import (
	"context"
	"sync"

	"bookable/internal/config"
	"bookable/internal/models"
)

// ResourceSource supplies resource snapshots to the service.
type ResourceSource interface {
	Resource(ctx context.Context, id string) (models.Resource, error)
	Resources(ctx context.Context) ([]models.Resource, error)
}

// CatalogSource serves the latest catalog and lets a watcher swap it atomically.
type CatalogSource struct {
	mu      sync.RWMutex
	catalog *config.Catalog
	onSwap  func(*config.Catalog)
}

// NewCatalogSource returns an empty source. onSwap, when set, runs after every swap.
func NewCatalogSource(onSwap func(*config.Catalog)) *CatalogSource {
	return &CatalogSource{onSwap: onSwap}
}

// Swap replaces the active catalog.
func (s *CatalogSource) Swap(c *config.Catalog) {
	s.mu.Lock()
	s.catalog = c
	s.mu.Unlock()

	if s.onSwap != nil {
		s.onSwap(c)
	}
}

// SwapResources validates resources into a new catalog and swaps it in.
func (s *CatalogSource) SwapResources(resources []models.Resource) error {
	c, err := config.NewCatalog(resources)
	if err != nil {
		return err
	}
	s.Swap(c)
	return nil
}

// Loaded reports whether a catalog has been swapped in.
func (s *CatalogSource) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog != nil
}

// Revision returns the revision of the active catalog.
func (s *CatalogSource) Revision() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.catalog == nil {
		return ""
	}
	return s.catalog.Revision
}

func (s *CatalogSource) Resource(_ context.Context, id string) (models.Resource, error) {
	s.mu.RLock()
	c := s.catalog
	s.mu.RUnlock()

	if c == nil {
		return models.Resource{}, ErrNotLoaded
	}
	res, ok := c.Resource(id)
	if !ok {
		return models.Resource{}, ErrResourceNotFound
	}
	return res, nil
}

func (s *CatalogSource) Resources(_ context.Context) ([]models.Resource, error) {
	s.mu.RLock()
	c := s.catalog
	s.mu.RUnlock()

	if c == nil {
		return nil, ErrNotLoaded
	}
	return c.Resources(), nil
}
