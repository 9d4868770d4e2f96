package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/mgastron/mvgtms-sub000/internal/domain/pricing"
)

// CachedPriceListRepository serves price lists from memory for ttl. Pricing
// runs once per ingested order, and lists change rarely.
type CachedPriceListRepository struct {
	next  pricing.PriceListRepository
	store *gocache.Cache
}

// NewCachedPriceListRepository wraps next
func NewCachedPriceListRepository(next pricing.PriceListRepository, ttl time.Duration) *CachedPriceListRepository {
	return &CachedPriceListRepository{
		next:  next,
		store: gocache.New(ttl, 2*ttl),
	}
}

// FindByID returns the cached list or loads it. Misses are not cached.
func (r *CachedPriceListRepository) FindByID(ctx context.Context, id uuid.UUID) (*pricing.PriceList, error) {
	if v, ok := r.store.Get(id.String()); ok {
		return v.(*pricing.PriceList), nil
	}
	list, err := r.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store.SetDefault(id.String(), list)
	return list, nil
}

// Save writes through and drops the cached copy
func (r *CachedPriceListRepository) Save(ctx context.Context, list *pricing.PriceList) error {
	if err := r.next.Save(ctx, list); err != nil {
		return err
	}
	r.store.Delete(list.ID.String())
	return nil
}

var _ pricing.PriceListRepository = (*CachedPriceListRepository)(nil)
