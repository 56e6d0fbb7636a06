package memory

import (
	"context"
	"sort"
	"sync"

	domainlistings "marketplace/internal/domain/listings"
)

// ListingRepository keeps the service catalog in memory.
type ListingRepository struct {
	mu    sync.RWMutex
	items map[domainlistings.ListingID]*domainlistings.Listing
}

// NewListingRepository builds an empty repository.
func NewListingRepository() *ListingRepository {
	return &ListingRepository{
		items: make(map[domainlistings.ListingID]*domainlistings.Listing),
	}
}

// ByID returns a copy of the listing or domainlistings.ErrNotFound.
func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	listing, ok := r.items[id]
	if !ok {
		return nil, domainlistings.ErrNotFound
	}
	copyListing := *listing
	return &copyListing, nil
}

// Save stores/updates a listing entry.
func (r *ListingRepository) Save(ctx context.Context, listing *domainlistings.Listing) error {
	if listing == nil || listing.ID == "" {
		return domainlistings.ErrIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copyListing := *listing
	r.items[listing.ID] = &copyListing
	return nil
}

// Search returns listings that satisfy the filters, newest first.
func (r *ListingRepository) Search(ctx context.Context, params domainlistings.SearchParams) (domainlistings.SearchResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	opts := params.Normalized()
	matches := make([]*domainlistings.Listing, 0, len(r.items))
	for _, listing := range r.items {
		select {
		case <-ctx.Done():
			return domainlistings.SearchResult{}, ctx.Err()
		default:
		}
		if !opts.Matches(listing) {
			continue
		}
		copyListing := *listing
		matches = append(matches, &copyListing)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	total := len(matches)
	if opts.Offset >= total {
		return domainlistings.SearchResult{Items: []*domainlistings.Listing{}, Total: total}, nil
	}
	end := opts.Offset + opts.Limit
	if end > total {
		end = total
	}
	return domainlistings.SearchResult{Items: matches[opts.Offset:end], Total: total}, nil
}

var _ domainlistings.Repository = (*ListingRepository)(nil)
