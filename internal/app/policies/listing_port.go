package policies

import (
	"context"
	"errors"
)

//go:generate mockgen -source=listing_port.go -destination=../../mocks/mock_listing_port.go -package=mocks

var ErrListingNotFound = errors.New("policies: listing not found")

type ListingRef struct {
	ID     string
	Title  string
	Active bool
}

// ListingDirectory resolves listing ids to the snapshot a conversation keeps.
type ListingDirectory interface {
	Listing(ctx context.Context, listingID string) (ListingRef, error)
}
