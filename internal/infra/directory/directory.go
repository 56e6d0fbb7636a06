// Package directory adapts the account and catalog repositories to the
// lookup ports messaging depends on.
package directory

import (
	"context"
	"errors"

	"marketplace/internal/app/policies"
	domainlistings "marketplace/internal/domain/listings"
	domainuser "marketplace/internal/domain/user"
)

type Identities struct {
	Users domainuser.Repository
}

func (d Identities) Lookup(ctx context.Context, userID string) (policies.Identity, error) {
	if userID == "" {
		return policies.Identity{}, policies.ErrIdentityNotFound
	}
	u, err := d.Users.ByID(ctx, domainuser.ID(userID))
	if err != nil {
		if errors.Is(err, domainuser.ErrNotFound) {
			return policies.Identity{}, policies.ErrIdentityNotFound
		}
		return policies.Identity{}, err
	}
	return policies.Identity{
		ID:        string(u.ID),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Avatar:    u.Avatar,
		Active:    u.IsActive,
	}, nil
}

type Listings struct {
	Repo domainlistings.Repository
}

func (d Listings) Listing(ctx context.Context, listingID string) (policies.ListingRef, error) {
	if listingID == "" {
		return policies.ListingRef{}, policies.ErrListingNotFound
	}
	l, err := d.Repo.ByID(ctx, domainlistings.ListingID(listingID))
	if err != nil {
		if errors.Is(err, domainlistings.ErrNotFound) {
			return policies.ListingRef{}, policies.ErrListingNotFound
		}
		return policies.ListingRef{}, err
	}
	return policies.ListingRef{ID: string(l.ID), Title: l.Title, Active: l.IsActive}, nil
}

var (
	_ policies.IdentityDirectory = Identities{}
	_ policies.ListingDirectory  = Listings{}
)
