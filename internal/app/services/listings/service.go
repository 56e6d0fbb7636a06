package listings

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"marketplace/internal/app/apperr"
	"marketplace/internal/app/dto"
	"marketplace/internal/app/validation"
	domainlistings "marketplace/internal/domain/listings"
	domainuser "marketplace/internal/domain/user"
)

// Service manages the provider catalog that conversations may reference.
type Service struct {
	Listings domainlistings.Repository
	Users    domainuser.Repository
	Logger   *slog.Logger
	Now      func() time.Time
}

type CreateParams struct {
	ProviderID  string `json:"-" validate:"required"`
	Title       string `json:"title" validate:"notblank,max=200"`
	Description string `json:"description" validate:"max=5000"`
	Category    string `json:"category" validate:"max=64"`
	City        string `json:"city" validate:"max=120"`
	PriceCents  int64  `json:"price_cents" validate:"gte=0"`
}

type SearchParams struct {
	Category string `form:"category"`
	City     string `form:"city"`
	Query    string `form:"q"`
	Provider string `form:"provider_id"`
	Limit    int    `form:"limit"`
	Offset   int    `form:"offset"`
}

func (s *Service) Create(ctx context.Context, params CreateParams) (dto.Listing, error) {
	if err := validation.Struct(params); err != nil {
		return dto.Listing{}, err
	}
	provider, err := s.Users.ByID(ctx, domainuser.ID(params.ProviderID))
	if err != nil {
		if errors.Is(err, domainuser.ErrNotFound) {
			return dto.Listing{}, apperr.Forbidden("only providers may publish listings", err)
		}
		return dto.Listing{}, apperr.Internal(err)
	}
	if !provider.IsProvider() || !provider.IsActive {
		return dto.Listing{}, apperr.Forbidden("only providers may publish listings", nil)
	}
	listing, err := domainlistings.NewListing(domainlistings.CreateListingParams{
		ID:          domainlistings.ListingID(uuid.NewString()),
		Provider:    domainlistings.ProviderID(provider.ID),
		Title:       params.Title,
		Description: params.Description,
		Category:    params.Category,
		City:        params.City,
		PriceCents:  params.PriceCents,
		Now:         s.now(),
	})
	if err != nil {
		return dto.Listing{}, translate(err)
	}
	if err := s.Listings.Save(ctx, listing); err != nil {
		return dto.Listing{}, apperr.Internal(err)
	}
	if s.Logger != nil {
		s.Logger.InfoContext(ctx, "listing created", "listing_id", listing.ID, "provider_id", listing.Provider)
	}
	return dto.MapListing(listing), nil
}

// Get returns an active listing. Owners also see their deactivated listings.
func (s *Service) Get(ctx context.Context, id, viewer string) (dto.Listing, error) {
	listing, err := s.Listings.ByID(ctx, domainlistings.ListingID(id))
	if err != nil {
		return dto.Listing{}, translate(err)
	}
	if !listing.IsActive && !listing.OwnedBy(domainlistings.ProviderID(viewer)) {
		return dto.Listing{}, apperr.NotFound("listing", domainlistings.ErrNotFound)
	}
	return dto.MapListing(listing), nil
}

func (s *Service) Search(ctx context.Context, params SearchParams) (dto.ListingCatalog, error) {
	query := domainlistings.SearchParams{
		Provider:   domainlistings.ProviderID(params.Provider),
		Category:   params.Category,
		City:       params.City,
		Query:      params.Query,
		OnlyActive: true,
		Limit:      params.Limit,
		Offset:     params.Offset,
	}.Normalized()
	res, err := s.Listings.Search(ctx, query)
	if err != nil {
		return dto.ListingCatalog{}, apperr.Internal(err)
	}
	return dto.MapListingCatalog(res, query), nil
}

func (s *Service) Deactivate(ctx context.Context, id, requester string) (dto.Listing, error) {
	listing, err := s.Listings.ByID(ctx, domainlistings.ListingID(id))
	if err != nil {
		return dto.Listing{}, translate(err)
	}
	if err := listing.Deactivate(domainlistings.ProviderID(requester), s.now()); err != nil {
		return dto.Listing{}, translate(err)
	}
	if err := s.Listings.Save(ctx, listing); err != nil {
		return dto.Listing{}, apperr.Internal(err)
	}
	if s.Logger != nil {
		s.Logger.InfoContext(ctx, "listing deactivated", "listing_id", listing.ID)
	}
	return dto.MapListing(listing), nil
}

// Seed stores listings as-is; used for fixtures at startup.
func (s *Service) Seed(ctx context.Context, items []*domainlistings.Listing) error {
	for _, l := range items {
		if err := s.Listings.Save(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func translate(err error) error {
	switch {
	case errors.Is(err, domainlistings.ErrNotFound):
		return apperr.NotFound("listing", err)
	case errors.Is(err, domainlistings.ErrNotOwner):
		return apperr.Forbidden("only the provider may change the listing", err)
	case errors.Is(err, domainlistings.ErrTitleRequired):
		return apperr.Field("title", "required", err)
	case errors.Is(err, domainlistings.ErrTitleTooLong):
		return apperr.Field("title", "max", err)
	case errors.Is(err, domainlistings.ErrPriceNegative):
		return apperr.Field("price_cents", "gte", err)
	default:
		return apperr.From(err)
	}
}
