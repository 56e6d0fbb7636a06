package dto

import (
	"time"

	"github.com/samber/lo"

	domainlistings "marketplace/internal/domain/listings"
)

type Listing struct {
	ID          string    `json:"id"`
	ProviderID  string    `json:"provider_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	City        string    `json:"city,omitempty"`
	PriceCents  int64     `json:"price_cents"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ListingCatalog struct {
	Items  []Listing `json:"items"`
	Total  int       `json:"total"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}

func MapListing(l *domainlistings.Listing) Listing {
	if l == nil {
		return Listing{}
	}
	return Listing{
		ID:          string(l.ID),
		ProviderID:  string(l.Provider),
		Title:       l.Title,
		Description: l.Description,
		Category:    l.Category,
		City:        l.City,
		PriceCents:  l.PriceCents,
		IsActive:    l.IsActive,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func MapListingCatalog(res domainlistings.SearchResult, params domainlistings.SearchParams) ListingCatalog {
	return ListingCatalog{
		Items: lo.Map(res.Items, func(l *domainlistings.Listing, _ int) Listing {
			return MapListing(l)
		}),
		Total:  res.Total,
		Limit:  params.Limit,
		Offset: params.Offset,
	}
}
