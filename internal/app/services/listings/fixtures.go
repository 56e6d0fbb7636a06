package listings

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	domainlistings "marketplace/internal/domain/listings"
)

type fixture struct {
	ID          string `json:"id"`
	ProviderID  string `json:"provider_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	City        string `json:"city"`
	PriceCents  int64  `json:"price_cents"`
	Inactive    bool   `json:"inactive"`
}

// DecodeFixtures reads a JSON array of listings for Seed.
func DecodeFixtures(r io.Reader, now time.Time) ([]*domainlistings.Listing, error) {
	var raw []fixture
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("listings fixtures: %w", err)
	}
	out := make([]*domainlistings.Listing, 0, len(raw))
	for i, f := range raw {
		l, err := domainlistings.NewListing(domainlistings.CreateListingParams{
			ID:          domainlistings.ListingID(f.ID),
			Provider:    domainlistings.ProviderID(f.ProviderID),
			Title:       f.Title,
			Description: f.Description,
			Category:    f.Category,
			City:        f.City,
			PriceCents:  f.PriceCents,
			Now:         now,
		})
		if err != nil {
			return nil, fmt.Errorf("listings fixtures: item %d: %w", i, err)
		}
		l.IsActive = !f.Inactive
		out = append(out, l)
	}
	return out, nil
}
