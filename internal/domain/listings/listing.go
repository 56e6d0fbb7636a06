package listings

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrIDRequired       = errors.New("listings: id is required")
	ErrProviderRequired = errors.New("listings: provider is required")
	ErrTitleRequired    = errors.New("listings: title is required")
	ErrTitleTooLong     = errors.New("listings: title must be at most 200 characters")
	ErrPriceNegative    = errors.New("listings: price must be non-negative")
	ErrNotFound         = errors.New("listings: not found")
	ErrNotOwner         = errors.New("listings: only the provider may change the listing")
)

const MaxTitleLength = 200

type ListingID string
type ProviderID string

// Listing is a service offered by a provider. Conversations snapshot its title.
type Listing struct {
	ID          ListingID
	Provider    ProviderID
	Title       string
	Description string
	Category    string
	City        string
	PriceCents  int64
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Repository interface {
	ByID(ctx context.Context, id ListingID) (*Listing, error)
	Save(ctx context.Context, listing *Listing) error
	Search(ctx context.Context, params SearchParams) (SearchResult, error)
}

type CreateListingParams struct {
	ID          ListingID
	Provider    ProviderID
	Title       string
	Description string
	Category    string
	City        string
	PriceCents  int64
	Now         time.Time
}

func NewListing(params CreateListingParams) (*Listing, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	if strings.TrimSpace(string(params.Provider)) == "" {
		return nil, ErrProviderRequired
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if len([]rune(title)) > MaxTitleLength {
		return nil, ErrTitleTooLong
	}
	if params.PriceCents < 0 {
		return nil, ErrPriceNegative
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	return &Listing{
		ID:          params.ID,
		Provider:    params.Provider,
		Title:       title,
		Description: strings.TrimSpace(params.Description),
		Category:    normalizeToken(params.Category),
		City:        strings.TrimSpace(params.City),
		PriceCents:  params.PriceCents,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (l *Listing) OwnedBy(provider ProviderID) bool {
	return l.Provider == provider
}

// Deactivate hides the listing from the catalog. Existing conversations keep
// their title snapshot.
func (l *Listing) Deactivate(by ProviderID, now time.Time) error {
	if !l.OwnedBy(by) {
		return ErrNotOwner
	}
	if !l.IsActive {
		return nil
	}
	l.IsActive = false
	l.UpdatedAt = now.UTC()
	return nil
}

func normalizeToken(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
