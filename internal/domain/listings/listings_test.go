package listings

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewListing(t *testing.T) {
	t.Run("normalizes", func(t *testing.T) {
		req := require.New(t)
		l, err := NewListing(CreateListingParams{ID: "l1", Provider: "p1", Title: " Piano lessons ", Category: " Music ", City: " Lyon "})
		req.NoError(err)
		req.Equal("Piano lessons", l.Title)
		req.Equal("music", l.Category)
		req.Equal("Lyon", l.City)
		req.True(l.IsActive)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		req := require.New(t)
		_, err := NewListing(CreateListingParams{Provider: "p1", Title: "x"})
		req.ErrorIs(err, ErrIDRequired)
		_, err = NewListing(CreateListingParams{ID: "l1", Title: "x"})
		req.ErrorIs(err, ErrProviderRequired)
		_, err = NewListing(CreateListingParams{ID: "l1", Provider: "p1", Title: "  "})
		req.ErrorIs(err, ErrTitleRequired)
		_, err = NewListing(CreateListingParams{ID: "l1", Provider: "p1", Title: strings.Repeat("t", MaxTitleLength+1)})
		req.ErrorIs(err, ErrTitleTooLong)
		_, err = NewListing(CreateListingParams{ID: "l1", Provider: "p1", Title: "x", PriceCents: -5})
		req.ErrorIs(err, ErrPriceNegative)
	})
}

func TestListingDeactivate(t *testing.T) {
	req := require.New(t)
	l, err := NewListing(CreateListingParams{ID: "l1", Provider: "p1", Title: "Yoga"})
	req.NoError(err)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	req.ErrorIs(l.Deactivate("p2", now), ErrNotOwner)
	req.True(l.IsActive)
	req.NoError(l.Deactivate("p1", now))
	req.False(l.IsActive)
	req.NoError(l.Deactivate("p1", now.Add(time.Hour)))
	req.Equal(now, l.UpdatedAt)
}

func TestSearchParams(t *testing.T) {
	l, err := NewListing(CreateListingParams{ID: "l1", Provider: "p1", Title: "Plumbing repair", Description: "Leaks fixed fast", Category: "home", City: "Paris"})
	require.NoError(t, err)

	t.Run("normalized bounds", func(t *testing.T) {
		req := require.New(t)
		p := SearchParams{Limit: 500, Offset: -3, Category: " HOME "}.Normalized()
		req.Equal(maxSearchLimit, p.Limit)
		req.Equal(0, p.Offset)
		req.Equal("home", p.Category)
		req.Equal(defaultSearchLimit, SearchParams{}.Normalized().Limit)
	})

	cases := []struct {
		name   string
		params SearchParams
		want   bool
	}{
		{"empty filter", SearchParams{}, true},
		{"category", SearchParams{Category: "home"}, true},
		{"other category", SearchParams{Category: "music"}, false},
		{"city ignores case", SearchParams{City: "paris"}, true},
		{"query in description", SearchParams{Query: "LEAKS"}, true},
		{"query miss", SearchParams{Query: "guitar"}, false},
		{"provider", SearchParams{Provider: "p2"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.params.Normalized().Matches(l))
		})
	}

	t.Run("only active", func(t *testing.T) {
		req := require.New(t)
		inactive := *l
		inactive.IsActive = false
		req.False(SearchParams{OnlyActive: true}.Matches(&inactive))
		req.True(SearchParams{}.Matches(&inactive))
	})
}
