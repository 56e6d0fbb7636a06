package listings

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketplace/internal/app/apperr"
	domainuser "marketplace/internal/domain/user"
	"marketplace/internal/infra/storage/memory"
)

func newService(t *testing.T) *Service {
	t.Helper()
	users := memory.NewUserRepository()
	for _, p := range []domainuser.CreateParams{
		{ID: "prov", Email: "prov@example.com", FirstName: "Pat", LastName: "Provider", PasswordHash: "x", Role: domainuser.RoleProvider},
		{ID: "other", Email: "other@example.com", FirstName: "Oli", LastName: "Other", PasswordHash: "x", Role: domainuser.RoleProvider},
		{ID: "cust", Email: "cust@example.com", FirstName: "Cas", LastName: "Customer", PasswordHash: "x"},
	} {
		u, err := domainuser.NewUser(p)
		require.NoError(t, err)
		require.NoError(t, users.Save(context.Background(), u))
	}
	return &Service{Listings: memory.NewListingRepository(), Users: users}
}

func TestCreateListing(t *testing.T) {
	ctx := context.Background()

	t.Run("provider creates", func(t *testing.T) {
		req := require.New(t)
		svc := newService(t)
		l, err := svc.Create(ctx, CreateParams{ProviderID: "prov", Title: "Guitar lessons", Category: "Music", PriceCents: 2500})
		req.NoError(err)
		req.Equal("prov", l.ProviderID)
		req.Equal("music", l.Category)
		req.True(l.IsActive)
	})

	t.Run("individual is forbidden", func(t *testing.T) {
		svc := newService(t)
		_, err := svc.Create(ctx, CreateParams{ProviderID: "cust", Title: "Guitar lessons"})
		require.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("validation", func(t *testing.T) {
		req := require.New(t)
		svc := newService(t)
		_, err := svc.Create(ctx, CreateParams{ProviderID: "prov", Title: strings.Repeat("x", 201), PriceCents: -1})
		req.ErrorIs(err, apperr.ErrValidation)
		fields := apperr.From(err).Fields
		req.Len(fields, 2)
		req.Equal("title", fields[0].Field)
		req.Equal("price_cents", fields[1].Field)
	})
}

func TestSearchAndDeactivate(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc := newService(t)

	piano, err := svc.Create(ctx, CreateParams{ProviderID: "prov", Title: "Piano lessons", Category: "music"})
	req.NoError(err)
	_, err = svc.Create(ctx, CreateParams{ProviderID: "prov", Title: "Plumbing", Category: "home"})
	req.NoError(err)

	catalog, err := svc.Search(ctx, SearchParams{Query: "PIANO"})
	req.NoError(err)
	req.Equal(1, catalog.Total)
	req.Equal(piano.ID, catalog.Items[0].ID)

	_, err = svc.Deactivate(ctx, piano.ID, "other")
	req.ErrorIs(err, apperr.ErrForbidden)

	_, err = svc.Deactivate(ctx, piano.ID, "prov")
	req.NoError(err)

	catalog, err = svc.Search(ctx, SearchParams{Category: "music"})
	req.NoError(err)
	req.Zero(catalog.Total)

	_, err = svc.Get(ctx, piano.ID, "cust")
	req.ErrorIs(err, apperr.ErrNotFound)
	owned, err := svc.Get(ctx, piano.ID, "prov")
	req.NoError(err)
	req.False(owned.IsActive)
}

func TestDecodeFixtures(t *testing.T) {
	req := require.New(t)
	items, err := DecodeFixtures(strings.NewReader(`[
		{"id":"l-1","provider_id":"prov","title":"Dog walking","category":"Pets"},
		{"id":"l-2","provider_id":"prov","title":"Tutoring","inactive":true}
	]`), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	req.NoError(err)
	req.Len(items, 2)
	req.Equal("pets", items[0].Category)
	req.True(items[0].IsActive)
	req.False(items[1].IsActive)

	_, err = DecodeFixtures(strings.NewReader(`[{"id":"l-3","provider_id":"prov","title":""}]`), time.Now())
	req.Error(err)
}
