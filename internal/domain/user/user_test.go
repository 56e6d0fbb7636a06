package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	valid := CreateParams{ID: "u1", Email: " Ann@Example.COM ", FirstName: " Ann ", LastName: "Lee", PasswordHash: "hash"}

	t.Run("normalizes fields", func(t *testing.T) {
		req := require.New(t)
		u, err := NewUser(valid)
		req.NoError(err)
		req.Equal("ann@example.com", u.Email)
		req.Equal("Ann Lee", u.DisplayName())
		req.Equal(RoleIndividual, u.Role)
		req.True(u.IsActive)
		req.False(u.IsProvider())
	})

	cases := []struct {
		name   string
		mutate func(*CreateParams)
		err    error
	}{
		{"missing id", func(p *CreateParams) { p.ID = " " }, ErrIDRequired},
		{"missing email", func(p *CreateParams) { p.Email = "" }, ErrEmailRequired},
		{"missing hash", func(p *CreateParams) { p.PasswordHash = "" }, ErrPasswordHashMissing},
		{"missing name", func(p *CreateParams) { p.LastName = "" }, ErrNameRequired},
		{"bad role", func(p *CreateParams) { p.Role = "admin" }, ErrInvalidRole},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := valid
			tc.mutate(&p)
			_, err := NewUser(p)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestUserLifecycle(t *testing.T) {
	req := require.New(t)
	u, err := NewUser(CreateParams{ID: "u1", Email: "p@example.com", FirstName: "P", LastName: "Q", PasswordHash: "h", Role: "Provider"})
	req.NoError(err)
	req.True(u.IsProvider())

	later := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	u.Deactivate(later)
	req.False(u.IsActive)
	req.Equal(later, u.UpdatedAt)

	req.ErrorIs(u.SetPasswordHash(" ", later), ErrPasswordHashMissing)
	req.NoError(u.SetPasswordHash("new", later))
	req.Equal("new", u.PasswordHash)
}
