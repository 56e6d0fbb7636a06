package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	req := require.New(t)
	h := BcryptHasher{Cost: bcrypt.MinCost}

	hash, err := h.Hash("correct horse")
	req.NoError(err)
	req.NotEqual("correct horse", hash)
	req.NoError(h.Compare(hash, "correct horse"))
	req.Error(h.Compare(hash, "wrong horse"))
}

func TestJWTIssuer(t *testing.T) {
	t.Run("secret is mandatory", func(t *testing.T) {
		_, err := NewJWTIssuer("  ", time.Hour)
		require.ErrorIs(t, err, ErrSecretRequired)
	})

	t.Run("round trip", func(t *testing.T) {
		req := require.New(t)
		issuer, err := NewJWTIssuer("s3cret", time.Hour)
		req.NoError(err)

		token, exp, err := issuer.Issue("u-1", "provider")
		req.NoError(err)
		req.WithinDuration(time.Now().Add(time.Hour), exp, 5*time.Second)

		claims, err := issuer.Verify(token)
		req.NoError(err)
		req.Equal("u-1", claims.UserID)
		req.Equal("provider", claims.Role)
	})

	t.Run("other secret is rejected", func(t *testing.T) {
		req := require.New(t)
		a, _ := NewJWTIssuer("secret-a", time.Hour)
		b, _ := NewJWTIssuer("secret-b", time.Hour)
		token, _, err := a.Issue("u-1", "individual")
		req.NoError(err)
		_, err = b.Verify(token)
		req.ErrorIs(err, ErrInvalidToken)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		req := require.New(t)
		issuer, _ := NewJWTIssuer("s3cret", time.Minute)
		issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
		token, _, err := issuer.Issue("u-1", "individual")
		req.NoError(err)
		issuer.now = time.Now
		_, err = issuer.Verify(token)
		req.ErrorIs(err, ErrInvalidToken)
	})

	t.Run("none algorithm is rejected", func(t *testing.T) {
		req := require.New(t)
		issuer, _ := NewJWTIssuer("s3cret", time.Hour)
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
			UserID: "u-1",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    defaultIssuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		req.NoError(err)
		_, err = issuer.Verify(token)
		req.ErrorIs(err, ErrInvalidToken)
	})
}
