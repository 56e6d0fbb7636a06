package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKinds(t *testing.T) {
	t.Run("is matches by kind", func(t *testing.T) {
		req := require.New(t)
		err := fmt.Errorf("handler: %w", NotFound("conversation", nil))
		req.ErrorIs(err, ErrNotFound)
		req.NotErrorIs(err, ErrForbidden)
		req.Equal(KindNotFound, KindOf(err))
	})

	t.Run("cause stays reachable", func(t *testing.T) {
		req := require.New(t)
		sentinel := errors.New("boom")
		err := Conflict("duplicate", sentinel)
		req.ErrorIs(err, sentinel)
		req.ErrorIs(err, ErrConflict)
	})

	t.Run("unknown errors become internal", func(t *testing.T) {
		req := require.New(t)
		err := From(errors.New("socket closed"))
		req.Equal(KindInternal, err.Kind)
		req.Equal("internal error", err.Message)
	})

	t.Run("field error carries the field", func(t *testing.T) {
		req := require.New(t)
		err := Field("content", "length", errors.New("too long"))
		req.Equal(KindValidation, err.Kind)
		req.Len(err.Fields, 1)
		req.Equal("content", err.Fields[0].Field)
		req.Equal("too long", err.Message)
	})

	t.Run("nil stays nil", func(t *testing.T) {
		require.Nil(t, From(nil))
		require.Equal(t, Kind(""), KindOf(nil))
	})
}
