package policies

import (
	"context"
	"errors"
	"strings"
)

//go:generate mockgen -source=identity_port.go -destination=../../mocks/mock_identity_port.go -package=mocks

var ErrIdentityNotFound = errors.New("policies: identity not found")

// Identity is the public part of an account as seen by messaging.
type Identity struct {
	ID        string
	FirstName string
	LastName  string
	Avatar    string
	Active    bool
}

func (i Identity) DisplayName() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

// IdentityDirectory resolves user ids. Lookup returns ErrIdentityNotFound for
// unknown ids.
type IdentityDirectory interface {
	Lookup(ctx context.Context, userID string) (Identity, error)
}
