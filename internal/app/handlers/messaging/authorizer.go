package messaging

import (
	"context"
	"errors"
	"strings"

	"marketplace/internal/app/apperr"
	"marketplace/internal/app/middleware"
	"marketplace/internal/app/policies"
)

// PrincipalAuthorizer rejects requests made on behalf of unknown or
// deactivated accounts. Tokens outlive deactivation, so the check runs on
// every command and query.
type PrincipalAuthorizer struct {
	Identities policies.IdentityDirectory
}

func (a PrincipalAuthorizer) Authorize(ctx context.Context, message any) error {
	scoped, ok := message.(middleware.Principaled)
	if !ok {
		return nil
	}
	principal := strings.TrimSpace(scoped.Principal())
	if principal == "" {
		return apperr.Forbidden("authentication required", nil)
	}
	if a.Identities == nil {
		return apperr.Internalf("messaging: identity directory not configured")
	}
	ident, err := a.Identities.Lookup(ctx, principal)
	if err != nil {
		if errors.Is(err, policies.ErrIdentityNotFound) {
			return apperr.Forbidden("account unavailable", err)
		}
		return apperr.Internal(err)
	}
	if !ident.Active {
		return apperr.Forbidden("account disabled", nil)
	}
	return nil
}

var _ middleware.Authorizer = PrincipalAuthorizer{}
