package rbac

import (
	"errors"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
)

type AuthzError struct {
	Code string
	Err  error
}

func (e *AuthzError) Error() string {
	if e == nil {
		return ""
	}
	return e.Code
}

func (e *AuthzError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Authorizer checks an action against both the verified certificate's
// allowed_actions and the static role table.
type Authorizer struct{}

func NewAuthorizer() *Authorizer {
	return &Authorizer{}
}

func (a *Authorizer) Require(principal domain.Principal, action string) error {
	if principal.Subject == "" {
		return domain.ErrSessionMissing
	}
	if action == "" {
		return nil
	}
	if !principal.Role.Valid() {
		return &AuthzError{Code: "UNKNOWN_ROLE", Err: domain.ErrActionForbidden}
	}
	if !contains(principal.Actions, action) {
		return &AuthzError{Code: "MISSING_ACTION", Err: domain.ErrActionForbidden}
	}
	if !contains(principal.Role.Actions(), action) {
		return &AuthzError{Code: "ROLE_MISMATCH", Err: domain.ErrActionForbidden}
	}
	return nil
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func IsAuthzError(err error) (*AuthzError, bool) {
	var authz *AuthzError
	if errors.As(err, &authz) {
		return authz, true
	}
	return nil, false
}
