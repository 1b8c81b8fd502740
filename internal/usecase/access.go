package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
)

// AccessGuard runs the checks every protected call needs: session state,
// certificate and binding re-validation, then action authorization.
type AccessGuard struct {
	Sessions   *SessionRegistry
	Authorizer domain.Authorizer
	Policy     PolicyEngine
	Logger     *zap.Logger
}

func (g *AccessGuard) Authenticate(ctx context.Context, accessToken string, allowExpiredAccess bool) (domain.Principal, domain.Session, error) {
	if g == nil || g.Sessions == nil {
		return domain.Principal{}, domain.Session{}, errors.New("access guard requires a session registry")
	}
	if accessToken == "" {
		return domain.Principal{}, domain.Session{}, domain.ErrSessionMissing
	}
	if _, err := g.Sessions.EnforceSessionState(ctx, accessToken, allowExpiredAccess); err != nil {
		return domain.Principal{}, domain.Session{}, err
	}
	session, err := g.Sessions.ValidateSessionCertificate(ctx, accessToken)
	if err != nil {
		return domain.Principal{}, domain.Session{}, err
	}
	reauth, err := g.Sessions.SessionRequiresReauth(ctx, accessToken)
	if err != nil {
		return domain.Principal{}, domain.Session{}, err
	}
	return domain.Principal{
		Subject:            session.User.ID,
		Name:               session.User.Name,
		Role:               session.Certificate.Role,
		CertificateID:      session.Certificate.CertificateID,
		Actions:            session.Certificate.ActionList(),
		SessionFingerprint: TokenFingerprint(accessToken),
		RequiresReauth:     reauth,
	}, session, nil
}

func (g *AccessGuard) Authorize(ctx context.Context, principal domain.Principal, action string) error {
	if g == nil {
		return errors.New("access guard is nil")
	}
	if g.Authorizer != nil {
		if err := g.Authorizer.Require(principal, action); err != nil {
			return err
		}
	} else if !containsAction(principal.Actions, action) {
		return domain.ErrActionForbidden
	}
	if g.Policy == nil {
		if principal.RequiresReauth && isSensitive(action) {
			return domain.ErrReauthRequired
		}
		return nil
	}
	eval, err := g.Policy.Evaluate(ctx, domain.ActionPolicyInput{
		Action:           action,
		Role:             string(principal.Role),
		AllowedActions:   principal.Actions,
		SensitiveActions: domain.SensitiveActions(),
		RequiresReauth:   principal.RequiresReauth,
	})
	if err != nil {
		return domain.NewFault("evaluate action policy", err)
	}
	if eval.Result.Allow {
		return nil
	}
	g.logger().Info("action denied by policy",
		zap.String("user_id", principal.Subject),
		zap.String("action", action),
		zap.String("bundle_hash", eval.BundleHash),
	)
	if eval.Result.Denied(domain.PolicyDenyReauthRequired) && !eval.Result.Denied(domain.PolicyDenyActionNotAllowed) {
		return domain.ErrReauthRequired
	}
	return domain.ErrActionForbidden
}

func isSensitive(action string) bool {
	return containsAction(domain.SensitiveActions(), action)
}

func containsAction(actions []string, want string) bool {
	for _, a := range actions {
		if a == want {
			return true
		}
	}
	return false
}

func (g *AccessGuard) logger() *zap.Logger {
	if g.Logger == nil {
		return zap.NewNop()
	}
	return g.Logger
}
