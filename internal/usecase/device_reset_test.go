package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
)

func TestDeviceResetDropsBindingAndSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, first := env.loginAs(t, "alice", domain.RoleCustomer)

	svc := &DeviceResetService{Bindings: env.bindings, Sessions: env.sessions, Audit: env.audit}
	destroyed, err := svc.Reset(ctx, "alice", "root")
	require.NoError(t, err)
	assert.Equal(t, 1, destroyed)

	_, ok, err := env.bindings.GetSecret(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = env.sessions.EnforceSessionState(ctx, first.Session.AccessToken, false)
	assert.ErrorIs(t, err, domain.ErrSessionInvalid)

	requests := env.entries(t, domain.AuditChainRequests)
	last := requests[len(requests)-1]
	assert.Equal(t, domain.ActionResetDeviceBinding, last.Field("action"))
	assert.Equal(t, "root", last.Field("user_id"))
}

func TestDeviceResetForcesRebindOnNextLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bundle, _ := env.loginAs(t, "alice", domain.RoleCustomer)

	svc := &DeviceResetService{Bindings: env.bindings, Sessions: env.sessions, Audit: env.audit}
	_, err := svc.Reset(ctx, "alice", "root")
	require.NoError(t, err)

	challenge, err := env.login.BeginLogin(ctx, BeginLoginRequest{Certificate: bundle.Plaintext})
	require.NoError(t, err)
	_, err = env.login.CompleteLogin(ctx, CompleteLoginRequest{
		Token: challenge.Token,
		Proof: env.proof(t, bundle.Certificate, bundle.DeviceSecret, challenge.Nonce),
	})
	require.ErrorIs(t, err, domain.ErrBindingMismatch)

	challenge, err = env.login.BeginLogin(ctx, BeginLoginRequest{Certificate: bundle.Plaintext, LegacyDeviceSecret: "not-the-device"})
	require.NoError(t, err)
	_, err = env.login.CompleteLogin(ctx, CompleteLoginRequest{
		Token: challenge.Token,
		Proof: env.proof(t, bundle.Certificate, "not-the-device", challenge.Nonce),
	})
	require.ErrorIs(t, err, domain.ErrBindingMismatch)
	_, ok, err := env.bindings.GetSecret(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	challenge, err = env.login.BeginLogin(ctx, BeginLoginRequest{Certificate: bundle.Plaintext, LegacyDeviceSecret: bundle.DeviceSecret})
	require.NoError(t, err)
	_, err = env.login.CompleteLogin(ctx, CompleteLoginRequest{
		Token: challenge.Token,
		Proof: env.proof(t, bundle.Certificate, bundle.DeviceSecret, challenge.Nonce),
	})
	require.NoError(t, err)
	secret, ok, err := env.bindings.GetSecret(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, bundle.DeviceSecret, secret)
}

func TestDeviceResetRequiresUser(t *testing.T) {
	env := newTestEnv(t)
	svc := &DeviceResetService{Bindings: env.bindings}
	_, err := svc.Reset(context.Background(), " ", "root")
	assert.Error(t, err)
}
