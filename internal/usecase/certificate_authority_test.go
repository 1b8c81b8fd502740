package usecase

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
)

func TestCertificateAuthority_IssueThenVerify(t *testing.T) {
	env := newTestEnv(t)
	bundle := env.issue(t, "alice", domain.RoleCustomer, true)

	cert, err := env.authority.VerifyPlaintext(context.Background(), bundle.Plaintext)
	require.NoError(t, err)
	assert.Equal(t, bundle.CertHash, cert.CertHash)
	assert.Equal(t, 1, cert.Generation)
	assert.True(t, strings.HasSuffix(cert.LineageID, ":1"))
	assert.Equal(t, env.authority.DeriveDeviceID(bundle.DeviceSecret), cert.DeviceID)
	assert.Equal(t, domain.ExpectedDescriptors(), cert.Descriptors)

	secret, ok, err := env.bindings.GetSecret(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, bundle.DeviceSecret, secret)

	reqs := env.entries(t, domain.AuditChainRequests)
	require.Len(t, reqs, 1)
	assert.Equal(t, domain.ActionIssueCertificate, reqs[0].Field("action"))
}

func TestCertificateAuthority_VerifyWithoutPQKey(t *testing.T) {
	env := newTestEnv(t)
	bundle := env.issue(t, "bob", domain.RoleManager, false)
	assert.False(t, bundle.Certificate.HasPQKey())

	_, err := env.authority.VerifyPlaintext(context.Background(), bundle.Plaintext)
	require.NoError(t, err)
}

func TestCertificateAuthority_TamperedFieldFailsHash(t *testing.T) {
	env := newTestEnv(t)
	bundle := env.issue(t, "alice", domain.RoleCustomer, true)

	cert := bundle.Certificate
	cert.Owner = "Mallory"
	_, err := env.authority.Verify(context.Background(), cert)
	require.ErrorIs(t, err, domain.ErrCertificateHashMismatch)

	cert = bundle.Certificate
	cert.Role = domain.RoleAdmin
	_, err = env.authority.Verify(context.Background(), cert)
	require.ErrorIs(t, err, domain.ErrCertificateHashMismatch)
}

func TestCertificateAuthority_TamperedSignature(t *testing.T) {
	env := newTestEnv(t)
	bundle := env.issue(t, "alice", domain.RoleCustomer, true)

	for _, mutate := range []func(*domain.Certificate){
		func(c *domain.Certificate) { c.RSASignature[0] ^= 0xff },
		func(c *domain.Certificate) { c.PQSignature[0] ^= 0xff },
		func(c *domain.Certificate) { c.PQSignature = nil },
	} {
		cert := bundle.Certificate
		cert.RSASignature = append([]byte(nil), cert.RSASignature...)
		cert.PQSignature = append([]byte(nil), cert.PQSignature...)
		mutate(&cert)
		_, err := env.authority.Verify(context.Background(), cert)
		require.ErrorIs(t, err, domain.ErrCertificateSignatureInvalid)
	}
}

func TestCertificateAuthority_PolicyMismatch(t *testing.T) {
	env := newTestEnv(t)
	bundle := env.issue(t, "alice", domain.RoleCustomer, true)

	widened := bundle.Certificate
	widened.AllowedActions += "," + domain.ActionManageUsers
	_, err := env.authority.Verify(context.Background(), env.resign(t, widened))
	require.ErrorIs(t, err, domain.ErrCertificatePolicyMismatch)

	legacy := bundle.Certificate
	legacy.Descriptors.DefenseVersion = "hybrid-v0"
	_, err = env.authority.Verify(context.Background(), env.resign(t, legacy))
	require.ErrorIs(t, err, domain.ErrCertificatePolicyMismatch)
}

func TestCertificateAuthority_ValidityWindow(t *testing.T) {
	env := newTestEnv(t)
	bundle := env.issue(t, "alice", domain.RoleCustomer, true)

	env.clock.Advance(31 * 24 * time.Hour)
	_, err := env.authority.Verify(context.Background(), bundle.Certificate)
	require.ErrorIs(t, err, domain.ErrCertificateExpired)

	env.clock.Advance(-60 * 24 * time.Hour)
	_, err = env.authority.Verify(context.Background(), bundle.Certificate)
	require.ErrorIs(t, err, domain.ErrCertificateNotYetValid)
}

func TestCertificateAuthority_MalformedPlaintext(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.authority.VerifyPlaintext(context.Background(), []byte("not a certificate"))
	require.ErrorIs(t, err, domain.ErrCertificateMalformed)
}

func TestCertificateAuthority_RevokeIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bundle := env.issue(t, "alice", domain.RoleCustomer, true)
	id := bundle.Certificate.CertificateID

	first, err := env.authority.Revoke(ctx, id, "key compromise", "admin-1")
	require.NoError(t, err)
	env.clock.Advance(time.Hour)
	second, err := env.authority.Revoke(ctx, id, "duplicate", "admin-2")
	require.NoError(t, err)
	assert.Equal(t, first.RevokedAt, second.RevokedAt)
	assert.Equal(t, "key compromise", second.Reason)
	assert.Equal(t, "admin-1", second.RequestedBy)

	_, err = env.authority.VerifyPlaintext(ctx, bundle.Plaintext)
	require.ErrorIs(t, err, domain.ErrCertificateRevoked)
	denial, ok := domain.AsDenial(err)
	require.True(t, ok)
	assert.Equal(t, "Certificate revoked", denial.Message)

	entry, found, err := env.authority.RevocationEntry(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, id, entry.CertificateID)
}

func TestCertificateAuthority_RevokeDefaultsReason(t *testing.T) {
	env := newTestEnv(t)
	entry, err := env.authority.Revoke(context.Background(), "cert-x", "", "admin")
	require.NoError(t, err)
	assert.Equal(t, "unspecified", entry.Reason)

	_, err = env.authority.Revoke(context.Background(), "  ", "", "admin")
	require.Error(t, err)
}

func TestCertificateAuthority_GenerationsShareNothingButLineagePrefix(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.issue(t, "alice", domain.RoleCustomer, true)
	second := env.issue(t, "alice", domain.RoleCustomer, true)

	assert.Equal(t, 2, second.Certificate.Generation)
	assert.NotEqual(t, first.CertHash, second.CertHash)
	assert.NotEqual(t, first.Certificate.CertificateID, second.Certificate.CertificateID)
	prefix1, _, _ := strings.Cut(first.Certificate.LineageID, ":")
	prefix2, gen, _ := strings.Cut(second.Certificate.LineageID, ":")
	assert.Equal(t, prefix1, prefix2)
	assert.Equal(t, "2", gen)

	latest, _, err := env.authority.LoadCertificate(ctx, domain.RoleCustomer, "alice")
	require.NoError(t, err)
	assert.Equal(t, second.CertHash, latest.CertHash)

	_, _, err = env.authority.LoadCertificate(ctx, domain.RoleAdmin, "alice")
	require.ErrorIs(t, err, domain.ErrCertificateNotFound)
}

func TestCertificateAuthority_IssueRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	base := domain.IssueRequest{
		UserID:         "alice",
		FullName:       "Alice",
		Role:           domain.RoleCustomer,
		RSAPublicKey:   env.client.rsa.Public,
		MLKEMPublicKey: env.client.mlkem.Public,
		ValidityDays:   30,
	}
	cases := map[string]func(*domain.IssueRequest){
		"path user":       func(r *domain.IssueRequest) { r.UserID = "../alice" },
		"empty name":      func(r *domain.IssueRequest) { r.FullName = " " },
		"unknown role":    func(r *domain.IssueRequest) { r.Role = "root" },
		"zero validity":   func(r *domain.IssueRequest) { r.ValidityDays = 0 },
		"long validity":   func(r *domain.IssueRequest) { r.ValidityDays = 4000 },
		"missing kem":     func(r *domain.IssueRequest) { r.MLKEMPublicKey = nil },
		"garbage kem":     func(r *domain.IssueRequest) { r.MLKEMPublicKey = []byte("short") },
		"garbage rsa":     func(r *domain.IssueRequest) { r.RSAPublicKey = []byte("nope") },
		"garbage pq":      func(r *domain.IssueRequest) { r.PQPublicKey = []byte("nope") },
		"multiline owner": func(r *domain.IssueRequest) { r.FullName = "a\nb" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := base
			mutate(&req)
			_, err := env.authority.Issue(context.Background(), req)
			require.Error(t, err)
		})
	}
	n, err := env.vault.Generations(context.Background(), domain.RoleCustomer, "alice")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCertificateAuthority_RotationInvalidatesIssuedCertificates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bundle := env.issue(t, "alice", domain.RoleCustomer, true)

	rotation, err := env.authority.RotateCAKeys(ctx, domain.CAKeyPQ, "admin")
	require.NoError(t, err)
	assert.NotEqual(t, rotation.OldFingerprint, rotation.NewFingerprint)

	_, err = env.authority.Verify(ctx, bundle.Certificate)
	require.ErrorIs(t, err, domain.ErrCertificateSignatureInvalid)

	fresh := env.issue(t, "alice", domain.RoleCustomer, true)
	_, err = env.authority.Verify(ctx, fresh.Certificate)
	require.NoError(t, err)

	_, err = env.authority.RotateCAKeys(ctx, "symmetric", "admin")
	require.Error(t, err)
}

func TestCertificateAuthority_ConcurrentIssueAssignsDistinctGenerations(t *testing.T) {
	env := newTestEnv(t)
	req := domain.IssueRequest{
		UserID:         "alice",
		FullName:       "Test alice",
		Role:           domain.RoleCustomer,
		RSAPublicKey:   env.client.rsa.Public,
		MLKEMPublicKey: env.client.mlkem.Public,
		ValidityDays:   30,
	}

	const n = 4
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		gens []int
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bundle, err := env.authority.Issue(context.Background(), req)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			gens = append(gens, bundle.Certificate.Generation)
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	sort.Ints(gens)
	assert.Equal(t, []int{1, 2, 3, 4}, gens)
}
