package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/auth/rbac"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/crypto"
)

type memKV[T any] struct {
	mu      sync.Mutex
	entries map[string]memKVEntry[T]
}

type memKVEntry[T any] struct {
	value     T
	expiresAt time.Time
}

func newMemKV[T any]() *memKV[T] {
	return &memKV[T]{entries: map[string]memKVEntry[T]{}}
}

func (m *memKV[T]) Get(_ context.Context, key string) (T, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	return e.value, ok, nil
}

func (m *memKV[T]) Put(_ context.Context, key string, value T, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memKVEntry[T]{value: value, expiresAt: expiresAt}
	return nil
}

func (m *memKV[T]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *memKV[T]) Take(_ context.Context, key string) (T, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	delete(m.entries, key)
	return e.value, ok, nil
}

func (m *memKV[T]) Update(_ context.Context, key string, fn func(T) (T, error)) (T, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	e, ok := m.entries[key]
	if !ok {
		return zero, false, nil
	}
	next, err := fn(e.value)
	if err != nil {
		return zero, true, err
	}
	m.entries[key] = memKVEntry[T]{value: next, expiresAt: e.expiresAt}
	return next, true, nil
}

func (m *memKV[T]) ScanExpired(_ context.Context, now time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memKV[T]) Range(_ context.Context, fn func(string, T) bool) error {
	m.mu.Lock()
	snapshot := make(map[string]T, len(m.entries))
	for k, e := range m.entries {
		snapshot[k] = e.value
	}
	m.mu.Unlock()
	for k, v := range snapshot {
		if !fn(k, v) {
			break
		}
	}
	return nil
}

func (m *memKV[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

type bindingStub struct {
	mu      sync.Mutex
	secrets map[string]string
}

func (b *bindingStub) StoreBinding(_ context.Context, userID, secret string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.secrets == nil {
		b.secrets = map[string]string{}
	}
	b.secrets[userID] = secret
	return nil
}

func (b *bindingStub) GetSecret(_ context.Context, userID string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.secrets[userID]
	return s, ok, nil
}

func (b *bindingStub) DeleteSecret(_ context.Context, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.secrets, userID)
	return nil
}

type vaultStub struct {
	mu    sync.Mutex
	certs map[string][][]byte
}

func vaultKey(role domain.Role, userID string) string { return string(role) + "/" + userID }

func (v *vaultStub) Store(_ context.Context, cert domain.Certificate, plaintext []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.certs == nil {
		v.certs = map[string][][]byte{}
	}
	key := vaultKey(cert.Role, cert.UserID)
	v.certs[key] = append(v.certs[key], append([]byte(nil), plaintext...))
	return nil
}

func (v *vaultStub) Load(_ context.Context, role domain.Role, userID string) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	gens := v.certs[vaultKey(role, userID)]
	if len(gens) == 0 {
		return nil, domain.ErrNotFound
	}
	return gens[len(gens)-1], nil
}

func (v *vaultStub) LoadGeneration(_ context.Context, role domain.Role, userID string, generation int) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	gens := v.certs[vaultKey(role, userID)]
	if generation < 1 || generation > len(gens) {
		return nil, domain.ErrNotFound
	}
	return gens[generation-1], nil
}

func (v *vaultStub) Generations(_ context.Context, role domain.Role, userID string) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.certs[vaultKey(role, userID)]), nil
}

type crlStub struct {
	mu  sync.Mutex
	crl domain.CRL
}

func (c *crlStub) Revoke(_ context.Context, entry domain.RevocationEntry) (domain.RevocationEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored, _ := c.crl.Add(entry)
	stored.CertificateID = entry.CertificateID
	return stored, nil
}

func (c *crlStub) IsRevoked(_ context.Context, certificateID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.crl.Contains(certificateID), nil
}

func (c *crlStub) Entry(_ context.Context, certificateID string) (domain.RevocationEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.crl.Entry(certificateID)
	return entry, ok, nil
}

var (
	keyOnce     sync.Once
	sharedRSA   [3]crypto.KeyPair
	sharedMLDSA crypto.KeyPair
	keyErr      error
)

// testKeys caches RSA material across tests; generating 2048-bit keys is slow.
func testKeys(t *testing.T) ([3]crypto.KeyPair, crypto.KeyPair) {
	t.Helper()
	keyOnce.Do(func() {
		for i := range sharedRSA {
			if sharedRSA[i], keyErr = crypto.GenerateRSAKeyPair(2048); keyErr != nil {
				return
			}
		}
		sharedMLDSA, keyErr = crypto.GenerateMLDSAKeyPair()
	})
	require.NoError(t, keyErr)
	return sharedRSA, sharedMLDSA
}

type caKeysStub struct {
	mu       sync.Mutex
	provider *crypto.HybridProvider
	rsa      crypto.KeyPair
	mldsa    crypto.KeyPair
	spare    []crypto.KeyPair
}

func (k *caKeysStub) Sign(_ context.Context, kind domain.CAKeyKind, payload []byte) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	switch kind {
	case domain.CAKeyClassical:
		return k.provider.SignClassical(k.rsa.Private, payload)
	case domain.CAKeyPQ:
		return k.provider.SignPQ(k.mldsa.Private, payload)
	}
	return nil, fmt.Errorf("unknown kind %q", kind)
}

func (k *caKeysStub) PublicKeys(context.Context) (domain.CAPublicKeys, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return domain.CAPublicKeys{
		Classical:            k.rsa.Public,
		PQ:                   k.mldsa.Public,
		ClassicalFingerprint: crypto.Fingerprint(k.rsa.Public),
		PQFingerprint:        crypto.Fingerprint(k.mldsa.Public),
	}, nil
}

func (k *caKeysStub) Rotate(_ context.Context, kind domain.CAKeyKind) (domain.CAKeyRotation, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	rotation := domain.CAKeyRotation{Kind: kind}
	switch kind {
	case domain.CAKeyClassical:
		if len(k.spare) == 0 {
			return rotation, fmt.Errorf("no spare rsa key")
		}
		rotation.OldFingerprint = crypto.Fingerprint(k.rsa.Public)
		k.rsa, k.spare = k.spare[0], k.spare[1:]
		rotation.NewFingerprint = crypto.Fingerprint(k.rsa.Public)
	case domain.CAKeyPQ:
		next, err := crypto.GenerateMLDSAKeyPair()
		if err != nil {
			return rotation, err
		}
		rotation.OldFingerprint = crypto.Fingerprint(k.mldsa.Public)
		k.mldsa = next
		rotation.NewFingerprint = crypto.Fingerprint(k.mldsa.Public)
	}
	return rotation, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type clientKeys struct {
	rsa   crypto.KeyPair
	mldsa crypto.KeyPair
	mlkem crypto.KeyPair
}

type testEnv struct {
	clock      *testClock
	provider   *crypto.HybridProvider
	keys       *caKeysStub
	bindings   *bindingStub
	vault      *vaultStub
	crl        *crlStub
	ledgers    map[domain.AuditChain]LedgerStore
	audit      *AuditRecorder
	authority  *CertificateAuthority
	challenges *ChallengeManager
	sessions   *SessionRegistry
	login      *LoginService
	guard      *AccessGuard
	intents    *IntentService
	client     clientKeys
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	rsaKeys, mldsa := testKeys(t)
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	provider := crypto.NewHybridProvider()
	codec := crypto.NewService()

	env := &testEnv{
		clock:    clock,
		provider: provider,
		keys:     &caKeysStub{provider: provider, rsa: rsaKeys[0], mldsa: mldsa, spare: []crypto.KeyPair{rsaKeys[2]}},
		bindings: &bindingStub{},
		vault:    &vaultStub{},
		crl:      &crlStub{crl: domain.NewCRL()},
		ledgers:  newLedgerStubs(),
	}
	env.audit = NewAuditRecorder(env.ledgers, codec, clock.Now, nil)
	env.authority = &CertificateAuthority{
		Keys:     env.keys,
		Rotation: NewKeyRotationService(env.keys, env.audit, nil, clock.Now),
		Crypto:   provider,
		Codec:    codec,
		Vault:    env.vault,
		Bindings: env.bindings,
		CRL:      env.crl,
		Audit:    env.audit,
		Clock:    clock.Now,
		CRLURL:   "https://bank.test/crl",
	}
	env.challenges = NewChallengeManager(newMemKV[domain.Challenge](), clock.Now, nil)
	env.sessions = &SessionRegistry{
		Sessions:  newMemKV[domain.Session](),
		Refresh:   newMemKV[string](),
		Authority: env.authority,
		Bindings:  env.bindings,
		Audit:     env.audit,
		Clock:     clock.Now,
		Config:    DefaultSessionConfig(),
	}
	env.login = &LoginService{
		Authority:  env.authority,
		Challenges: env.challenges,
		Sessions:   env.sessions,
		Bindings:   env.bindings,
		Crypto:     provider,
		Audit:      env.audit,
	}
	env.guard = &AccessGuard{Sessions: env.sessions, Authorizer: rbac.NewAuthorizer()}
	env.intents = &IntentService{Guard: env.guard, Canon: codec, Audit: env.audit}

	kem, err := crypto.GenerateMLKEMKeyPair()
	require.NoError(t, err)
	clientPQ, err := crypto.GenerateMLDSAKeyPair()
	require.NoError(t, err)
	env.client = clientKeys{rsa: rsaKeys[1], mldsa: clientPQ, mlkem: kem}
	return env
}

func (e *testEnv) issue(t *testing.T, userID string, role domain.Role, withPQ bool) domain.IssuedBundle {
	t.Helper()
	req := domain.IssueRequest{
		UserID:         userID,
		FullName:       "Test " + userID,
		Role:           role,
		RSAPublicKey:   e.client.rsa.Public,
		MLKEMPublicKey: e.client.mlkem.Public,
		ValidityDays:   30,
	}
	if withPQ {
		req.PQPublicKey = e.client.mldsa.Public
	}
	bundle, err := e.authority.Issue(context.Background(), req)
	require.NoError(t, err)
	return bundle
}

func (e *testEnv) proof(t *testing.T, cert domain.Certificate, secret string, nonce []byte) DeviceProof {
	t.Helper()
	rsaSig, err := e.provider.SignClassical(e.client.rsa.Private, nonce)
	require.NoError(t, err)
	proof := DeviceProof{HMAC: DeviceProofMAC(secret, nonce), RSASignature: rsaSig}
	if cert.HasPQKey() {
		proof.PQSignature, err = e.provider.SignPQ(e.client.mldsa.Private, nonce)
		require.NoError(t, err)
	}
	return proof
}

// loginAs issues a certificate and completes a full login.
func (e *testEnv) loginAs(t *testing.T, userID string, role domain.Role) (domain.IssuedBundle, LoginResult) {
	t.Helper()
	ctx := context.Background()
	bundle := e.issue(t, userID, role, true)
	challenge, err := e.login.BeginLogin(ctx, BeginLoginRequest{Certificate: bundle.Plaintext})
	require.NoError(t, err)
	result, err := e.login.CompleteLogin(ctx, CompleteLoginRequest{
		Token: challenge.Token,
		Proof: e.proof(t, bundle.Certificate, bundle.DeviceSecret, challenge.Nonce),
	})
	require.NoError(t, err)
	return bundle, result
}

// resign recomputes cert_hash and both CA signatures after a field edit.
func (e *testEnv) resign(t *testing.T, cert domain.Certificate) domain.Certificate {
	t.Helper()
	ctx := context.Background()
	payload, err := crypto.CanonicalCertificatePayload(cert)
	require.NoError(t, err)
	cert.CertHash = crypto.CertificateHash(payload)
	msg := signedMessage(payload, cert.CertHash)
	cert.RSASignature, err = e.keys.Sign(ctx, domain.CAKeyClassical, msg)
	require.NoError(t, err)
	cert.PQSignature, err = e.keys.Sign(ctx, domain.CAKeyPQ, msg)
	require.NoError(t, err)
	return cert
}

func (e *testEnv) entries(t *testing.T, chain domain.AuditChain) []domain.AuditEntry {
	t.Helper()
	out, err := e.ledgers[chain].ReadAll(context.Background())
	require.NoError(t, err)
	return out
}
