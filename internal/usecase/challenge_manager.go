package usecase

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
)

const (
	challengeNonceBytes = 32
	challengeTokenBytes = 32
	DefaultChallengeTTL = 2 * time.Minute
)

type ChallengeManager struct {
	Store  KVStore[domain.Challenge]
	Clock  Clock
	Logger *zap.Logger
	TTL    time.Duration
}

func NewChallengeManager(store KVStore[domain.Challenge], clock Clock, logger *zap.Logger) *ChallengeManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChallengeManager{Store: store, Clock: clock, Logger: logger, TTL: DefaultChallengeTTL}
}

// CreateChallenge purges expired entries, then stores a fresh single-use
// challenge.
func (m *ChallengeManager) CreateChallenge(ctx context.Context, req domain.ChallengeRequest) (domain.IssuedChallenge, error) {
	if m == nil || m.Store == nil {
		return domain.IssuedChallenge{}, errors.New("challenge store is required")
	}
	if req.Purpose == "" {
		req.Purpose = domain.ChallengePurposeLogin
	}
	if !req.Purpose.Valid() {
		return domain.IssuedChallenge{}, fmt.Errorf("unsupported challenge purpose %q", req.Purpose)
	}
	ttl := req.TTL
	if ttl <= 0 {
		ttl = m.TTL
	}
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}

	now := m.now()
	if err := m.purgeExpired(ctx, now); err != nil {
		return domain.IssuedChallenge{}, err
	}

	nonce := req.Nonce
	if len(nonce) == 0 {
		nonce = make([]byte, challengeNonceBytes)
		if _, err := rand.Read(nonce); err != nil {
			return domain.IssuedChallenge{}, domain.NewFault("generate nonce", err)
		}
	}
	token, err := randomToken(challengeTokenBytes)
	if err != nil {
		return domain.IssuedChallenge{}, domain.NewFault("generate challenge token", err)
	}

	challenge := domain.Challenge{
		Token:              token,
		Nonce:              append([]byte(nil), nonce...),
		Certificate:        req.Certificate,
		LegacyDeviceSecret: req.LegacyDeviceSecret,
		Purpose:            req.Purpose,
		Metadata:           req.Metadata,
		BindingContext:     req.BindingContext,
		CreatedAt:          now,
		ExpiresAt:          now.Add(ttl),
	}
	if err := m.Store.Put(ctx, token, challenge, challenge.ExpiresAt); err != nil {
		return domain.IssuedChallenge{}, domain.NewFault("store challenge", err)
	}
	return domain.IssuedChallenge{Token: token, Nonce: challenge.Nonce, ExpiresAt: challenge.ExpiresAt}, nil
}

// Consume always removes the entry. An expired entry is reported the same way
// as a missing one.
func (m *ChallengeManager) Consume(ctx context.Context, token string) (domain.Challenge, bool, error) {
	if m == nil || m.Store == nil {
		return domain.Challenge{}, false, errors.New("challenge store is required")
	}
	if token == "" {
		return domain.Challenge{}, false, nil
	}
	challenge, ok, err := m.Store.Take(ctx, token)
	if err != nil {
		return domain.Challenge{}, false, domain.NewFault("consume challenge", err)
	}
	if !ok {
		return domain.Challenge{}, false, nil
	}
	if !m.now().Before(challenge.ExpiresAt) {
		return domain.Challenge{}, false, nil
	}
	return challenge, true, nil
}

// ConsumeFor consumes token and denies unless it is live and issued for
// purpose. A purpose mismatch still destroys the challenge.
func (m *ChallengeManager) ConsumeFor(ctx context.Context, token string, purpose domain.ChallengePurpose) (domain.Challenge, error) {
	challenge, ok, err := m.Consume(ctx, token)
	if err != nil {
		return domain.Challenge{}, err
	}
	if !ok || challenge.Purpose != purpose {
		return domain.Challenge{}, domain.ErrChallengeExpired
	}
	return challenge, nil
}

func (m *ChallengeManager) purgeExpired(ctx context.Context, now time.Time) error {
	expired, err := m.Store.ScanExpired(ctx, now)
	if err != nil {
		return domain.NewFault("scan expired challenges", err)
	}
	for _, key := range expired {
		if err := m.Store.Delete(ctx, key); err != nil {
			return domain.NewFault("purge challenge", err)
		}
	}
	if len(expired) > 0 {
		m.logger().Debug("purged expired challenges", zap.Int("count", len(expired)))
	}
	return nil
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (m *ChallengeManager) now() time.Time {
	if m.Clock != nil {
		return m.Clock()
	}
	return time.Now()
}

func (m *ChallengeManager) logger() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}
