package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
)

func newTestChallenges() (*ChallengeManager, *memKV[domain.Challenge], *testClock) {
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	store := newMemKV[domain.Challenge]()
	return NewChallengeManager(store, clock.Now, nil), store, clock
}

func TestChallengeManager_SingleUse(t *testing.T) {
	m, _, _ := newTestChallenges()
	ctx := context.Background()

	issued, err := m.CreateChallenge(ctx, domain.ChallengeRequest{})
	require.NoError(t, err)
	assert.Len(t, issued.Nonce, 32)
	assert.NotEmpty(t, issued.Token)

	challenge, ok, err := m.Consume(ctx, issued.Token)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, issued.Nonce, challenge.Nonce)
	assert.Equal(t, domain.ChallengePurposeLogin, challenge.Purpose)

	_, ok, err = m.Consume(ctx, issued.Token)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChallengeManager_Expiry(t *testing.T) {
	m, store, clock := newTestChallenges()
	ctx := context.Background()

	issued, err := m.CreateChallenge(ctx, domain.ChallengeRequest{TTL: time.Second})
	require.NoError(t, err)
	clock.Advance(2 * time.Second)

	_, err = m.ConsumeFor(ctx, issued.Token, domain.ChallengePurposeLogin)
	require.ErrorIs(t, err, domain.ErrChallengeExpired)
	assert.Zero(t, store.Len())
}

func TestChallengeManager_CreatePurgesExpired(t *testing.T) {
	m, store, clock := newTestChallenges()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := m.CreateChallenge(ctx, domain.ChallengeRequest{TTL: time.Second})
		require.NoError(t, err)
	}
	clock.Advance(time.Minute)
	_, err := m.CreateChallenge(ctx, domain.ChallengeRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}

func TestChallengeManager_PurposeMismatchConsumes(t *testing.T) {
	m, _, _ := newTestChallenges()
	ctx := context.Background()

	issued, err := m.CreateChallenge(ctx, domain.ChallengeRequest{Purpose: domain.ChallengePurposeReverify})
	require.NoError(t, err)

	_, err = m.ConsumeFor(ctx, issued.Token, domain.ChallengePurposeLogin)
	require.ErrorIs(t, err, domain.ErrChallengeExpired)
	_, err = m.ConsumeFor(ctx, issued.Token, domain.ChallengePurposeReverify)
	require.ErrorIs(t, err, domain.ErrChallengeExpired)
}

func TestChallengeManager_RejectsUnknownPurpose(t *testing.T) {
	m, _, _ := newTestChallenges()
	_, err := m.CreateChallenge(context.Background(), domain.ChallengeRequest{Purpose: "payment"})
	require.Error(t, err)
}

func TestChallengeManager_EmptyTokenIsAbsent(t *testing.T) {
	m, _, _ := newTestChallenges()
	_, ok, err := m.Consume(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ok)
}
