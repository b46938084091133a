package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHandshakeStore_OneShotConsumption is the SSE handshake one-shot
// property: a token redeemed once must never redeem again.
func TestHandshakeStore_OneShotConsumption(t *testing.T) {
	store := NewHandshakeStore()
	defer store.Close()

	userID, sessionID := uuid.New(), uuid.New()
	token, err := store.Issue(userID, sessionID)
	require.NoError(t, err)

	gotUser, gotSession, err := store.Redeem(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, userID, gotUser)
	assert.Equal(t, sessionID, gotSession)

	_, _, err = store.Redeem(context.Background(), token)
	assert.Error(t, err, "second redemption of the same token must fail")
}

func TestHandshakeStore_UnknownTokenRejected(t *testing.T) {
	store := NewHandshakeStore()
	defer store.Close()

	_, _, err := store.Redeem(context.Background(), "never-issued")
	assert.Error(t, err)
}

func TestHandshakeStore_ExpiredTokenRejected(t *testing.T) {
	store := NewHandshakeStore()
	defer store.Close()

	token, err := store.Issue(uuid.New(), uuid.New())
	require.NoError(t, err)

	shard := store.shardFor(token)
	shard.mu.Lock()
	shard.entries[token].expiresAt = time.Now().UTC().Add(-time.Second)
	shard.mu.Unlock()

	_, _, err = store.Redeem(context.Background(), token)
	assert.Error(t, err)
}
