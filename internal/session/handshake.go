package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nosdesk/collab-core/internal/errs"
)

// handshakeTTL bounds how long an issued SSE handshake token stays
// redeemable.
const handshakeTTL = 60 * time.Second

// handshakeShards is the stripe count for the in-memory token map, the
// same sharded-lock shape the Event Bus uses for its scope map, so one
// slow subscriber never blocks an unrelated handshake.
const handshakeShards = 16

type handshakeEntry struct {
	userID    uuid.UUID
	sessionID uuid.UUID
	expiresAt time.Time
	consumed  bool
}

type handshakeShard struct {
	mu      sync.Mutex
	entries map[string]*handshakeEntry
}

// HandshakeStore is a bounded, in-process, one-shot token store: a
// browser's EventSource can't set an Authorization header, so the SSE
// endpoint is reached via a short-lived query-string token minted by an
// authenticated request and redeemed exactly once. It is deliberately
// not backed by Redis: this state is single-instance and in-memory, with
// a janitor sweeping expired entries.
type HandshakeStore struct {
	shards [handshakeShards]*handshakeShard
	stop   chan struct{}
}

func NewHandshakeStore() *HandshakeStore {
	s := &HandshakeStore{stop: make(chan struct{})}
	for i := range s.shards {
		s.shards[i] = &handshakeShard{entries: make(map[string]*handshakeEntry)}
	}
	go s.janitor()
	return s
}

func (s *HandshakeStore) shardFor(token string) *handshakeShard {
	var h uint32
	for i := 0; i < len(token); i++ {
		h = h*31 + uint32(token[i])
	}
	return s.shards[h%handshakeShards]
}

// Issue mints a new one-shot handshake token for a session, good for
// handshakeTTL from now.
func (s *HandshakeStore) Issue(userID, sessionID uuid.UUID) (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", errs.Wrap(errs.StorageError, "session: generate handshake token", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	shard := s.shardFor(token)
	shard.mu.Lock()
	shard.entries[token] = &handshakeEntry{
		userID:    userID,
		sessionID: sessionID,
		expiresAt: time.Now().UTC().Add(handshakeTTL),
	}
	shard.mu.Unlock()

	return token, nil
}

// Redeem consumes a handshake token exactly once. A second redemption,
// an expired token, or an unknown token all fail identically.
func (s *HandshakeStore) Redeem(_ context.Context, token string) (userID, sessionID uuid.UUID, err error) {
	shard := s.shardFor(token)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry, ok := shard.entries[token]
	if !ok || entry.consumed || time.Now().UTC().After(entry.expiresAt) {
		return uuid.UUID{}, uuid.UUID{}, errs.New(errs.AuthError, "session: invalid or expired handshake token")
	}
	entry.consumed = true
	delete(shard.entries, token)
	return entry.userID, entry.sessionID, nil
}

func (s *HandshakeStore) janitor() {
	ticker := time.NewTicker(handshakeTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *HandshakeStore) sweep() {
	now := time.Now().UTC()
	for _, shard := range s.shards {
		shard.mu.Lock()
		for token, entry := range shard.entries {
			if entry.consumed || now.After(entry.expiresAt) {
				delete(shard.entries, token)
			}
		}
		shard.mu.Unlock()
	}
}

// Close stops the janitor goroutine.
func (s *HandshakeStore) Close() {
	close(s.stop)
}
