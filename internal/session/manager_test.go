package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nosdesk/collab-core/internal/errs"
	"github.com/nosdesk/collab-core/internal/models"
	"github.com/nosdesk/collab-core/internal/repository"
)

// fakeStore is an in-memory Store used so Manager can be tested without a
// live Postgres connection.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]models.Session
	refresh  map[string]models.RefreshToken // keyed by token_hash
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[uuid.UUID]models.Session),
		refresh:  make(map[string]models.RefreshToken),
	}
}

func (f *fakeStore) CreateSession(_ context.Context, s models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.IsCurrent {
		for id, existing := range f.sessions {
			if existing.UserID == s.UserID {
				existing.IsCurrent = false
				f.sessions[id] = existing
			}
		}
	}
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeStore) Get(_ context.Context, id uuid.UUID) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (f *fakeStore) TouchLastActive(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.LastActive = at
	f.sessions[id] = s
	return nil
}

func (f *fakeStore) Revoke(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	s.RevokedAt = &now
	f.sessions[id] = s
	return nil
}

func (f *fakeStore) RevokeAllForUser(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	for id, s := range f.sessions {
		if s.UserID == userID {
			s.RevokedAt = &now
			f.sessions[id] = s
		}
	}
	for hash, t := range f.refresh {
		if t.UserID == userID {
			t.RevokedAt = &now
			f.refresh[hash] = t
		}
	}
	return nil
}

func (f *fakeStore) InsertRefreshToken(_ context.Context, t models.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh[t.TokenHash] = t
	return nil
}

func (f *fakeStore) GetRefreshTokenByHash(_ context.Context, hash string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.refresh[hash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (f *fakeStore) RevokeRefreshToken(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for hash, t := range f.refresh {
		if t.ID == id {
			now := time.Now().UTC()
			t.RevokedAt = &now
			f.refresh[hash] = t
			return nil
		}
	}
	return repository.ErrNotFound
}

type fakeUsers struct {
	users map[uuid.UUID]models.User
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

type fakeCache struct {
	mu      sync.Mutex
	revoked map[uuid.UUID]bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{revoked: make(map[uuid.UUID]bool)}
}

func (c *fakeCache) MarkRevoked(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[id] = true
	return nil
}

func (c *fakeCache) IsRevoked(_ context.Context, id uuid.UUID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revoked[id], nil
}

func (c *fakeCache) ClearRevoked(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.revoked, id)
	return nil
}

func testManager(t *testing.T, user models.User) (*Manager, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	users := &fakeUsers{users: map[uuid.UUID]models.User{user.ID: user}}
	cfg := Config{
		JWTSecret:            "test-secret-test-secret-test-secret",
		AccessTokenTTL:       15 * time.Minute,
		RefreshTokenTTL:      30 * 24 * time.Hour,
		SessionInactivityTTL: 24 * time.Hour,
	}
	return NewManager(cfg, store, users, newFakeCache()), store
}

func testUser() models.User {
	return models.User{
		ID:                uuid.New(),
		Role:              models.RoleTechnician,
		PasswordChangedAt: time.Now().UTC().Add(-time.Hour),
	}
}

func TestIssueSession_ThenValidateAccess_Succeeds(t *testing.T) {
	user := testUser()
	mgr, _ := testManager(t, user)

	pair, err := mgr.IssueSession(context.Background(), user.ID, user.Role, DeviceInfo{IP: "127.0.0.1"})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	claims, err := mgr.ValidateAccess(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, user.Role, claims.Role)
}

func TestValidateAccess_RejectsTokenIssuedBeforePasswordChange(t *testing.T) {
	user := testUser()
	mgr, _ := testManager(t, user)

	pair, err := mgr.IssueSession(context.Background(), user.ID, user.Role, DeviceInfo{})
	require.NoError(t, err)

	// Simulate a password change that happened after the token was issued.
	user.PasswordChangedAt = time.Now().UTC().Add(time.Hour)
	mgr.users = &fakeUsers{users: map[uuid.UUID]models.User{user.ID: user}}

	_, err = mgr.ValidateAccess(context.Background(), pair.AccessToken)
	require.Error(t, err)
	assert.Equal(t, errs.AuthError, errs.KindOf(err))
}

func TestValidateAccess_RejectsRevokedSession(t *testing.T) {
	user := testUser()
	mgr, _ := testManager(t, user)

	pair, err := mgr.IssueSession(context.Background(), user.ID, user.Role, DeviceInfo{})
	require.NoError(t, err)

	require.NoError(t, mgr.Logout(context.Background(), pair.Session.ID))

	_, err = mgr.ValidateAccess(context.Background(), pair.AccessToken)
	require.Error(t, err)
	assert.Equal(t, errs.AuthError, errs.KindOf(err))
}

func TestMaybeTouchLastActive_ThrottlesWithinWindow(t *testing.T) {
	user := testUser()
	mgr, store := testManager(t, user)

	pair, err := mgr.IssueSession(context.Background(), user.ID, user.Role, DeviceInfo{})
	require.NoError(t, err)

	mgr.maybeTouchLastActive(context.Background(), pair.Session.ID)
	afterFirst, _ := store.Get(context.Background(), pair.Session.ID)

	mgr.maybeTouchLastActive(context.Background(), pair.Session.ID)
	afterSecond, _ := store.Get(context.Background(), pair.Session.ID)

	assert.Equal(t, afterFirst.LastActive, afterSecond.LastActive, "second touch within throttle window must not write")
}

func TestRefresh_RotatesToken(t *testing.T) {
	user := testUser()
	mgr, _ := testManager(t, user)

	pair, err := mgr.IssueSession(context.Background(), user.ID, user.Role, DeviceInfo{})
	require.NoError(t, err)

	rotated, err := mgr.Refresh(context.Background(), pair.RefreshToken, DeviceInfo{})
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, rotated.AccessToken)
}

// TestRefresh_ReuseOfRevokedTokenRevokesAllSessions is the refresh-token
// reuse-detection property: presenting an already-rotated (and thus
// revoked) refresh token must revoke every session belonging to that
// token's user, not just the one token.
func TestRefresh_ReuseOfRevokedTokenRevokesAllSessions(t *testing.T) {
	user := testUser()
	mgr, store := testManager(t, user)

	pair, err := mgr.IssueSession(context.Background(), user.ID, user.Role, DeviceInfo{})
	require.NoError(t, err)

	_, err = mgr.Refresh(context.Background(), pair.RefreshToken, DeviceInfo{})
	require.NoError(t, err)

	// Replaying the now-revoked original refresh token is reuse.
	_, err = mgr.Refresh(context.Background(), pair.RefreshToken, DeviceInfo{})
	require.Error(t, err)
	assert.Equal(t, errs.AuthError, errs.KindOf(err))

	sess, getErr := store.Get(context.Background(), pair.Session.ID)
	require.NoError(t, getErr)
	assert.NotNil(t, sess.RevokedAt, "reuse detection must revoke the session")
}

func TestRefresh_UnknownTokenRejected(t *testing.T) {
	user := testUser()
	mgr, _ := testManager(t, user)

	_, err := mgr.Refresh(context.Background(), "not-a-real-token", DeviceInfo{})
	require.Error(t, err)
	assert.Equal(t, errs.AuthError, errs.KindOf(err))
}
