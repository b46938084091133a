package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nosdesk/collab-core/internal/models"
	"github.com/nosdesk/collab-core/internal/session"
)

func TestLogout_RevokesSession(t *testing.T) {
	user := models.User{ID: uuid.New(), Role: models.RoleUser}
	users := newFakeUsers()
	users.put(user, "")
	sessions, store := newTestSessionManager(users)
	ctx := context.Background()

	pair, err := sessions.IssueSession(ctx, user.ID, user.Role, session.DeviceInfo{})
	require.NoError(t, err)

	logout := NewLogoutLogic(ctx, sessions)
	require.NoError(t, logout.Logout(pair.Session.ID))

	stored, err := store.Get(ctx, pair.Session.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.RevokedAt)
}

func TestRefresh_RotatesTokenPair(t *testing.T) {
	user := models.User{ID: uuid.New(), Role: models.RoleUser}
	users := newFakeUsers()
	users.put(user, "")
	sessions, _ := newTestSessionManager(users)
	ctx := context.Background()

	pair, err := sessions.IssueSession(ctx, user.ID, user.Role, session.DeviceInfo{IP: "10.0.0.1"})
	require.NoError(t, err)

	refresh := NewRefreshLogic(ctx, sessions)
	next, err := refresh.Refresh(pair.RefreshToken, session.DeviceInfo{IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, next.AccessToken)
}
