package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"

	"github.com/nosdesk/collab-core/internal/models"
	"github.com/nosdesk/collab-core/internal/repository"
	"github.com/nosdesk/collab-core/internal/session"
)

// totpGenerateCode produces a currently-valid code for secret, mirroring
// what an authenticator app would show, for tests to feed into MFA
// verification without a canned fixed code.
func totpGenerateCode(secret string) (string, error) {
	return totp.GenerateCode(secret, time.Now().UTC())
}

// fakeUsers is an in-memory Users used across this package's tests so the
// auth logic can be exercised without a database.
type fakeUsers struct {
	mu          sync.Mutex
	byID        map[uuid.UUID]models.User
	byEmail     map[string]uuid.UUID
	identities  map[string]models.AuthIdentity // keyed by external_id (email)
	backupCodes map[uuid.UUID][]models.BackupCode
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		byID:        make(map[uuid.UUID]models.User),
		byEmail:     make(map[string]uuid.UUID),
		identities:  make(map[string]models.AuthIdentity),
		backupCodes: make(map[uuid.UUID][]models.BackupCode),
	}
}

func (f *fakeUsers) put(u models.User, passwordHash string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[u.ID] = u
	f.byEmail[u.Email] = u.ID
	f.identities[u.Email] = models.AuthIdentity{
		ID:           uuid.New(),
		UserID:       u.ID,
		ProviderType: models.ProviderLocal,
		ExternalID:   u.Email,
		PasswordHash: passwordHash,
	}
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u := f.byID[id]
	return &u, nil
}

func (f *fakeUsers) GetLocalIdentity(_ context.Context, externalID string) (*models.AuthIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.identities[externalID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &id, nil
}

func (f *fakeUsers) SetMFA(_ context.Context, userID uuid.UUID, encryptedSecret *string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.EncryptedTOTPSecret = encryptedSecret
	u.MFAEnabled = enabled
	f.byID[userID] = u
	return nil
}

func (f *fakeUsers) TouchPasswordChanged(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordChangedAt = time.Now().UTC()
	f.byID[userID] = u
	return nil
}

func (f *fakeUsers) SetLocalPasswordHash(_ context.Context, userID uuid.UUID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return repository.ErrNotFound
	}
	identity := f.identities[u.Email]
	identity.PasswordHash = hash
	f.identities[u.Email] = identity
	return nil
}

func (f *fakeUsers) ReplaceBackupCodes(_ context.Context, userID uuid.UUID, codes []models.BackupCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backupCodes[userID] = codes
	return nil
}

func (f *fakeUsers) ListUnconsumedBackupCodes(_ context.Context, userID uuid.UUID) ([]models.BackupCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.BackupCode
	for _, c := range f.backupCodes[userID] {
		if c.ConsumedAt == nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeUsers) ConsumeBackupCode(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for userID, codes := range f.backupCodes {
		for i := range codes {
			if codes[i].ID == id {
				if codes[i].ConsumedAt != nil {
					return false, nil
				}
				now := time.Now().UTC()
				codes[i].ConsumedAt = &now
				f.backupCodes[userID] = codes
				return true, nil
			}
		}
	}
	return false, repository.ErrNotFound
}

// fakeResetTokens is an in-memory ResetTokens.
type fakeResetTokens struct {
	mu     sync.Mutex
	tokens map[string]models.ResetToken
}

func newFakeResetTokens() *fakeResetTokens {
	return &fakeResetTokens{tokens: make(map[string]models.ResetToken)}
}

func (f *fakeResetTokens) Create(_ context.Context, t models.ResetToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[t.TokenHash] = t
	return nil
}

func (f *fakeResetTokens) GetByHash(_ context.Context, hash string) (*models.ResetToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[hash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (f *fakeResetTokens) Consume(_ context.Context, hash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[hash]
	if !ok {
		return false, repository.ErrNotFound
	}
	if t.UsedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	t.UsedAt = &now
	f.tokens[hash] = t
	return true, nil
}

// fakeSessionStore and fakeSessionCache give tests a real *session.Manager
// without a live Postgres/Redis, mirroring internal/session's own test fakes.
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]models.Session
	refresh  map[string]models.RefreshToken
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		sessions: make(map[uuid.UUID]models.Session),
		refresh:  make(map[string]models.RefreshToken),
	}
}

func (f *fakeSessionStore) CreateSession(_ context.Context, s models.Session) error {
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

func (f *fakeSessionStore) Get(_ context.Context, id uuid.UUID) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (f *fakeSessionStore) TouchLastActive(_ context.Context, id uuid.UUID, at time.Time) error {
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

func (f *fakeSessionStore) Revoke(_ context.Context, id uuid.UUID) error {
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

func (f *fakeSessionStore) RevokeAllForUser(_ context.Context, userID uuid.UUID) error {
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

func (f *fakeSessionStore) InsertRefreshToken(_ context.Context, t models.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh[t.TokenHash] = t
	return nil
}

func (f *fakeSessionStore) GetRefreshTokenByHash(_ context.Context, hash string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.refresh[hash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (f *fakeSessionStore) RevokeRefreshToken(_ context.Context, id uuid.UUID) error {
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

type fakeSessionCache struct {
	mu      sync.Mutex
	revoked map[uuid.UUID]bool
}

func newFakeSessionCache() *fakeSessionCache {
	return &fakeSessionCache{revoked: make(map[uuid.UUID]bool)}
}

func (c *fakeSessionCache) MarkRevoked(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[id] = true
	return nil
}

func (c *fakeSessionCache) IsRevoked(_ context.Context, id uuid.UUID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revoked[id], nil
}

func (c *fakeSessionCache) ClearRevoked(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.revoked, id)
	return nil
}

func newTestSessionManager(users *fakeUsers) (*session.Manager, *fakeSessionStore) {
	store := newFakeSessionStore()
	cfg := session.Config{
		JWTSecret:            "test-secret-test-secret-test-secret",
		AccessTokenTTL:       15 * time.Minute,
		RefreshTokenTTL:      30 * 24 * time.Hour,
		SessionInactivityTTL: 24 * time.Hour,
	}
	return session.NewManager(cfg, store, users, newFakeSessionCache()), store
}

const testMasterKeyHex = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
