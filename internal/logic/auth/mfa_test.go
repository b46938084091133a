package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nosdesk/collab-core/internal/credential"
	"github.com/nosdesk/collab-core/internal/errs"
	"github.com/nosdesk/collab-core/internal/models"
)

func newMFATestUsers(t *testing.T, u models.User) *fakeUsers {
	t.Helper()
	users := newFakeUsers()
	users.put(u, "")
	return users
}

func TestMFASetup_ThenVerify_EnablesMFA(t *testing.T) {
	masterKey, err := credential.ParseMasterKey(testMasterKeyHex)
	require.NoError(t, err)
	user := models.User{ID: uuid.New(), Email: "tech@example.com", Role: models.RoleTechnician}
	users := newMFATestUsers(t, user)
	ctx := context.Background()

	setup := NewMFASetupLogic(ctx, users, masterKey)
	resp, err := setup.MFASetup(user.ID, user.Email)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Secret)
	assert.Contains(t, resp.OtpauthURL, "otpauth://")

	stored, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, stored.MFAEnabled)
	require.NotNil(t, stored.EncryptedTOTPSecret)

	code, err := totpGenerateCode(resp.Secret)
	require.NoError(t, err)

	verify := NewMFAVerifyLogic(ctx, users, masterKey)
	require.NoError(t, verify.MFAVerify(user.ID, code))

	stored, err = users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.MFAEnabled)
}

func TestMFAVerify_WrongCode_LeavesMFADisabled(t *testing.T) {
	masterKey, err := credential.ParseMasterKey(testMasterKeyHex)
	require.NoError(t, err)
	user := models.User{ID: uuid.New(), Email: "tech@example.com", Role: models.RoleTechnician}
	users := newMFATestUsers(t, user)
	ctx := context.Background()

	setup := NewMFASetupLogic(ctx, users, masterKey)
	_, err = setup.MFASetup(user.ID, user.Email)
	require.NoError(t, err)

	verify := NewMFAVerifyLogic(ctx, users, masterKey)
	err = verify.MFAVerify(user.ID, "000000")
	require.Error(t, err)
	assert.Equal(t, errs.MfaError, errs.KindOf(err))
}

func mfaEnabledUser(t *testing.T, masterKey *credential.MasterKey) (models.User, string) {
	t.Helper()
	key, err := credential.GenerateTOTPSecret("collab-core", "tech@example.com")
	require.NoError(t, err)
	encrypted, err := masterKey.Encrypt([]byte(key.Secret()))
	require.NoError(t, err)
	return models.User{
		ID: uuid.New(), Email: "tech@example.com", Role: models.RoleTechnician,
		MFAEnabled: true, EncryptedTOTPSecret: &encrypted,
	}, key.Secret()
}

func TestMFAEnable_GeneratesBackupCodes(t *testing.T) {
	masterKey, err := credential.ParseMasterKey(testMasterKeyHex)
	require.NoError(t, err)
	user, secret := mfaEnabledUser(t, masterKey)
	users := newMFATestUsers(t, user)
	ctx := context.Background()

	code, err := totpGenerateCode(secret)
	require.NoError(t, err)

	enable := NewMFAEnableLogic(ctx, users, masterKey)
	codes, err := enable.MFAEnable(user.ID, code)
	require.NoError(t, err)
	assert.Len(t, codes, 10)

	remaining, err := users.ListUnconsumedBackupCodes(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, remaining, 10)
}

func TestMFADisable_ClearsSecretAndBackupCodes(t *testing.T) {
	masterKey, err := credential.ParseMasterKey(testMasterKeyHex)
	require.NoError(t, err)
	user, secret := mfaEnabledUser(t, masterKey)
	users := newMFATestUsers(t, user)
	ctx := context.Background()

	_, rows, err := credential.GenerateBackupCodes(user.ID)
	require.NoError(t, err)
	require.NoError(t, users.ReplaceBackupCodes(ctx, user.ID, rows))

	code, err := totpGenerateCode(secret)
	require.NoError(t, err)

	disable := NewMFADisableLogic(ctx, users, masterKey)
	require.NoError(t, disable.MFADisable(user.ID, code))

	stored, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, stored.MFAEnabled)
	assert.Nil(t, stored.EncryptedTOTPSecret)

	remaining, err := users.ListUnconsumedBackupCodes(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestMFADisable_WrongCode_Fails(t *testing.T) {
	masterKey, err := credential.ParseMasterKey(testMasterKeyHex)
	require.NoError(t, err)
	user, _ := mfaEnabledUser(t, masterKey)
	users := newMFATestUsers(t, user)

	disable := NewMFADisableLogic(context.Background(), users, masterKey)
	err = disable.MFADisable(user.ID, "000000")
	require.Error(t, err)
	assert.Equal(t, errs.MfaError, errs.KindOf(err))
}

func TestRegenerateBackupCodes_ReplacesExistingSet(t *testing.T) {
	user := models.User{ID: uuid.New(), Email: "tech@example.com", Role: models.RoleTechnician}
	users := newMFATestUsers(t, user)
	ctx := context.Background()

	_, rows, err := credential.GenerateBackupCodes(user.ID)
	require.NoError(t, err)
	require.NoError(t, users.ReplaceBackupCodes(ctx, user.ID, rows))

	regen := NewRegenerateBackupCodesLogic(ctx, users)
	codes, err := regen.RegenerateBackupCodes(user.ID)
	require.NoError(t, err)
	assert.Len(t, codes, 10)

	remaining, err := users.ListUnconsumedBackupCodes(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, remaining, 10)
	for _, c := range remaining {
		assert.NotContains(t, rows, c)
	}
}
