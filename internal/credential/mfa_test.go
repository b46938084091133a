package credential

import (
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMasterKey(t *testing.T) *MasterKey {
	t.Helper()
	raw := make([]byte, MasterKeySize)
	_, err := rand.Read(raw)
	require.NoError(t, err)
	mk, err := ParseMasterKey(hex.EncodeToString(raw))
	require.NoError(t, err)
	return mk
}

// Property: MFA secret round-trip.
func TestMasterKey_RoundTrip(t *testing.T) {
	mk := testMasterKey(t)
	secret := make([]byte, 20)
	_, err := rand.Read(secret)
	require.NoError(t, err)

	stored, err := mk.Encrypt(secret)
	require.NoError(t, err)

	decrypted, err := mk.Decrypt(stored)
	require.NoError(t, err)
	defer decrypted.Zero()

	assert.Equal(t, secret, decrypted.Bytes())
}

func TestMasterKey_TamperedCiphertextFailsClosed(t *testing.T) {
	mk := testMasterKey(t)
	stored, err := mk.Encrypt([]byte("a 20 byte secret!!!!"))
	require.NoError(t, err)

	raw, err := hex.DecodeString(stored)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF // flip a bit inside the GCM tag
	tampered := hex.EncodeToString(raw)

	_, err = mk.Decrypt(tampered)
	require.Error(t, err)
}

func TestMasterKey_TamperedNonceFailsClosed(t *testing.T) {
	mk := testMasterKey(t)
	stored, err := mk.Encrypt([]byte("another secret value"))
	require.NoError(t, err)

	raw, err := hex.DecodeString(stored)
	require.NoError(t, err)
	raw[0] ^= 0xFF
	tampered := hex.EncodeToString(raw)

	_, err = mk.Decrypt(tampered)
	require.Error(t, err)
}

func TestParseMasterKey_RejectsWrongLength(t *testing.T) {
	_, err := ParseMasterKey("tooshort")
	assert.Error(t, err)
}

func TestSecretBuffer_PanicsAfterZero(t *testing.T) {
	mk := testMasterKey(t)
	stored, err := mk.Encrypt([]byte("zz-secret-bytes-here"))
	require.NoError(t, err)
	buf, err := mk.Decrypt(stored)
	require.NoError(t, err)

	buf.Zero()
	assert.Panics(t, func() { buf.Bytes() })
}
