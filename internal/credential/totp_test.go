package credential

import (
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func TestVerifyTOTP_AcceptsCurrentStep(t *testing.T) {
	key, err := GenerateTOTPSecret("nosdesk", "alice@example.com")
	require.NoError(t, err)

	code, err := totp.GenerateCode(key.Secret(), time.Now().UTC())
	require.NoError(t, err)

	require.True(t, VerifyTOTP(key.Secret(), code))
}

func TestVerifyTOTP_AcceptsPreviousStepWithinSkew(t *testing.T) {
	key, err := GenerateTOTPSecret("nosdesk", "bob@example.com")
	require.NoError(t, err)

	prevStep := time.Now().UTC().Add(-30 * time.Second)
	code, err := totp.GenerateCode(key.Secret(), prevStep)
	require.NoError(t, err)

	require.True(t, VerifyTOTP(key.Secret(), code))
}

func TestVerifyTOTP_RejectsOutsideSkewWindow(t *testing.T) {
	key, err := GenerateTOTPSecret("nosdesk", "carol@example.com")
	require.NoError(t, err)

	farStep := time.Now().UTC().Add(-10 * time.Minute)
	code, err := totp.GenerateCode(key.Secret(), farStep)
	require.NoError(t, err)

	require.False(t, VerifyTOTP(key.Secret(), code))
}
