package credential

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/nosdesk/collab-core/internal/errs"
)

// totpSecretSize is the raw secret length in bytes. pquerna/otp
// base32-encodes this internally when SecretSize is given to GenerateOpts.
const totpSecretSize = 20

// GenerateTOTPSecret creates a new RFC 6238 secret for a user. issuer and
// accountName populate the otpauth:// URI an authenticator app scans.
func GenerateTOTPSecret(issuer, accountName string) (key *otp.Key, err error) {
	key, err = totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		SecretSize:  totpSecretSize,
		Algorithm:   otp.AlgorithmSHA1,
		Digits:      otp.DigitsSix,
		Period:      30,
	})
	if err != nil {
		return nil, errs.Wrap(errs.CryptoError, "credential: generate TOTP secret", err)
	}
	return key, nil
}

// VerifyTOTP checks code against secret (base32, as stored inside the
// encrypted blob), allowing the current step and one step of clock skew
// in either direction.
func VerifyTOTP(secretBase32, code string) bool {
	ok, _ := totp.ValidateCustom(code, secretBase32, time.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return ok
}
