// Package credential is the Credential Store: password hashing, TOTP
// secret encryption at rest, TOTP verification, and backup codes.
package credential

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/nosdesk/collab-core/internal/errs"
)

// BcryptCost is the target cost for password hashing.
const BcryptCost = 12

// HashPassword bcrypt-hashes a plaintext password at BcryptCost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", errs.Wrap(errs.StorageError, "credential: hash password", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether plaintext matches hash, and whether the
// hash should be re-hashed because it was stored at a lower cost than
// the current target.
func VerifyPassword(plaintext, hash string) (ok bool, needsRehash bool) {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)); err != nil {
		return false, false
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true, false
	}
	return true, cost < BcryptCost
}
