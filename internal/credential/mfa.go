package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/nosdesk/collab-core/internal/errs"
)

// MasterKeySize is the required length, in raw bytes, of the process-wide
// MFA encryption key: 64 hex chars decode to 32 bytes for AES-256.
const MasterKeySize = 32

// nonceSize is the standard AES-GCM nonce length.
const nonceSize = 12

// SecretBuffer holds decrypted secret bytes and must be zeroed by the
// caller via defer once it is no longer needed. Reading after Zero
// panics rather than silently returning stale or garbage data.
type SecretBuffer struct {
	b      []byte
	zeroed bool
}

func (s *SecretBuffer) Bytes() []byte {
	if s.zeroed {
		panic("credential: SecretBuffer read after Zero")
	}
	return s.b
}

func (s *SecretBuffer) String() string {
	return string(s.Bytes())
}

func (s *SecretBuffer) Zero() {
	for i := range s.b {
		s.b[i] = 0
	}
	s.zeroed = true
}

// MasterKey is the process-wide AES-256-GCM key, parsed once at start-up
// from the MFA_ENCRYPTION_KEY environment variable.
type MasterKey struct {
	key [MasterKeySize]byte
}

// ParseMasterKey decodes a 64-hex-char master key. Missing or malformed
// keys must make the process refuse to start; callers should treat a
// non-nil error here as fatal at boot, never at request time.
func ParseMasterKey(hexKey string) (*MasterKey, error) {
	if len(hexKey) != MasterKeySize*2 {
		return nil, fmt.Errorf("credential: MFA_ENCRYPTION_KEY must be exactly %d hex chars, got %d", MasterKeySize*2, len(hexKey))
	}
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("credential: MFA_ENCRYPTION_KEY is not valid hex: %w", err)
	}
	var mk MasterKey
	copy(mk.key[:], raw)
	return &mk, nil
}

func (m *MasterKey) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(m.key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt produces the hex-encoded nonce||ciphertext||tag form used for
// storing a TOTP secret at rest.
func (m *MasterKey) Encrypt(plaintext []byte) (string, error) {
	gcm, err := m.gcm()
	if err != nil {
		return "", errs.Wrap(errs.CryptoError, "credential: init AES-GCM", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", errs.Wrap(errs.CryptoError, "credential: generate nonce", err)
	}
	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return hex.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. A forged or corrupted ciphertext — including a
// single flipped bit in the tag — returns errs.CryptoError wrapping
// errs.ErrTampered, never panics.
func (m *MasterKey) Decrypt(stored string) (*SecretBuffer, error) {
	raw, err := hex.DecodeString(stored)
	if err != nil {
		return nil, errs.Wrap(errs.CryptoError, "credential: decode ciphertext", errs.ErrTampered)
	}
	gcm, err := m.gcm()
	if err != nil {
		return nil, errs.Wrap(errs.CryptoError, "credential: init AES-GCM", err)
	}
	if len(raw) < nonceSize {
		return nil, errs.Wrap(errs.CryptoError, "credential: ciphertext too short", errs.ErrTampered)
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errs.Wrap(errs.CryptoError, "credential: AES-GCM tag mismatch", errs.ErrTampered)
	}
	return &SecretBuffer{b: plaintext}, nil
}
