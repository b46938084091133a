package credential

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/nosdesk/collab-core/internal/errs"
	"github.com/nosdesk/collab-core/internal/models"
)

const (
	backupCodeCount  = 10
	backupCodeLength = 10
	backupCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateBackupCodes produces backupCodeCount fresh plaintext codes and
// their bcrypt-hashed row form in one call. Each code is bcrypt-hashed
// individually before storage; the plaintext is returned exactly once.
func GenerateBackupCodes(userID uuid.UUID) (plaintexts []string, rows []models.BackupCode, err error) {
	now := time.Now().UTC()
	plaintexts = make([]string, 0, backupCodeCount)
	rows = make([]models.BackupCode, 0, backupCodeCount)

	for i := 0; i < backupCodeCount; i++ {
		code, err := randomBackupCode()
		if err != nil {
			return nil, nil, err
		}
		hash, err := HashPassword(code)
		if err != nil {
			return nil, nil, err
		}
		plaintexts = append(plaintexts, code)
		rows = append(rows, models.BackupCode{
			ID:        uuid.New(),
			UserID:    userID,
			CodeHash:  hash,
			CreatedAt: now,
		})
	}
	return plaintexts, rows, nil
}

func randomBackupCode() (string, error) {
	buf := make([]byte, backupCodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(backupCodeAlphabet))))
		if err != nil {
			return "", errs.Wrap(errs.StorageError, "credential: generate backup code", err)
		}
		buf[i] = backupCodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// MatchBackupCode scans unconsumed candidate rows for one whose hash
// matches code. The caller (internal/logic) is responsible for
// transactionally consuming the matched row id via
// repository.ConsumeBackupCode.
func MatchBackupCode(candidates []models.BackupCode, code string) (matched *models.BackupCode, ok bool) {
	for i := range candidates {
		if ok, _ := VerifyPassword(code, candidates[i].CodeHash); ok {
			return &candidates[i], true
		}
	}
	return nil, false
}
