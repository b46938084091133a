package credential

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateBackupCodes_ProducesTenUniqueUppercaseCodes(t *testing.T) {
	plaintexts, rows, err := GenerateBackupCodes(uuid.New())
	require.NoError(t, err)
	require.Len(t, plaintexts, backupCodeCount)
	require.Len(t, rows, backupCodeCount)

	seen := make(map[string]bool)
	for _, code := range plaintexts {
		assert.Len(t, code, backupCodeLength)
		for _, r := range code {
			assert.Contains(t, backupCodeAlphabet, string(r))
		}
		assert.False(t, seen[code], "duplicate backup code generated")
		seen[code] = true
	}
}

func TestMatchBackupCode_OneShot(t *testing.T) {
	plaintexts, rows, err := GenerateBackupCodes(uuid.New())
	require.NoError(t, err)

	match, ok := MatchBackupCode(rows, plaintexts[3])
	require.True(t, ok)
	assert.Equal(t, rows[3].ID, match.ID)

	_, ok = MatchBackupCode(rows, "NOTREAL123")
	assert.False(t, ok)
}
