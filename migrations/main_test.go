package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faaxis/internal/utils"
)

func TestHashPasswordCmd(t *testing.T) {
	cmd := createHashPasswordCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"adminPassword1"})

	require.NoError(t, cmd.Execute())

	hash := strings.TrimSpace(out.String())
	ok, needsRehash := utils.VerifyPassword("adminPassword1", hash)
	assert.True(t, ok)
	assert.False(t, needsRehash)
}

func TestSeedAdminCredentials(t *testing.T) {
	t.Setenv("ADMIN_SEED_EMAIL", "  Admin@Example.com ")
	t.Setenv("ADMIN_SEED_PASSWORD_HASH", "$2a$10$abc")

	email, hash := seedAdminCredentials()
	assert.Equal(t, "admin@example.com", email)
	assert.Equal(t, "$2a$10$abc", hash)
}

func TestMigrationsRegistered(t *testing.T) {
	assert.Len(t, Migrations.Sorted(), 3)
}

func TestResetCmd_RequiresConfirmation(t *testing.T) {
	cmd := createResetCmd()
	cmd.SetArgs(nil)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
}
