package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPayout_Blacklist_MissingFileMeansEmpty(t *testing.T) {
	t.Parallel()

	accounts, err := LoadBlacklistedAccounts(t.TempDir())
	require.NoError(t, err)
	require.Empty(t, accounts)
}

func TestPayout_Blacklist_SaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, SaveBlacklistedAccounts(dir, []string{"ufm.pay", "upfundme"}))

	accounts, err := LoadBlacklistedAccounts(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"ufm.pay", "upfundme"}, accounts)
}

func TestPayout_Blacklist_AddIsIdempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, AddBlacklistedAccount(dir, "spammer"))
	require.NoError(t, AddBlacklistedAccount(dir, "spammer"))

	accounts, err := LoadBlacklistedAccounts(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"spammer"}, accounts)
}

func TestPayout_Blacklist_AddRejectsEmptyAccount(t *testing.T) {
	t.Parallel()

	require.Error(t, AddBlacklistedAccount(t.TempDir(), ""))
}

func TestPayout_Blacklist_RemoveExistingAccount(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, SaveBlacklistedAccounts(dir, []string{"alice", "bob", "carol"}))

	require.NoError(t, RemoveBlacklistedAccount(dir, "bob"))

	accounts, err := LoadBlacklistedAccounts(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "carol"}, accounts)
}

func TestPayout_Blacklist_RemoveUnknownAccountFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, SaveBlacklistedAccounts(dir, []string{"alice"}))

	err := RemoveBlacklistedAccount(dir, "mallory")
	require.ErrorContains(t, err, "not found")
}

func TestPayout_Blacklist_EmptyFileMeansEmpty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, BlacklistFileName), []byte("{}"), 0644))

	accounts, err := LoadBlacklistedAccounts(dir)
	require.NoError(t, err)
	require.Empty(t, accounts)
}

func TestPayout_Blacklist_IsAccountBlacklisted(t *testing.T) {
	t.Parallel()

	blacklisted := []string{"ufm.pay", " upfundme "}

	require.True(t, IsAccountBlacklisted("ufm.pay", blacklisted))
	require.True(t, IsAccountBlacklisted("upfundme", blacklisted), "stored names are trimmed before comparing")
	require.False(t, IsAccountBlacklisted("alice", blacklisted))
	require.False(t, IsAccountBlacklisted("", blacklisted))
	require.False(t, IsAccountBlacklisted("alice", nil))
}
