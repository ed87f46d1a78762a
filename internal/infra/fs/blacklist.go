package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	logging "payout-engine/internal/infra/log"

	"go.uber.org/zap"
)

const (
	BlacklistFileName = "blacklisted_accounts.json"
)

// BlacklistedAccountsData is the on-disk shape of the account blacklist.
// Accounts listed here never receive a payout, regardless of holdings.
type BlacklistedAccountsData struct {
	Accounts []string `json:"accounts"`
}

func blacklistPath(dataDir string) string {
	return filepath.Join(dataDir, BlacklistFileName)
}

func LoadBlacklistedAccounts(dataDir string) ([]string, error) {
	filePath := blacklistPath(dataDir)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		logging.LogDebug("Blacklist file does not exist, returning empty list", zap.String("file", filePath))
		return []string{}, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read blacklist file: %w", err)
	}

	if len(data) == 0 || strings.TrimSpace(string(data)) == "" || strings.TrimSpace(string(data)) == "{}" {
		logging.LogDebug("Blacklist file is empty, returning empty list", zap.String("file", filePath))
		return []string{}, nil
	}

	var accountsData BlacklistedAccountsData
	if err := LoadJSON(filePath, &accountsData); err != nil {
		return nil, err
	}

	logging.LogDebug("Loaded blacklisted accounts from file",
		zap.String("file", filePath),
		zap.Int("count", len(accountsData.Accounts)))

	return accountsData.Accounts, nil
}

func SaveBlacklistedAccounts(dataDir string, accounts []string) error {
	filePath := blacklistPath(dataDir)

	if err := SaveJSON(filePath, BlacklistedAccountsData{Accounts: accounts}); err != nil {
		return fmt.Errorf("failed to save blacklist: %w", err)
	}

	logging.LogInfo("Saved blacklisted accounts to file",
		zap.String("file", filePath),
		zap.Int("count", len(accounts)))

	return nil
}

func AddBlacklistedAccount(dataDir, account string) error {
	if account == "" {
		return fmt.Errorf("account cannot be empty")
	}

	accounts, err := LoadBlacklistedAccounts(dataDir)
	if err != nil {
		return fmt.Errorf("failed to load blacklist: %w", err)
	}

	for _, a := range accounts {
		if strings.TrimSpace(a) == account {
			logging.LogDebug("Account already blacklisted", zap.String("account", account))
			return nil
		}
	}

	accounts = append(accounts, account)

	if err := SaveBlacklistedAccounts(dataDir, accounts); err != nil {
		return err
	}

	// Read back to confirm the entry survived the save. A silently dropped
	// blacklist entry would send a payout to an excluded account.
	verifyAccounts, err := LoadBlacklistedAccounts(dataDir)
	if err != nil {
		logging.LogWarn("Failed to verify saved blacklist", zap.Error(err))
	} else {
		found := false
		for _, a := range verifyAccounts {
			if strings.TrimSpace(a) == account {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("account was not found in file after save")
		}
	}

	logging.LogInfo("Added account to blacklist",
		zap.String("account", account),
		zap.Int("totalCount", len(accounts)))

	return nil
}

func RemoveBlacklistedAccount(dataDir, account string) error {
	if account == "" {
		return fmt.Errorf("account cannot be empty")
	}

	accounts, err := LoadBlacklistedAccounts(dataDir)
	if err != nil {
		return fmt.Errorf("failed to load blacklist: %w", err)
	}

	found := false
	var updated []string
	for _, a := range accounts {
		if strings.TrimSpace(a) != account {
			updated = append(updated, a)
		} else {
			found = true
		}
	}

	if !found {
		return fmt.Errorf("account not found in blacklist")
	}

	if err := SaveBlacklistedAccounts(dataDir, updated); err != nil {
		return err
	}

	logging.LogInfo("Removed account from blacklist",
		zap.String("account", account),
		zap.Int("totalCount", len(updated)))

	return nil
}

func IsAccountBlacklisted(account string, blacklisted []string) bool {
	if account == "" || len(blacklisted) == 0 {
		return false
	}
	for _, a := range blacklisted {
		if strings.TrimSpace(a) == account {
			return true
		}
	}
	return false
}
