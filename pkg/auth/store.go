package auth

import (
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/zalando/go-keyring"
)

const (
	tokenFileName  = "github_token"
	keyringService = "trustpulse"
	keyringUser    = "github_token"

	tokenFileMode = 0600
)

// SaveToken stores the GitHub token in the OS keychain, falling back to
// a file under dir when no keychain is available.
func SaveToken(dir, token string) error {
	if err := keyring.Set(keyringService, keyringUser, token); err != nil {
		slog.Warn("keychain unavailable, falling back to file", "error", err)
		return saveTokenFile(dir, token)
	}

	// Clean up legacy file if it exists
	os.Remove(path.Join(dir, tokenFileName))

	return nil
}

// LoadToken reads the stored GitHub token, migrating file-stored tokens
// into the keychain when possible. Returns an empty token without error
// when nothing is stored.
func LoadToken(dir string) (string, error) {
	token, err := keyring.Get(keyringService, keyringUser)
	if err == nil && token != "" {
		return token, nil
	}

	token, err = getTokenFile(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	if migrateErr := keyring.Set(keyringService, keyringUser, token); migrateErr == nil {
		slog.Info("migrated token from file to OS keychain")
		os.Remove(path.Join(dir, tokenFileName))
	}

	return token, nil
}

func saveTokenFile(dir, token string) error {
	return os.WriteFile(path.Join(dir, tokenFileName), []byte(token), tokenFileMode)
}

func getTokenFile(dir string) (string, error) {
	tokenPath := path.Join(dir, tokenFileName)
	b, err := os.ReadFile(tokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", err
		}
		return "", fmt.Errorf("reading token file %s: %w", tokenPath, err)
	}
	return string(b), nil
}
