package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// CredentialEnv names the environment variable carrying the queue API key.
// The credential never appears in the YAML config file.
const CredentialEnv = "FAL_KEY"

// ErrMissingCredential is returned when no API key can be found. Dry runs
// do not need one.
var ErrMissingCredential = fmt.Errorf("%w: %s not set (export it or add it to .env or ~/.env)",
	ErrInvalidConfig, CredentialEnv)

// LoadCredential sources the API key from the environment, falling back to
// a .env file in the working directory and then ~/.env. Variables already
// present in the environment are never overridden.
func LoadCredential() (string, error) {
	_ = godotenv.Load()
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".env"))
	}

	key := os.Getenv(CredentialEnv)
	if key == "" {
		return "", ErrMissingCredential
	}
	return key, nil
}
