package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrNoAPIKey is returned when no API key hash is configured.
var ErrNoAPIKey = errors.New("api key authentication not configured")

// HashAPIKey hashes a webhook API key with the configured cost. Only the hash
// is kept in configuration.
func HashAPIKey(key string, cost int) (string, error) {
	if key == "" {
		return "", errors.New("api key is empty")
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CompareAPIKey verifies a presented key against its hashed value.
func CompareAPIKey(hashed, plain string) error {
	if hashed == "" {
		return ErrNoAPIKey
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
