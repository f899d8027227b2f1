// Package auth validates bearer API keys against configured SHA-256 hashes.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tjfontaine/helpdesk-router/internal/pkg/config"
)

// ErrInvalidAPIKey is returned for keys that match no configured hash.
var ErrInvalidAPIKey = errors.New("invalid API key")

// Client is the caller a key belongs to.
type Client struct {
	Description string
}

// Authenticator validates API keys.
type Authenticator struct {
	clients map[string]*Client // keyhash -> client
}

// NewAuthenticator builds an authenticator from configured key hashes.
// It returns nil when no keys are configured, which disables authentication.
func NewAuthenticator(keys []config.APIKeyConfig) *Authenticator {
	if len(keys) == 0 {
		return nil
	}

	a := &Authenticator{clients: make(map[string]*Client, len(keys))}
	for _, key := range keys {
		a.clients[strings.ToLower(key.KeyHash)] = &Client{Description: key.Description}
	}
	return a
}

// ValidateAPIKey returns the client owning apiKey.
func (a *Authenticator) ValidateAPIKey(apiKey string) (*Client, error) {
	keyHash := HashAPIKey(apiKey)

	for hash, client := range a.clients {
		// Constant-time comparison to prevent timing attacks
		if subtle.ConstantTimeCompare([]byte(keyHash), []byte(hash)) == 1 {
			return client, nil
		}
	}
	return nil, ErrInvalidAPIKey
}

// ExtractAPIKey extracts the API key from the Authorization header
func ExtractAPIKey(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	// Support "Bearer <key>" format
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid Authorization header format")
	}
	if !strings.EqualFold(parts[0], "bearer") {
		return "", fmt.Errorf("unsupported authorization scheme")
	}

	return strings.TrimSpace(parts[1]), nil
}

// HashAPIKey creates a SHA-256 hash of an API key for storage
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}

// GenerateAPIKey returns a random key with the given prefix and its hash.
func GenerateAPIKey(prefix string) (key, hash string, err error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	key = prefix + hex.EncodeToString(buf)
	return key, HashAPIKey(key), nil
}
