package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

var adjectives = []string{
	"swift", "brave", "clever", "bold", "mighty",
	"silent", "wild", "golden", "iron", "silver",
	"dark", "bright", "storm", "shadow", "fire",
	"ice", "thunder", "wind", "steel", "diamond",
}

var nouns = []string{
	"falcon", "tiger", "dragon", "wolf", "eagle",
	"bear", "lion", "hawk", "phoenix", "panther",
	"fox", "raven", "viper", "shark", "lynx",
	"cobra", "stallion", "jaguar", "orca", "leopard",
}

var usernameInvalid = regexp.MustCompile(`[^a-z0-9_]+`)

// GenerateUsername creates a random username in the format
// "adjective_noun_XXXX" where XXXX is a random 4-digit number
func GenerateUsername() (string, error) {
	adjIdx, err := rand.Int(rand.Reader, big.NewInt(int64(len(adjectives))))
	if err != nil {
		return "", fmt.Errorf("failed to generate random adjective: %w", err)
	}

	nounIdx, err := rand.Int(rand.Reader, big.NewInt(int64(len(nouns))))
	if err != nil {
		return "", fmt.Errorf("failed to generate random noun: %w", err)
	}

	suffix, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("failed to generate random suffix: %w", err)
	}

	return fmt.Sprintf("%s_%s_%04d",
		adjectives[adjIdx.Int64()],
		nouns[nounIdx.Int64()],
		suffix.Int64(),
	), nil
}

// NormalizeUsername lowercases a handle and strips characters outside
// [a-z0-9_]. It returns "" when nothing usable is left.
func NormalizeUsername(handle string) string {
	handle = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
	return usernameInvalid.ReplaceAllString(handle, "")
}
