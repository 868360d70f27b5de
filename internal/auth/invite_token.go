// Package auth - invite_token.go generates and hashes invitation tokens.
// Only the SHA-256 hash of a token is stored; the raw token appears once in
// the create response and is otherwise only seen inside the invite link.
// SHA-256 rather than bcrypt because acceptance must look the token up by
// hash, and the 32 random bytes make brute force a non-issue.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// inviteTokenLength is the length of the random token in bytes
const inviteTokenLength = 32

// GenerateInviteToken creates a new random invite token.
// Returns: raw token (to embed in the invite link), SHA-256 hash (to store).
func GenerateInviteToken() (token string, hash string, err error) {
	randomBytes := make([]byte, inviteTokenLength)
	if _, err = rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	token = base64.RawURLEncoding.EncodeToString(randomBytes)
	return token, HashInviteToken(token), nil
}

// HashInviteToken returns the hex-encoded SHA-256 hash of a raw invite token
func HashInviteToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
