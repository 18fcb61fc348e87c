package auth

import (
	"crypto/subtle"

	"github.com/rysavy-ondrej/project-inventor/internal/crypto"
)

// VerifyLogin checks a POST /auth/token credential pair against the
// configured authentication password. The original hashes
// username+expected_password and compares against the client-supplied
// digest; reproduced here with a constant-time comparison.
func VerifyLogin(username, clientDigest, configuredPassword string) bool {
	expected := crypto.Hash(username + configuredPassword)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(clientDigest)) == 1
}
