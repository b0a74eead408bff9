// Package auth holds the credential primitive, opaque session tokens
// and the sliding-expiry token validator.
package auth

import "golang.org/x/crypto/bcrypt"

// MinPasswordLen is enforced at sign-up.
const MinPasswordLen = 8

// HashPassword salts and hashes a password for storage. The salt is
// embedded in the returned hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether the candidate matches the stored hash.
func VerifyPassword(hash, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}
