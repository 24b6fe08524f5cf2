package utils

import "golang.org/x/crypto/bcrypt"

// MinPasswordLen applies to account creation and profile updates;
// MinResetPasswordLen to passwords chosen through a reset link.
const (
	MinPasswordLen      = 6
	MinResetPasswordLen = 8
)

// HashPassword hashes plain with bcrypt.  A cost outside bcrypt's range
// (e.g. an unset BCRYPT_COST) falls back to bcrypt.DefaultCost.
func HashPassword(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether plain matches the stored hash.  An empty
// or malformed hash never matches.
func VerifyPassword(hash, plain string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
