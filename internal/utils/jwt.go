package utils // package utils provides helper functions for token creation and hashing

import (
    "errors"
    "strconv"
    "time"

    "github.com/golang-jwt/jwt/v5" // JWT library for creating and verifying signed tokens
)

// ErrInvalidToken is returned by ParseAccessToken for any token that is
// malformed, expired, signed with another key or missing a usable subject.
var ErrInvalidToken = errors.New("invalid token")

// AccessToken represents a signed JWT access token along with its expiry.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for a user.  The token
// carries identity only (sub, iat, exp); the account type is looked up on
// every request so that role changes take effect immediately.
func NewAccessToken(secret string, userID uint64, ttlMin int) (AccessToken, error) {
    now := time.Now().UTC()
    exp := now.Add(time.Duration(ttlMin) * time.Minute)
    claims := jwt.RegisteredClaims{
        Subject:   strconv.FormatUint(userID, 10),
        IssuedAt:  jwt.NewNumericDate(now),
        ExpiresAt: jwt.NewNumericDate(exp),
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies the signature and expiry of raw and returns the
// user id stored in its subject.
func ParseAccessToken(secret, raw string) (uint64, error) {
    claims := &jwt.RegisteredClaims{}
    tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
        // reject anything that is not HMAC so "none" or RS tokens never verify
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrInvalidToken
        }
        return []byte(secret), nil
    }, jwt.WithExpirationRequired())
    if err != nil || !tok.Valid {
        return 0, ErrInvalidToken
    }
    id, err := strconv.ParseUint(claims.Subject, 10, 64)
    if err != nil || id == 0 {
        return 0, ErrInvalidToken
    }
    return id, nil
}
