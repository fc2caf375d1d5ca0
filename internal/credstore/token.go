package credstore

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpired inspects the exp claim without verifying the signature.
// Tokens that cannot be parsed, or carry no exp, are left for the server
// to reject.
func TokenExpired(token string, now time.Time) bool {
	if token == "" {
		return true
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}
