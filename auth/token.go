package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims identifies the owner a bearer token authenticates as. The engine
// has a single bootstrap credential (the admin account); Owner is the
// account identifier every position/order request is scoped to once the
// token is validated.
type Claims struct {
	Owner string `json:"owner"`
	jwt.RegisteredClaims
}

const tokenTTL = 24 * time.Hour

// generateJWT signs a token for owner with secret.
func generateJWT(owner string, secret []byte) (string, error) {
	claims := &Claims{
		Owner: owner,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "posengine",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// validateJWT parses and verifies tokenString against secret.
func validateJWT(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	return claims, nil
}
