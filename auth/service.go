// Package auth issues and validates the bearer tokens gating the HTTP and
// WebSocket surfaces. Grounded on auth/service.go's Service (bcrypt admin
// credential check + JWT issuance) and auth/token.go's Claims/sign/verify
// pair, trimmed from a multi-account trader login to the engine's single
// bootstrap admin credential — position/order requests are scoped by the
// `owner` the caller supplies, not by a per-account password.
package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/rtx-labs/posengine/logging"
)

// ErrInvalidCredentials is returned for any login failure, deliberately
// identical whether the username or the password was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service validates the bootstrap admin login and issues/validates the
// bearer tokens used across the HTTP and WebSocket surfaces.
type Service struct {
	adminUsername string
	adminHash     []byte
	jwtSecret     []byte
	logger        *logging.Logger
}

// NewService constructs a Service. adminPasswordHash must be a bcrypt
// hash (ADMIN_PASSWORD_HASH); jwtSecret signs issued tokens (JWT_SECRET).
func NewService(adminUsername string, adminPasswordHash, jwtSecret []byte, logger *logging.Logger) *Service {
	if adminUsername == "" {
		adminUsername = "admin"
	}
	return &Service{
		adminUsername: adminUsername,
		adminHash:     adminPasswordHash,
		jwtSecret:     jwtSecret,
		logger:        logger,
	}
}

// Login checks username/password against the bootstrap admin credential
// and, on success, issues a token scoped to owner (the admin username).
func (s *Service) Login(username, password string) (string, error) {
	if username != s.adminUsername {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(s.adminHash, []byte(password)); err != nil {
		if s.logger != nil {
			s.logger.Warn("login failed", logging.Any("username", username))
		}
		return "", ErrInvalidCredentials
	}
	token, err := generateJWT(username, s.jwtSecret)
	if err != nil {
		return "", err
	}
	return token, nil
}

// ValidateToken validates a bearer token against the service's secret.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return validateJWT(tokenString, s.jwtSecret)
}
