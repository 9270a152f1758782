// Package auth gates the drop behind a single shared password and issues
// short-lived JWT session tokens carried in a cookie.
package auth

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/haoyun/filedrop/internal/config"
)

// Service validates the drop password and mints session tokens.
type Service struct {
	secret       []byte
	passwordHash []byte
	ttl          time.Duration
	parser       *jwt.Parser
	logger       *log.Logger
}

// NewService constructs an auth service. When the config carries a plain
// password instead of a bcrypt hash, the hash is derived here so the plain
// text never lives beyond startup.
func NewService(cfg config.AuthConfig, logger *log.Logger) (*Service, error) {
	hash := []byte(cfg.PasswordHash)
	if len(hash) == 0 {
		if cfg.Password == "" {
			return nil, fmt.Errorf("no password configured: set FILEDROP_PASSWORD or FILEDROP_PASSWORD_HASH")
		}
		derived, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), cfg.BcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		hash = derived
	}

	return &Service{
		secret:       []byte(cfg.JWTSecret),
		passwordHash: hash,
		ttl:          cfg.TokenTTL,
		parser:       jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name})),
		logger:       logger,
	}, nil
}

// TokenTTL returns the configured session lifetime.
func (s *Service) TokenTTL() time.Duration {
	return s.ttl
}

// Login checks the password and returns a signed session token.
func (s *Service) Login(password string) (string, error) {
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		return "", ErrWrongPassword
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"user": "authenticated",
		"iat":  now.Unix(),
		"exp":  now.Add(s.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate checks a session token's signature and expiry.
func (s *Service) Validate(tokenString string) error {
	if tokenString == "" {
		return ErrUnauthorized
	}

	parsed, err := s.parser.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return ErrUnauthorized
	}
	return nil
}
