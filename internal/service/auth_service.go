package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"kaptam/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenIssuer = "kaptam"
	roleAdmin   = "admin"

	MinPasswordLength = 8
)

// AdminClaims are the JWT claims issued to the admin.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService authenticates the single admin account and issues stateless tokens.
type AuthService struct {
	username     string
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	now          func() time.Time
	logger       *zerolog.Logger
}

func NewAuthService(cfg config.AdminConfig, logger *zerolog.Logger) *AuthService {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{
		username:     cfg.Username,
		passwordHash: []byte(cfg.PasswordHash),
		secret:       []byte(cfg.JWTSecret),
		ttl:          ttl,
		now:          time.Now,
		logger:       logger,
	}
}

// Login checks the credentials and returns a signed token with its expiry.
func (s *AuthService) Login(_ context.Context, username, password string) (string, time.Time, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", time.Time{}, invalidf("Username and password are required")
	}
	if len(s.passwordHash) == 0 {
		s.logger.Warn().Msg("admin login attempted but no password hash is configured")
		return "", time.Time{}, ErrInvalidCredentials
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	// always run bcrypt so a wrong username costs the same as a wrong password
	passErr := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		s.logger.Info().Str("username", username).Msg("admin login failed")
		return "", time.Time{}, ErrInvalidCredentials
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := AdminClaims{
		Role: roleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.username,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	s.logger.Info().Str("username", username).Msg("admin logged in")
	return token, expiresAt, nil
}

// VerifyToken validates signature, algorithm, expiry, issuer, subject and role.
func (s *AuthService) VerifyToken(raw string) (*AdminClaims, error) {
	if raw == "" {
		return nil, ErrUnauthenticated
	}

	claims := &AdminClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithSubject(s.username),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if !errors.Is(err, jwt.ErrTokenExpired) {
			s.logger.Debug().Err(err).Msg("token rejected")
		}
		return nil, ErrUnauthenticated
	}
	if claims.Role != roleAdmin {
		return nil, ErrUnauthenticated
	}
	return claims, nil
}

// HashPassword produces the bcrypt hash stored in ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", invalidf("Password must be at least %d characters", MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// GenerateSecret returns a random hex string suitable as JWT_SECRET.
func GenerateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
