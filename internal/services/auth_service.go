package services

import (
	"crypto/subtle"
	"errors"

	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the cost factor for admin password hashes
const BcryptCost = 12

var (
	// ErrInvalidCredentials is returned for a wrong username, password or TOTP code
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginDisabled is returned when no admin password hash is configured
	ErrLoginDisabled = errors.New("admin login is not configured")
)

// AuthService authenticates the operator account that uses the admin API
type AuthService struct {
	username     string
	passwordHash string
	totpSecret   string
}

func NewAuthService(username, passwordHash, totpSecret string) *AuthService {
	return &AuthService{
		username:     username,
		passwordHash: passwordHash,
		totpSecret:   totpSecret,
	}
}

// Authenticate checks the credentials. totpCode is required only when a TOTP
// secret is configured.
func (s *AuthService) Authenticate(username, password, totpCode string) error {
	if s.passwordHash == "" {
		return ErrLoginDisabled
	}

	if subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) != 1 {
		return ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}

	if s.totpSecret != "" && !totp.Validate(totpCode, s.totpSecret) {
		return ErrInvalidCredentials
	}

	return nil
}

// HashPassword hashes an admin password for the config file
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", errors.New("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
