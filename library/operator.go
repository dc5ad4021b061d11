package library

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// DefaultOperatorUser and DefaultOperatorPassword are used when no credentials are configured.
const (
	DefaultOperatorUser     = "admin"
	DefaultOperatorPassword = "1234"
)

// Operator is the single shared role allowed to run the desk.
type Operator struct {
	Username     string
	PasswordHash []byte
}

// NewOperator builds an operator from a bcrypt hash. An empty hash falls back to the
// default password.
func NewOperator(username, passwordHash string) (*Operator, error) {
	if strings.TrimSpace(username) == "" {
		username = DefaultOperatorUser
	}
	if passwordHash == "" {
		h, err := HashPassword(DefaultOperatorPassword)
		if err != nil {
			return nil, err
		}
		passwordHash = h
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, fmt.Errorf("operator password hash: %w", err)
	}
	return &Operator{Username: username, PasswordHash: []byte(passwordHash)}, nil
}

// Authenticate checks the given credentials against the operator.
func (o *Operator) Authenticate(username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(o.Username)) == 1
	if err := bcrypt.CompareHashAndPassword(o.PasswordHash, []byte(password)); err != nil || !userOK {
		return ErrUnauthorized
	}
	return nil
}

// HashPassword returns a bcrypt hash suitable for LIBRARY_OPERATOR_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}
