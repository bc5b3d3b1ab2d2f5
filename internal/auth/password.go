package auth

// PASSWORDS:
// Accounts store only a bcrypt hash. bcrypt salts every hash and embeds the salt
// and cost in its output, so the users table needs a single TEXT column:
//
//	$2a$12$<22-char salt><31-char hash>
//
// The minimum length mirrors the hosted auth service, which rejects sign-ups
// with passwords shorter than six characters.

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/scorecast/internal/apperror"
)

const (
	defaultCost = 12

	// MinPasswordLength is the shortest password sign-up accepts.
	MinPasswordLength = 6

	// maxPasswordBytes is bcrypt's input limit; longer inputs are silently truncated by it.
	maxPasswordBytes = 72
)

// ErrInvalidPassword is returned by Verify when the password does not match.
var ErrInvalidPassword = errors.New("auth: invalid password")

// PasswordService hashes and verifies passwords with a fixed bcrypt cost.
type PasswordService struct {
	cost int
}

func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest uses the given cost; bcrypt.MinCost keeps tests fast.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash validates the password's length and returns its bcrypt hash.
// Length problems are apperror.ErrValidation with the service's wording.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) < MinPasswordLength {
		return "", apperror.ValidationFailed("password",
			fmt.Sprintf("Password should be at least %d characters.", MinPasswordLength))
	}
	if len(plaintext) > maxPasswordBytes {
		return "", apperror.ValidationFailed("password",
			fmt.Sprintf("Password cannot be longer than %d characters.", maxPasswordBytes))
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify returns nil when plaintext matches hash and ErrInvalidPassword when it doesn't.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPassword
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
