package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/scorecast/internal/apperror"
)

func newTestPasswordService() *PasswordService {
	return NewPasswordServiceForTest(bcrypt.MinCost)
}

// =========================================================================
// Hash
// =========================================================================

func TestHash_OutputLooksBcrypt(t *testing.T) {
	ps := newTestPasswordService()

	hash, err := ps.Hash("password123")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("Hash() does not look like a bcrypt hash: %q", hash)
	}
}

func TestHash_SaltIsRandom(t *testing.T) {
	ps := newTestPasswordService()

	hash1, _ := ps.Hash("same-password")
	hash2, _ := ps.Hash("same-password")
	if hash1 == hash2 {
		t.Error("Hash() produced identical hashes for the same password")
	}
}

func TestHash_LengthLimits(t *testing.T) {
	ps := newTestPasswordService()

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"too short", "12345", true},
		{"minimum", "123456", false},
		{"bcrypt limit", strings.Repeat("a", 72), false},
		{"over bcrypt limit", strings.Repeat("a", 73), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ps.Hash(tt.password)
			if tt.wantErr {
				if !errors.Is(err, apperror.ErrValidation) {
					t.Errorf("Hash() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Hash() unexpected error = %v", err)
			}
		})
	}
}

func TestHash_ShortPasswordMessage(t *testing.T) {
	_, err := newTestPasswordService().Hash("abc")
	if got := apperror.MessageOf(err); got != "Password should be at least 6 characters." {
		t.Errorf("message = %q", got)
	}
}

// =========================================================================
// Verify
// =========================================================================

func TestVerify(t *testing.T) {
	ps := newTestPasswordService()

	hash, err := ps.Hash("correct-horse")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if err := ps.Verify(hash, "correct-horse"); err != nil {
		t.Errorf("Verify() with correct password error = %v", err)
	}
	if err := ps.Verify(hash, "wrong-horse"); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("Verify() with wrong password error = %v, want ErrInvalidPassword", err)
	}
	if err := ps.Verify("not-a-hash", "correct-horse"); err == nil || errors.Is(err, ErrInvalidPassword) {
		t.Errorf("Verify() with malformed hash error = %v, want a comparison error", err)
	}
}
