package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicbook/clinicbook/internal/scheduling"
)

func newTestManager(accessTTL, refreshTTL time.Duration) *JWTManager {
	return NewJWTManager("test-secret-key", "clinicbook-test", accessTTL, refreshTTL)
}

func testClaims() *Claims {
	clinicID := uuid.New()
	return &Claims{
		UserID:   uuid.New(),
		Username: "drperez",
		Role:     scheduling.RoleProfessional,
		ClinicID: &clinicID,
	}
}

func TestGenerateAndValidateTokenPair(t *testing.T) {
	m := newTestManager(15*time.Minute, 24*time.Hour)
	in := testClaims()

	pair, err := m.GenerateTokenPair(in)
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected non-empty tokens")
	}
	if pair.TokenType != "Bearer" {
		t.Errorf("token type = %q, want Bearer", pair.TokenType)
	}

	out, err := m.ValidateAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if out.UserID != in.UserID {
		t.Errorf("user id = %s, want %s", out.UserID, in.UserID)
	}
	if out.Username != in.Username {
		t.Errorf("username = %q, want %q", out.Username, in.Username)
	}
	if out.Role != in.Role {
		t.Errorf("role = %q, want %q", out.Role, in.Role)
	}
	if out.ClinicID == nil || *out.ClinicID != *in.ClinicID {
		t.Errorf("clinic id = %v, want %v", out.ClinicID, in.ClinicID)
	}
}

func TestValidateTokenTypeMismatch(t *testing.T) {
	m := newTestManager(15*time.Minute, 24*time.Hour)

	pair, err := m.GenerateTokenPair(testClaims())
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}

	if _, err := m.ValidateAccessToken(pair.RefreshToken); !errors.Is(err, ErrTokenTypeMismatch) {
		t.Errorf("access validation of refresh token: err = %v, want ErrTokenTypeMismatch", err)
	}
	if _, err := m.ValidateRefreshToken(pair.AccessToken); !errors.Is(err, ErrTokenTypeMismatch) {
		t.Errorf("refresh validation of access token: err = %v, want ErrTokenTypeMismatch", err)
	}
}

func TestValidateExpiredToken(t *testing.T) {
	m := newTestManager(-1*time.Minute, 24*time.Hour)

	pair, err := m.GenerateTokenPair(testClaims())
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}

	if _, err := m.ValidateAccessToken(pair.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("err = %v, want ErrTokenExpired", err)
	}
}

func TestValidateTamperedToken(t *testing.T) {
	m := newTestManager(15*time.Minute, 24*time.Hour)
	other := NewJWTManager("another-secret", "clinicbook-test", 15*time.Minute, 24*time.Hour)

	pair, err := other.GenerateTokenPair(testClaims())
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}

	if _, err := m.ValidateAccessToken(pair.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("err = %v, want ErrTokenInvalid", err)
	}
	if _, err := m.ValidateAccessToken("not-a-token"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("garbage token: err = %v, want ErrTokenInvalid", err)
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3cret-pass" {
		t.Fatal("hash equals plaintext")
	}

	if err := CheckPassword(hash, "s3cret-pass"); err != nil {
		t.Errorf("CheckPassword with correct password: %v", err)
	}
	if err := CheckPassword(hash, "wrong"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("err = %v, want ErrWrongPassword", err)
	}
}
