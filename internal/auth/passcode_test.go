package auth

import (
	"errors"
	"testing"
)

func TestValidatePasscode(t *testing.T) {
	tests := []struct {
		passcode string
		wantErr  bool
	}{
		{"", true},
		{"short", true},
		{"1234567", true},
		{"12345678", false},
		{"a-valid-passcode", false},
	}

	for _, tt := range tests {
		err := ValidatePasscode(tt.passcode)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePasscode(%q) error = %v, wantErr %v", tt.passcode, err, tt.wantErr)
		}
	}
}

func TestHashAndCheckPasscode(t *testing.T) {
	hash, err := HashPasscode("dorm-a-rocks")
	if err != nil {
		t.Fatalf("HashPasscode: %v", err)
	}

	if err := CheckPasscode(hash, "dorm-a-rocks"); err != nil {
		t.Errorf("expected match, got %v", err)
	}
	if err := CheckPasscode(hash, "wrong"); !errors.Is(err, ErrPasscodeMismatch) {
		t.Errorf("expected ErrPasscodeMismatch, got %v", err)
	}
	if err := CheckPasscode("not-a-hash", "x"); err == nil || errors.Is(err, ErrPasscodeMismatch) {
		t.Errorf("expected a hash error, got %v", err)
	}
}

func TestGeneratePasscode(t *testing.T) {
	a, err := GeneratePasscode(16)
	if err != nil {
		t.Fatalf("GeneratePasscode: %v", err)
	}
	if len(a) != 16 {
		t.Errorf("expected 16 characters, got %d", len(a))
	}
	if err := ValidatePasscode(a); err != nil {
		t.Errorf("generated passcode is invalid: %v", err)
	}
	b, _ := GeneratePasscode(16)
	if a == b {
		t.Error("expected different passcodes")
	}
}
