package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// MinPasscodeLength is the shortest passcode accepted.
const MinPasscodeLength = 8

// ErrPasscodeMismatch is returned when a passcode does not match the hash.
var ErrPasscodeMismatch = errors.New("passcode does not match")

// ValidatePasscode checks that a passcode meets the minimum requirements.
func ValidatePasscode(passcode string) error {
	if len(passcode) < MinPasscodeLength {
		return fmt.Errorf("passcode must be at least %d characters", MinPasscodeLength)
	}
	return nil
}

// HashPasscode returns the bcrypt hash of passcode.
func HashPasscode(passcode string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing passcode: %w", err)
	}
	return string(hash), nil
}

// CheckPasscode compares passcode with a hash from HashPasscode.
func CheckPasscode(hash, passcode string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(passcode))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasscodeMismatch
	}
	if err != nil {
		return fmt.Errorf("checking passcode: %w", err)
	}
	return nil
}

// GeneratePasscode creates a random passcode of the given length.
func GeneratePasscode(length int) (string, error) {
	const charset = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
