package identity

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost        = 12
	minPasscodeLength = 8
)

// HashPasscode hashes a household member's passcode for storage.
func HashPasscode(passcode string) (string, error) {
	if len(passcode) < minPasscodeLength {
		return "", fmt.Errorf("passcode must be at least %d characters long", minPasscodeLength)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(passcode), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckPasscode reports whether the passcode matches the stored hash.
func CheckPasscode(hashedPasscode, passcode string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPasscode), []byte(passcode)) == nil
}
