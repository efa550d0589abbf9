package authkit

import (
	"errors"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 6
	minUsernameLength = 3

	bcryptCost = 12
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validation errors carry the caller-facing message verbatim.
var (
	ErrSignupFieldsMissing = errors.New("Username, email, and password are required")
	ErrSigninFieldsMissing = errors.New("Email and password are required")
	ErrInvalidEmailFormat  = errors.New("Invalid email format")
	ErrPasswordTooShort    = errors.New("Password must be at least 6 characters long")
	ErrUsernameTooShort    = errors.New("Username must be at least 3 characters long")
)

// ValidateSignup checks signup input before any store access.
func ValidateSignup(username string, email string, password string) error {
	if username == "" || email == "" || password == "" {
		return ErrSignupFieldsMissing
	}
	if !emailPattern.MatchString(email) {
		return ErrInvalidEmailFormat
	}
	if len(password) < minPasswordLength {
		return ErrPasswordTooShort
	}
	if len(username) < minUsernameLength {
		return ErrUsernameTooShort
	}
	return nil
}

// ValidateSignin checks signin input before any store access.
func ValidateSignin(email string, password string) error {
	if email == "" || password == "" {
		return ErrSigninFieldsMissing
	}
	if !emailPattern.MatchString(email) {
		return ErrInvalidEmailFormat
	}
	return nil
}

// HashPassword derives a salted bcrypt hash from the plaintext password.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckPassword reports whether the plaintext password matches the stored hash.
func CheckPassword(passwordHash string, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) == nil
}
