package security

import (
	"crypto/rand"
	"errors"
	"math/big"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MinPasswordLength = 8
	MaxInputLength    = 1000
	MinUsernameLength = 3
	MaxUsernameLength = 32
)

// ValidationError lists every rule a value broke
type ValidationError struct {
	Field    string
	Problems []string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + strings.Join(e.Problems, "; ")
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

const passwordSpecials = "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?"

var commonPasswords = map[string]struct{}{
	"password": {}, "123456": {}, "123456789": {}, "qwerty": {}, "abc123": {},
	"password123": {}, "admin": {}, "letmein": {}, "welcome": {}, "monkey": {},
}

// ValidatePasswordStrength returns a *ValidationError naming every unmet requirement
func ValidatePasswordStrength(password string) error {
	var problems []string

	if utf8.RuneCountInString(password) < MinPasswordLength {
		problems = append(problems, "must be at least 8 characters long")
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	if !upper {
		problems = append(problems, "must contain at least one uppercase letter")
	}
	if !lower {
		problems = append(problems, "must contain at least one lowercase letter")
	}
	if !digit {
		problems = append(problems, "must contain at least one number")
	}
	if !special {
		problems = append(problems, "must contain at least one special character")
	}
	if IsCommonPassword(password) {
		problems = append(problems, "is too common")
	}

	if len(problems) > 0 {
		return &ValidationError{Field: "password", Problems: problems}
	}
	return nil
}

func IsCommonPassword(password string) bool {
	_, ok := commonPasswords[strings.ToLower(password)]
	return ok
}

// SanitizeInput drops angle brackets, trims surrounding space and caps the
// result at MaxInputLength runes.
func SanitizeInput(input string) string {
	cleaned := strings.TrimSpace(strings.Map(func(r rune) rune {
		if r == '<' || r == '>' {
			return -1
		}
		return r
	}, input))

	if utf8.RuneCountInString(cleaned) <= MaxInputLength {
		return cleaned
	}
	runes := []rune(cleaned)
	return string(runes[:MaxInputLength])
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

func ValidateUsername(username string) error {
	var problems []string
	if n := len(username); n < MinUsernameLength || n > MaxUsernameLength {
		problems = append(problems, "must be between 3 and 32 characters")
	}
	if !usernamePattern.MatchString(username) {
		problems = append(problems, "may only contain letters, digits, '.', '-' and '_'")
	}
	if len(problems) > 0 {
		return &ValidationError{Field: "username", Problems: problems}
	}
	return nil
}

const randomAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateSecureRandom returns a uniformly random alphanumeric string
func GenerateSecureRandom(length int) (string, error) {
	if length <= 0 {
		length = 32
	}
	upper := big.NewInt(int64(len(randomAlphabet)))
	var sb strings.Builder
	sb.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, upper)
		if err != nil {
			return "", err
		}
		sb.WriteByte(randomAlphabet[n.Int64()])
	}
	return sb.String(), nil
}
