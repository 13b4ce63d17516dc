package security

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		problems int
	}{
		{"strong", "Str0ng!Pw", 0},
		{"unicode upper", "Ünicode1!", 0},
		{"too short", "S0!a", 1},
		{"no upper", "str0ng!pw", 1},
		{"no lower", "STR0NG!PW", 1},
		{"no digit", "Strong!Pw", 1},
		{"no special", "Str0ngPwd", 1},
		{"empty", "", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePasswordStrength(tt.password)
			if tt.problems == 0 {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			ve, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("Expected *ValidationError, got %v", err)
			}
			if len(ve.Problems) != tt.problems {
				t.Errorf("Expected %d problems, got %v", tt.problems, ve.Problems)
			}
		})
	}
}

func TestIsCommonPassword(t *testing.T) {
	if !IsCommonPassword("PassWord") {
		t.Error("Expected case-insensitive match for password")
	}
	if IsCommonPassword("Str0ng!Pw") {
		t.Error("Str0ng!Pw is not a common password")
	}
	if !IsValidationError(ValidatePasswordStrength("Password123")) {
		t.Error("Expected a common password to be rejected")
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := SanitizeInput("  <b>hi</b>  "); got != "bhi/b" {
		t.Errorf("Expected bhi/b, got %q", got)
	}

	long := strings.Repeat("ü", MaxInputLength+10)
	got := SanitizeInput(long)
	if utf8.RuneCountInString(got) != MaxInputLength {
		t.Errorf("Expected %d runes, got %d", MaxInputLength, utf8.RuneCountInString(got))
	}
	if !utf8.ValidString(got) {
		t.Error("Truncation split a multi-byte character")
	}
}

func TestValidateEmail(t *testing.T) {
	valid := []string{"alice@example.com", "a.b+c@sub.example.org"}
	invalid := []string{"", "alice", "alice@example", "al ice@example.com", "@example.com"}

	for _, e := range valid {
		if !ValidateEmail(e) {
			t.Errorf("Expected %q to be valid", e)
		}
	}
	for _, e := range invalid {
		if ValidateEmail(e) {
			t.Errorf("Expected %q to be invalid", e)
		}
	}
}

func TestValidateUsername(t *testing.T) {
	if err := ValidateUsername("alice_01"); err != nil {
		t.Errorf("Expected alice_01 to be valid, got %v", err)
	}
	for _, name := range []string{"al", "alice smith", "<script>", strings.Repeat("a", 33)} {
		if err := ValidateUsername(name); !IsValidationError(err) {
			t.Errorf("Expected %q to be rejected, got %v", name, err)
		}
	}
}

func TestGenerateSecureRandom(t *testing.T) {
	a, err := GenerateSecureRandom(0)
	if err != nil {
		t.Fatalf("GenerateSecureRandom() failed: %v", err)
	}
	if len(a) != 32 {
		t.Errorf("Expected default length 32, got %d", len(a))
	}

	b, _ := GenerateSecureRandom(32)
	if a == b {
		t.Error("Expected two random strings to differ")
	}
	for _, r := range a {
		if !strings.ContainsRune(randomAlphabet, r) {
			t.Errorf("Unexpected character %q", r)
		}
	}
}
