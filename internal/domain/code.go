package domain

import (
	"fmt"
	"strings"
)

const (
	// MinCodeLength and MaxCodeLength bound every code, custom or generated.
	MinCodeLength = 3
	MaxCodeLength = 32

	// Base62Alphabet is the alphabet random codes are drawn from.
	Base62Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// DefaultReservedCodes collide with system routes and can never be used as
// short codes.
var DefaultReservedCodes = []string{
	"api",
	"health",
	"healthz",
	"readyz",
	"metrics",
	"docs",
	"dashboard",
	"static",
	"admin",
	"login",
	"logout",
	"favicon",
	"robots",
}

// ValidateCode checks the length and alphabet contract ([A-Za-z0-9_-], 3-32).
func ValidateCode(code string) error {
	if len(code) < MinCodeLength || len(code) > MaxCodeLength {
		return fmt.Errorf("%w: length must be between %d and %d, got %d",
			ErrInvalidCode, MinCodeLength, MaxCodeLength, len(code))
	}
	for i := 0; i < len(code); i++ {
		if !isCodeChar(code[i]) {
			return fmt.Errorf("%w: invalid character %q", ErrInvalidCode, code[i])
		}
	}
	return nil
}

// IsValidCode is the boolean form of ValidateCode.
func IsValidCode(code string) bool {
	return ValidateCode(code) == nil
}

func isCodeChar(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '_' || c == '-'
}

// ReservedCodes is a case-insensitive deny-list.
type ReservedCodes struct {
	words map[string]struct{}
}

// NewReservedCodes merges DefaultReservedCodes with extra entries.
func NewReservedCodes(extra ...string) *ReservedCodes {
	r := &ReservedCodes{words: make(map[string]struct{}, len(DefaultReservedCodes)+len(extra))}
	for _, w := range DefaultReservedCodes {
		r.words[strings.ToLower(w)] = struct{}{}
	}
	for _, w := range extra {
		w = strings.TrimSpace(w)
		if w != "" {
			r.words[strings.ToLower(w)] = struct{}{}
		}
	}
	return r
}

// Contains reports whether code is reserved.
func (r *ReservedCodes) Contains(code string) bool {
	if r == nil {
		return false
	}
	_, ok := r.words[strings.ToLower(code)]
	return ok
}
