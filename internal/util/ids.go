package util

import (
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	idLength   = 21
)

// NewPublicID returns a URL safe identifier used for exports and jobs.
func NewPublicID() (string, error) {
	return gonanoid.Generate(idAlphabet, idLength)
}

// IsPublicID reports whether s could have been produced by NewPublicID.
func IsPublicID(s string) bool {
	if len(s) != idLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(idAlphabet, rune(s[i])) {
			return false
		}
	}
	return true
}
