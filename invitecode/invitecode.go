// Package invitecode generates the short share codes used to join a pot.
package invitecode

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	Length   = 6
)

var alphabetSize = big.NewInt(int64(len(Alphabet)))

// Generate returns a random code. Codes are not guaranteed unique; callers
// check the store and retry on collision.
func Generate() (string, error) {
	var b strings.Builder
	b.Grow(Length)
	for range Length {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("reading random: %w", err)
		}
		b.WriteByte(Alphabet[n.Int64()])
	}
	return b.String(), nil
}

// Normalize trims surrounding whitespace and uppercases the code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func Valid(code string) bool {
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(Alphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}
