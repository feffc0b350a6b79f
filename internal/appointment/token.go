package appointment

import (
	"fmt"
	"math/rand/v2"
	"regexp"
)

const tokenLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

var tokenPattern = regexp.MustCompile(`^[A-Z]-?\d{3}$`)

// GenerateToken returns a short booking reference: one uniformly chosen
// uppercase letter and a zero padded number, e.g. "K-042".
func GenerateToken() string {
	return fmt.Sprintf("%c-%03d", tokenLetters[rand.IntN(len(tokenLetters))], rand.IntN(1000))
}

// ValidToken reports whether s looks like a booking token.
func ValidToken(s string) bool {
	return tokenPattern.MatchString(s)
}
