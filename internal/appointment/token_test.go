package appointment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateTokenFormat(t *testing.T) {
	seenLetters := make(map[byte]bool)
	for i := 0; i < 5000; i++ {
		tok := GenerateToken()
		if !assert.True(t, ValidToken(tok), tok) {
			return
		}
		seenLetters[tok[0]] = true
	}
	// uniform choice over 26 letters should hit all of them in 5000 draws
	assert.Len(t, seenLetters, 26)
}

func TestValidToken(t *testing.T) {
	assert.True(t, ValidToken("A-007"))
	assert.True(t, ValidToken("Z999"))
	assert.False(t, ValidToken("a-007"))
	assert.False(t, ValidToken("AB-007"))
	assert.False(t, ValidToken("A-07"))
	assert.False(t, ValidToken("A-0071"))
}
