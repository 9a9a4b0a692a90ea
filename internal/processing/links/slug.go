package links

import (
	"crypto/rand"

	"github.com/IgorGrieder/llm-edge-gateway/internal/infrastructure/validation"
)

const defaultSlugLength = 8

// CryptoSlugger draws slugs uniformly from validation.SlugAlphabet.
type CryptoSlugger struct{}

func NewCryptoSlugger() *CryptoSlugger { return &CryptoSlugger{} }

func (s *CryptoSlugger) Generate(length int) (string, error) {
	if length <= 0 {
		length = defaultSlugLength
	}

	const alphabet = validation.SlugAlphabet
	// Bytes at or above this bound are rejected so that every symbol is
	// equally likely.
	const bound = 256 - 256%len(alphabet)

	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= bound {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == length {
				break
			}
		}
	}

	return string(out), nil
}
