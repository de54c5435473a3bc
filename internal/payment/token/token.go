// Package token generates and parses the word-list tokens carried through payment redirects.
package token

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

const (
	WordsPerToken = 25
	Delimiter     = "-"
)

var ErrInvalidToken = errors.New("invalid payment token")

// Vocabulary is fixed; changing it invalidates every outstanding token.
var Vocabulary = [...]string{
	"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta", "iota", "kappa",
	"lambda", "mu", "nu", "xi", "omicron", "pi", "rho", "sigma", "tau", "upsilon",
	"phi", "chi", "psi", "omega", "prime", "quantum", "nexus", "matrix", "vector", "cipher",
	"phoenix", "storm", "blade", "shadow", "crystal", "thunder", "lightning", "fire", "ice", "wind",
	"earth", "water", "light", "dark", "void", "star", "moon", "sun", "galaxy", "cosmos",
}

var vocabularyIndex = func() map[string]struct{} {
	index := make(map[string]struct{}, len(Vocabulary))
	for _, w := range Vocabulary {
		index[w] = struct{}{}
	}
	return index
}()

// Generate draws WordsPerToken distinct words uniformly from a CSPRNG.
func Generate() (string, error) {
	words := Vocabulary
	for i := 0; i < WordsPerToken; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(words)-i)))
		if err != nil {
			return "", err
		}
		j := i + int(n.Int64())
		words[i], words[j] = words[j], words[i]
	}
	return strings.Join(words[:WordsPerToken], Delimiter), nil
}

// Validate checks the token's shape: word count, vocabulary membership and distinctness.
func Validate(token string) error {
	parts := strings.Split(token, Delimiter)
	if len(parts) != WordsPerToken {
		return ErrInvalidToken
	}

	seen := make(map[string]struct{}, WordsPerToken)
	for _, p := range parts {
		if _, ok := vocabularyIndex[p]; !ok {
			return ErrInvalidToken
		}
		if _, dup := seen[p]; dup {
			return ErrInvalidToken
		}
		seen[p] = struct{}{}
	}
	return nil
}
