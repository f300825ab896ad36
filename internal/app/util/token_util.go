package util

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// TokenLength is the fixed size of every generated short-link token.
const TokenLength = 8

const tokenAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// bytes at or above this value are rejected so every symbol is equally likely.
const tokenByteCeiling = 256 - 256%len(tokenAlphabet)

// ErrEntropyUnavailable signals that the random source could not be read.
var ErrEntropyUnavailable = errors.New("token entropy unavailable")

// TokenGenerator produces short URL-safe identifiers.
// Implementations are safe for concurrent use and do not guarantee uniqueness.
type TokenGenerator interface {
	Generate() (string, error)
}

type randomTokenGenerator struct {
	source io.Reader
}

// NewTokenGenerator returns a base62 generator backed by crypto/rand.
func NewTokenGenerator() TokenGenerator {
	return &randomTokenGenerator{source: rand.Reader}
}

// NewTokenGeneratorFrom returns a base62 generator reading entropy from source.
func NewTokenGeneratorFrom(source io.Reader) TokenGenerator {
	return &randomTokenGenerator{source: source}
}

func (g *randomTokenGenerator) Generate() (string, error) {
	token := make([]byte, 0, TokenLength)
	buf := make([]byte, TokenLength*2)

	for len(token) < TokenLength {
		if _, err := io.ReadFull(g.source, buf); err != nil {
			return "", fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
		}
		for _, b := range buf {
			if int(b) >= tokenByteCeiling {
				continue
			}
			token = append(token, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(token) == TokenLength {
				break
			}
		}
	}
	return string(token), nil
}

// IsToken reports whether s has the shape of a generated token.
func IsToken(s string) bool {
	if len(s) != TokenLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		default:
			return false
		}
	}
	return true
}
