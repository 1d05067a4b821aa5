package rando

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet is the full set of characters an id may contain.
const Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_-"

// RandStrn returns a random string of length characters drawn from Alphabet.
func RandStrn(length int) (string, error) {
	if length < 1 {
		return "", fmt.Errorf("invalid id length %d", length)
	}
	return gonanoid.Generate(Alphabet, length)
}
