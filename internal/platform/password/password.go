// Package password generates temporary credentials for admin-created
// accounts.
package password

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	lowercase = "abcdefghijklmnopqrstuvwxyz"
	uppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits    = "0123456789"
	symbols   = "!@#$%^&*"

	// DefaultLength is the length of generated temporary passwords.
	DefaultLength = 12
)

var classes = []string{lowercase, uppercase, digits, symbols}

// Generate returns a random password of the given length drawn from
// lowercase, uppercase, digit and symbol characters. The result is
// guaranteed to contain at least one character from each class. Lengths
// below the number of classes are rejected.
func Generate(length int) (string, error) {
	if length < len(classes) {
		return "", fmt.Errorf("password length %d too short, need at least %d", length, len(classes))
	}

	buf := make([]byte, length)

	// Place one character from every class at distinct random positions
	// first. Reserving the positions up front means no later write can
	// erase the only occurrence of a class.
	used := make(map[int]bool, len(classes))
	for _, class := range classes {
		pos, err := randomIndex(length, used)
		if err != nil {
			return "", err
		}
		used[pos] = true
		ch, err := randomByte(class)
		if err != nil {
			return "", err
		}
		buf[pos] = ch
	}

	alphabet := lowercase + uppercase + digits + symbols
	for i := range buf {
		if used[i] {
			continue
		}
		ch, err := randomByte(alphabet)
		if err != nil {
			return "", err
		}
		buf[i] = ch
	}

	return string(buf), nil
}

func randomByte(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, fmt.Errorf("read random: %w", err)
	}
	return alphabet[n.Int64()], nil
}

func randomIndex(length int, used map[int]bool) (int, error) {
	for {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(length)))
		if err != nil {
			return 0, fmt.Errorf("read random: %w", err)
		}
		if !used[int(n.Int64())] {
			return int(n.Int64()), nil
		}
	}
}
