// Package cryptox hashes and verifies account passwords with bcrypt.
package cryptox

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used for new hashes.
const DefaultCost = 12

var (
	// ErrMismatch is returned by CheckPassword when the password does not match.
	ErrMismatch = errors.New("password mismatch")

	// ErrTooLong is returned for passwords longer than bcrypt's 72-byte input limit.
	ErrTooLong = errors.New("password too long")
)

// HashPassword returns the bcrypt hash of password at the given cost.
// A cost of 0 selects DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrTooLong
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// CheckPassword compares password with hash. It returns ErrMismatch on a
// wrong password and a wrapped error when hash is malformed.
func CheckPassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrMismatch
	default:
		return fmt.Errorf("check password: %w", err)
	}
}

// Burner runs a bcrypt comparison against a fixed hash made at the same cost
// as real account hashes, so unknown-email logins spend the same time as
// wrong-password logins. The hash is built on first use.
type Burner struct {
	cost int
	hash func() []byte
}

// NewBurner returns a Burner for hashes of the given cost. A cost of 0
// selects DefaultCost.
func NewBurner(cost int) *Burner {
	if cost == 0 {
		cost = DefaultCost
	}
	return &Burner{
		cost: cost,
		hash: sync.OnceValue(func() []byte {
			// An invalid cost leaves a nil hash, as HashPassword fails too.
			h, _ := bcrypt.GenerateFromPassword([]byte("taskkeeper-dummy-password"), cost)
			return h
		}),
	}
}

// Cost is the work factor of the burner's hash.
func (b *Burner) Cost() int { return b.cost }

// Compare checks password against the fixed hash and discards the result.
func (b *Burner) Compare(password string) {
	_ = bcrypt.CompareHashAndPassword(b.hash(), []byte(password))
}
