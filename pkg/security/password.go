package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrHashingFailed    = errors.New("password hashing failed")
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
)

const (
	MinPasswordLen = 8
	// bcrypt only reads the first 72 bytes.
	MaxPasswordLen = 72
)

// PasswordHasher hashes account passwords and checks login attempts.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hashedPassword, password string) error
	NeedsRehash(hashedPassword string) bool
}

type bcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a bcrypt hasher; an out-of-range cost falls back
// to bcrypt.DefaultCost.
func NewBcryptHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

func (b *bcryptHasher) Hash(password string) (string, error) {
	switch {
	case len(password) < MinPasswordLen:
		return "", ErrPasswordTooShort
	case len(password) > MaxPasswordLen:
		return "", ErrPasswordTooLong
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashingFailed, err)
	}
	return string(hashed), nil
}

func (b *bcryptHasher) Compare(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// NeedsRehash reports whether a stored hash was made with a different cost.
func (b *bcryptHasher) NeedsRehash(hashedPassword string) bool {
	cost, err := bcrypt.Cost([]byte(hashedPassword))
	return err != nil || cost != b.cost
}
