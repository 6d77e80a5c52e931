package directory

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordScheme turns passwords into stored values and checks them.
type PasswordScheme interface {
	Hash(plain string) (string, error)
	Verify(stored, plain string) bool
}

// PlainText stores passwords as given and compares by equality. It reads and
// writes the legacy identity files but must not be used for real deployments.
type PlainText struct{}

func (PlainText) Hash(plain string) (string, error) { return plain, nil }

func (PlainText) Verify(stored, plain string) bool { return stored == plain }

// Bcrypt stores salted bcrypt hashes.
type Bcrypt struct {
	Cost int
}

func (b Bcrypt) Hash(plain string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func (Bcrypt) Verify(stored, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(plain)) == nil
}

// SchemeByName returns the scheme for "plain" or "bcrypt".
func SchemeByName(name string) (PasswordScheme, error) {
	switch name {
	case "", "plain":
		return PlainText{}, nil
	case "bcrypt":
		return Bcrypt{}, nil
	default:
		return nil, fmt.Errorf("unknown password scheme %q", name)
	}
}
