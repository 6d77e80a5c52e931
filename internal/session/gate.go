// Package session authenticates staff against the directory and tracks the
// resulting sessions explicitly.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"staffattend/internal/directory"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnknownSession     = errors.New("session expired or logged out")
)

// Session is the authenticated identity of one login.
type Session struct {
	ID        string         `json:"id"`
	Username  string         `json:"username"`
	Role      directory.Role `json:"role"`
	CreatedAt time.Time      `json:"created_at"`

	// Credential is the account stamp at login; never sent to clients.
	Credential string `json:"-"`
}

// Gate issues and resolves sessions.
type Gate struct {
	dir *directory.Directory
	reg Registry
	now func() time.Time
}

// NewGate creates a gate that checks credentials against dir.
func NewGate(dir *directory.Directory, reg Registry) *Gate {
	return &Gate{dir: dir, reg: reg, now: time.Now}
}

// Login verifies the credentials and starts a session.
func (g *Gate) Login(ctx context.Context, username, password string) (Session, error) {
	acc, err := g.dir.Find(ctx, username, password)
	if errors.Is(err, directory.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	s := Session{
		ID:         uuid.NewString(),
		Username:   acc.Username,
		Role:       acc.Role,
		CreatedAt:  g.now().UTC(),
		Credential: acc.Stamp(),
	}
	if err := g.reg.Put(ctx, s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Logout ends the session immediately.
func (g *Gate) Logout(ctx context.Context, s Session) error {
	return g.reg.Delete(ctx, s.ID)
}

// Resolve returns the live session for id. A session whose account was
// removed or whose password changed is ended on the spot, and the role is
// refreshed from the directory.
func (g *Gate) Resolve(ctx context.Context, id string) (Session, error) {
	if id == "" {
		return Session{}, ErrUnknownSession
	}
	s, err := g.reg.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	acc, err := g.dir.Get(ctx, s.Username)
	if err != nil && !errors.Is(err, directory.ErrNotFound) {
		return Session{}, err
	}
	if err != nil || acc.Stamp() != s.Credential {
		_ = g.reg.Delete(ctx, id)
		return Session{}, ErrUnknownSession
	}
	s.Role = acc.Role
	return s, nil
}
