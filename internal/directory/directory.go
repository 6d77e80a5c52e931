// Package directory keeps the staff accounts allowed to log in.
package directory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"staffattend/internal/table"
)

// Role separates administrators from regular staff.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// ParseRole maps stored role text to a Role. Anything but "admin" is staff,
// which also covers the legacy "guru" value.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleStaff
}

var (
	ErrNotFound          = errors.New("user not found")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrInvalidAccount    = errors.New("username and password required")
)

// Columns is the identity table header.
var Columns = []string{"username", "password", "role", "display_name"}

// Account is a staff member's login.
type Account struct {
	Username    string `json:"username"`
	Password    string `json:"-"`
	Role        Role   `json:"role"`
	DisplayName string `json:"display_name,omitempty"`
}

// Stamp fingerprints the stored credential; it changes whenever the password does.
func (a Account) Stamp() string {
	sum := sha256.Sum256([]byte(a.Username + "\x00" + a.Password))
	return hex.EncodeToString(sum[:])
}

// Directory is the identity table.
type Directory struct {
	store  *table.Store
	scheme PasswordScheme
}

// New creates a directory on b. A nil scheme compares passwords as plain text.
func New(b table.Backend, scheme PasswordScheme) *Directory {
	if scheme == nil {
		scheme = PlainText{}
	}
	return &Directory{store: table.NewStore(b, Columns...), scheme: scheme}
}

// Find returns the account matching both username and password.
func (d *Directory) Find(ctx context.Context, username, password string) (Account, error) {
	var acc Account
	err := d.store.View(ctx, func(t table.Table) error {
		for i := range t.Rows {
			if t.Cell(i, "username") != username {
				continue
			}
			if !d.scheme.Verify(t.Cell(i, "password"), password) {
				return ErrNotFound
			}
			acc = accountAt(t, i)
			return nil
		}
		return ErrNotFound
	})
	return acc, err
}

// Get returns the account for username.
func (d *Directory) Get(ctx context.Context, username string) (Account, error) {
	var acc Account
	err := d.store.View(ctx, func(t table.Table) error {
		i := t.Find(map[string]string{"username": username})
		if i < 0 {
			return ErrNotFound
		}
		acc = accountAt(t, i)
		return nil
	})
	return acc, err
}

// Add inserts a new account. Role is staff unless admin is asked for explicitly.
func (d *Directory) Add(ctx context.Context, username, password string, role Role, displayName string) (Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Account{}, ErrInvalidAccount
	}
	if role != RoleAdmin {
		role = RoleStaff
	}
	stored, err := d.scheme.Hash(password)
	if err != nil {
		return Account{}, err
	}
	acc := Account{Username: username, Password: stored, Role: role, DisplayName: displayName}
	err = d.store.Update(ctx, func(t *table.Table) error {
		if t.Find(map[string]string{"username": username}) >= 0 {
			return ErrDuplicateUsername
		}
		t.Append(map[string]string{
			"username":     acc.Username,
			"password":     acc.Password,
			"role":         string(acc.Role),
			"display_name": acc.DisplayName,
		})
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	return acc, nil
}

// UpdatePassword replaces the password of username.
func (d *Directory) UpdatePassword(ctx context.Context, username, password string) error {
	if password == "" {
		return ErrInvalidAccount
	}
	stored, err := d.scheme.Hash(password)
	if err != nil {
		return err
	}
	return d.store.Update(ctx, func(t *table.Table) error {
		i := t.Find(map[string]string{"username": username})
		if i < 0 {
			return ErrNotFound
		}
		t.SetCell(i, "password", stored)
		return nil
	})
}

// Remove deletes username immediately.
func (d *Directory) Remove(ctx context.Context, username string) error {
	return d.store.Update(ctx, func(t *table.Table) error {
		i := t.Find(map[string]string{"username": username})
		if i < 0 {
			return ErrNotFound
		}
		t.Delete(i)
		return nil
	})
}

// List returns every account in insertion order.
func (d *Directory) List(ctx context.Context) ([]Account, error) {
	var out []Account
	err := d.store.View(ctx, func(t table.Table) error {
		out = make([]Account, 0, len(t.Rows))
		for i := range t.Rows {
			out = append(out, accountAt(t, i))
		}
		return nil
	})
	return out, err
}

// Bootstrap seeds a single admin account when the table is empty and
// reports whether it did so.
func (d *Directory) Bootstrap(ctx context.Context, username, password string) (bool, error) {
	stored, err := d.scheme.Hash(password)
	if err != nil {
		return false, err
	}
	seeded := false
	err = d.store.Update(ctx, func(t *table.Table) error {
		if len(t.Rows) > 0 {
			return errSkip
		}
		t.Append(map[string]string{
			"username": username,
			"password": stored,
			"role":     string(RoleAdmin),
		})
		seeded = true
		return nil
	})
	if errors.Is(err, errSkip) {
		return false, nil
	}
	return seeded, err
}

var errSkip = errors.New("skip")

func accountAt(t table.Table, i int) Account {
	return Account{
		Username:    t.Cell(i, "username"),
		Password:    t.Cell(i, "password"),
		Role:        ParseRole(t.Cell(i, "role")),
		DisplayName: t.Cell(i, "display_name"),
	}
}
