// Package auth is the local development authenticator: learners come from
// a YAML file, passwords are bcrypt hashes, sessions are HS256 JWTs, and
// learners with two-factor enabled confirm a one-time code first.
package auth

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// User is a learner account known to the authenticator.
type User struct {
	ID           string `yaml:"id"`
	Email        string `yaml:"email"`
	Name         string `yaml:"name"`
	PasswordHash string `yaml:"password_hash"`

	// Password is accepted for development files only and is hashed on load.
	Password string `yaml:"password"`

	TwoFactor bool `yaml:"two_factor"`
}

type usersFile struct {
	Users []User `yaml:"users"`
}

// Directory looks users up by normalized email.
type Directory struct {
	byEmail map[string]User
}

// LoadUsers reads a users file.
func LoadUsers(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("auth: read users: %w", err)
	}
	return ParseUsers(data)
}

// ParseUsers parses users YAML. Plain passwords are replaced by bcrypt hashes.
func ParseUsers(data []byte) (*Directory, error) {
	var f usersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("auth: parse users: %w", err)
	}
	return NewDirectory(f.Users)
}

// NewDirectory builds a directory from users.
func NewDirectory(users []User) (*Directory, error) {
	d := &Directory{byEmail: make(map[string]User, len(users))}
	for i, u := range users {
		if u.ID == "" || u.Email == "" {
			return nil, fmt.Errorf("auth: user #%d: id and email are required", i+1)
		}
		key := normalizeEmail(u.Email)
		if _, dup := d.byEmail[key]; dup {
			return nil, fmt.Errorf("auth: duplicate user %s", u.Email)
		}

		if u.PasswordHash == "" {
			if u.Password == "" {
				return nil, fmt.Errorf("auth: user %s has no password", u.Email)
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
			if err != nil {
				return nil, fmt.Errorf("auth: hash password for %s: %w", u.Email, err)
			}
			u.PasswordHash = string(hash)
		}
		u.Password = ""

		d.byEmail[key] = u
	}
	return d, nil
}

// Lookup returns the user with the given email.
func (d *Directory) Lookup(email string) (User, bool) {
	u, ok := d.byEmail[normalizeEmail(email)]
	return u, ok
}

// Len returns the number of users.
func (d *Directory) Len() int { return len(d.byEmail) }

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
