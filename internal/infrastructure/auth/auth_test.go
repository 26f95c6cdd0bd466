package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/eduaid/eduaid-hub/internal/domain/shared"
	"github.com/eduaid/eduaid-hub/pkg/timeutil"
)

const usersYAML = `
users:
  - id: learner-1
    email: Alex@Example.com
    name: Alex
    password: open-sesame
  - id: learner-2
    email: sam@example.com
    name: Sam
    password: second-factor
    two_factor: true
`

type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
}

func (c *captureSender) SendCode(_ context.Context, u User, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[u.ID] = code
	return nil
}

func (c *captureSender) last(userID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[userID]
}

func newTestAuth(t *testing.T) (*Local, *timeutil.FakeClock, *captureSender) {
	t.Helper()
	dir, err := ParseUsers([]byte(usersYAML))
	require.NoError(t, err)

	clock := timeutil.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	sender := &captureSender{codes: map[string]string{}}
	a, err := NewLocal(dir, Config{
		Secret:       "test-secret-test-secret-test-secret",
		TokenTTL:     time.Hour,
		TempTokenTTL: 5 * time.Minute,
		TwoFactor:    true,
		Clock:        clock,
		Sender:       sender,
	})
	require.NoError(t, err)
	return a, clock, sender
}

func TestParseUsers_HashesPlainPasswords(t *testing.T) {
	dir, err := ParseUsers([]byte(usersYAML))
	require.NoError(t, err)
	assert.Equal(t, 2, dir.Len())

	u, ok := dir.Lookup("  alex@example.COM ")
	require.True(t, ok)
	assert.Empty(t, u.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("open-sesame")))
}

func TestParseUsers_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing id", "users:\n  - email: a@b.c\n    password: x\n"},
		{"no password", "users:\n  - id: a\n    email: a@b.c\n"},
		{"duplicate", "users:\n  - id: a\n    email: a@b.c\n    password: x\n  - id: b\n    email: A@B.C\n    password: y\n"},
		{"bad yaml", "users: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseUsers([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLogin_WithoutTwoFactor(t *testing.T) {
	a, _, _ := newTestAuth(t)
	ctx := context.Background()

	res, err := a.Login(ctx, Credentials{Email: "alex@example.com", Password: "open-sesame"})
	require.NoError(t, err)
	assert.False(t, res.Requires2FA)
	require.NotEmpty(t, res.Token)

	p, err := a.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, "learner-1", p.UserID)
	assert.Equal(t, "Alex", p.Name)
}

func TestLogin_BadCredentials(t *testing.T) {
	a, _, _ := newTestAuth(t)
	ctx := context.Background()

	_, err := a.Login(ctx, Credentials{Email: "alex@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
	assert.True(t, shared.IsUnauthorized(err))

	_, err = a.Login(ctx, Credentials{Email: "nobody@example.com", Password: "x"})
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestLogin_TwoFactorFlow(t *testing.T) {
	a, _, sender := newTestAuth(t)
	ctx := context.Background()

	res, err := a.Login(ctx, Credentials{Email: "sam@example.com", Password: "second-factor"})
	require.NoError(t, err)
	require.True(t, res.Requires2FA)
	assert.Empty(t, res.Token)

	// the temporary token is not a session
	_, err = a.Authenticate(ctx, res.TempToken)
	assert.ErrorIs(t, err, shared.ErrInvalidToken)

	code := sender.last("learner-2")
	require.Len(t, code, 6)

	_, err = a.Verify2FA(ctx, "not-it", res.TempToken)
	assert.ErrorIs(t, err, shared.ErrInvalid2FACode)

	token, err := a.Verify2FA(ctx, code, res.TempToken)
	require.NoError(t, err)
	p, err := a.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "learner-2", p.UserID)

	// single use
	_, err = a.Verify2FA(ctx, code, res.TempToken)
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestVerify2FA_TooManyAttempts(t *testing.T) {
	a, _, sender := newTestAuth(t)
	ctx := context.Background()

	res, err := a.Login(ctx, Credentials{Email: "sam@example.com", Password: "second-factor"})
	require.NoError(t, err)
	code := sender.last("learner-2")

	for i := 0; i < maxCodeAttempt; i++ {
		_, err = a.Verify2FA(ctx, "x", res.TempToken)
		assert.ErrorIs(t, err, shared.ErrInvalid2FACode)
	}
	_, err = a.Verify2FA(ctx, code, res.TempToken)
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestVerify2FA_Expired(t *testing.T) {
	a, clock, sender := newTestAuth(t)
	ctx := context.Background()

	res, err := a.Login(ctx, Credentials{Email: "sam@example.com", Password: "second-factor"})
	require.NoError(t, err)

	clock.Advance(6 * time.Minute)
	_, err = a.Verify2FA(ctx, sender.last("learner-2"), res.TempToken)
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestAuthenticate_ExpiryAndLogout(t *testing.T) {
	a, clock, _ := newTestAuth(t)
	ctx := context.Background()

	res, err := a.Login(ctx, Credentials{Email: "alex@example.com", Password: "open-sesame"})
	require.NoError(t, err)

	require.NoError(t, a.Logout(ctx, res.Token))
	_, err = a.Authenticate(ctx, res.Token)
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
	assert.ErrorIs(t, a.Logout(ctx, res.Token), shared.ErrInvalidToken)

	res, err = a.Login(ctx, Credentials{Email: "alex@example.com", Password: "open-sesame"})
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)
	_, err = a.Authenticate(ctx, res.Token)
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestAuthenticate_ForeignSecret(t *testing.T) {
	a, _, _ := newTestAuth(t)
	other, err := NewLocal(a.users, Config{Secret: "another-secret"})
	require.NoError(t, err)

	res, err := other.Login(context.Background(), Credentials{Email: "alex@example.com", Password: "open-sesame"})
	require.NoError(t, err)

	_, err = a.Authenticate(context.Background(), res.Token)
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestNewLocal_RequiresSecret(t *testing.T) {
	dir, err := NewDirectory(nil)
	require.NoError(t, err)
	_, err = NewLocal(dir, Config{})
	assert.Error(t, err)
}
