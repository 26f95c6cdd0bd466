package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/eduaid/eduaid-hub/internal/domain/shared"
	"github.com/eduaid/eduaid-hub/pkg/logger"
	"github.com/eduaid/eduaid-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTRACT
// ══════════════════════════════════════════════════════════════════════════════

// Credentials is a login attempt.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult carries either a session token or a two-factor challenge.
type LoginResult struct {
	Token       string `json:"token,omitempty"`
	Requires2FA bool   `json:"requires2FA,omitempty"`
	TempToken   string `json:"tempToken,omitempty"`
}

// Principal is the learner behind a session token.
type Principal struct {
	UserID    string
	Name      string
	TokenID   string
	ExpiresAt time.Time
}

// Authenticator signs learners in and checks their session tokens.
type Authenticator interface {
	Login(ctx context.Context, c Credentials) (LoginResult, error)
	Verify2FA(ctx context.Context, code, tempToken string) (string, error)
	Authenticate(ctx context.Context, token string) (Principal, error)
	Logout(ctx context.Context, token string) error
}

// CodeSender delivers one-time codes to a learner.
type CodeSender interface {
	SendCode(ctx context.Context, u User, code string) error
}

// LogCodeSender writes codes to the log. Development only.
type LogCodeSender struct {
	Logger *logger.Logger
}

// SendCode implements CodeSender.
func (s LogCodeSender) SendCode(_ context.Context, u User, code string) error {
	log := s.Logger
	if log == nil {
		log = logger.Nop()
	}
	log.Info("two-factor code issued", logger.UserID(u.ID), logger.String("code", code))
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

const (
	purposeSession   = "session"
	purposeTwoFactor = "2fa"

	codeDigits     = 6
	maxCodeAttempt = 5
)

// Config configures the local authenticator.
type Config struct {
	Secret       string
	Issuer       string
	TokenTTL     time.Duration
	TempTokenTTL time.Duration

	// TwoFactor enables the code challenge for users that opted in.
	TwoFactor bool

	Clock  timeutil.Clock
	Sender CodeSender
	Logger *logger.Logger
}

// Claims are the JWT claims of both token kinds.
type Claims struct {
	Purpose string `json:"purpose"`
	Name    string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type challenge struct {
	user     User
	code     string
	attempts int
	expires  time.Time
}

// Local is the file-backed Authenticator.
type Local struct {
	users  *Directory
	secret []byte
	cfg    Config
	log    *logger.Logger

	dummyOnce sync.Once
	dummy     []byte

	mu         sync.Mutex
	challenges map[string]*challenge // temp token id -> challenge
	revoked    map[string]time.Time  // session token id -> expiry
}

var _ Authenticator = (*Local)(nil)

// NewLocal creates the authenticator.
func NewLocal(users *Directory, cfg Config) (*Local, error) {
	if users == nil {
		return nil, fmt.Errorf("auth: users directory is required")
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("auth: secret is required")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "eduaid-hub"
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 12 * time.Hour
	}
	if cfg.TempTokenTTL <= 0 {
		cfg.TempTokenTTL = 5 * time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Sender == nil {
		cfg.Sender = LogCodeSender{Logger: cfg.Logger}
	}

	return &Local{
		users:      users,
		secret:     []byte(cfg.Secret),
		cfg:        cfg,
		log:        cfg.Logger.With(logger.Component("auth")),
		challenges: make(map[string]*challenge),
		revoked:    make(map[string]time.Time),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LOGIN
// ══════════════════════════════════════════════════════════════════════════════

// Login checks the password and returns a session token, or a temporary
// token when the user must confirm a code.
func (a *Local) Login(ctx context.Context, c Credentials) (LoginResult, error) {
	u, ok := a.users.Lookup(c.Email)
	if !ok {
		// Same cost as a real check so unknown emails are not cheaper.
		_ = bcrypt.CompareHashAndPassword(a.dummyHash(), []byte(c.Password))
		return LoginResult{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(c.Password)); err != nil {
		a.log.Info("login rejected", logger.UserID(u.ID))
		return LoginResult{}, shared.ErrInvalidCredentials
	}

	if !a.cfg.TwoFactor || !u.TwoFactor {
		token, _, err := a.issue(u, purposeSession, a.cfg.TokenTTL)
		if err != nil {
			return LoginResult{}, err
		}
		a.log.Info("login", logger.UserID(u.ID))
		return LoginResult{Token: token}, nil
	}

	code, err := newCode()
	if err != nil {
		return LoginResult{}, shared.WrapError("auth", "Login", shared.ErrServiceUnavailable, "generate code", err)
	}
	temp, claims, err := a.issue(u, purposeTwoFactor, a.cfg.TempTokenTTL)
	if err != nil {
		return LoginResult{}, err
	}
	if err := a.cfg.Sender.SendCode(ctx, u, code); err != nil {
		return LoginResult{}, shared.WrapError("auth", "Login", shared.ErrServiceUnavailable, "send code", err)
	}

	a.mu.Lock()
	a.pruneLocked(a.cfg.Clock.Now())
	a.challenges[claims.ID] = &challenge{user: u, code: code, expires: claims.ExpiresAt.Time}
	a.mu.Unlock()

	a.log.Info("two-factor challenge", logger.UserID(u.ID))
	return LoginResult{Requires2FA: true, TempToken: temp}, nil
}

// Verify2FA exchanges a temporary token and its code for a session token.
// Each challenge is single-use and dies after maxCodeAttempt wrong codes.
func (a *Local) Verify2FA(_ context.Context, code, tempToken string) (string, error) {
	claims, err := a.parse(tempToken, purposeTwoFactor)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	ch, ok := a.challenges[claims.ID]
	if !ok {
		a.mu.Unlock()
		return "", shared.ErrInvalidToken
	}
	if subtle.ConstantTimeCompare([]byte(ch.code), []byte(code)) != 1 {
		ch.attempts++
		if ch.attempts >= maxCodeAttempt {
			delete(a.challenges, claims.ID)
		}
		a.mu.Unlock()
		return "", shared.ErrInvalid2FACode
	}
	delete(a.challenges, claims.ID)
	a.mu.Unlock()

	token, _, err := a.issue(ch.user, purposeSession, a.cfg.TokenTTL)
	if err != nil {
		return "", err
	}
	a.log.Info("login", logger.UserID(ch.user.ID), logger.Bool("two_factor", true))
	return token, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION TOKENS
// ══════════════════════════════════════════════════════════════════════════════

// Authenticate validates a session token.
func (a *Local) Authenticate(_ context.Context, token string) (Principal, error) {
	claims, err := a.parse(token, purposeSession)
	if err != nil {
		return Principal{}, err
	}

	a.mu.Lock()
	_, revoked := a.revoked[claims.ID]
	a.mu.Unlock()
	if revoked {
		return Principal{}, shared.ErrInvalidToken
	}

	return Principal{
		UserID:    claims.Subject,
		Name:      claims.Name,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Logout revokes a session token until it would have expired anyway.
func (a *Local) Logout(ctx context.Context, token string) error {
	p, err := a.Authenticate(ctx, token)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.pruneLocked(a.cfg.Clock.Now())
	a.revoked[p.TokenID] = p.ExpiresAt
	a.mu.Unlock()

	a.log.Info("logout", logger.UserID(p.UserID))
	return nil
}

func (a *Local) issue(u User, purpose string, ttl time.Duration) (string, *Claims, error) {
	now := a.cfg.Clock.Now()
	claims := &Claims{
		Purpose: purpose,
		Name:    u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID,
			Issuer:    a.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", nil, shared.WrapError("auth", "Issue", shared.ErrServiceUnavailable, "sign token", err)
	}
	return signed, claims, nil
}

func (a *Local) parse(token, purpose string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.cfg.Clock.Now),
	)
	if err != nil || claims.Purpose != purpose || claims.Subject == "" {
		return nil, shared.ErrInvalidToken
	}
	return claims, nil
}

func (a *Local) pruneLocked(now time.Time) {
	for id, c := range a.challenges {
		if !now.Before(c.expires) {
			delete(a.challenges, id)
		}
	}
	for id, exp := range a.revoked {
		if !now.Before(exp) {
			delete(a.revoked, id)
		}
	}
}

func (a *Local) dummyHash() []byte {
	a.dummyOnce.Do(func() {
		a.dummy, _ = bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	})
	return a.dummy
}

func newCode() (string, error) {
	limit := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}
