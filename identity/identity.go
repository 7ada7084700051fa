/*
Package identity provides the authentication contract the dashboard core
relies on: sign up, authenticate, resolve the current user of a session, and
revoke a session.

PURPOSE:
  Everything else in the module only ever sees a generic.UserID. This
  package turns credentials into that id and back.

KEY CONCEPTS:
  - Credentials: email + bcrypt hash, one per profile
  - Session: opaque random token with an expiry

SEE ALSO:
  - store/sqlite: persistent Store implementation
  - api: login/logout handlers and the auth middleware
*/
package identity

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/enterprise-dashboard/generic"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// Session is an issued login.
type Session struct {
	Token     string         `json:"token"`
	UserID    generic.UserID `json:"user_id"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

func (s Session) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

// Credentials is the login record of one profile.
type Credentials struct {
	UserID       generic.UserID
	Email        string
	PasswordHash string
}

// Store persists credentials and sessions.
type Store interface {
	// CreateCredentials fails with a validation error when the email is taken.
	CreateCredentials(ctx context.Context, c Credentials) error
	// GetCredentials returns nil when no profile has that email.
	GetCredentials(ctx context.Context, email string) (*Credentials, error)
	DeleteCredentials(ctx context.Context, email string) error
	CreateSession(ctx context.Context, s Session) error
	// GetSession returns nil for unknown tokens.
	GetSession(ctx context.Context, token string) (*Session, error)
	DeleteSession(ctx context.Context, token string) error
}

// Accounts is implemented by stores that keep credentials and profiles in one
// database. SignUp then writes both in one transaction through fn's arguments.
type Accounts interface {
	WithAccountTx(ctx context.Context, fn func(creds Store, profiles generic.DirectoryStore) error) error
}

// SignUpRequest is the input of SignUp. Role defaults to employee.
type SignUpRequest struct {
	Email     string       `json:"email"`
	Password  string       `json:"password"`
	FirstName string       `json:"first_name"`
	LastName  string       `json:"last_name"`
	Role      generic.Role `json:"role"`
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	store    Store
	profiles generic.DirectoryStore
	ttl      time.Duration
	cost     int
	now      func() time.Time
	logger   *zap.Logger
}

type Option func(*Service)

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) Option { return func(s *Service) { s.cost = cost } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(store Store, profiles generic.DirectoryStore, ttl time.Duration, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:    store,
		profiles: profiles,
		ttl:      ttl,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignUp creates a profile and its credentials. Either both exist afterwards
// or neither does.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (generic.Profile, error) {
	email := normalizeEmail(req.Email)
	if req.Role == "" {
		req.Role = generic.RoleEmployee
	}

	verr := &generic.ValidationError{}
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		verr.Add("email", "invalid")
	}
	if len(req.Password) < MinPasswordLength {
		verr.Add("password", "too_short")
	}
	if !req.Role.Valid() {
		verr.Add("role", "unknown")
	}
	if err := verr.OrNil(); err != nil {
		return generic.Profile{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return generic.Profile{}, fmt.Errorf("hash password: %w", err)
	}

	profile := generic.Profile{
		ID:        generic.UserID(uuid.NewString()),
		Email:     email,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Role:      req.Role,
		CreatedAt: s.now().UTC(),
	}
	creds := Credentials{UserID: profile.ID, Email: email, PasswordHash: string(hash)}
	credsWritten := false
	create := func(store Store, profiles generic.DirectoryStore) error {
		if err := store.CreateCredentials(ctx, creds); err != nil {
			return generic.Persist("create credentials", err)
		}
		credsWritten = true
		if err := profiles.SaveProfile(ctx, profile); err != nil {
			return generic.Persist("save profile", err)
		}
		return nil
	}

	if accounts, ok := s.store.(Accounts); ok {
		err = accounts.WithAccountTx(ctx, create)
	} else if err = create(s.store, s.profiles); err != nil && credsWritten {
		// Separate stores: undo the credentials so the email stays free.
		if derr := s.store.DeleteCredentials(ctx, email); derr != nil {
			s.logger.Error("orphan credentials left behind", zap.String("email", email), zap.Error(derr))
		}
	}
	if err != nil {
		return generic.Profile{}, err
	}

	s.logger.Info("user signed up", zap.String("user_id", string(profile.ID)), zap.String("role", string(profile.Role)))
	return profile, nil
}

// Authenticate checks credentials and issues a session. Unknown emails and
// wrong passwords fail identically with ErrUnauthenticated.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Session, error) {
	creds, err := s.store.GetCredentials(ctx, normalizeEmail(email))
	if err != nil {
		return Session{}, generic.Persist("get credentials", err)
	}
	if creds == nil || bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)) != nil {
		return Session{}, generic.ErrUnauthenticated
	}

	now := s.now().UTC()
	session := Session{
		Token:     uuid.NewString(),
		UserID:    creds.UserID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return Session{}, generic.Persist("create session", err)
	}
	s.logger.Debug("session issued", zap.String("user_id", string(session.UserID)))
	return session, nil
}

// CurrentUser resolves a session token. Expired sessions are deleted.
func (s *Service) CurrentUser(ctx context.Context, token string) (generic.UserID, error) {
	if token == "" {
		return "", generic.ErrUnauthenticated
	}
	session, err := s.store.GetSession(ctx, token)
	if err != nil {
		return "", generic.Persist("get session", err)
	}
	if session == nil {
		return "", generic.ErrUnauthenticated
	}
	if session.Expired(s.now()) {
		if err := s.store.DeleteSession(ctx, token); err != nil {
			s.logger.Warn("expired session cleanup failed", zap.Error(err))
		}
		return "", generic.ErrUnauthenticated
	}
	return session.UserID, nil
}

// Revoke deletes a session. Unknown tokens are not an error.
func (s *Service) Revoke(ctx context.Context, token string) error {
	return generic.Persist("delete session", s.store.DeleteSession(ctx, token))
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }
