// Package session owns the process-wide authentication state: the bearer
// token and role returned by login, persisted in durable storage so it
// survives restarts, plus the ephemeral per-tab state that must not outlive a
// logout.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/cardiocare/cardiocare/internal/platform/storage"
)

// DurableKey is the storage key of the persisted session record.
const DurableKey = "session"

type Role string

const (
	RoleNone    Role = ""
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// ParseRole accepts the role strings issued by the backend.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RolePatient:
		return RolePatient, true
	case RoleDoctor:
		return RoleDoctor, true
	}
	return RoleNone, false
}

// Session is the authentication state. Role is meaningful only when Token is
// set.
type Session struct {
	Token string `json:"token"`
	Role  Role   `json:"role"`
}

func (s Session) Authenticated() bool {
	return s.Token != ""
}

// Affordances lists which navigation entries are usable for a session.
type Affordances struct {
	Home     bool
	About    bool
	Login    bool
	Register bool
	UserMenu bool
}

// AffordancesFor is a total function of the session: public links while
// logged out, the user menu (with logout) while logged in.
func AffordancesFor(s Session) Affordances {
	in := s.Authenticated()
	return Affordances{
		Home:     !in,
		About:    !in,
		Login:    !in,
		Register: !in,
		UserMenu: in,
	}
}

// Store holds the single Session of this process.
type Store struct {
	// opMu serializes Load, Save and Clear including the observer call, so
	// observers see affordances in the same order the session changed.
	opMu sync.Mutex

	mu      sync.RWMutex
	current Session

	durable   storage.Store
	ephemeral storage.Store
	observer  func(Affordances)
	now       func() time.Time
	logger    zerolog.Logger
}

type Option func(*Store)

// WithObserver registers the callback that applies auth-gated affordances.
// It runs after every Load, Save and Clear and must not call back into
// Load, Save or Clear.
func WithObserver(fn func(Affordances)) Option {
	return func(s *Store) { s.observer = fn }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func NewStore(durable, ephemeral storage.Store, opts ...Option) *Store {
	s := &Store{
		durable:   durable,
		ephemeral: ephemeral,
		now:       time.Now,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ephemeral returns the per-tab store that Clear wipes.
func (s *Store) Ephemeral() storage.Store {
	return s.ephemeral
}

// Current returns a copy of the session.
func (s *Store) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Store) IsAuthenticated() bool {
	return s.Current().Authenticated()
}

// Load installs the persisted session if it is present and well-formed.
// Absent, unreadable or malformed records leave the store logged out. A
// record whose token is a JWT past its exp claim is dropped.
func (s *Store) Load(ctx context.Context) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	sess := s.readDurable(ctx)
	s.set(sess)
	s.apply(sess)
}

func (s *Store) readDurable(ctx context.Context) Session {
	raw, ok, err := s.durable.Get(ctx, DurableKey)
	if err != nil {
		s.logger.Warn().Err(err).Msg("session record unreadable, starting logged out")
		return Session{}
	}
	if !ok {
		return Session{}
	}

	var rec struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.logger.Warn().Err(err).Msg("session record malformed, starting logged out")
		return Session{}
	}
	role, ok := ParseRole(rec.Role)
	if rec.Token == "" || !ok {
		s.logger.Warn().Str("role", rec.Role).Msg("session record incomplete, starting logged out")
		return Session{}
	}

	if claims, ok := parseClaims(rec.Token); ok && claims.ExpiresAt != nil && !claims.ExpiresAt.Time.After(s.now()) {
		s.logger.Info().Time("expired_at", claims.ExpiresAt.Time).Msg("stored token expired, starting logged out")
		if err := s.durable.Delete(ctx, DurableKey); err != nil {
			s.logger.Warn().Err(err).Msg("failed to remove expired session record")
		}
		return Session{}
	}

	return Session{Token: rec.Token, Role: role}
}

// Save replaces the session and persists it. When persistence fails the
// in-memory session is still replaced and the error is returned.
func (s *Store) Save(ctx context.Context, token string, role Role) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	sess := Session{Token: token, Role: role}
	s.set(sess)
	defer s.apply(sess)

	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.durable.Set(ctx, DurableKey, string(raw)); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// Clear logs out: the session is reset, the durable record removed and every
// ephemeral key wiped in one step.
func (s *Store) Clear(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.set(Session{})
	defer s.apply(Session{})

	var errs []error
	if err := s.durable.Delete(ctx, DurableKey); err != nil {
		errs = append(errs, fmt.Errorf("remove session record: %w", err))
	}
	if err := s.ephemeral.Clear(ctx); err != nil {
		errs = append(errs, fmt.Errorf("clear ephemeral state: %w", err))
	}
	return errors.Join(errs...)
}

// Claims decodes the registered JWT claims of the current token without
// verifying its signature. Opaque tokens report ok=false.
func (s *Store) Claims() (*jwt.RegisteredClaims, bool) {
	sess := s.Current()
	if !sess.Authenticated() {
		return nil, false
	}
	return parseClaims(sess.Token)
}

func (s *Store) set(sess Session) {
	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
}

func (s *Store) apply(sess Session) {
	if s.observer != nil {
		s.observer(AffordancesFor(sess))
	}
}

func parseClaims(token string) (*jwt.RegisteredClaims, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}
