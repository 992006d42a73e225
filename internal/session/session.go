// Package session holds the process-wide session context: the current access
// token and the identity decoded from it. Login starts it, Logout tears it down.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	sferrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/pkg/auth"
)

// State is what survives a restart.
type State struct {
	Token  string      `json:"token"`
	Claims auth.Claims `json:"claims"`
}

// Persister stores the session between runs.
// Load returns a nil State when nothing is stored.
type Persister interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, state State) error
	Clear(ctx context.Context) error
}

// Session is safe for concurrent use.
//
// Every Login, Logout and Restore starts a new generation. A token refreshed
// for one generation is never stored into another, so a refresh that finishes
// after a logout cannot bring the old session back.
type Session struct {
	mu         sync.RWMutex
	token      string
	claims     auth.Claims
	generation uint64

	// persistMu orders Save and Clear so the stored state follows the last writer.
	persistMu sync.Mutex

	hooksMu sync.Mutex
	hooks   []func(context.Context)

	decoder   auth.Decoder
	persister Persister
	logger    *slog.Logger
}

// New creates an empty session.
func New(decoder auth.Decoder, persister Persister, logger *slog.Logger) *Session {
	return &Session{
		decoder:   decoder,
		persister: persister,
		logger:    logger.With("component", "session"),
	}
}

// Restore loads a previously persisted session, if any.
func (s *Session) Restore(ctx context.Context) error {
	state, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}
	if state == nil || state.Token == "" {
		return nil
	}
	s.mu.Lock()
	s.generation++
	s.token = state.Token
	s.claims = auth.Normalize(state.Claims)
	s.mu.Unlock()
	s.logger.InfoContext(ctx, "Session restored", "user_id", state.Claims.UserID)
	return nil
}

// Login starts a session with the token returned by the backend. When it
// replaces the session of a different user, the OnEnd hooks run first so no
// state of the previous user leaks into the new session.
func (s *Session) Login(ctx context.Context, token string) (auth.Claims, error) {
	claims, err := s.decode(ctx, token)
	if err != nil {
		return auth.Claims{}, err
	}

	s.mu.Lock()
	previous, hadSession := s.claims.UserID, s.token != ""
	s.generation++
	generation := s.generation
	s.token = token
	s.claims = claims
	s.mu.Unlock()

	if hadSession && previous != claims.UserID {
		s.logger.InfoContext(ctx, "Switching user", "previous_user_id", previous, "user_id", claims.UserID)
		s.runHooks(ctx)
	}
	if err := s.persist(ctx, generation, State{Token: token, Claims: claims}); err != nil {
		return claims, err
	}
	s.logger.InfoContext(ctx, "Logged in", "user_id", claims.UserID, "roles", claims.Roles)
	return claims, nil
}

// Current returns the access token together with the generation it belongs to.
func (s *Session) Current() (string, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.generation
}

// Replace swaps in a refreshed token, provided the session is still the one of
// the given generation. Otherwise it fails with ErrSessionEnded and leaves the
// session untouched.
func (s *Session) Replace(ctx context.Context, generation uint64, token string) error {
	claims, err := s.decode(ctx, token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.generation != generation || s.token == "" {
		s.mu.Unlock()
		return fmt.Errorf("refreshed token dropped: %w: %w", sferrors.ErrSessionEnded, sferrors.ErrUnauthenticated)
	}
	s.token = token
	s.claims = claims
	s.mu.Unlock()

	return s.persist(ctx, generation, State{Token: token, Claims: claims})
}

func (s *Session) decode(ctx context.Context, token string) (auth.Claims, error) {
	if token == "" {
		return auth.Claims{}, sferrors.Validation("empty access token")
	}
	claims, err := s.decoder.Decode(ctx, token)
	if err != nil {
		return auth.Claims{}, fmt.Errorf("%w: %w", err, sferrors.ErrValidation)
	}
	return auth.Normalize(claims), nil
}

// persist saves state unless the session moved on to another generation or token.
func (s *Session) persist(ctx context.Context, generation uint64, state State) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if token, current := s.Current(); current != generation || token != state.Token {
		return nil
	}
	if err := s.persister.Save(ctx, state); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

// Logout clears the in-memory and persisted session and runs the OnEnd hooks.
// Calling it without a session is a no-op apart from the hooks.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	return s.end(ctx)
}

// Expire logs out only if the session is still the one of the given
// generation. It reports whether it did.
func (s *Session) Expire(ctx context.Context, generation uint64) (bool, error) {
	s.mu.Lock()
	if s.generation != generation {
		s.mu.Unlock()
		return false, nil
	}
	return true, s.end(ctx)
}

// end must be called with mu locked; it unlocks it.
func (s *Session) end(ctx context.Context) error {
	userID := s.claims.UserID
	s.generation++
	s.token = ""
	s.claims = auth.Claims{}
	s.mu.Unlock()

	s.persistMu.Lock()
	err := s.persister.Clear(ctx)
	s.persistMu.Unlock()
	if err != nil {
		err = fmt.Errorf("failed to clear persisted session: %w", err)
	}

	s.runHooks(ctx)
	s.logger.InfoContext(ctx, "Logged out", "user_id", userID)
	return err
}

func (s *Session) runHooks(ctx context.Context) {
	s.hooksMu.Lock()
	hooks := append([]func(context.Context){}, s.hooks...)
	s.hooksMu.Unlock()
	for _, hook := range hooks {
		hook(ctx)
	}
}

// OnEnd registers fn to run whenever the session of a user ends: on every
// Logout, forced or not, and on a Login that switches to another user.
func (s *Session) OnEnd(fn func(context.Context)) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Token returns the current access token or "".
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Claims returns the identity of the current session.
func (s *Session) Claims() (auth.Claims, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return auth.Claims{}, false
	}
	return s.claims, true
}

func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// HasRole reports whether the current session was granted role.
func (s *Session) HasRole(role string) bool {
	claims, ok := s.Claims()
	return ok && claims.HasRole(role)
}
