package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/you/kycstore/domain"
	"github.com/you/kycstore/internal/metrics"
	"go.uber.org/zap"
)

// Logout reasons
const (
	LogoutReasonUser    = "user"
	LogoutReasonExpired = "token_expired"
	LogoutReasonInvalid = "token_invalid"
	LogoutReasonMaxAge  = "max_age"
)

// SessionDeps are the collaborators shared by every client's session manager
type SessionDeps struct {
	Store     domain.TokenStore
	Inspector domain.TokenInspector
	Audit     domain.AuditLogger
	Clock     domain.Clock
	Logger    *zap.Logger
	MaxAge    time.Duration
}

// LoginTicket binds an in-flight login to the logout epoch it started in
type LoginTicket struct {
	epoch uint64
}

// LogoutHook runs after a logout has been committed
type LogoutHook func(ctx context.Context, reason string)

// SessionManager is the single owner of one client's token. All writes go
// through Establish and Logout, so a token is present iff the client is
// authenticated.
type SessionManager struct {
	clientID string
	deps     SessionDeps

	mu        sync.Mutex
	token     string
	user      *domain.User
	createdAt time.Time
	epoch     uint64
	timer     domain.Timer
	timerGen  uint64
	hooks     []LogoutHook
}

// NewSessionManager creates an unauthenticated session manager for clientID
func NewSessionManager(clientID string, deps SessionDeps) *SessionManager {
	if deps.Clock == nil {
		deps.Clock = RealClock()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &SessionManager{clientID: clientID, deps: deps}
}

// OnLogout registers a hook fired after every logout
func (s *SessionManager) OnLogout(hook LogoutHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// Initialize restores the persisted session. A missing, corrupt, expired or
// over-age session leaves the client unauthenticated and the store cleared.
func (s *SessionManager) Initialize(ctx context.Context) domain.SessionSnapshot {
	persisted, err := s.deps.Store.Load(ctx, s.clientID)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionNotFound) {
			s.deps.Logger.Warn("discarding unreadable session",
				zap.String("client_id", s.clientID), zap.Error(err))
			s.deleteStored(ctx)
		}
		return s.Snapshot()
	}

	now := s.deps.Clock.Now()
	if persisted.Token == "" || !persisted.CreatedAt.Add(s.deps.MaxAge).After(now) {
		s.deleteStored(ctx)
		return s.Snapshot()
	}
	if _, err := s.deps.Inspector.Inspect(persisted.Token); err != nil {
		s.deleteStored(ctx)
		s.audit(ctx, domain.NewAuditEvent(domain.SessionExpiredEvent, s.clientID).
			WithUser(persisted.User).WithError(err))
		return s.Snapshot()
	}

	s.mu.Lock()
	s.token = persisted.Token
	s.user = persisted.User
	s.createdAt = persisted.CreatedAt
	s.armTimerLocked()
	s.mu.Unlock()

	return s.Snapshot()
}

// Validate re-checks the current token and the absolute age cap, logging the
// client out when either fails. Safe to call any number of times.
func (s *SessionManager) Validate(ctx context.Context) domain.SessionSnapshot {
	s.mu.Lock()
	token, createdAt := s.token, s.createdAt
	s.mu.Unlock()

	if token == "" {
		return s.Snapshot()
	}
	if !createdAt.Add(s.deps.MaxAge).After(s.deps.Clock.Now()) {
		s.logoutIf(ctx, token, LogoutReasonMaxAge)
		return s.Snapshot()
	}
	if _, err := s.deps.Inspector.Inspect(token); err != nil {
		reason := LogoutReasonInvalid
		if errors.Is(err, domain.ErrTokenExpired) {
			reason = LogoutReasonExpired
		}
		s.logoutIf(ctx, token, reason)
	}
	return s.Snapshot()
}

// BeginLogin issues a ticket for a login about to be sent
func (s *SessionManager) BeginLogin() LoginTicket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return LoginTicket{epoch: s.epoch}
}

// Establish commits a successful login. It refuses when a logout happened
// after the ticket was issued.
func (s *SessionManager) Establish(ctx context.Context, ticket LoginTicket, result *domain.AuthResult) error {
	if result == nil || result.Token == "" {
		return fmt.Errorf("%w: empty token", domain.ErrTokenInvalid)
	}
	if _, err := s.deps.Inspector.Inspect(result.Token); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ticket.epoch != s.epoch {
		return domain.ErrSessionSuperseded
	}

	now := s.deps.Clock.Now()
	persisted := &domain.PersistedSession{Token: result.Token, User: result.User, CreatedAt: now}
	if err := s.deps.Store.Save(ctx, s.clientID, persisted); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	s.token = result.Token
	s.user = result.User
	s.createdAt = now
	s.armTimerLocked()
	return nil
}

// Logout clears the persisted and in-memory session together. The client
// is logged out in memory even when the store fails; the returned error
// reports that the persisted session could not be revoked.
func (s *SessionManager) Logout(ctx context.Context, reason string) error {
	s.mu.Lock()
	user := s.user
	wasAuthenticated := s.token != ""
	err := s.clearLocked(ctx)
	hooks := append([]LogoutHook(nil), s.hooks...)
	s.mu.Unlock()

	s.afterLogout(ctx, reason, user, wasAuthenticated, hooks)
	return err
}

// logoutIf logs out only if token is still the current one, so a stale
// validation cannot tear down a session established in the meantime
func (s *SessionManager) logoutIf(ctx context.Context, token, reason string) {
	s.mu.Lock()
	if s.token != token {
		s.mu.Unlock()
		return
	}
	user := s.user
	_ = s.clearLocked(ctx)
	hooks := append([]LogoutHook(nil), s.hooks...)
	s.mu.Unlock()

	s.afterLogout(ctx, reason, user, true, hooks)
}

func (s *SessionManager) clearLocked(ctx context.Context) error {
	err := s.deleteStored(ctx)
	s.token = ""
	s.user = nil
	s.createdAt = time.Time{}
	s.epoch++
	s.timerGen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	return err
}

func (s *SessionManager) afterLogout(ctx context.Context, reason string, user *domain.User, wasAuthenticated bool, hooks []LogoutHook) {
	for _, hook := range hooks {
		hook(ctx, reason)
	}
	if !wasAuthenticated {
		return
	}

	metrics.SessionLogouts.WithLabelValues(reason).Inc()
	eventType := domain.SessionExpiredEvent
	if reason == LogoutReasonUser {
		eventType = domain.UserLogoutEvent
	}
	s.audit(ctx, domain.NewAuditEvent(eventType, s.clientID).
		WithUser(user).WithMetadata("reason", reason))
}

// armTimerLocked schedules the absolute-age logout for the current session
func (s *SessionManager) armTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timerGen++
	gen := s.timerGen
	remaining := s.createdAt.Add(s.deps.MaxAge).Sub(s.deps.Clock.Now())
	if remaining < 0 {
		remaining = 0
	}
	s.timer = s.deps.Clock.AfterFunc(remaining, func() {
		s.mu.Lock()
		if gen != s.timerGen || s.token == "" {
			s.mu.Unlock()
			return
		}
		token := s.token
		s.mu.Unlock()
		s.logoutIf(context.Background(), token, LogoutReasonMaxAge)
	})
}

// deleteStored removes the persisted session. When the delete fails a
// tokenless logout marker is written over it, so a later restore finds
// nothing to bring back.
func (s *SessionManager) deleteStored(ctx context.Context) error {
	err := s.deps.Store.Delete(ctx, s.clientID)
	if err == nil {
		return nil
	}
	marker := &domain.PersistedSession{CreatedAt: s.deps.Clock.Now()}
	if markErr := s.deps.Store.Save(ctx, s.clientID, marker); markErr == nil {
		s.deps.Logger.Warn("persisted session replaced by logout marker",
			zap.String("client_id", s.clientID), zap.Error(err))
		return nil
	}
	s.deps.Logger.Error("failed to revoke persisted session",
		zap.String("client_id", s.clientID), zap.Error(err))
	return fmt.Errorf("failed to revoke persisted session: %w", err)
}

func (s *SessionManager) audit(ctx context.Context, event *domain.AuditEvent) {
	if s.deps.Audit != nil {
		s.deps.Audit.LogEvent(ctx, event)
	}
}

// SetUser replaces the cached user after a profile fetch or update
func (s *SessionManager) SetUser(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == "" {
		return domain.ErrNotAuthenticated
	}
	s.user = user
	persisted := &domain.PersistedSession{Token: s.token, User: user, CreatedAt: s.createdAt}
	if err := s.deps.Store.Save(ctx, s.clientID, persisted); err != nil {
		return fmt.Errorf("failed to persist user: %w", err)
	}
	return nil
}

// Token returns the bearer token, or "" when unauthenticated
func (s *SessionManager) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Snapshot returns a consistent read-only view of the session
func (s *SessionManager) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == "" {
		return domain.SessionSnapshot{}
	}
	var user *domain.User
	if s.user != nil {
		u := *s.user
		user = &u
	}
	return domain.SessionSnapshot{
		IsAuthenticated: true,
		Token:           s.token,
		User:            user,
		CreatedAt:       s.createdAt,
		ExpiresAt:       s.createdAt.Add(s.deps.MaxAge),
	}
}

// ClientID returns the id of the client owning this session
func (s *SessionManager) ClientID() string { return s.clientID }
