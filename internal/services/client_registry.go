package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ClientContext is the state owned by one browser: its session, its login
// flow and its cart
type ClientContext struct {
	ID      string
	Session *SessionManager
	Flow    *AuthFlow
	Cart    *Cart

	init     sync.Once
	lastSeen atomic.Int64
}

// RegistryDeps configures the collaborators of every client context
type RegistryDeps struct {
	Session SessionDeps
	Flow    FlowDeps
	Cart    CartDeps
	IdleTTL time.Duration
	Logger  *zap.Logger
}

// ClientRegistry creates client contexts on first use and keeps them until
// they go idle while logged out
type ClientRegistry struct {
	deps RegistryDeps

	mu      sync.Mutex
	clients map[string]*ClientContext
}

// NewClientRegistry creates an empty registry
func NewClientRegistry(deps RegistryDeps) *ClientRegistry {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Session.Clock == nil {
		deps.Session.Clock = RealClock()
	}
	if deps.IdleTTL <= 0 {
		deps.IdleTTL = 30 * time.Minute
	}
	return &ClientRegistry{
		deps:    deps,
		clients: make(map[string]*ClientContext),
	}
}

// Get returns the context of clientID, restoring its persisted session the
// first time it is seen
func (r *ClientRegistry) Get(ctx context.Context, clientID string) *ClientContext {
	r.mu.Lock()
	cc, ok := r.clients[clientID]
	if !ok {
		session := NewSessionManager(clientID, r.deps.Session)
		cc = &ClientContext{
			ID:      clientID,
			Session: session,
			Flow:    NewAuthFlow(clientID, session, r.deps.Flow),
			Cart:    NewCart(clientID, r.deps.Cart),
		}
		r.clients[clientID] = cc
	}
	r.mu.Unlock()

	cc.init.Do(func() {
		snap := cc.Session.Initialize(ctx)
		r.deps.Logger.Debug("client context created",
			zap.String("client_id", clientID),
			zap.Bool("authenticated", snap.IsAuthenticated))
	})
	cc.touch(r.deps.Session.Clock.Now())
	return cc
}

// Lookup returns the context of clientID without creating it
func (r *ClientRegistry) Lookup(clientID string) (*ClientContext, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cc, ok := r.clients[clientID]
	return cc, ok
}

// Len returns the number of live client contexts
func (r *ClientRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (r *ClientRegistry) snapshot() []*ClientContext {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*ClientContext, 0, len(r.clients))
	for _, cc := range r.clients {
		out = append(out, cc)
	}
	return out
}

// ValidateAll re-checks every authenticated session and evicts contexts
// that have been logged out and idle for longer than the idle TTL. It
// returns the number of sessions that were logged out.
func (r *ClientRegistry) ValidateAll(ctx context.Context) int {
	now := r.deps.Session.Clock.Now()
	loggedOut := 0
	for _, cc := range r.snapshot() {
		if cc.Session.Snapshot().IsAuthenticated {
			if !cc.Session.Validate(ctx).IsAuthenticated {
				loggedOut++
			}
			continue
		}
		if cc.idleSince(now) > r.deps.IdleTTL && !cc.Flow.Busy() && !cc.Cart.View().Processing {
			r.evict(ctx, cc)
		}
	}
	return loggedOut
}

func (r *ClientRegistry) evict(ctx context.Context, cc *ClientContext) {
	r.mu.Lock()
	if r.clients[cc.ID] != cc {
		r.mu.Unlock()
		return
	}
	delete(r.clients, cc.ID)
	r.mu.Unlock()

	cc.Flow.Reset(ctx)
	r.deps.Logger.Debug("idle client context evicted", zap.String("client_id", cc.ID))
}

// RunValidator calls ValidateAll every interval until ctx is done
func (r *ClientRegistry) RunValidator(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.ValidateAll(ctx); n > 0 {
				r.deps.Logger.Info("periodic validation logged out sessions", zap.Int("count", n))
			}
		}
	}
}

func (cc *ClientContext) touch(now time.Time) {
	cc.lastSeen.Store(now.UnixNano())
}

func (cc *ClientContext) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, cc.lastSeen.Load()))
}
