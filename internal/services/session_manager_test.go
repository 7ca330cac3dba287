package services

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/kycstore/domain"
	"github.com/you/kycstore/internal/mocks"
)

const testMaxAge = 15 * 24 * time.Hour

// createSessionManagerForTest creates a SessionManager with mock dependencies
func createSessionManagerForTest(t *testing.T) (*SessionManager, *mocks.MockTokenStore, *mocks.FakeClock, *mocks.MockAuditLogger) {
	t.Helper()

	store := mocks.NewMockTokenStore()
	clock := mocks.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	audit := mocks.NewMockAuditLogger()
	sm := NewSessionManager("client-1", SessionDeps{
		Store:     store,
		Inspector: mocks.NewMockTokenInspector(),
		Audit:     audit,
		Clock:     clock,
		MaxAge:    testMaxAge,
	})
	return sm, store, clock, audit
}

func testAuthResult(token string) *domain.AuthResult {
	return &domain.AuthResult{
		Token: token,
		User:  &domain.User{ID: "user-1", Name: "A", Email: "a@b.com", Role: domain.RoleUser},
	}
}

func TestSessionManager_Initialize(t *testing.T) {
	tests := []struct {
		name          string
		setupStore    func(store *mocks.MockTokenStore, now time.Time)
		authenticated bool
		storeKept     bool
	}{
		{
			name:       "nothing persisted",
			setupStore: func(store *mocks.MockTokenStore, now time.Time) {},
		},
		{
			name: "valid persisted session",
			setupStore: func(store *mocks.MockTokenStore, now time.Time) {
				store.Put("client-1", domain.PersistedSession{Token: "good", CreatedAt: now.Add(-time.Hour)})
			},
			authenticated: true,
			storeKept:     true,
		},
		{
			name: "expired token is cleared",
			setupStore: func(store *mocks.MockTokenStore, now time.Time) {
				store.Put("client-1", domain.PersistedSession{Token: "expired-token", CreatedAt: now})
			},
		},
		{
			name: "corrupt token is cleared",
			setupStore: func(store *mocks.MockTokenStore, now time.Time) {
				store.Put("client-1", domain.PersistedSession{Token: "bad-token", CreatedAt: now})
			},
		},
		{
			name: "session older than max age is cleared",
			setupStore: func(store *mocks.MockTokenStore, now time.Time) {
				store.Put("client-1", domain.PersistedSession{Token: "good", CreatedAt: now.Add(-testMaxAge)})
			},
		},
		{
			name: "unreadable store degrades to unauthenticated",
			setupStore: func(store *mocks.MockTokenStore, now time.Time) {
				store.LoadFunc = func(ctx context.Context, clientID string) (*domain.PersistedSession, error) {
					return nil, errors.New("connection refused")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm, store, clock, _ := createSessionManagerForTest(t)
			tt.setupStore(store, clock.Now())

			snap := sm.Initialize(context.Background())

			assert.Equal(t, tt.authenticated, snap.IsAuthenticated)
			assert.Equal(t, tt.authenticated, snap.Token != "")
			if store.LoadFunc == nil {
				assert.Equal(t, tt.storeKept, store.Has("client-1"))
			}
		})
	}
}

func TestSessionManager_InitializeLeavesUserUnresolvedWhenAbsent(t *testing.T) {
	sm, store, clock, _ := createSessionManagerForTest(t)
	store.Put("client-1", domain.PersistedSession{Token: "good", CreatedAt: clock.Now()})

	snap := sm.Initialize(context.Background())

	assert.True(t, snap.IsAuthenticated)
	assert.Nil(t, snap.User)
}

func TestSessionManager_EstablishAndLogout(t *testing.T) {
	sm, store, _, audit := createSessionManagerForTest(t)
	ctx := context.Background()

	var hookReasons []string
	sm.OnLogout(func(ctx context.Context, reason string) {
		hookReasons = append(hookReasons, reason)
	})

	require.NoError(t, sm.Establish(ctx, sm.BeginLogin(), testAuthResult("good")))
	snap := sm.Snapshot()
	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, "user-1", snap.User.ID)
	assert.True(t, store.Has("client-1"))

	sm.Logout(ctx, LogoutReasonUser)

	snap = sm.Snapshot()
	assert.False(t, snap.IsAuthenticated)
	assert.Empty(t, snap.Token)
	assert.Nil(t, snap.User)
	assert.False(t, store.Has("client-1"))
	assert.Equal(t, []string{LogoutReasonUser}, hookReasons)
	assert.Equal(t, 1, audit.Count(domain.UserLogoutEvent))
}

func TestSessionManager_EstablishRejectsInvalidToken(t *testing.T) {
	sm, store, _, _ := createSessionManagerForTest(t)

	err := sm.Establish(context.Background(), sm.BeginLogin(), testAuthResult("bad-token"))

	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
	assert.False(t, sm.Snapshot().IsAuthenticated)
	assert.False(t, store.Has("client-1"))
}

func TestSessionManager_EstablishKeepsStateWhenPersistFails(t *testing.T) {
	sm, store, _, _ := createSessionManagerForTest(t)
	store.SaveFunc = func(ctx context.Context, clientID string, session *domain.PersistedSession) error {
		return errors.New("redis down")
	}

	err := sm.Establish(context.Background(), sm.BeginLogin(), testAuthResult("good"))

	assert.Error(t, err)
	assert.False(t, sm.Snapshot().IsAuthenticated)
}

func TestSessionManager_LogoutDuringLoginWins(t *testing.T) {
	sm, store, _, _ := createSessionManagerForTest(t)
	ctx := context.Background()

	ticket := sm.BeginLogin()
	sm.Logout(ctx, LogoutReasonExpired)

	err := sm.Establish(ctx, ticket, testAuthResult("good"))

	assert.ErrorIs(t, err, domain.ErrSessionSuperseded)
	assert.False(t, sm.Snapshot().IsAuthenticated)
	assert.False(t, store.Has("client-1"))

	// A fresh ticket works again
	require.NoError(t, sm.Establish(ctx, sm.BeginLogin(), testAuthResult("good")))
	assert.True(t, sm.Snapshot().IsAuthenticated)
}

func TestSessionManager_Validate(t *testing.T) {
	tests := []struct {
		name          string
		inspect       func(token string) (*domain.TokenClaims, error)
		advance       time.Duration
		authenticated bool
		reason        string
	}{
		{
			name:          "valid token stays",
			authenticated: true,
		},
		{
			name: "expired token logs out",
			inspect: func(token string) (*domain.TokenClaims, error) {
				return nil, domain.ErrTokenExpired
			},
			reason: LogoutReasonExpired,
		},
		{
			name: "malformed token logs out",
			inspect: func(token string) (*domain.TokenClaims, error) {
				return nil, domain.ErrTokenMalformed
			},
			reason: LogoutReasonInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mocks.NewMockTokenStore()
			inspector := mocks.NewMockTokenInspector()
			clock := mocks.NewFakeClock(time.Now())
			sm := NewSessionManager("client-1", SessionDeps{
				Store: store, Inspector: inspector, Clock: clock, MaxAge: testMaxAge,
			})
			var reasons []string
			sm.OnLogout(func(ctx context.Context, reason string) { reasons = append(reasons, reason) })

			ctx := context.Background()
			require.NoError(t, sm.Establish(ctx, sm.BeginLogin(), testAuthResult("good")))
			inspector.InspectFunc = tt.inspect

			snap := sm.Validate(ctx)
			assert.Equal(t, tt.authenticated, snap.IsAuthenticated)

			// Validate is idempotent
			snap = sm.Validate(ctx)
			assert.Equal(t, tt.authenticated, snap.IsAuthenticated)
			assert.Equal(t, tt.authenticated, store.Has("client-1"))

			if tt.reason != "" {
				assert.Equal(t, []string{tt.reason}, reasons)
			} else {
				assert.Empty(t, reasons)
			}
		})
	}
}

func TestSessionManager_AutoLogout(t *testing.T) {
	sm, store, clock, audit := createSessionManagerForTest(t)
	ctx := context.Background()

	require.NoError(t, sm.Establish(ctx, sm.BeginLogin(), testAuthResult("good")))
	assert.Equal(t, 1, clock.Pending())

	clock.Advance(testMaxAge - time.Minute)
	assert.True(t, sm.Snapshot().IsAuthenticated)

	clock.Advance(time.Minute)
	assert.False(t, sm.Snapshot().IsAuthenticated)
	assert.False(t, store.Has("client-1"))
	assert.Equal(t, 1, audit.Count(domain.SessionExpiredEvent))
}

func TestSessionManager_LogoutSurvivesFailedDelete(t *testing.T) {
	sm, store, clock, _ := createSessionManagerForTest(t)
	ctx := context.Background()

	require.NoError(t, sm.Establish(ctx, sm.BeginLogin(), testAuthResult("good")))
	store.DeleteFunc = func(ctx context.Context, clientID string) error {
		return errors.New("connection reset")
	}

	require.NoError(t, sm.Logout(ctx, LogoutReasonUser))
	assert.False(t, sm.Snapshot().IsAuthenticated)

	restarted := NewSessionManager("client-1", SessionDeps{
		Store:     store,
		Inspector: mocks.NewMockTokenInspector(),
		Clock:     clock,
		MaxAge:    testMaxAge,
	})
	assert.False(t, restarted.Initialize(ctx).IsAuthenticated, "a logged out session must not be restored")
}

func TestSessionManager_LogoutReportsUnrevokedSession(t *testing.T) {
	sm, store, _, _ := createSessionManagerForTest(t)
	ctx := context.Background()

	require.NoError(t, sm.Establish(ctx, sm.BeginLogin(), testAuthResult("good")))
	storeDown := errors.New("connection reset")
	store.DeleteFunc = func(ctx context.Context, clientID string) error { return storeDown }
	store.SaveFunc = func(ctx context.Context, clientID string, session *domain.PersistedSession) error { return storeDown }

	err := sm.Logout(ctx, LogoutReasonUser)

	assert.ErrorIs(t, err, storeDown)
	assert.False(t, sm.Snapshot().IsAuthenticated, "memory is cleared regardless")

	store.DeleteFunc = nil
	store.SaveFunc = nil
	require.NoError(t, sm.Logout(ctx, LogoutReasonUser), "a retried logout revokes the stored session")
	assert.False(t, store.Has("client-1"))
}

func TestSessionManager_AutoLogoutRestartsPerLogin(t *testing.T) {
	sm, _, clock, _ := createSessionManagerForTest(t)
	ctx := context.Background()

	require.NoError(t, sm.Establish(ctx, sm.BeginLogin(), testAuthResult("first")))
	clock.Advance(10 * 24 * time.Hour)

	sm.Logout(ctx, LogoutReasonUser)
	require.NoError(t, sm.Establish(ctx, sm.BeginLogin(), testAuthResult("second")))
	assert.Equal(t, 1, clock.Pending())

	// The first login's deadline passes without touching the second session
	clock.Advance(6 * 24 * time.Hour)
	assert.True(t, sm.Snapshot().IsAuthenticated)
	assert.Equal(t, "second", sm.Token())

	clock.Advance(9 * 24 * time.Hour)
	assert.False(t, sm.Snapshot().IsAuthenticated)
}

func TestSessionManager_InitializeArmsRemainingAge(t *testing.T) {
	sm, store, clock, _ := createSessionManagerForTest(t)
	store.Put("client-1", domain.PersistedSession{Token: "good", CreatedAt: clock.Now().Add(-14 * 24 * time.Hour)})

	require.True(t, sm.Initialize(context.Background()).IsAuthenticated)

	clock.Advance(24 * time.Hour)
	assert.False(t, sm.Snapshot().IsAuthenticated)
}

func TestSessionManager_SetUser(t *testing.T) {
	sm, store, _, _ := createSessionManagerForTest(t)
	ctx := context.Background()

	assert.ErrorIs(t, sm.SetUser(ctx, &domain.User{ID: "x"}), domain.ErrNotAuthenticated)

	require.NoError(t, sm.Establish(ctx, sm.BeginLogin(), testAuthResult("good")))
	require.NoError(t, sm.SetUser(ctx, &domain.User{ID: "user-1", Name: "Renamed"}))

	assert.Equal(t, "Renamed", sm.Snapshot().User.Name)
	persisted, err := store.Load(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", persisted.User.Name)
}

// TestSessionManager_InvariantUnderInterleaving drives random login, logout
// and validate calls from several goroutines and checks that the client is
// authenticated exactly when a token is present.
func TestSessionManager_InvariantUnderInterleaving(t *testing.T) {
	sm, store, clock, _ := createSessionManagerForTest(t)
	ctx := context.Background()
	tokens := []string{"good-1", "good-2", "expired-3", "bad-4"}

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 200; i++ {
				switch rng.Intn(5) {
				case 0, 1:
					ticket := sm.BeginLogin()
					_ = sm.Establish(ctx, ticket, testAuthResult(tokens[rng.Intn(len(tokens))]))
				case 2:
					sm.Logout(ctx, LogoutReasonUser)
				case 3:
					sm.Validate(ctx)
				case 4:
					clock.Advance(time.Duration(rng.Intn(48)) * time.Hour)
				}

				snap := sm.Snapshot()
				if snap.IsAuthenticated != (snap.Token != "") {
					t.Errorf("authenticated=%v with token %q", snap.IsAuthenticated, snap.Token)
				}
			}
		}(int64(g))
	}
	wg.Wait()

	snap := sm.Validate(ctx)
	assert.Equal(t, snap.IsAuthenticated, snap.Token != "")
	assert.Equal(t, snap.IsAuthenticated, store.Has("client-1"))
}
