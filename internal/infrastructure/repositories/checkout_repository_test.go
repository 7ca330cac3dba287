package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/kycstore/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	// every pooled connection would otherwise get its own empty :memory: db
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&DBCheckoutRecord{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func pendingRecord(clientID, gatewayID string) *domain.CheckoutRecord {
	return &domain.CheckoutRecord{
		ClientID:       clientID,
		OrderID:        "ORD-" + gatewayID,
		GatewayOrderID: gatewayID,
		AmountMinor:    36000,
		Currency:       "INR",
		ServiceName:    "Custom Verification Service",
	}
}

func TestCheckoutJournal_RecordAndFind(t *testing.T) {
	journal := NewCheckoutJournal(setupTestDB(t))
	ctx := context.Background()

	rec := pendingRecord("c1", "order_1")
	require.NoError(t, journal.Record(ctx, rec))
	assert.Equal(t, domain.CheckoutPending, rec.Status)
	assert.False(t, rec.CreatedAt.IsZero())

	found, err := journal.FindByGatewayOrder(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, "c1", found.ClientID)
	assert.Equal(t, int64(36000), found.AmountMinor)
	assert.Equal(t, domain.CheckoutPending, found.Status)

	_, err = journal.FindByGatewayOrder(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestCheckoutJournal_Transition(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(t *testing.T, j *CheckoutJournalImpl)
		gatewayID   string
		from        domain.CheckoutStatus
		to          domain.CheckoutStatus
		expectedErr error
	}{
		{
			name: "pending to verifying",
			setup: func(t *testing.T, j *CheckoutJournalImpl) {
				require.NoError(t, j.Record(context.Background(), pendingRecord("c1", "order_1")))
			},
			gatewayID: "order_1",
			from:      domain.CheckoutPending,
			to:        domain.CheckoutVerifying,
		},
		{
			name: "verifying to confirmed",
			setup: func(t *testing.T, j *CheckoutJournalImpl) {
				require.NoError(t, j.Record(context.Background(), pendingRecord("c1", "order_1")))
				require.NoError(t, j.Transition(context.Background(), "order_1", domain.CheckoutPending, domain.CheckoutVerifying, ""))
			},
			gatewayID: "order_1",
			from:      domain.CheckoutVerifying,
			to:        domain.CheckoutConfirmed,
		},
		{
			name: "claimed order cannot be claimed again",
			setup: func(t *testing.T, j *CheckoutJournalImpl) {
				require.NoError(t, j.Record(context.Background(), pendingRecord("c1", "order_1")))
				require.NoError(t, j.Transition(context.Background(), "order_1", domain.CheckoutPending, domain.CheckoutVerifying, ""))
			},
			gatewayID:   "order_1",
			from:        domain.CheckoutPending,
			to:          domain.CheckoutVerifying,
			expectedErr: domain.ErrOrderFinalized,
		},
		{
			name: "terminal status is not overwritten",
			setup: func(t *testing.T, j *CheckoutJournalImpl) {
				require.NoError(t, j.Record(context.Background(), pendingRecord("c1", "order_1")))
				require.NoError(t, j.Transition(context.Background(), "order_1", domain.CheckoutPending, domain.CheckoutFailed, "payment cancelled"))
			},
			gatewayID:   "order_1",
			from:        domain.CheckoutPending,
			to:          domain.CheckoutConfirmed,
			expectedErr: domain.ErrOrderFinalized,
		},
		{
			name:        "unknown order",
			setup:       func(t *testing.T, j *CheckoutJournalImpl) {},
			gatewayID:   "order_x",
			from:        domain.CheckoutPending,
			to:          domain.CheckoutFailed,
			expectedErr: domain.ErrOrderNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			journal := NewCheckoutJournal(setupTestDB(t))
			tt.setup(t, journal)

			err := journal.Transition(context.Background(), tt.gatewayID, tt.from, tt.to, "")
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)

			found, err := journal.FindByGatewayOrder(context.Background(), tt.gatewayID)
			require.NoError(t, err)
			assert.Equal(t, tt.to, found.Status)
		})
	}
}

func TestCheckoutJournal_ListByClient(t *testing.T) {
	journal := NewCheckoutJournal(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, journal.Record(ctx, pendingRecord("c1", "order_1")))
	require.NoError(t, journal.Record(ctx, pendingRecord("c2", "order_2")))
	require.NoError(t, journal.Record(ctx, pendingRecord("c1", "order_3")))

	records, err := journal.ListByClient(ctx, "c1", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "order_3", records[0].GatewayOrderID, "newest first")
	assert.Equal(t, "order_1", records[1].GatewayOrderID)
}
