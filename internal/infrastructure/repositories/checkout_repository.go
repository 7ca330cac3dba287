package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/you/kycstore/domain"
	"gorm.io/gorm"
)

// DBCheckoutRecord represents the database model for a journaled checkout
type DBCheckoutRecord struct {
	ID             uint      `gorm:"primaryKey"`
	ClientID       string    `gorm:"index;size:64"`
	OrderID        string    `gorm:"index;size:64"`
	GatewayOrderID string    `gorm:"uniqueIndex;size:64"`
	AmountMinor    int64     `gorm:"not null"`
	Currency       string    `gorm:"size:8"`
	ServiceName    string    `gorm:"size:255"`
	Status         string    `gorm:"index;size:16"`
	Reason         string    `gorm:"size:255"`
	CreatedAt      time.Time `gorm:"index"`
	UpdatedAt      time.Time
}

// TableName returns the table name for GORM
func (DBCheckoutRecord) TableName() string {
	return "checkout_records"
}

// CheckoutJournalImpl implements domain.CheckoutJournal using GORM
type CheckoutJournalImpl struct {
	db *gorm.DB
}

// NewCheckoutJournal creates a new checkout journal
func NewCheckoutJournal(db *gorm.DB) *CheckoutJournalImpl {
	return &CheckoutJournalImpl{db: db}
}

// Record implements domain.CheckoutJournal
func (r *CheckoutJournalImpl) Record(ctx context.Context, record *domain.CheckoutRecord) error {
	row := r.domainToDB(record)
	if row.Status == "" {
		row.Status = string(domain.CheckoutPending)
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	record.Status = domain.CheckoutStatus(row.Status)
	record.CreatedAt = row.CreatedAt
	record.UpdatedAt = row.UpdatedAt
	return nil
}

// FindByGatewayOrder implements domain.CheckoutJournal
func (r *CheckoutJournalImpl) FindByGatewayOrder(ctx context.Context, gatewayOrderID string) (*domain.CheckoutRecord, error) {
	var row DBCheckoutRecord
	err := r.db.WithContext(ctx).Where("gateway_order_id = ?", gatewayOrderID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return r.dbToDomain(&row), nil
}

// Transition implements domain.CheckoutJournal. The status check and the
// update are one conditional UPDATE, so of two concurrent transitions out of
// the same status only one succeeds.
func (r *CheckoutJournalImpl) Transition(ctx context.Context, gatewayOrderID string, from, to domain.CheckoutStatus, reason string) error {
	result := r.db.WithContext(ctx).
		Model(&DBCheckoutRecord{}).
		Where("gateway_order_id = ? AND status = ?", gatewayOrderID, string(from)).
		Updates(map[string]interface{}{
			"status":     string(to),
			"reason":     reason,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.FindByGatewayOrder(ctx, gatewayOrderID); err != nil {
			return err
		}
		return domain.ErrOrderFinalized
	}
	return nil
}

// ListByClient implements domain.CheckoutJournal, newest first
func (r *CheckoutJournalImpl) ListByClient(ctx context.Context, clientID string, limit int) ([]domain.CheckoutRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []DBCheckoutRecord
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.CheckoutRecord, 0, len(rows))
	for i := range rows {
		out = append(out, *r.dbToDomain(&rows[i]))
	}
	return out, nil
}

func (r *CheckoutJournalImpl) domainToDB(rec *domain.CheckoutRecord) *DBCheckoutRecord {
	return &DBCheckoutRecord{
		ClientID:       rec.ClientID,
		OrderID:        rec.OrderID,
		GatewayOrderID: rec.GatewayOrderID,
		AmountMinor:    rec.AmountMinor,
		Currency:       rec.Currency,
		ServiceName:    rec.ServiceName,
		Status:         string(rec.Status),
		Reason:         rec.Reason,
	}
}

func (r *CheckoutJournalImpl) dbToDomain(row *DBCheckoutRecord) *domain.CheckoutRecord {
	return &domain.CheckoutRecord{
		ClientID:       row.ClientID,
		OrderID:        row.OrderID,
		GatewayOrderID: row.GatewayOrderID,
		AmountMinor:    row.AmountMinor,
		Currency:       row.Currency,
		ServiceName:    row.ServiceName,
		Status:         domain.CheckoutStatus(row.Status),
		Reason:         row.Reason,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

var _ domain.CheckoutJournal = (*CheckoutJournalImpl)(nil)
