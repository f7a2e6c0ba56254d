package payment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minsu-cho/commerce-backend/pkg/db/models"
	apperrors "github.com/minsu-cho/commerce-backend/pkg/errors"
)

// Repository defines persistence operations for payment rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, p *models.Payment) error
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	Save(ctx context.Context, p *models.Payment) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payment repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, p *models.Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "payment not found")
		}
		return nil, err
	}
	return &p, nil
}

// Save persists the mutable settlement fields after a state transition.
func (r *repository) Save(ctx context.Context, p *models.Payment) error {
	return r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"status":          p.Status,
			"failure_reason":  p.FailureReason,
			"transaction_key": p.TransactionKey,
			"pg_requested_at": p.PGRequestedAt,
			"pg_completed_at": p.PGCompletedAt,
		}).Error
}
