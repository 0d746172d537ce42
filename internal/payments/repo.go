package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mehtaarjun/shopsphere-backend/pkg/db/models"
	"github.com/mehtaarjun/shopsphere-backend/pkg/enums"
	"github.com/mehtaarjun/shopsphere-backend/pkg/pagination"
	"github.com/mehtaarjun/shopsphere-backend/pkg/types"
)

// Repository exposes persistence operations for payment records.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a payment repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) PaymentRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new payment record with its item snapshots.
func (r *Repository) Create(ctx context.Context, record *models.Payment) (*models.Payment, error) {
	if record.Status == "" {
		record.Status = enums.PaymentStatusCreated
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// FindByID loads a payment with its items.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var record models.Payment
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&record, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByGatewayOrderID loads a payment by its gateway order reference.
func (r *Repository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error) {
	var record models.Payment
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("gateway_order_id = ?", gatewayOrderID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByGatewayPaymentID loads a payment by its gateway payment reference.
func (r *Repository) FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*models.Payment, error) {
	var record models.Payment
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("gateway_payment_id = ?", gatewayPaymentID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// MarkPaid transitions a record to paid. The status guard in the WHERE clause
// makes concurrent verification and webhook delivery converge on a single
// transition; the first writer wins and later callers see false.
func (r *Repository) MarkPaid(ctx context.Context, id uuid.UUID, update PaidUpdate) (bool, error) {
	fields := map[string]any{
		"status":             enums.PaymentStatusPaid,
		"gateway_payment_id": update.GatewayPaymentID,
		"paid_at":            update.PaidAt,
	}
	if update.GatewaySignature != nil {
		fields["gateway_signature"] = *update.GatewaySignature
	}
	if update.PaymentMethod != nil {
		fields["payment_method"] = *update.PaymentMethod
	}
	if len(update.WebhookData) > 0 {
		fields["webhook_data"] = []byte(update.WebhookData)
	}
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status NOT IN ?", id, []enums.PaymentStatus{
			enums.PaymentStatusPaid,
			enums.PaymentStatusRefunded,
			enums.PaymentStatusCancelled,
		}).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkFailed transitions a record to failed. Paid and refunded records are
// left untouched; a late failure event must not clobber a settled payment.
// Already-failed records are also skipped so a redelivered failure event
// cannot rewrite the original failure detail.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, update FailedUpdate) (bool, error) {
	fields := map[string]any{
		"status":         enums.PaymentStatusFailed,
		"failure_reason": update.FailureReason,
		"failed_at":      update.FailedAt,
	}
	if update.GatewayPaymentID != nil {
		fields["gateway_payment_id"] = *update.GatewayPaymentID
	}
	if len(update.WebhookData) > 0 {
		fields["webhook_data"] = []byte(update.WebhookData)
	}
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status NOT IN ?", id, []enums.PaymentStatus{
			enums.PaymentStatusPaid,
			enums.PaymentStatusFailed,
			enums.PaymentStatusRefunded,
			enums.PaymentStatusCancelled,
		}).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkRefunded transitions a paid record to refunded and stores the refund details.
func (r *Repository) MarkRefunded(ctx context.Context, id uuid.UUID, info types.RefundInfo) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, enums.PaymentStatusPaid).
		Updates(map[string]any{
			"status":      enums.PaymentStatusRefunded,
			"refund_info": &info,
		}).Error
}

// List returns the user's payments newest first, with the total row count for
// pagination.
func (r *Repository) List(ctx context.Context, userID uuid.UUID, status *enums.PaymentStatus, page pagination.Params) ([]models.Payment, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("user_id = ?", userID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Payment
	err := query.
		Preload("Items").
		Order("created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// StatsRow is the raw aggregate over all payment records.
type StatsRow struct {
	TotalPayments      int64
	TotalAmountMinor   int64
	SuccessfulPayments int64
	FailedPayments     int64
	RefundedPayments   int64
	PendingPayments    int64
	AverageAmountMinor float64
}

func (r *Repository) statsScope(ctx context.Context, filter StatsFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Payment{})
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}
	return query
}

// Stats aggregates payment counts and settled volume in one query. CASE
// expressions keep it portable between postgres and sqlite.
func (r *Repository) Stats(ctx context.Context, filter StatsFilter) (*StatsRow, error) {
	var row StatsRow
	err := r.statsScope(ctx, filter).
		Select(`
			COUNT(*) AS total_payments,
			COALESCE(SUM(CASE WHEN status = 'paid' THEN amount_minor ELSE 0 END), 0) AS total_amount_minor,
			COALESCE(SUM(CASE WHEN status = 'paid' THEN 1 ELSE 0 END), 0) AS successful_payments,
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0) AS failed_payments,
			COALESCE(SUM(CASE WHEN status = 'refunded' THEN 1 ELSE 0 END), 0) AS refunded_payments,
			COALESCE(SUM(CASE WHEN status IN ('created', 'attempted') THEN 1 ELSE 0 END), 0) AS pending_payments,
			COALESCE(AVG(CASE WHEN status = 'paid' THEN amount_minor END), 0) AS average_amount_minor`).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// MethodStatRow is the settled volume for one payment method.
type MethodStatRow struct {
	Method      string
	Count       int64
	AmountMinor int64
}

// MethodStats breaks down settled payments by gateway method.
func (r *Repository) MethodStats(ctx context.Context, filter StatsFilter) ([]MethodStatRow, error) {
	var rows []MethodStatRow
	err := r.statsScope(ctx, filter).
		Select(`COALESCE(payment_method, 'unknown') AS method, COUNT(*) AS count, COALESCE(SUM(amount_minor), 0) AS amount_minor`).
		Where("status = ?", enums.PaymentStatusPaid).
		Group("COALESCE(payment_method, 'unknown')").
		Order("count DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// OrderTypeStatRow is the record count for one order type.
type OrderTypeStatRow struct {
	OrderType string
	Count     int64
}

// OrderTypeStats breaks down all payment records by order type.
func (r *Repository) OrderTypeStats(ctx context.Context, filter StatsFilter) ([]OrderTypeStatRow, error) {
	var rows []OrderTypeStatRow
	err := r.statsScope(ctx, filter).
		Select(`order_type, COUNT(*) AS count`).
		Group("order_type").
		Order("count DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
