package payments

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mehtaarjun/shopsphere-backend/pkg/db/models"
	"github.com/mehtaarjun/shopsphere-backend/pkg/enums"
	"github.com/mehtaarjun/shopsphere-backend/pkg/pagination"
	"github.com/mehtaarjun/shopsphere-backend/pkg/types"
)

// PaidUpdate carries the fields written when a payment transitions to paid.
type PaidUpdate struct {
	GatewayPaymentID string
	GatewaySignature *string
	PaymentMethod    *string
	WebhookData      json.RawMessage
	PaidAt           time.Time
}

// FailedUpdate carries the fields written when a payment transitions to failed.
type FailedUpdate struct {
	GatewayPaymentID *string
	FailureReason    string
	WebhookData      json.RawMessage
	FailedAt         time.Time
}

// StatsFilter optionally bounds aggregation by record creation time.
type StatsFilter struct {
	From *time.Time
	To   *time.Time
}

// PaymentRepository defines the persistence surface required by the payment service.
type PaymentRepository interface {
	WithTx(tx *gorm.DB) PaymentRepository
	Create(ctx context.Context, record *models.Payment) (*models.Payment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error)
	FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*models.Payment, error)
	MarkPaid(ctx context.Context, id uuid.UUID, update PaidUpdate) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, update FailedUpdate) (bool, error)
	MarkRefunded(ctx context.Context, id uuid.UUID, info types.RefundInfo) error
	List(ctx context.Context, userID uuid.UUID, status *enums.PaymentStatus, page pagination.Params) ([]models.Payment, int64, error)
	Stats(ctx context.Context, filter StatsFilter) (*StatsRow, error)
	MethodStats(ctx context.Context, filter StatsFilter) ([]MethodStatRow, error)
	OrderTypeStats(ctx context.Context, filter StatsFilter) ([]OrderTypeStatRow, error)
}
