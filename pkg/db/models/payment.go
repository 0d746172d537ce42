package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mehtaarjun/shopsphere-backend/pkg/currency"
	"github.com/mehtaarjun/shopsphere-backend/pkg/enums"
	"github.com/mehtaarjun/shopsphere-backend/pkg/types"
)

// Payment is the append-mostly ledger for one payment attempt. It is created
// at order time, mutated only through status transitions, and never deleted;
// cancellation is a status, not a removal.
type Payment struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID           uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index:idx_payments_user_status"`
	OrderID          string                 `gorm:"column:order_id;not null;uniqueIndex"`
	GatewayOrderID   string                 `gorm:"column:gateway_order_id;not null;uniqueIndex"`
	GatewayPaymentID *string                `gorm:"column:gateway_payment_id;uniqueIndex"`
	GatewaySignature *string                `gorm:"column:gateway_signature"`
	AmountMinor      int64                  `gorm:"column:amount_minor;not null"`
	Currency         enums.Currency         `gorm:"column:currency;type:text;not null"`
	Status           enums.PaymentStatus    `gorm:"column:status;type:text;not null;default:'created';index:idx_payments_user_status"`
	OrderType        enums.OrderType        `gorm:"column:order_type;type:text;not null"`
	PaymentMethod    *string                `gorm:"column:payment_method"`
	Items            []PaymentItem          `gorm:"foreignKey:PaymentID"`
	ShippingAddress  *types.ShippingAddress `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	Notes            string                 `gorm:"column:notes;size:500"`
	FailureReason    *string                `gorm:"column:failure_reason"`
	WebhookData      json.RawMessage        `gorm:"column:webhook_data;type:jsonb"`
	RefundInfo       *types.RefundInfo      `gorm:"column:refund_info;type:jsonb;serializer:json"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
	PaidAt           *time.Time             `gorm:"column:paid_at"`
	FailedAt         *time.Time             `gorm:"column:failed_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// FormattedAmount renders the charged amount in major units with the
// settlement currency symbol, e.g. "₹83.50".
func (p *Payment) FormattedAmount() string {
	return currency.Format(currency.FromMinorUnits(p.AmountMinor), p.Currency)
}
