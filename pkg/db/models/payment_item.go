package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mehtaarjun/shopsphere-backend/pkg/enums"
)

// PaymentItem is the line-item snapshot taken at order-creation time. These
// values stay authoritative for the order even if catalog prices change;
// both native and converted prices are kept for refunds and audit.
type PaymentItem struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	PaymentID      uuid.UUID       `gorm:"column:payment_id;type:uuid;not null;index"`
	ProductID      uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	ProductName    string          `gorm:"column:product_name;not null"`
	Quantity       int             `gorm:"column:quantity;not null"`
	UnitPrice      decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	ConvertedPrice decimal.Decimal `gorm:"column:converted_price;type:numeric(12,2);not null"`
	Currency       enums.Currency  `gorm:"column:currency;type:text;not null"`
	SelectedSize   *string         `gorm:"column:selected_size"`
	SelectedColor  *string         `gorm:"column:selected_color"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *PaymentItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
