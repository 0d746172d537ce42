package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mehtaarjun/shopsphere-backend/pkg/enums"
)

// Cart is the single mutable cart per user. Created lazily on first access,
// cleared rather than deleted.
type Cart struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	UserID      uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Items       []CartItem      `gorm:"foreignKey:CartID"`
	TotalItems  int             `gorm:"column:total_items;not null;default:0"`
	TotalAmount decimal.Decimal `gorm:"column:total_amount;type:numeric(14,2);not null;default:0"`
	Currency    enums.Currency  `gorm:"column:currency;type:text;not null;default:'USD'"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// RecomputeTotals derives totals from the items. Totals are never mutated
// independently; every cart write goes through this.
func (c *Cart) RecomputeTotals() {
	totalItems := 0
	totalAmount := decimal.Zero
	for _, item := range c.Items {
		totalItems += item.Quantity
		totalAmount = totalAmount.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	c.TotalItems = totalItems
	c.TotalAmount = totalAmount
}
