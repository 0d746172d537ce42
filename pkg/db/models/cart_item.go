package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mehtaarjun/shopsphere-backend/pkg/enums"
)

// CartItem is one cart line. Price and currency are snapshots taken when the
// item was added; the validation pass in the cart service refreshes them.
type CartItem struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CartID        uuid.UUID       `gorm:"column:cart_id;type:uuid;not null;index"`
	ProductID     uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	Quantity      int             `gorm:"column:quantity;not null"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Currency      enums.Currency  `gorm:"column:currency;type:text;not null"`
	SelectedSize  *string         `gorm:"column:selected_size"`
	SelectedColor *string         `gorm:"column:selected_color"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *CartItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// MatchesSelection reports whether the line refers to the same
// (product, size, color) tuple, which is the identity for merging.
func (i *CartItem) MatchesSelection(productID uuid.UUID, size, color *string) bool {
	return i.ProductID == productID &&
		stringPtrEqual(i.SelectedSize, size) &&
		stringPtrEqual(i.SelectedColor, color)
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
