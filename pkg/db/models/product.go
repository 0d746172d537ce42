package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mehtaarjun/shopsphere-backend/pkg/enums"
	"github.com/mehtaarjun/shopsphere-backend/pkg/types"
)

// Product is the catalog row consumed read-only by cart and payments.
// Catalog ingestion and search live outside this service.
type Product struct {
	ID              uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name            string           `gorm:"column:name;not null"`
	Description     string           `gorm:"column:description"`
	Price           decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	Currency        enums.Currency   `gorm:"column:currency;type:text;not null;default:'USD'"`
	InStock         bool             `gorm:"column:in_stock;not null;default:true"`
	AvailableSizes  types.StringList `gorm:"column:available_sizes;type:jsonb;serializer:json"`
	AvailableColors types.StringList `gorm:"column:available_colors;type:jsonb;serializer:json"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
