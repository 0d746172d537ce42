package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mehtaarjun/shopsphere-backend/pkg/db/models"
	"github.com/mehtaarjun/shopsphere-backend/pkg/enums"
)

// AddItemInput captures the payload required to add a product to the cart.
type AddItemInput struct {
	ProductID     uuid.UUID
	Quantity      int
	SelectedSize  *string
	SelectedColor *string
}

// ItemView is one sanitized cart line returned to clients.
type ItemView struct {
	ID            uuid.UUID       `json:"id"`
	ProductID     uuid.UUID       `json:"productId"`
	ProductName   string          `json:"productName"`
	Quantity      int             `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Currency      enums.Currency  `json:"currency"`
	SelectedSize  *string         `json:"selectedSize,omitempty"`
	SelectedColor *string         `json:"selectedColor,omitempty"`
}

// View is the sanitized cart representation returned to clients.
type View struct {
	ID          uuid.UUID       `json:"id"`
	Items       []ItemView      `json:"items"`
	TotalItems  int             `json:"totalItems"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Currency    enums.Currency  `json:"currency"`
}

func buildView(cart *models.Cart, names map[uuid.UUID]string) *View {
	items := make([]ItemView, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, ItemView{
			ID:            item.ID,
			ProductID:     item.ProductID,
			ProductName:   names[item.ProductID],
			Quantity:      item.Quantity,
			Price:         item.Price,
			Subtotal:      item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2),
			Currency:      item.Currency,
			SelectedSize:  item.SelectedSize,
			SelectedColor: item.SelectedColor,
		})
	}
	return &View{
		ID:          cart.ID,
		Items:       items,
		TotalItems:  cart.TotalItems,
		TotalAmount: cart.TotalAmount.Round(2),
		Currency:    cart.Currency,
	}
}
