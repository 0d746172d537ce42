package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mehtaarjun/shopsphere-backend/pkg/currency"
	"github.com/mehtaarjun/shopsphere-backend/pkg/db/models"
	"github.com/mehtaarjun/shopsphere-backend/pkg/enums"
	"github.com/mehtaarjun/shopsphere-backend/pkg/pagination"
	"github.com/mehtaarjun/shopsphere-backend/pkg/types"
)

// CreateCartOrderInput captures the payload to start checkout for the whole cart.
type CreateCartOrderInput struct {
	ShippingAddress *types.ShippingAddress
	Notes           string
}

// CreateSingleProductOrderInput captures the payload for buy-now checkout.
type CreateSingleProductOrderInput struct {
	ProductID       uuid.UUID
	Quantity        int
	SelectedSize    *string
	SelectedColor   *string
	ShippingAddress *types.ShippingAddress
	Notes           string
}

// OrderSummary is returned when an order is registered at the gateway. The
// frontend opens checkout with these values.
type OrderSummary struct {
	PaymentID      uuid.UUID      `json:"paymentId"`
	OrderID        string         `json:"orderId"`
	GatewayOrderID string         `json:"gatewayOrderId"`
	AmountMinor    int64          `json:"amount"`
	Currency       enums.Currency `json:"currency"`
	KeyID          string         `json:"keyId"`
}

// VerifyPaymentInput carries the checkout callback fields.
type VerifyPaymentInput struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// RefundInput captures a refund request. A nil amount refunds in full.
type RefundInput struct {
	AmountMinor *int64
	Reason      string
}

// ListFilter selects and pages the user's payment history.
type ListFilter struct {
	Status *enums.PaymentStatus
	Page   int
	Limit  int
}

// ItemView is one payment line snapshot returned to clients.
type ItemView struct {
	ProductID      uuid.UUID       `json:"productId"`
	ProductName    string          `json:"productName"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	ConvertedPrice decimal.Decimal `json:"convertedPrice"`
	Currency       enums.Currency  `json:"currency"`
	SelectedSize   *string         `json:"selectedSize,omitempty"`
	SelectedColor  *string         `json:"selectedColor,omitempty"`
}

// View is the sanitized payment record returned to clients.
type View struct {
	ID               uuid.UUID              `json:"id"`
	OrderID          string                 `json:"orderId"`
	GatewayOrderID   string                 `json:"gatewayOrderId"`
	GatewayPaymentID *string                `json:"gatewayPaymentId,omitempty"`
	AmountMinor      int64                  `json:"amount"`
	FormattedAmount  string                 `json:"formattedAmount"`
	Currency         enums.Currency         `json:"currency"`
	Status           enums.PaymentStatus    `json:"status"`
	OrderType        enums.OrderType        `json:"orderType"`
	PaymentMethod    *string                `json:"paymentMethod,omitempty"`
	Items            []ItemView             `json:"items"`
	ShippingAddress  *types.ShippingAddress `json:"shippingAddress,omitempty"`
	Notes            string                 `json:"notes,omitempty"`
	FailureReason    *string                `json:"failureReason,omitempty"`
	RefundInfo       *types.RefundInfo      `json:"refundInfo,omitempty"`
	CreatedAt        time.Time              `json:"createdAt"`
	PaidAt           *time.Time             `json:"paidAt,omitempty"`
	FailedAt         *time.Time             `json:"failedAt,omitempty"`
}

// ListResult is one page of the payment history.
type ListResult struct {
	Payments   []View          `json:"payments"`
	Pagination pagination.Meta `json:"pagination"`
}

// MethodStat is the client-facing per-method breakdown.
type MethodStat struct {
	Method      string `json:"method"`
	Count       int64  `json:"count"`
	AmountMinor int64  `json:"amount"`
}

// OrderTypeStat is the client-facing per-order-type breakdown.
type OrderTypeStat struct {
	OrderType string `json:"orderType"`
	Count     int64  `json:"count"`
}

// Stats is the aggregate payment report.
type Stats struct {
	TotalPayments          int64           `json:"totalPayments"`
	SuccessfulPayments     int64           `json:"successfulPayments"`
	FailedPayments         int64           `json:"failedPayments"`
	RefundedPayments       int64           `json:"refundedPayments"`
	PendingPayments        int64           `json:"pendingPayments"`
	TotalAmountMinor       int64           `json:"totalAmountMinor"`
	TotalAmount            decimal.Decimal `json:"totalAmount"`
	AverageAmountMinor     float64         `json:"averageAmountMinor"`
	AverageAmount          decimal.Decimal `json:"averageAmount"`
	SuccessRate            float64         `json:"successRate"`
	MethodBreakdown        []MethodStat    `json:"methodBreakdown"`
	OrderTypeBreakdown     []OrderTypeStat `json:"orderTypeBreakdown"`
	SettlementCurrency     enums.Currency  `json:"settlementCurrency"`
	FormattedTotalAmount   string          `json:"formattedTotalAmount"`
	FormattedAverageAmount string          `json:"formattedAverageAmount"`
}

func buildView(record *models.Payment) View {
	items := make([]ItemView, 0, len(record.Items))
	for _, item := range record.Items {
		items = append(items, ItemView{
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			ConvertedPrice: item.ConvertedPrice,
			Currency:       item.Currency,
			SelectedSize:   item.SelectedSize,
			SelectedColor:  item.SelectedColor,
		})
	}
	return View{
		ID:               record.ID,
		OrderID:          record.OrderID,
		GatewayOrderID:   record.GatewayOrderID,
		GatewayPaymentID: record.GatewayPaymentID,
		AmountMinor:      record.AmountMinor,
		FormattedAmount:  currency.Format(currency.FromMinorUnits(record.AmountMinor), record.Currency),
		Currency:         record.Currency,
		Status:           record.Status,
		OrderType:        record.OrderType,
		PaymentMethod:    record.PaymentMethod,
		Items:            items,
		ShippingAddress:  record.ShippingAddress,
		Notes:            record.Notes,
		FailureReason:    record.FailureReason,
		RefundInfo:       record.RefundInfo,
		CreatedAt:        record.CreatedAt,
		PaidAt:           record.PaidAt,
		FailedAt:         record.FailedAt,
	}
}
