package payments

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mehtaarjun/shopsphere-backend/internal/cart"
	"github.com/mehtaarjun/shopsphere-backend/pkg/currency"
	"github.com/mehtaarjun/shopsphere-backend/pkg/db/models"
	"github.com/mehtaarjun/shopsphere-backend/pkg/enums"
	pkgerrors "github.com/mehtaarjun/shopsphere-backend/pkg/errors"
	"github.com/mehtaarjun/shopsphere-backend/pkg/logger"
	"github.com/mehtaarjun/shopsphere-backend/pkg/metrics"
	"github.com/mehtaarjun/shopsphere-backend/pkg/pagination"
	"github.com/mehtaarjun/shopsphere-backend/pkg/razorpay"
	"github.com/mehtaarjun/shopsphere-backend/pkg/types"
)

const (
	maxItemQuantity = 50
	maxNotesLength  = 500

	// RoleAdmin may read and refund any payment record.
	RoleAdmin = "admin"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartReader interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
}

type cartClearer interface {
	Clear(ctx context.Context, userID uuid.UUID) (*cart.View, error)
}

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type gateway interface {
	KeyID() string
	KeySecret() string
	CreateOrder(ctx context.Context, params razorpay.OrderCreateParams) (*razorpay.Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*razorpay.PaymentDetails, error)
	CreateRefund(ctx context.Context, paymentID string, amountMinor int64, notes map[string]any) (*razorpay.Refund, error)
}

// Service exposes the payment lifecycle: order creation, verification,
// webhook reconciliation, refunds, and reporting.
type Service interface {
	CreateCartOrder(ctx context.Context, userID uuid.UUID, input CreateCartOrderInput) (*OrderSummary, error)
	CreateSingleProductOrder(ctx context.Context, userID uuid.UUID, input CreateSingleProductOrderInput) (*OrderSummary, error)
	VerifyPayment(ctx context.Context, userID uuid.UUID, input VerifyPaymentInput) (*View, error)
	HandleWebhookEvent(ctx context.Context, raw []byte) error
	RefundPayment(ctx context.Context, userID uuid.UUID, role string, paymentID uuid.UUID, input RefundInput) (*View, error)
	GetPayment(ctx context.Context, userID uuid.UUID, role string, paymentID uuid.UUID) (*View, error)
	ListPayments(ctx context.Context, userID uuid.UUID, filter ListFilter) (*ListResult, error)
	GetStats(ctx context.Context, filter StatsFilter) (*Stats, error)
}

type service struct {
	repo       PaymentRepository
	tx         txRunner
	carts      cartReader
	cartSvc    cartClearer
	products   productLoader
	gateway    gateway
	settlement enums.Currency
	metrics    *metrics.PaymentMetrics
	logger     *logger.Logger
}

// NewService builds a payment service backed by the provided stack.
func NewService(
	repo PaymentRepository,
	tx txRunner,
	carts cartReader,
	cartSvc cartClearer,
	products productLoader,
	gw gateway,
	settlement enums.Currency,
	m *metrics.PaymentMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart reader required")
	}
	if cartSvc == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if gw == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if !settlement.IsValid() {
		return nil, fmt.Errorf("invalid settlement currency %q", settlement)
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       repo,
		tx:         tx,
		carts:      carts,
		cartSvc:    cartSvc,
		products:   products,
		gateway:    gw,
		settlement: settlement,
		metrics:    m,
		logger:     logg,
	}, nil
}

// CreateCartOrder snapshots the user's cart, converts every line into the
// settlement currency, registers the order at the gateway, and persists a
// payment record in status created. The cart itself is untouched until the
// payment is verified.
func (s *service) CreateCartOrder(ctx context.Context, userID uuid.UUID, input CreateCartOrderInput) (*OrderSummary, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if len(input.Notes) > maxNotesLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notes cannot exceed 500 characters")
	}

	userCart, err := s.carts.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if len(userCart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	ids := make([]uuid.UUID, 0, len(userCart.Items))
	for _, item := range userCart.Items {
		ids = append(ids, item.ProductID)
	}
	loaded, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart products")
	}
	byID := make(map[uuid.UUID]*models.Product, len(loaded))
	for i := range loaded {
		byID[loaded[i].ID] = &loaded[i]
	}

	items := make([]models.PaymentItem, 0, len(userCart.Items))
	total := decimal.Zero
	for _, line := range userCart.Items {
		product, ok := byID[line.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a cart item is no longer available")
		}
		if !product.InStock {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("%s is out of stock", product.Name))
		}

		converted, err := s.convertUnitPrice(line.Price, line.Currency)
		if err != nil {
			return nil, err
		}
		total = total.Add(converted.Mul(decimal.NewFromInt(int64(line.Quantity))))
		items = append(items, models.PaymentItem{
			ProductID:      product.ID,
			ProductName:    product.Name,
			Quantity:       line.Quantity,
			UnitPrice:      line.Price,
			ConvertedPrice: converted.Round(2),
			Currency:       line.Currency,
			SelectedSize:   line.SelectedSize,
			SelectedColor:  line.SelectedColor,
		})
	}

	return s.registerOrder(ctx, userID, enums.OrderTypeCart, items, total, input.ShippingAddress, input.Notes)
}

// CreateSingleProductOrder runs buy-now checkout for one product, bypassing
// the cart entirely.
func (s *service) CreateSingleProductOrder(ctx context.Context, userID uuid.UUID, input CreateSingleProductOrderInput) (*OrderSummary, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if input.Quantity > maxItemQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "quantity exceeds the per-item limit of 50")
	}
	if len(input.Notes) > maxNotesLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notes cannot exceed 500 characters")
	}

	product, err := s.products.FindByID(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.InStock {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "product is out of stock")
	}
	if input.SelectedSize != nil && len(product.AvailableSizes) > 0 && !product.AvailableSizes.Contains(*input.SelectedSize) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "selected size is not available for this product")
	}
	if input.SelectedColor != nil && len(product.AvailableColors) > 0 && !product.AvailableColors.Contains(*input.SelectedColor) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "selected color is not available for this product")
	}

	converted, err := s.convertUnitPrice(product.Price, product.Currency)
	if err != nil {
		return nil, err
	}
	total := converted.Mul(decimal.NewFromInt(int64(input.Quantity)))
	items := []models.PaymentItem{{
		ProductID:      product.ID,
		ProductName:    product.Name,
		Quantity:       input.Quantity,
		UnitPrice:      product.Price,
		ConvertedPrice: converted.Round(2),
		Currency:       product.Currency,
		SelectedSize:   input.SelectedSize,
		SelectedColor:  input.SelectedColor,
	}}

	return s.registerOrder(ctx, userID, enums.OrderTypeSingleProduct, items, total, input.ShippingAddress, input.Notes)
}

func (s *service) registerOrder(
	ctx context.Context,
	userID uuid.UUID,
	orderType enums.OrderType,
	items []models.PaymentItem,
	total decimal.Decimal,
	address *types.ShippingAddress,
	notes string,
) (*OrderSummary, error) {
	amountMinor := currency.MinorUnits(total)
	if amountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order amount must be positive")
	}

	receipt := newReceipt()
	order, err := s.gateway.CreateOrder(ctx, razorpay.OrderCreateParams{
		AmountMinor: amountMinor,
		Currency:    s.settlement.String(),
		Receipt:     receipt,
		Notes:       map[string]any{"userId": userID.String(), "orderType": orderType.String()},
	})
	if err != nil {
		return nil, err
	}

	record := &models.Payment{
		UserID:          userID,
		OrderID:         receipt,
		GatewayOrderID:  order.ID,
		AmountMinor:     amountMinor,
		Currency:        s.settlement,
		Status:          enums.PaymentStatusCreated,
		OrderType:       orderType,
		Items:           items,
		ShippingAddress: address,
		Notes:           notes,
	}
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := s.repo.WithTx(tx).Create(ctx, record)
		return err
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment record")
	}

	s.metrics.IncOrderCreated(orderType.String())
	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"payment_id":       record.ID,
		"gateway_order_id": order.ID,
		"order_type":       orderType,
		"amount_minor":     amountMinor,
	}), "payment order created")

	return &OrderSummary{
		PaymentID:      record.ID,
		OrderID:        receipt,
		GatewayOrderID: order.ID,
		AmountMinor:    amountMinor,
		Currency:       s.settlement,
		KeyID:          s.gateway.KeyID(),
	}, nil
}

// VerifyPayment checks the checkout callback signature and settles the
// record. A bad signature is rejected before the record is even looked up, so
// forged callbacks can neither settle nor fail a payment. Failures after the
// signature and ownership checks mark the record failed so it cannot be stuck
// in created forever.
func (s *service) VerifyPayment(ctx context.Context, userID uuid.UUID, input VerifyPaymentInput) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.GatewayOrderID == "" || input.GatewayPaymentID == "" || input.Signature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id, payment id, and signature are required")
	}

	if !razorpay.VerifyPaymentSignature(input.GatewayOrderID, input.GatewayPaymentID, input.Signature, s.gateway.KeySecret()) {
		s.metrics.IncVerification("invalid_signature")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment signature")
	}

	record, err := s.repo.FindByGatewayOrderID(ctx, input.GatewayOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment record not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment record")
	}
	if record.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment belongs to another user")
	}
	if record.Status == enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment already verified")
	}
	if record.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("payment is %s and cannot be verified", record.Status))
	}

	details, err := s.gateway.FetchPayment(ctx, input.GatewayPaymentID)
	if err != nil {
		s.failVerification(ctx, record.ID, input.GatewayPaymentID, "gateway payment lookup failed")
		return nil, err
	}
	if details.OrderID != "" && details.OrderID != record.GatewayOrderID {
		s.failVerification(ctx, record.ID, input.GatewayPaymentID, "payment does not belong to this order")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment does not belong to this order")
	}

	update := PaidUpdate{
		GatewayPaymentID: input.GatewayPaymentID,
		GatewaySignature: &input.Signature,
		PaidAt:           time.Now().UTC(),
	}
	if details.Method != "" {
		method := details.Method
		update.PaymentMethod = &method
	}
	transitioned, err := s.repo.MarkPaid(ctx, record.ID, update)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment paid")
	}
	if transitioned {
		s.metrics.IncVerification("verified")
		if record.OrderType == enums.OrderTypeCart {
			if _, clearErr := s.cartSvc.Clear(ctx, userID); clearErr != nil {
				s.logger.Warn(s.logger.WithPaymentID(ctx, record.ID.String()), "clearing cart after payment failed")
			}
		}
	}

	updated, err := s.repo.FindByID(ctx, record.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payment record")
	}
	view := buildView(updated)
	return &view, nil
}

func (s *service) failVerification(ctx context.Context, id uuid.UUID, gatewayPaymentID, reason string) {
	s.metrics.IncVerification("failed")
	update := FailedUpdate{
		GatewayPaymentID: &gatewayPaymentID,
		FailureReason:    reason,
		FailedAt:         time.Now().UTC(),
	}
	if _, err := s.repo.MarkFailed(ctx, id, update); err != nil {
		s.logger.Error(s.logger.WithPaymentID(ctx, id.String()), "marking payment failed", err)
	}
}

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID               string `json:"id"`
				OrderID          string `json:"order_id"`
				Method           string `json:"method"`
				Status           string `json:"status"`
				ErrorDescription string `json:"error_description"`
			} `json:"entity"`
		} `json:"payment"`
		Refund struct {
			Entity struct {
				ID        string `json:"id"`
				PaymentID string `json:"payment_id"`
				Amount    int64  `json:"amount"`
			} `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

// HandleWebhookEvent reconciles one verified webhook delivery against the
// payment ledger. Unknown events and unknown records are acknowledged and
// logged rather than errored, so the gateway does not retry forever.
func (s *service) HandleWebhookEvent(ctx context.Context, raw []byte) error {
	var envelope webhookEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook payload")
	}
	s.metrics.IncWebhookEvent(envelope.Event)
	ctx = s.logger.WithFields(ctx, map[string]any{"webhook_event": envelope.Event})

	switch enums.WebhookEvent(envelope.Event) {
	case enums.WebhookEventPaymentCaptured:
		return s.applyCaptured(ctx, envelope, raw)
	case enums.WebhookEventPaymentFailed:
		return s.applyFailed(ctx, envelope, raw)
	case enums.WebhookEventRefundProcessed:
		return s.applyRefundProcessed(ctx, envelope)
	default:
		s.logger.Info(ctx, "ignoring unhandled webhook event")
		return nil
	}
}

func (s *service) applyCaptured(ctx context.Context, envelope webhookEnvelope, raw []byte) error {
	entity := envelope.Payload.Payment.Entity
	if entity.OrderID == "" {
		s.logger.Warn(ctx, "captured event without order id")
		return nil
	}
	record, err := s.repo.FindByGatewayOrderID(ctx, entity.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn(ctx, "captured event for unknown order")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment record")
	}

	update := PaidUpdate{
		GatewayPaymentID: entity.ID,
		WebhookData:      raw,
		PaidAt:           time.Now().UTC(),
	}
	if entity.Method != "" {
		method := entity.Method
		update.PaymentMethod = &method
	}
	transitioned, err := s.repo.MarkPaid(ctx, record.ID, update)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment paid")
	}
	if !transitioned {
		s.logger.Info(s.logger.WithPaymentID(ctx, record.ID.String()), "captured event for already settled payment")
	}
	return nil
}

func (s *service) applyFailed(ctx context.Context, envelope webhookEnvelope, raw []byte) error {
	entity := envelope.Payload.Payment.Entity
	if entity.OrderID == "" {
		s.logger.Warn(ctx, "failed event without order id")
		return nil
	}
	record, err := s.repo.FindByGatewayOrderID(ctx, entity.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn(ctx, "failed event for unknown order")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment record")
	}

	reason := entity.ErrorDescription
	if reason == "" {
		reason = "payment failed at gateway"
	}
	update := FailedUpdate{
		FailureReason: reason,
		WebhookData:   raw,
		FailedAt:      time.Now().UTC(),
	}
	if entity.ID != "" {
		paymentID := entity.ID
		update.GatewayPaymentID = &paymentID
	}
	transitioned, err := s.repo.MarkFailed(ctx, record.ID, update)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment failed")
	}
	if !transitioned {
		s.logger.Info(s.logger.WithPaymentID(ctx, record.ID.String()), "failed event ignored for settled payment")
	}
	return nil
}

func (s *service) applyRefundProcessed(ctx context.Context, envelope webhookEnvelope) error {
	entity := envelope.Payload.Refund.Entity
	if entity.PaymentID == "" {
		s.logger.Warn(ctx, "refund event without payment id")
		return nil
	}
	record, err := s.repo.FindByGatewayPaymentID(ctx, entity.PaymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn(ctx, "refund event for unknown payment")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment record")
	}
	if record.Status != enums.PaymentStatusPaid {
		s.logger.Info(s.logger.WithPaymentID(ctx, record.ID.String()), "refund event ignored for non-paid payment")
		return nil
	}

	info := types.RefundInfo{
		RefundID:          entity.ID,
		RefundAmountMinor: entity.Amount,
		RefundReason:      "processed by gateway",
		RefundedAt:        time.Now().UTC(),
	}
	if err := s.repo.MarkRefunded(ctx, record.ID, info); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment refunded")
	}
	s.metrics.IncRefund("webhook")
	return nil
}

// RefundPayment refunds a settled payment through the gateway. If a partial
// amount is rejected by the gateway, a full refund is attempted before giving
// up; the gateway refuses partials on some payment methods.
func (s *service) RefundPayment(ctx context.Context, userID uuid.UUID, role string, paymentID uuid.UUID, input RefundInput) (*View, error) {
	record, err := s.loadOwned(ctx, userID, role, paymentID)
	if err != nil {
		return nil, err
	}
	if record.Status != enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only paid payments can be refunded")
	}
	if record.GatewayPaymentID == nil || *record.GatewayPaymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment has no gateway payment reference")
	}

	// The gateway takes the refund amount literally, so a full refund must
	// send the recorded charge, never zero.
	amount := record.AmountMinor
	if input.AmountMinor != nil {
		amount = *input.AmountMinor
		if amount <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
		}
		if amount > record.AmountMinor {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount exceeds the paid amount")
		}
	}

	notes := map[string]any{}
	if input.Reason != "" {
		notes["reason"] = input.Reason
	}
	refund, err := s.gateway.CreateRefund(ctx, *record.GatewayPaymentID, amount, notes)
	if err != nil && amount < record.AmountMinor {
		s.logger.Warn(s.logger.WithPaymentID(ctx, record.ID.String()), "partial refund rejected, retrying full refund")
		amount = record.AmountMinor
		refund, err = s.gateway.CreateRefund(ctx, *record.GatewayPaymentID, amount, notes)
	}
	if err != nil {
		s.metrics.IncRefund("failed")
		return nil, err
	}

	refundedMinor := refund.AmountMinor
	if refundedMinor == 0 {
		refundedMinor = amount
	}
	info := types.RefundInfo{
		RefundID:          refund.ID,
		RefundAmountMinor: refundedMinor,
		RefundReason:      input.Reason,
		RefundedAt:        time.Now().UTC(),
	}
	if err := s.repo.MarkRefunded(ctx, record.ID, info); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment refunded")
	}
	s.metrics.IncRefund("refunded")

	updated, err := s.repo.FindByID(ctx, record.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payment record")
	}
	view := buildView(updated)
	return &view, nil
}

// GetPayment returns one payment record. Customers only see their own
// records; admins see everything.
func (s *service) GetPayment(ctx context.Context, userID uuid.UUID, role string, paymentID uuid.UUID) (*View, error) {
	record, err := s.loadOwned(ctx, userID, role, paymentID)
	if err != nil {
		return nil, err
	}
	view := buildView(record)
	return &view, nil
}

// ListPayments pages through the user's payment history, newest first.
func (s *service) ListPayments(ctx context.Context, userID uuid.UUID, filter ListFilter) (*ListResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	page := pagination.Normalize(filter.Page, filter.Limit)
	rows, total, err := s.repo.List(ctx, userID, filter.Status, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	views := make([]View, 0, len(rows))
	for i := range rows {
		views = append(views, buildView(&rows[i]))
	}
	return &ListResult{
		Payments:   views,
		Pagination: pagination.BuildMeta(page, total),
	}, nil
}

// GetStats aggregates the payment ledger into an admin report, optionally
// bounded to a creation-date window.
func (s *service) GetStats(ctx context.Context, filter StatsFilter) (*Stats, error) {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "start date must not be after end date")
	}
	row, err := s.repo.Stats(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate payments")
	}
	methods, err := s.repo.MethodStats(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate payment methods")
	}
	orderTypes, err := s.repo.OrderTypeStats(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate order types")
	}

	successRate := 0.0
	if row.TotalPayments > 0 {
		successRate = math.Round(float64(row.SuccessfulPayments)/float64(row.TotalPayments)*10000) / 100
	}

	totalAmount := currency.FromMinorUnits(row.TotalAmountMinor)
	averageAmount := decimal.NewFromFloat(row.AverageAmountMinor).Div(decimal.NewFromInt(100)).Round(2)

	methodStats := make([]MethodStat, 0, len(methods))
	for _, m := range methods {
		methodStats = append(methodStats, MethodStat{Method: m.Method, Count: m.Count, AmountMinor: m.AmountMinor})
	}
	orderTypeStats := make([]OrderTypeStat, 0, len(orderTypes))
	for _, o := range orderTypes {
		orderTypeStats = append(orderTypeStats, OrderTypeStat{OrderType: o.OrderType, Count: o.Count})
	}

	return &Stats{
		TotalPayments:          row.TotalPayments,
		SuccessfulPayments:     row.SuccessfulPayments,
		FailedPayments:         row.FailedPayments,
		RefundedPayments:       row.RefundedPayments,
		PendingPayments:        row.PendingPayments,
		TotalAmountMinor:       row.TotalAmountMinor,
		TotalAmount:            totalAmount,
		AverageAmountMinor:     row.AverageAmountMinor,
		AverageAmount:          averageAmount,
		SuccessRate:            successRate,
		MethodBreakdown:        methodStats,
		OrderTypeBreakdown:     orderTypeStats,
		SettlementCurrency:     s.settlement,
		FormattedTotalAmount:   currency.Format(totalAmount, s.settlement),
		FormattedAverageAmount: currency.Format(averageAmount, s.settlement),
	}, nil
}

func (s *service) loadOwned(ctx context.Context, userID uuid.UUID, role string, paymentID uuid.UUID) (*models.Payment, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	record, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment record not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment record")
	}
	if record.UserID != userID && role != RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment belongs to another user")
	}
	return record, nil
}

// convertUnitPrice converts one unit price into the settlement currency. The
// result is left unrounded; the charged amount rounds exactly once, when the
// order total is reduced to minor units. Item snapshots round separately for
// display.
func (s *service) convertUnitPrice(price decimal.Decimal, from enums.Currency) (decimal.Decimal, error) {
	converted, err := currency.Convert(price, from, s.settlement)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported currency conversion")
	}
	return converted, nil
}

func newReceipt() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("ORDER_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
	}
	return fmt.Sprintf("ORDER_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}
