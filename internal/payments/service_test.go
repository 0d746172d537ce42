package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mehtaarjun/shopsphere-backend/internal/cart"
	"github.com/mehtaarjun/shopsphere-backend/pkg/db/models"
	"github.com/mehtaarjun/shopsphere-backend/pkg/enums"
	pkgerrors "github.com/mehtaarjun/shopsphere-backend/pkg/errors"
	"github.com/mehtaarjun/shopsphere-backend/pkg/logger"
	"github.com/mehtaarjun/shopsphere-backend/pkg/pagination"
	"github.com/mehtaarjun/shopsphere-backend/pkg/razorpay"
	"github.com/mehtaarjun/shopsphere-backend/pkg/types"
)

const testKeySecret = "test_key_secret"

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubPaymentRepo struct {
	records map[uuid.UUID]*models.Payment

	markFailedCalls int
	statsRow        *StatsRow
	methodRows      []MethodStatRow
	orderTypeRows   []OrderTypeStatRow
}

func newStubPaymentRepo() *stubPaymentRepo {
	return &stubPaymentRepo{records: map[uuid.UUID]*models.Payment{}}
}

func (s *stubPaymentRepo) WithTx(tx *gorm.DB) PaymentRepository { return s }

func (s *stubPaymentRepo) Create(ctx context.Context, record *models.Payment) (*models.Payment, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Status == "" {
		record.Status = enums.PaymentStatusCreated
	}
	s.records[record.ID] = record
	return record, nil
}

func (s *stubPaymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	record, ok := s.records[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return record, nil
}

func (s *stubPaymentRepo) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error) {
	for _, record := range s.records {
		if record.GatewayOrderID == gatewayOrderID {
			return record, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubPaymentRepo) FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*models.Payment, error) {
	for _, record := range s.records {
		if record.GatewayPaymentID != nil && *record.GatewayPaymentID == gatewayPaymentID {
			return record, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubPaymentRepo) MarkPaid(ctx context.Context, id uuid.UUID, update PaidUpdate) (bool, error) {
	record, ok := s.records[id]
	if !ok {
		return false, nil
	}
	if record.Status == enums.PaymentStatusPaid || record.Status.IsTerminal() {
		return false, nil
	}
	record.Status = enums.PaymentStatusPaid
	record.GatewayPaymentID = &update.GatewayPaymentID
	record.GatewaySignature = update.GatewaySignature
	record.PaymentMethod = update.PaymentMethod
	record.WebhookData = update.WebhookData
	paidAt := update.PaidAt
	record.PaidAt = &paidAt
	return true, nil
}

func (s *stubPaymentRepo) MarkFailed(ctx context.Context, id uuid.UUID, update FailedUpdate) (bool, error) {
	s.markFailedCalls++
	record, ok := s.records[id]
	if !ok {
		return false, nil
	}
	if record.Status == enums.PaymentStatusPaid || record.Status == enums.PaymentStatusFailed || record.Status.IsTerminal() {
		return false, nil
	}
	record.Status = enums.PaymentStatusFailed
	reason := update.FailureReason
	record.FailureReason = &reason
	failedAt := update.FailedAt
	record.FailedAt = &failedAt
	return true, nil
}

func (s *stubPaymentRepo) MarkRefunded(ctx context.Context, id uuid.UUID, info types.RefundInfo) error {
	record, ok := s.records[id]
	if !ok || record.Status != enums.PaymentStatusPaid {
		return nil
	}
	record.Status = enums.PaymentStatusRefunded
	record.RefundInfo = &info
	return nil
}

func (s *stubPaymentRepo) List(ctx context.Context, userID uuid.UUID, status *enums.PaymentStatus, page pagination.Params) ([]models.Payment, int64, error) {
	var rows []models.Payment
	for _, record := range s.records {
		if record.UserID != userID {
			continue
		}
		if status != nil && record.Status != *status {
			continue
		}
		rows = append(rows, *record)
	}
	return rows, int64(len(rows)), nil
}

func (s *stubPaymentRepo) Stats(ctx context.Context, filter StatsFilter) (*StatsRow, error) {
	if s.statsRow != nil {
		return s.statsRow, nil
	}
	return &StatsRow{}, nil
}

func (s *stubPaymentRepo) MethodStats(ctx context.Context, filter StatsFilter) ([]MethodStatRow, error) {
	return s.methodRows, nil
}

func (s *stubPaymentRepo) OrderTypeStats(ctx context.Context, filter StatsFilter) ([]OrderTypeStatRow, error) {
	return s.orderTypeRows, nil
}

type stubCartReader struct {
	cart *models.Cart
}

func (s *stubCartReader) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if s.cart == nil || s.cart.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.cart, nil
}

type stubCartClearer struct {
	cleared int
}

func (s *stubCartClearer) Clear(ctx context.Context, userID uuid.UUID) (*cart.View, error) {
	s.cleared++
	return &cart.View{}, nil
}

type stubProducts struct {
	byID map[uuid.UUID]*models.Product
}

func (s *stubProducts) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, ok := s.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return product, nil
}

func (s *stubProducts) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var out []models.Product
	for _, id := range ids {
		if product, ok := s.byID[id]; ok {
			out = append(out, *product)
		}
	}
	return out, nil
}

type fakeGateway struct {
	orders        []razorpay.OrderCreateParams
	fetchDetails  *razorpay.PaymentDetails
	fetchErr      error
	refundErrOnce error
	refundCalls   []int64
}

func (f *fakeGateway) KeyID() string     { return "rzp_test_key" }
func (f *fakeGateway) KeySecret() string { return testKeySecret }

func (f *fakeGateway) CreateOrder(ctx context.Context, params razorpay.OrderCreateParams) (*razorpay.Order, error) {
	f.orders = append(f.orders, params)
	return &razorpay.Order{
		ID:          fmt.Sprintf("order_%d", len(f.orders)),
		AmountMinor: params.AmountMinor,
		Currency:    params.Currency,
		Receipt:     params.Receipt,
		Status:      "created",
	}, nil
}

func (f *fakeGateway) FetchPayment(ctx context.Context, paymentID string) (*razorpay.PaymentDetails, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if f.fetchDetails != nil {
		return f.fetchDetails, nil
	}
	return &razorpay.PaymentDetails{ID: paymentID, Status: "captured", Method: "upi"}, nil
}

func (f *fakeGateway) CreateRefund(ctx context.Context, paymentID string, amountMinor int64, notes map[string]any) (*razorpay.Refund, error) {
	f.refundCalls = append(f.refundCalls, amountMinor)
	if f.refundErrOnce != nil {
		err := f.refundErrOnce
		f.refundErrOnce = nil
		return nil, err
	}
	return &razorpay.Refund{ID: "rfnd_1", PaymentID: paymentID, AmountMinor: amountMinor, Status: "processed"}, nil
}

type testEnv struct {
	svc     Service
	repo    *stubPaymentRepo
	gateway *fakeGateway
	carts   *stubCartReader
	clearer *stubCartClearer
}

func newTestEnv(t *testing.T, carts *stubCartReader, products *stubProducts) *testEnv {
	t.Helper()
	repo := newStubPaymentRepo()
	gw := &fakeGateway{}
	clearer := &stubCartClearer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(repo, stubTxRunner{}, carts, clearer, products, gw, enums.CurrencyINR, nil, logg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &testEnv{svc: svc, repo: repo, gateway: gw, carts: carts, clearer: clearer}
}

func paymentSignature(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(testKeySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func usdProduct(price string) *models.Product {
	return &models.Product{
		ID:       uuid.New(),
		Name:     "Canvas Tote",
		Price:    decimal.RequireFromString(price),
		Currency: enums.CurrencyUSD,
		InStock:  true,
	}
}

func cartWith(userID uuid.UUID, items ...models.CartItem) *models.Cart {
	cartID := uuid.New()
	for i := range items {
		items[i].CartID = cartID
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
	}
	return &models.Cart{ID: cartID, UserID: userID, Items: items}
}

func TestCreateCartOrderConvertsToSettlementCurrency(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	product := usdProduct("10.00")
	userCart := cartWith(userID, models.CartItem{
		ProductID: product.ID,
		Quantity:  2,
		Price:     product.Price,
		Currency:  enums.CurrencyUSD,
	})
	env := newTestEnv(t, &stubCartReader{cart: userCart}, &stubProducts{byID: map[uuid.UUID]*models.Product{product.ID: product}})

	summary, err := env.svc.CreateCartOrder(context.Background(), userID, CreateCartOrderInput{})
	if err != nil {
		t.Fatalf("CreateCartOrder: %v", err)
	}

	// 10.00 USD at 83.5 INR/USD is 835.00 INR per unit, 1670.00 for two,
	// which is 167000 paise.
	if summary.AmountMinor != 167000 {
		t.Fatalf("expected 167000 paise, got %d", summary.AmountMinor)
	}
	if summary.Currency != enums.CurrencyINR {
		t.Fatalf("expected INR settlement, got %s", summary.Currency)
	}
	if summary.KeyID != "rzp_test_key" {
		t.Fatalf("expected gateway key id, got %q", summary.KeyID)
	}
	if len(env.gateway.orders) != 1 {
		t.Fatalf("expected 1 gateway order, got %d", len(env.gateway.orders))
	}

	record := env.repo.records[summary.PaymentID]
	if record == nil {
		t.Fatal("expected payment record persisted")
	}
	if record.Status != enums.PaymentStatusCreated {
		t.Fatalf("expected status created, got %s", record.Status)
	}
	if record.OrderType != enums.OrderTypeCart {
		t.Fatalf("expected cart order type, got %s", record.OrderType)
	}
	if len(record.Items) != 1 || !record.Items[0].ConvertedPrice.Equal(decimal.RequireFromString("835")) {
		t.Fatalf("unexpected item snapshot: %+v", record.Items)
	}
}

func TestCreateCartOrderRoundsTotalOnce(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	product := usdProduct("10.01")
	userCart := cartWith(userID, models.CartItem{
		ProductID: product.ID,
		Quantity:  3,
		Price:     product.Price,
		Currency:  enums.CurrencyUSD,
	})
	env := newTestEnv(t, &stubCartReader{cart: userCart}, &stubProducts{byID: map[uuid.UUID]*models.Product{product.ID: product}})

	summary, err := env.svc.CreateCartOrder(context.Background(), userID, CreateCartOrderInput{})
	if err != nil {
		t.Fatalf("CreateCartOrder: %v", err)
	}

	// 10.01 USD at 83.5 INR/USD is 835.835 INR per unit, 2507.505 for three.
	// Rounding happens once on the total: 250751 paise, not the 250752 that
	// per-unit rounding would produce.
	if summary.AmountMinor != 250751 {
		t.Fatalf("expected 250751 paise, got %d", summary.AmountMinor)
	}

	record := env.repo.records[summary.PaymentID]
	if record == nil {
		t.Fatal("expected payment record persisted")
	}
	if len(record.Items) != 1 || !record.Items[0].ConvertedPrice.Equal(decimal.RequireFromString("835.84")) {
		t.Fatalf("expected display snapshot rounded to two decimals, got %+v", record.Items)
	}
}

func TestCreateCartOrderEmptyCart(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	env := newTestEnv(t, &stubCartReader{cart: cartWith(userID)}, &stubProducts{byID: map[uuid.UUID]*models.Product{}})

	_, err := env.svc.CreateCartOrder(context.Background(), userID, CreateCartOrderInput{})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateCartOrderRejectsStaleLine(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	userCart := cartWith(userID, models.CartItem{
		ProductID: uuid.New(),
		Quantity:  1,
		Price:     decimal.RequireFromString("5.00"),
		Currency:  enums.CurrencyUSD,
	})
	env := newTestEnv(t, &stubCartReader{cart: userCart}, &stubProducts{byID: map[uuid.UUID]*models.Product{}})

	_, err := env.svc.CreateCartOrder(context.Background(), userID, CreateCartOrderInput{})
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(env.gateway.orders) != 0 {
		t.Fatal("gateway order must not be created for a stale cart")
	}
}

func TestCreateSingleProductOrder(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	product := usdProduct("12.50")
	env := newTestEnv(t, &stubCartReader{}, &stubProducts{byID: map[uuid.UUID]*models.Product{product.ID: product}})

	summary, err := env.svc.CreateSingleProductOrder(context.Background(), userID, CreateSingleProductOrderInput{
		ProductID: product.ID,
		Quantity:  3,
	})
	if err != nil {
		t.Fatalf("CreateSingleProductOrder: %v", err)
	}

	// 12.50 USD is 1043.75 INR per unit, 3131.25 for three, 313125 paise.
	if summary.AmountMinor != 313125 {
		t.Fatalf("expected 313125 paise, got %d", summary.AmountMinor)
	}
	record := env.repo.records[summary.PaymentID]
	if record.OrderType != enums.OrderTypeSingleProduct {
		t.Fatalf("expected single_product order type, got %s", record.OrderType)
	}
}

func TestVerifyPaymentInvalidSignatureLeavesRecordUntouched(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	env := newTestEnv(t, &stubCartReader{}, &stubProducts{byID: map[uuid.UUID]*models.Product{}})
	record, _ := env.repo.Create(context.Background(), &models.Payment{
		UserID:         userID,
		GatewayOrderID: "order_abc",
		AmountMinor:    1000,
		Currency:       enums.CurrencyINR,
		OrderType:      enums.OrderTypeCart,
	})

	_, err := env.svc.VerifyPayment(context.Background(), userID, VerifyPaymentInput{
		GatewayOrderID:   "order_abc",
		GatewayPaymentID: "pay_abc",
		Signature:        "bogus",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if env.repo.markFailedCalls != 0 {
		t.Fatal("record must not be touched on signature mismatch")
	}
	if env.repo.records[record.ID].Status != enums.PaymentStatusCreated {
		t.Fatalf("status changed to %s", env.repo.records[record.ID].Status)
	}
}

func TestVerifyPaymentSuccessClearsCart(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	env := newTestEnv(t, &stubCartReader{}, &stubProducts{byID: map[uuid.UUID]*models.Product{}})
	record, _ := env.repo.Create(context.Background(), &models.Payment{
		UserID:         userID,
		GatewayOrderID: "order_abc",
		AmountMinor:    1000,
		Currency:       enums.CurrencyINR,
		OrderType:      enums.OrderTypeCart,
	})

	view, err := env.svc.VerifyPayment(context.Background(), userID, VerifyPaymentInput{
		GatewayOrderID:   "order_abc",
		GatewayPaymentID: "pay_abc",
		Signature:        paymentSignature("order_abc", "pay_abc"),
	})
	if err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}
	if view.Status != enums.PaymentStatusPaid {
		t.Fatalf("expected paid, got %s", view.Status)
	}
	if env.clearer.cleared != 1 {
		t.Fatalf("expected cart cleared once, got %d", env.clearer.cleared)
	}
	stored := env.repo.records[record.ID]
	if stored.PaymentMethod == nil || *stored.PaymentMethod != "upi" {
		t.Fatalf("expected payment method from gateway, got %v", stored.PaymentMethod)
	}
}

func TestVerifyPaymentAlreadyPaid(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	env := newTestEnv(t, &stubCartReader{}, &stubProducts{byID: map[uuid.UUID]*models.Product{}})
	env.repo.Create(context.Background(), &models.Payment{
		UserID:         userID,
		GatewayOrderID: "order_abc",
		Status:         enums.PaymentStatusPaid,
		OrderType:      enums.OrderTypeCart,
	})

	_, err := env.svc.VerifyPayment(context.Background(), userID, VerifyPaymentInput{
		GatewayOrderID:   "order_abc",
		GatewayPaymentID: "pay_abc",
		Signature:        paymentSignature("order_abc", "pay_abc"),
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestVerifyPaymentWrongUser(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubCartReader{}, &stubProducts{byID: map[uuid.UUID]*models.Product{}})
	env.repo.Create(context.Background(), &models.Payment{
		UserID:         uuid.New(),
		GatewayOrderID: "order_abc",
		OrderType:      enums.OrderTypeCart,
	})

	_, err := env.svc.VerifyPayment(context.Background(), uuid.New(), VerifyPaymentInput{
		GatewayOrderID:   "order_abc",
		GatewayPaymentID: "pay_abc",
		Signature:        paymentSignature("order_abc", "pay_abc"),
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestVerifyPaymentGatewayFailureMarksFailed(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	env := newTestEnv(t, &stubCartReader{}, &stubProducts{byID: map[uuid.UUID]*models.Product{}})
	env.gateway.fetchErr = fmt.Errorf("gateway down")
	record, _ := env.repo.Create(context.Background(), &models.Payment{
		UserID:         userID,
		GatewayOrderID: "order_abc",
		OrderType:      enums.OrderTypeCart,
	})

	_, err := env.svc.VerifyPayment(context.Background(), userID, VerifyPaymentInput{
		GatewayOrderID:   "order_abc",
		GatewayPaymentID: "pay_abc",
		Signature:        paymentSignature("order_abc", "pay_abc"),
	})
	if err == nil {
		t.Fatal("expected error from gateway failure")
	}
	if env.repo.records[record.ID].Status != enums.PaymentStatusFailed {
		t.Fatalf("expected record marked failed, got %s", env.repo.records[record.ID].Status)
	}
}

func TestHandleWebhookCapturedSettlesPayment(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubCartReader{}, &stubProducts{byID: map[uuid.UUID]*models.Product{}})
	record, _ := env.repo.Create(context.Background(), &models.Payment{
		UserID:         uuid.New(),
		GatewayOrderID: "order_abc",
		OrderType:      enums.OrderTypeCart,
	})

	payload := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_abc","order_id":"order_abc","method":"card","status":"captured"}}}}`)
	if err := env.svc.HandleWebhookEvent(context.Background(), payload); err != nil {
		t.Fatalf("HandleWebhookEvent: %v", err)
	}

	stored := env.repo.records[record.ID]
	if stored.Status != enums.PaymentStatusPaid {
		t.Fatalf("expected paid, got %s", stored.Status)
	}
	if stored.PaymentMethod == nil || *stored.PaymentMethod != "card" {
		t.Fatalf("expected method card, got %v", stored.PaymentMethod)
	}
}

func TestHandleWebhookFailedDoesNotClobberPaid(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubCartReader{}, &stubProducts{byID: map[uuid.UUID]*models.Product{}})
	record, _ := env.repo.Create(context.Background(), &models.Payment{
		UserID:         uuid.New(),
		GatewayOrderID: "order_abc",
		Status:         enums.PaymentStatusPaid,
		OrderType:      enums.OrderTypeCart,
	})

	payload := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_abc","order_id":"order_abc","error_description":"card declined"}}}}`)
	if err := env.svc.HandleWebhookEvent(context.Background(), payload); err != nil {
		t.Fatalf("HandleWebhookEvent: %v", err)
	}
	if env.repo.records[record.ID].Status != enums.PaymentStatusPaid {
		t.Fatalf("paid status clobbered: %s", env.repo.records[record.ID].Status)
	}
}

func TestHandleWebhookFailedRedeliveryKeepsOriginalReason(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubCartReader{}, &stubProducts{byID: map[uuid.UUID]*models.Product{}})
	reason := "card declined"
	failedAt := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	record, _ := env.repo.Create(context.Background(), &models.Payment{
		UserID:         uuid.New(),
		GatewayOrderID: "order_abc",
		Status:         enums.PaymentStatusFailed,
		FailureReason:  &reason,
		FailedAt:       &failedAt,
		OrderType:      enums.OrderTypeCart,
	})

	payload := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_abc","order_id":"order_abc","error_description":"retry timeout"}}}}`)
	if err := env.svc.HandleWebhookEvent(context.Background(), payload); err != nil {
		t.Fatalf("HandleWebhookEvent: %v", err)
	}

	stored := env.repo.records[record.ID]
	if stored.FailureReason == nil || *stored.FailureReason != "card declined" {
		t.Fatalf("redelivered failure event rewrote the reason: %+v", stored.FailureReason)
	}
	if stored.FailedAt == nil || !stored.FailedAt.Equal(failedAt) {
		t.Fatalf("redelivered failure event rewrote the timestamp: %v", stored.FailedAt)
	}
}

func TestHandleWebhookRefundProcessed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubCartReader{}, &stubProducts{byID: map[uuid.UUID]*models.Product{}})
	gatewayPaymentID := "pay_abc"
	record, _ := env.repo.Create(context.Background(), &models.Payment{
		UserID:           uuid.New(),
		GatewayOrderID:   "order_abc",
		GatewayPaymentID: &gatewayPaymentID,
		Status:           enums.PaymentStatusPaid,
		AmountMinor:      5000,
		OrderType:        enums.OrderTypeCart,
	})

	payload := []byte(`{"event":"refund.processed","payload":{"refund":{"entity":{"id":"rfnd_9","payment_id":"pay_abc","amount":5000}}}}`)
	if err := env.svc.HandleWebhookEvent(context.Background(), payload); err != nil {
		t.Fatalf("HandleWebhookEvent: %v", err)
	}

	stored := env.repo.records[record.ID]
	if stored.Status != enums.PaymentStatusRefunded {
		t.Fatalf("expected refunded, got %s", stored.Status)
	}
	if stored.RefundInfo == nil || stored.RefundInfo.RefundID != "rfnd_9" {
		t.Fatalf("unexpected refund info: %+v", stored.RefundInfo)
	}
}

func TestHandleWebhookUnknownEventIsAcknowledged(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubCartReader{}, &stubProducts{byID: map[uuid.UUID]*models.Product{}})
	payload := []byte(`{"event":"order.paid","payload":{}}`)
	if err := env.svc.HandleWebhookEvent(context.Background(), payload); err != nil {
		t.Fatalf("unknown event must be acknowledged, got %v", err)
	}
}

func TestRefundPartialFallsBackToFull(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	env := newTestEnv(t, &stubCartReader{}, &stubProducts{byID: map[uuid.UUID]*models.Product{}})
	env.gateway.refundErrOnce = pkgerrors.New(pkgerrors.CodeDependency, "partial refunds not supported")
	gatewayPaymentID := "pay_abc"
	record, _ := env.repo.Create(context.Background(), &models.Payment{
		UserID:           userID,
		GatewayOrderID:   "order_abc",
		GatewayPaymentID: &gatewayPaymentID,
		Status:           enums.PaymentStatusPaid,
		AmountMinor:      10000,
		Currency:         enums.CurrencyINR,
		OrderType:        enums.OrderTypeCart,
	})

	amount := int64(4000)
	view, err := env.svc.RefundPayment(context.Background(), userID, "customer", record.ID, RefundInput{
		AmountMinor: &amount,
		Reason:      "damaged item",
	})
	if err != nil {
		t.Fatalf("RefundPayment: %v", err)
	}
	if len(env.gateway.refundCalls) != 2 || env.gateway.refundCalls[1] != 10000 {
		t.Fatalf("expected fallback to full refund amount, calls: %v", env.gateway.refundCalls)
	}
	if view.Status != enums.PaymentStatusRefunded {
		t.Fatalf("expected refunded, got %s", view.Status)
	}
	if view.RefundInfo == nil || view.RefundInfo.RefundAmountMinor != 10000 {
		t.Fatalf("expected full amount recorded, got %+v", view.RefundInfo)
	}
}

func TestRefundWithoutAmountSendsFullCharge(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	env := newTestEnv(t, &stubCartReader{}, &stubProducts{byID: map[uuid.UUID]*models.Product{}})
	gatewayPaymentID := "pay_full"
	record, _ := env.repo.Create(context.Background(), &models.Payment{
		UserID:           userID,
		GatewayOrderID:   "order_full",
		GatewayPaymentID: &gatewayPaymentID,
		Status:           enums.PaymentStatusPaid,
		AmountMinor:      12500,
		Currency:         enums.CurrencyINR,
		OrderType:        enums.OrderTypeCart,
	})

	view, err := env.svc.RefundPayment(context.Background(), userID, "customer", record.ID, RefundInput{})
	if err != nil {
		t.Fatalf("RefundPayment: %v", err)
	}
	// The gateway rejects zero-amount refunds, so the full refund must carry
	// the recorded charge explicitly.
	if len(env.gateway.refundCalls) != 1 || env.gateway.refundCalls[0] != 12500 {
		t.Fatalf("expected one refund call with the full charge, calls: %v", env.gateway.refundCalls)
	}
	if view.RefundInfo == nil || view.RefundInfo.RefundAmountMinor != 12500 {
		t.Fatalf("expected full amount recorded, got %+v", view.RefundInfo)
	}
}

func TestRefundRejectsNonPaid(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	env := newTestEnv(t, &stubCartReader{}, &stubProducts{byID: map[uuid.UUID]*models.Product{}})
	record, _ := env.repo.Create(context.Background(), &models.Payment{
		UserID:         userID,
		GatewayOrderID: "order_abc",
		Status:         enums.PaymentStatusCreated,
		OrderType:      enums.OrderTypeCart,
	})

	_, err := env.svc.RefundPayment(context.Background(), userID, "customer", record.ID, RefundInput{})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestGetPaymentOwnership(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	env := newTestEnv(t, &stubCartReader{}, &stubProducts{byID: map[uuid.UUID]*models.Product{}})
	record, _ := env.repo.Create(context.Background(), &models.Payment{
		UserID:         owner,
		GatewayOrderID: "order_abc",
		OrderType:      enums.OrderTypeCart,
	})

	if _, err := env.svc.GetPayment(context.Background(), uuid.New(), "customer", record.ID); !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden for stranger, got %v", err)
	}
	if _, err := env.svc.GetPayment(context.Background(), uuid.New(), RoleAdmin, record.ID); err != nil {
		t.Fatalf("admin should read any record: %v", err)
	}
	if _, err := env.svc.GetPayment(context.Background(), owner, "customer", record.ID); err != nil {
		t.Fatalf("owner should read own record: %v", err)
	}
}

func TestGetStatsSuccessRate(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubCartReader{}, &stubProducts{byID: map[uuid.UUID]*models.Product{}})
	env.repo.statsRow = &StatsRow{
		TotalPayments:      8,
		SuccessfulPayments: 5,
		FailedPayments:     2,
		PendingPayments:    1,
		TotalAmountMinor:   500000,
		AverageAmountMinor: 100000,
	}
	env.repo.methodRows = []MethodStatRow{{Method: "upi", Count: 3, AmountMinor: 300000}}

	stats, err := env.svc.GetStats(context.Background(), StatsFilter{})
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.SuccessRate != 62.5 {
		t.Fatalf("expected success rate 62.5, got %v", stats.SuccessRate)
	}
	if !stats.TotalAmount.Equal(decimal.RequireFromString("5000")) {
		t.Fatalf("expected total 5000.00, got %s", stats.TotalAmount)
	}
	if stats.FormattedTotalAmount != "₹5000.00" {
		t.Fatalf("unexpected formatted total %q", stats.FormattedTotalAmount)
	}
	if len(stats.MethodBreakdown) != 1 || stats.MethodBreakdown[0].Method != "upi" {
		t.Fatalf("unexpected method breakdown %+v", stats.MethodBreakdown)
	}
}

func TestGetStatsZeroGuard(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubCartReader{}, &stubProducts{byID: map[uuid.UUID]*models.Product{}})
	stats, err := env.svc.GetStats(context.Background(), StatsFilter{})
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.SuccessRate != 0 {
		t.Fatalf("expected zero success rate on empty ledger, got %v", stats.SuccessRate)
	}
}

func TestGetStatsRejectsInvertedWindow(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubCartReader{}, &stubProducts{byID: map[uuid.UUID]*models.Product{}})
	from := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := env.svc.GetStats(context.Background(), StatsFilter{From: &from, To: &to})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for inverted window, got %v", err)
	}
}
