package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mehtaarjun/shopsphere-backend/api/middleware"
	paymentsvc "github.com/mehtaarjun/shopsphere-backend/internal/payments"
	"github.com/mehtaarjun/shopsphere-backend/pkg/enums"
)

type stubPaymentService struct {
	verifyInput *paymentsvc.VerifyPaymentInput
	listFilter  *paymentsvc.ListFilter
	statsFilter *paymentsvc.StatsFilter
	refundInput *paymentsvc.RefundInput
	refundRole  string
	summary     *paymentsvc.OrderSummary
	view        *paymentsvc.View
	list        *paymentsvc.ListResult
	stats       *paymentsvc.Stats
	err         error
}

func (s *stubPaymentService) CreateCartOrder(ctx context.Context, userID uuid.UUID, input paymentsvc.CreateCartOrderInput) (*paymentsvc.OrderSummary, error) {
	return s.summary, s.err
}

func (s *stubPaymentService) CreateSingleProductOrder(ctx context.Context, userID uuid.UUID, input paymentsvc.CreateSingleProductOrderInput) (*paymentsvc.OrderSummary, error) {
	return s.summary, s.err
}

func (s *stubPaymentService) VerifyPayment(ctx context.Context, userID uuid.UUID, input paymentsvc.VerifyPaymentInput) (*paymentsvc.View, error) {
	s.verifyInput = &input
	return s.view, s.err
}

func (s *stubPaymentService) HandleWebhookEvent(ctx context.Context, raw []byte) error {
	return s.err
}

func (s *stubPaymentService) RefundPayment(ctx context.Context, userID uuid.UUID, role string, paymentID uuid.UUID, input paymentsvc.RefundInput) (*paymentsvc.View, error) {
	s.refundInput = &input
	s.refundRole = role
	return s.view, s.err
}

func (s *stubPaymentService) GetPayment(ctx context.Context, userID uuid.UUID, role string, paymentID uuid.UUID) (*paymentsvc.View, error) {
	return s.view, s.err
}

func (s *stubPaymentService) ListPayments(ctx context.Context, userID uuid.UUID, filter paymentsvc.ListFilter) (*paymentsvc.ListResult, error) {
	s.listFilter = &filter
	return s.list, s.err
}

func (s *stubPaymentService) GetStats(ctx context.Context, filter paymentsvc.StatsFilter) (*paymentsvc.Stats, error) {
	s.statsFilter = &filter
	return s.stats, s.err
}

func newTestRouter(pattern string, handler http.HandlerFunc) *chi.Mux {
	router := chi.NewRouter()
	router.Post(pattern, handler)
	return router
}

func TestPaymentCreateCartOrderReturnsCreated(t *testing.T) {
	t.Parallel()

	svc := &stubPaymentService{summary: &paymentsvc.OrderSummary{OrderID: "ORDER_1"}}
	body := `{"notes":"leave at door"}`

	rec := httptest.NewRecorder()
	PaymentCreateCartOrder(svc, nil)(rec, authedRequest(http.MethodPost, "/api/v1/payments/orders/cart", body))

	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestPaymentVerifyMapsCallbackFields(t *testing.T) {
	t.Parallel()

	svc := &stubPaymentService{view: &paymentsvc.View{}}
	body := `{"razorpay_order_id":"order_abc","razorpay_payment_id":"pay_abc","razorpay_signature":"sig_abc"}`

	rec := httptest.NewRecorder()
	PaymentVerify(svc, nil)(rec, authedRequest(http.MethodPost, "/api/v1/payments/verify", body))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.verifyInput)
	require.Equal(t, "order_abc", svc.verifyInput.GatewayOrderID)
	require.Equal(t, "pay_abc", svc.verifyInput.GatewayPaymentID)
	require.Equal(t, "sig_abc", svc.verifyInput.Signature)
}

func TestPaymentVerifyRequiresAllFields(t *testing.T) {
	t.Parallel()

	svc := &stubPaymentService{view: &paymentsvc.View{}}
	body := `{"razorpay_order_id":"order_abc"}`

	rec := httptest.NewRecorder()
	PaymentVerify(svc, nil)(rec, authedRequest(http.MethodPost, "/api/v1/payments/verify", body))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Nil(t, svc.verifyInput)
}

func TestPaymentListParsesFilter(t *testing.T) {
	t.Parallel()

	svc := &stubPaymentService{list: &paymentsvc.ListResult{}}

	rec := httptest.NewRecorder()
	PaymentList(svc, nil)(rec, authedRequest(http.MethodGet, "/api/v1/payments/history?page=2&limit=25&status=paid", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.listFilter)
	require.Equal(t, 2, svc.listFilter.Page)
	require.Equal(t, 25, svc.listFilter.Limit)
	require.NotNil(t, svc.listFilter.Status)
	require.Equal(t, enums.PaymentStatusPaid, *svc.listFilter.Status)
}

func TestPaymentListRejectsUnknownStatus(t *testing.T) {
	t.Parallel()

	svc := &stubPaymentService{list: &paymentsvc.ListResult{}}

	rec := httptest.NewRecorder()
	PaymentList(svc, nil)(rec, authedRequest(http.MethodGet, "/api/v1/payments/history?status=bogus", ""))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Nil(t, svc.listFilter)
}

func TestPaymentListRejectsOversizedLimit(t *testing.T) {
	t.Parallel()

	svc := &stubPaymentService{list: &paymentsvc.ListResult{}}

	rec := httptest.NewRecorder()
	PaymentList(svc, nil)(rec, authedRequest(http.MethodGet, "/api/v1/payments/history?limit=500", ""))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentRefundPassesRoleFromContext(t *testing.T) {
	t.Parallel()

	svc := &stubPaymentService{view: &paymentsvc.View{}}
	paymentID := uuid.New()

	req := authedRequest(http.MethodPost, "/api/v1/payments/refund/"+paymentID.String(), `{"amount":500,"reason":"damaged"}`)
	req = req.WithContext(middleware.WithRole(req.Context(), paymentsvc.RoleAdmin))

	router := newTestRouter("/api/v1/payments/refund/{paymentId}", PaymentRefund(svc, nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, paymentsvc.RoleAdmin, svc.refundRole)
	require.NotNil(t, svc.refundInput)
	require.NotNil(t, svc.refundInput.AmountMinor)
	require.Equal(t, int64(500), *svc.refundInput.AmountMinor)
	require.Equal(t, "damaged", svc.refundInput.Reason)
}

func TestPaymentStatsReturnsReport(t *testing.T) {
	t.Parallel()

	svc := &stubPaymentService{stats: &paymentsvc.Stats{TotalPayments: 4}}

	rec := httptest.NewRecorder()
	PaymentStats(svc, nil)(rec, authedRequest(http.MethodGet, "/api/v1/payments/stats", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.statsFilter)
	require.Nil(t, svc.statsFilter.From)
	require.Nil(t, svc.statsFilter.To)
}

func TestPaymentStatsParsesDateWindow(t *testing.T) {
	t.Parallel()

	svc := &stubPaymentService{stats: &paymentsvc.Stats{}}

	rec := httptest.NewRecorder()
	PaymentStats(svc, nil)(rec, authedRequest(http.MethodGet, "/api/v1/payments/stats?startDate=2025-01-01&endDate=2025-01-31", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.statsFilter)
	require.NotNil(t, svc.statsFilter.From)
	require.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *svc.statsFilter.From)
	require.NotNil(t, svc.statsFilter.To)
	require.True(t, svc.statsFilter.To.After(time.Date(2025, 1, 31, 23, 59, 59, 0, time.UTC)))
}

func TestPaymentStatsRejectsBadDate(t *testing.T) {
	t.Parallel()

	svc := &stubPaymentService{stats: &paymentsvc.Stats{}}

	rec := httptest.NewRecorder()
	PaymentStats(svc, nil)(rec, authedRequest(http.MethodGet, "/api/v1/payments/stats?startDate=31-01-2025", ""))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Nil(t, svc.statsFilter)
}
