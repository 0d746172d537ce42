package razorpay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	rzpsdk "github.com/razorpay/razorpay-go"
	"github.com/sethvargo/go-retry"

	"github.com/mehtaarjun/shopsphere-backend/pkg/config"
	pkgerrors "github.com/mehtaarjun/shopsphere-backend/pkg/errors"
	"github.com/mehtaarjun/shopsphere-backend/pkg/logger"
	"github.com/mehtaarjun/shopsphere-backend/pkg/metrics"
)

var (
	errKeyIDRequired         = errors.New("razorpay key id is required")
	errKeySecretRequired     = errors.New("razorpay key secret is required")
	errWebhookSecretRequired = errors.New("razorpay webhook secret is required")
	errLoggerRequired        = errors.New("razorpay logger is required")
)

const (
	fetchRetryAttempts = 3
	fetchRetryBase     = 200 * time.Millisecond
)

// Client exposes Razorpay primitives with centralized logging, retries, and
// error mapping. All amounts cross this boundary in minor units (paise).
type Client struct {
	sdk           *rzpsdk.Client
	keyID         string
	keySecret     string
	webhookSecret string
	logger        *logger.Logger
	metrics       *metrics.PaymentMetrics
}

// NewClient initializes the Razorpay wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.RazorpayConfig, logg *logger.Logger, m *metrics.PaymentMetrics) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errKeyIDRequired
	}
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keySecret == "" {
		return nil, errKeySecretRequired
	}
	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}

	c := &Client{
		sdk:           rzpsdk.NewClient(keyID, keySecret),
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		logger:        logg,
		metrics:       m,
	}

	logg.Info(ctx, "razorpay client initialized")
	return c, nil
}

// KeyID returns the public key id the frontend checkout needs.
func (c *Client) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

// KeySecret returns the signing secret for payment signatures.
func (c *Client) KeySecret() string {
	if c == nil {
		return ""
	}
	return c.keySecret
}

// WebhookSecret returns the webhook signing secret.
func (c *Client) WebhookSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// OrderCreateParams describe a gateway order.
type OrderCreateParams struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]any
}

// Order is the gateway order the checkout flow binds to.
type Order struct {
	ID          string
	AmountMinor int64
	Currency    string
	Receipt     string
	Status      string
}

// CreateOrder registers an order at the gateway before any charge happens.
func (c *Client) CreateOrder(ctx context.Context, params OrderCreateParams) (*Order, error) {
	data := map[string]any{
		"amount":   params.AmountMinor,
		"currency": params.Currency,
		"receipt":  params.Receipt,
	}
	if len(params.Notes) > 0 {
		data["notes"] = params.Notes
	}
	c.log(ctx, "request", "create_order", map[string]any{
		"amount":   params.AmountMinor,
		"currency": params.Currency,
		"receipt":  params.Receipt,
	})

	start := time.Now()
	resp, err := c.sdk.Order.Create(data, nil)
	c.metrics.ObserveGatewayCall("create_order", time.Since(start))
	if err != nil {
		c.log(ctx, "error", "create_order", map[string]any{"error": err.Error()})
		return nil, c.mapGatewayError(err, "create order")
	}

	order := &Order{
		ID:          stringField(resp, "id"),
		AmountMinor: int64Field(resp, "amount"),
		Currency:    stringField(resp, "currency"),
		Receipt:     stringField(resp, "receipt"),
		Status:      stringField(resp, "status"),
	}
	if order.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway returned order without id")
	}
	c.log(ctx, "response", "create_order", map[string]any{
		"gateway_order_id": order.ID,
		"status":           order.Status,
	})
	return order, nil
}

// PaymentDetails is the gateway's view of one payment attempt.
type PaymentDetails struct {
	ID               string
	OrderID          string
	Status           string
	Method           string
	AmountMinor      int64
	Currency         string
	ErrorDescription string
}

// FetchPayment loads payment details from the gateway. Transient failures are
// retried with exponential backoff since this runs inside the verification
// and webhook paths.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*PaymentDetails, error) {
	c.log(ctx, "request", "fetch_payment", map[string]any{"gateway_payment_id": paymentID})

	var resp map[string]any
	backoff := retry.WithMaxRetries(fetchRetryAttempts, retry.NewExponential(fetchRetryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		start := time.Now()
		fetched, fetchErr := c.sdk.Payment.Fetch(paymentID, nil, nil)
		c.metrics.ObserveGatewayCall("fetch_payment", time.Since(start))
		if fetchErr != nil {
			return retry.RetryableError(fetchErr)
		}
		resp = fetched
		return nil
	})
	if err != nil {
		c.log(ctx, "error", "fetch_payment", map[string]any{"error": err.Error()})
		return nil, c.mapGatewayError(err, "fetch payment")
	}

	details := &PaymentDetails{
		ID:               stringField(resp, "id"),
		OrderID:          stringField(resp, "order_id"),
		Status:           stringField(resp, "status"),
		Method:           stringField(resp, "method"),
		AmountMinor:      int64Field(resp, "amount"),
		Currency:         stringField(resp, "currency"),
		ErrorDescription: stringField(resp, "error_description"),
	}
	c.log(ctx, "response", "fetch_payment", map[string]any{
		"gateway_payment_id": details.ID,
		"status":             details.Status,
		"method":             details.Method,
	})
	return details, nil
}

// Refund is the gateway's record of a refund.
type Refund struct {
	ID          string
	PaymentID   string
	AmountMinor int64
	Status      string
}

// CreateRefund issues a refund for the given payment. The amount is sent to
// the gateway as-is, so full refunds must pass the original charge amount.
func (c *Client) CreateRefund(ctx context.Context, paymentID string, amountMinor int64, notes map[string]any) (*Refund, error) {
	data := map[string]any{}
	if len(notes) > 0 {
		data["notes"] = notes
	}
	c.log(ctx, "request", "create_refund", map[string]any{
		"gateway_payment_id": paymentID,
		"amount":             amountMinor,
	})

	start := time.Now()
	resp, err := c.sdk.Payment.Refund(paymentID, int(amountMinor), data, nil)
	c.metrics.ObserveGatewayCall("create_refund", time.Since(start))
	if err != nil {
		c.log(ctx, "error", "create_refund", map[string]any{"error": err.Error()})
		return nil, c.mapGatewayError(err, "create refund")
	}

	refund := &Refund{
		ID:          stringField(resp, "id"),
		PaymentID:   stringField(resp, "payment_id"),
		AmountMinor: int64Field(resp, "amount"),
		Status:      stringField(resp, "status"),
	}
	if refund.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway returned refund without id")
	}
	c.log(ctx, "response", "create_refund", map[string]any{
		"refund_id": refund.ID,
		"status":    refund.Status,
	})
	return refund, nil
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("razorpay %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("razorpay %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"card", "secret", "token", "vpa", "email", "contact", "signature"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func (c *Client) mapGatewayError(err error, op string) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	code := pkgerrors.CodeDependency
	switch {
	case strings.Contains(msg, "does not exist") || strings.Contains(msg, "not found"):
		code = pkgerrors.CodeNotFound
	case strings.Contains(msg, "fully refunded") || strings.Contains(msg, "already"):
		code = pkgerrors.CodeStateConflict
	case strings.Contains(msg, "authentication") || strings.Contains(msg, "unauthorized"):
		code = pkgerrors.CodeUnauthorized
	}
	return pkgerrors.Wrap(code, err, fmt.Sprintf("razorpay %s failed", op))
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return v
	default:
		return ""
	}
}

func int64Field(m map[string]any, key string) int64 {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
