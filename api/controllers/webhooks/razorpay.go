package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/mehtaarjun/shopsphere-backend/api/responses"
	pkgerrors "github.com/mehtaarjun/shopsphere-backend/pkg/errors"
	"github.com/mehtaarjun/shopsphere-backend/pkg/logger"
	"github.com/mehtaarjun/shopsphere-backend/pkg/razorpay"
)

const (
	signatureHeader = "X-Razorpay-Signature"
	eventIDHeader   = "X-Razorpay-Event-Id"
)

type RazorpayWebhookService interface {
	HandleWebhookEvent(ctx context.Context, raw []byte) error
}

type razorpayWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type razorpayClient interface {
	WebhookSecret() string
}

// RazorpayWebhook handles Razorpay payment lifecycle events. The raw body is
// verified against the webhook secret before anything is decoded, and event
// ids are deduped so gateway retries settle a payment only once.
func RazorpayWebhook(svc RazorpayWebhookService, client razorpayClient, guard razorpayWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "razorpay client unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dedup guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := r.Header.Get(signatureHeader)
		if signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "razorpay signature missing"))
			return
		}
		if !razorpay.VerifyWebhookSignature(payload, signature, client.WebhookSecret()) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "razorpay signature mismatch"))
			return
		}

		eventID := r.Header.Get(eventIDHeader)
		if eventID != "" {
			alreadyProcessed, err := guard.CheckAndMark(ctx, eventID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check event dedup"))
				return
			}
			if alreadyProcessed {
				responses.WriteSuccess(w, map[string]string{"status": "ok"})
				return
			}
		}

		if err := svc.HandleWebhookEvent(ctx, payload); err != nil {
			if eventID != "" {
				_ = guard.Release(ctx, eventID)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil && eventID != "" {
			logg.Info(logg.WithField(ctx, "event_id", eventID), "razorpay event processed")
		}
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}
