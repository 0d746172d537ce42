package enums

// WebhookEvent is a gateway webhook event type. Unknown events are accepted
// and ignored, so there is no IsValid gate here.
type WebhookEvent string

const (
	WebhookEventPaymentCaptured WebhookEvent = "payment.captured"
	WebhookEventPaymentFailed   WebhookEvent = "payment.failed"
	WebhookEventRefundProcessed WebhookEvent = "refund.processed"
)

// String implements fmt.Stringer.
func (w WebhookEvent) String() string {
	return string(w)
}
