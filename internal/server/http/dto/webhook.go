package dto

// PaymentWebhookRequest is a payment status report pushed by the gateway.
type PaymentWebhookRequest struct {
	IntentID string `json:"intent_id"`
	Status   string `json:"status"`
}

// PaymentWebhookResponse acknowledges a report.
type PaymentWebhookResponse struct {
	Outcome string `json:"outcome"`
}
