package payments

import "context"

type PreauthResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type CaptureResult struct {
	PaymentID string `json:"payment_id"`
}

// Provider is the abstract payment collaborator. The engine only depends on
// the pre-authorize / capture / release / refund contract, never on provider
// details. Release voids an uncaptured pre-authorization; Refund returns a
// captured payment.
type Provider interface {
	Preauthorize(ctx context.Context, amount float64, currency, cardToken string) (*PreauthResult, error)
	Capture(ctx context.Context, preauthID string) (*CaptureResult, error)
	Release(ctx context.Context, preauthID string) error
	Refund(ctx context.Context, paymentID string) error
}
