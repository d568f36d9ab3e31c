package payments

import (
	"context"
	"math"

	"github.com/stripe/stripe-go/v82"
)

// StripeProvider pre-authorizes via PaymentIntents with manual capture.
type StripeProvider struct {
	client *stripe.Client
}

func NewStripeProvider(apiKey string) *StripeProvider {
	return &StripeProvider{client: stripe.NewClient(apiKey)}
}

func (p *StripeProvider) Preauthorize(ctx context.Context, amount float64, currency, cardToken string) (*PreauthResult, error) {
	params := &stripe.PaymentIntentCreateParams{
		Amount:        stripe.Int64(toMinorUnits(amount)),
		Currency:      stripe.String(currency),
		PaymentMethod: stripe.String(cardToken),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Confirm:       stripe.Bool(true),
	}
	pi, err := p.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return nil, err
	}
	return &PreauthResult{ID: pi.ID, Status: string(pi.Status)}, nil
}

func (p *StripeProvider) Capture(ctx context.Context, preauthID string) (*CaptureResult, error) {
	pi, err := p.client.V1PaymentIntents.Capture(ctx, preauthID, &stripe.PaymentIntentCaptureParams{})
	if err != nil {
		return nil, err
	}
	return &CaptureResult{PaymentID: pi.ID}, nil
}

func (p *StripeProvider) Release(ctx context.Context, preauthID string) error {
	_, err := p.client.V1PaymentIntents.Cancel(ctx, preauthID, &stripe.PaymentIntentCancelParams{})
	return err
}

func (p *StripeProvider) Refund(ctx context.Context, paymentID string) error {
	_, err := p.client.V1Refunds.Create(ctx, &stripe.RefundCreateParams{
		PaymentIntent: stripe.String(paymentID),
	})
	return err
}

func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
