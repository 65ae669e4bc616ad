package checkout

import (
	"context"
	"strings"

	"github.com/tvdermeer/3dprint-website/domain"
)

// PaymentConfirmer completes a payment intent with the customer's card details and returns the
// payment id to record on the order. It is the opaque external payment step: any error keeps the
// checkout in the payment step.
type PaymentConfirmer interface {
	Confirm(ctx context.Context, intent *domain.PaymentIntent, details PaymentDetails) (string, error)
}

// PaymentConfirmerFunc adapts a function to PaymentConfirmer.
type PaymentConfirmerFunc func(ctx context.Context, intent *domain.PaymentIntent, details PaymentDetails) (string, error)

func (f PaymentConfirmerFunc) Confirm(ctx context.Context, intent *domain.PaymentIntent, details PaymentDetails) (string, error) {
	return f(ctx, intent, details)
}

// IntentConfirmer accepts the intent as issued by the backend and records its id.
type IntentConfirmer struct{}

func (IntentConfirmer) Confirm(_ context.Context, intent *domain.PaymentIntent, _ PaymentDetails) (string, error) {
	return intentID(intent.ClientSecret), nil
}

// intentID strips the "_secret_..." suffix from a client secret.
func intentID(clientSecret string) string {
	if i := strings.Index(clientSecret, "_secret_"); i > 0 {
		return clientSecret[:i]
	}
	return clientSecret
}
