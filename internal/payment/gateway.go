package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
)

var ErrGatewayInitFailed = errors.New("failed to initialize payment gateway client")

// Confirmer double-checks a redirect's claim with the payment provider.
// Supports reports whether the confirmer knows the given payment method.
type Confirmer interface {
	Supports(paymentMethod string) bool
	Confirm(ctx context.Context, params models.PaymentRedirectParams) (models.PaymentStatus, error)
}

type intentGetter func(id string) (*stripe.PaymentIntent, error)

// StripeConfirmer looks up the PaymentIntent named by the redirect's transaction id.
type StripeConfirmer struct {
	getIntent intentGetter
	log       *logger.Logger
}

func NewStripeConfirmer(secretKey string, log *logger.Logger) (*StripeConfirmer, error) {
	if secretKey == "" {
		return nil, ErrGatewayInitFailed
	}
	sc := client.New(secretKey, nil)
	if sc == nil {
		return nil, ErrGatewayInitFailed
	}

	log.Info("STRIPE", "Stripe client initialized successfully")
	return &StripeConfirmer{
		getIntent: func(id string) (*stripe.PaymentIntent, error) {
			return sc.PaymentIntents.Get(id, nil)
		},
		log: log,
	}, nil
}

func (c *StripeConfirmer) Supports(paymentMethod string) bool {
	switch strings.ToLower(paymentMethod) {
	case "stripe", "card":
		return true
	}
	return false
}

// Confirm maps the intent status to a payment status. An amount that disagrees with
// the redirect is treated as a failed payment.
func (c *StripeConfirmer) Confirm(_ context.Context, params models.PaymentRedirectParams) (models.PaymentStatus, error) {
	intent, err := c.getIntent(params.TransactionID)
	if err != nil {
		return models.PaymentPending, fmt.Errorf("retrieve payment intent: %w", err)
	}

	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		if params.PaymentAmount != nil && intent.Amount != toMinorUnits(*params.PaymentAmount) {
			c.log.LogSecurity("PAYMENT_AMOUNT_MISMATCH", fmt.Sprintf("intent %s charged %d, redirect claimed %.2f", intent.ID, intent.Amount, *params.PaymentAmount))
			return models.PaymentFailed, nil
		}
		return models.PaymentCompleted, nil
	case stripe.PaymentIntentStatusCanceled, stripe.PaymentIntentStatusRequiresPaymentMethod:
		return models.PaymentFailed, nil
	default:
		return models.PaymentPending, nil
	}
}

func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
