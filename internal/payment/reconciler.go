package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/payment/token"
	"ms-storefront/internal/utils"
)

type DBLayer interface {
	IssueToken(ctx context.Context, token models.PaymentToken) error
	GetToken(ctx context.Context, token string) (*models.PaymentToken, error)
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ApplyTransition(ctx context.Context, t models.PaymentTransition) (bool, *models.Order, error)
}

type TokenLock interface {
	Lock(ctx context.Context, ref, owner string) (bool, error)
	Unlock(ctx context.Context, ref, owner string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, payload interface{}) error
}

type Topics struct {
	Completed string
	Failed    string
}

// Reconciler applies payment redirects to orders, at most once per token.
type Reconciler struct {
	DB        DBLayer
	Lock      TokenLock
	Publisher EventPublisher
	Confirmer Confirmer
	Logger    *logger.Logger

	topics   Topics
	lockWait time.Duration
	now      func() time.Time
}

func NewReconciler(db DBLayer, lock TokenLock, publisher EventPublisher, confirmer Confirmer, log *logger.Logger, topics Topics) *Reconciler {
	return &Reconciler{
		DB:        db,
		Lock:      lock,
		Publisher: publisher,
		Confirmer: confirmer,
		Logger:    log,
		topics:    topics,
		lockWait:  250 * time.Millisecond,
		now:       time.Now,
	}
}

// ---------------- ISSUE ----------------

// Issue binds a fresh token to an order that has not been paid yet. A failed payment can be
// retried with a new token; the previous token of the order stops being redeemable.
func (r *Reconciler) Issue(ctx context.Context, orderID string) (*models.PaymentToken, error) {
	order, err := r.DB.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if order.PaymentStatus == models.PaymentCompleted {
		return nil, ErrOrderNotPayable
	}

	tok, err := token.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	binding := models.PaymentToken{
		Token:    tok,
		OrderID:  order.ID,
		State:    models.TokenIssued,
		IssuedAt: r.now().UTC(),
	}
	if err := r.DB.IssueToken(ctx, binding); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	r.Logger.LogPayment("ISSUE", utils.Fingerprint(tok), "bound to order "+order.OrderNumber)
	return &binding, nil
}

// ---------------- RECONCILE ----------------

// Reconcile decides the payment outcome of a redirect. Only the first terminal
// reconciliation of a token writes or publishes; later calls report the stored outcome.
func (r *Reconciler) Reconcile(ctx context.Context, tok string, params models.PaymentRedirectParams) (*models.ReconciliationResult, error) {
	if err := token.Validate(tok); err != nil {
		return nil, ErrInvalidToken
	}
	ref := utils.Fingerprint(tok)
	params.Normalize()

	binding, err := r.DB.GetToken(ctx, tok)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.Logger.LogSecurity("UNKNOWN_PAYMENT_TOKEN", "token "+ref+" is well-formed but was never issued")
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if binding.State.Terminal() {
		return r.storedResult(ctx, binding)
	}

	status := r.decide(ctx, params)
	if status == models.PaymentPending {
		order, err := r.loadOrder(ctx, binding.OrderID)
		if err != nil {
			return nil, err
		}
		r.Logger.LogPayment("PENDING", ref, fmt.Sprintf("status %q is not terminal", params.Status))
		return resultFor(order, models.OutcomePending, false), nil
	}

	if r.Lock != nil {
		owner := utils.NewID()
		locked, err := r.Lock.Lock(ctx, ref, owner)
		if err != nil {
			r.Logger.Warn("PAYMENT", fmt.Sprintf("In-flight guard unavailable for %s: %v", ref, err))
		} else if !locked {
			return r.awaitInFlight(ctx, tok, ref)
		} else {
			defer func() {
				if err := r.Lock.Unlock(context.Background(), ref, owner); err != nil {
					r.Logger.Warn("PAYMENT", fmt.Sprintf("Failed to release guard for %s: %v", ref, err))
				}
			}()
		}
	}

	transition := models.PaymentTransition{
		Token:         tok,
		OrderID:       binding.OrderID,
		PaymentStatus: status,
		PaymentMethod: params.PaymentMethod,
		TransactionID: params.TransactionID,
		At:            r.now().UTC(),
	}
	if status == models.PaymentCompleted {
		transition.State = models.TokenCompleted
		transition.PromoteOrder = true
	} else {
		transition.State = models.TokenFailed
	}

	applied, order, err := r.DB.ApplyTransition(ctx, transition)
	if err != nil {
		r.Logger.Error("PAYMENT", fmt.Sprintf("Failed to apply reconciliation for %s: %v", ref, err))
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if !applied {
		current, err := r.DB.GetToken(ctx, tok)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		if current.State.Terminal() {
			r.Logger.LogPayment("CONFLICT", ref, "already reconciled by a concurrent request")
			return r.storedResult(ctx, current)
		}
		r.Logger.LogSecurity("PAYMENT_ALREADY_SETTLED", fmt.Sprintf("token %s claimed %s for an order that is already paid", ref, status))
		order, err := r.loadOrder(ctx, current.OrderID)
		if err != nil {
			return nil, err
		}
		return settledResult(order), nil
	}

	r.Logger.LogPayment("RECONCILE", ref, fmt.Sprintf("order %s payment %s, status %s", order.OrderNumber, order.PaymentStatus, order.Status))
	r.publish(ctx, order, status)

	return resultFor(order, outcomeFor(status), false), nil
}

// decide maps redirect parameters to a payment status, consulting the gateway for completions.
func (r *Reconciler) decide(ctx context.Context, params models.PaymentRedirectParams) models.PaymentStatus {
	if !params.IsValid {
		return models.PaymentFailed
	}

	switch params.Status {
	case "completed":
	case "failed", "declined", "cancelled", "canceled":
		return models.PaymentFailed
	default:
		return models.PaymentPending
	}

	if r.Confirmer == nil || !r.Confirmer.Supports(params.PaymentMethod) {
		return models.PaymentCompleted
	}
	confirmed, err := r.Confirmer.Confirm(ctx, params)
	if err != nil {
		r.Logger.Warn("PAYMENT", fmt.Sprintf("Gateway confirmation failed for %s: %v", params.TransactionID, err))
		return models.PaymentPending
	}
	if confirmed != models.PaymentCompleted {
		r.Logger.LogSecurity("PAYMENT_CLAIM_REJECTED", fmt.Sprintf("redirect claimed completed, gateway reports %s for %s", confirmed, params.TransactionID))
	}
	return confirmed
}

// awaitInFlight gives a concurrent reconciliation of the same token a moment to finish.
func (r *Reconciler) awaitInFlight(ctx context.Context, tok, ref string) (*models.ReconciliationResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(r.lockWait):
	}

	binding, err := r.DB.GetToken(ctx, tok)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if binding.State.Terminal() {
		return r.storedResult(ctx, binding)
	}

	r.Logger.LogPayment("IN_FLIGHT", ref, "reconciliation still running elsewhere")
	order, err := r.loadOrder(ctx, binding.OrderID)
	if err != nil {
		return nil, err
	}
	return resultFor(order, models.OutcomePending, false), nil
}

func (r *Reconciler) storedResult(ctx context.Context, binding *models.PaymentToken) (*models.ReconciliationResult, error) {
	order, err := r.loadOrder(ctx, binding.OrderID)
	if err != nil {
		return nil, err
	}

	switch binding.State {
	case models.TokenCompleted:
		result := resultFor(order, models.OutcomeSuccess, true)
		result.PaymentStatus = models.PaymentCompleted
		return result, nil
	case models.TokenFailed:
		result := resultFor(order, models.OutcomeFailed, true)
		result.PaymentStatus = models.PaymentFailed
		return result, nil
	default:
		return settledResult(order), nil
	}
}

// settledResult reports the order's own payment state for a token that never decided it.
func settledResult(order *models.Order) *models.ReconciliationResult {
	outcome := models.OutcomeFailed
	if order.PaymentStatus == models.PaymentCompleted {
		outcome = models.OutcomeSuccess
	}
	return resultFor(order, outcome, true)
}

func (r *Reconciler) loadOrder(ctx context.Context, id string) (*models.Order, error) {
	order, err := r.DB.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return order, nil
}

func (r *Reconciler) publish(ctx context.Context, order *models.Order, status models.PaymentStatus) {
	if r.Publisher == nil {
		return
	}

	topic := r.topics.Failed
	eventType := "payment.failed"
	if status == models.PaymentCompleted {
		topic = r.topics.Completed
		eventType = "payment.completed"
	}

	event := models.PaymentEvent{
		Type:          eventType,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		PaymentStatus: status,
		PaymentMethod: order.PaymentMethod,
		TransactionID: order.TransactionID,
		Amount:        order.Amount,
		Timestamp:     r.now().UTC(),
	}
	if err := r.Publisher.Publish(ctx, topic, order.ID, event); err != nil {
		// the order row is already authoritative; a lost notification is not a failed payment
		r.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish %s for order %s: %v", eventType, order.ID, err))
	}
}

func resultFor(order *models.Order, outcome models.PaymentOutcome, already bool) *models.ReconciliationResult {
	return &models.ReconciliationResult{
		OrderID:           order.ID,
		OrderNumber:       order.OrderNumber,
		PaymentStatus:     order.PaymentStatus,
		OrderStatus:       order.Status,
		TransactionID:     order.TransactionID,
		Outcome:           outcome,
		AlreadyReconciled: already,
	}
}

func outcomeFor(status models.PaymentStatus) models.PaymentOutcome {
	switch status {
	case models.PaymentCompleted:
		return models.OutcomeSuccess
	case models.PaymentFailed:
		return models.OutcomeFailed
	default:
		return models.OutcomePending
	}
}
