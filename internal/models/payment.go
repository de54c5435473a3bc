package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type TokenState string

const (
	TokenIssued    TokenState = "issued"
	TokenCompleted TokenState = "completed"
	TokenFailed    TokenState = "failed"
	// TokenRevoked marks a token superseded by a newer one for the same order.
	TokenRevoked TokenState = "revoked"
)

func (s TokenState) Terminal() bool {
	return s == TokenCompleted || s == TokenFailed || s == TokenRevoked
}

// PaymentToken binds one redirect token to exactly one order.
type PaymentToken struct {
	bun.BaseModel `bun:"table:payment_tokens"`

	Token         string     `bun:"token,pk" json:"token"`
	OrderID       string     `bun:"order_id,notnull" json:"order_id"`
	State         TokenState `bun:"state,notnull" json:"state"`
	TransactionID string     `bun:"transaction_id,nullzero" json:"transaction_id,omitempty"`
	IssuedAt      time.Time  `bun:"issued_at,notnull" json:"issued_at"`
	ReconciledAt  *time.Time `bun:"reconciled_at" json:"reconciled_at,omitempty"`
}

// PaymentRedirectParams is the query-parameter contract of a provider redirect.
type PaymentRedirectParams struct {
	PaymentMethod string   `json:"paymentMethod"`
	TransactionID string   `json:"transactionId"`
	PaymentAmount *float64 `json:"paymentAmount"`
	PaymentFee    *float64 `json:"paymentFee"`
	Status        string   `json:"status"`
	IsValid       bool     `json:"isValid"`
}

// Normalize lower-cases the status and recomputes IsValid from the fields,
// so a client-supplied IsValid is never trusted.
func (p *PaymentRedirectParams) Normalize() {
	p.PaymentMethod = strings.TrimSpace(p.PaymentMethod)
	p.TransactionID = strings.TrimSpace(p.TransactionID)
	p.Status = strings.ToLower(strings.TrimSpace(p.Status))
	p.IsValid = p.PaymentMethod != "" &&
		p.TransactionID != "" &&
		p.PaymentAmount != nil &&
		p.Status != ""
}

type VerifyTokenRequest struct {
	Token       string                `json:"token"`
	PaymentData PaymentRedirectParams `json:"paymentData"`
}

type IssueTokenRequest struct {
	OrderID string `json:"order_id"`
}

type PaymentOutcome string

const (
	OutcomeSuccess PaymentOutcome = "success"
	OutcomePending PaymentOutcome = "pending"
	OutcomeFailed  PaymentOutcome = "failed"
)

type ReconciliationResult struct {
	OrderID           string         `json:"order_id"`
	OrderNumber       string         `json:"order_number"`
	PaymentStatus     PaymentStatus  `json:"payment_status"`
	OrderStatus       OrderStatus    `json:"order_status"`
	TransactionID     string         `json:"transaction_id,omitempty"`
	Outcome           PaymentOutcome `json:"outcome"`
	AlreadyReconciled bool           `json:"already_reconciled"`
}

// PaymentEvent is published once per terminal reconciliation.
type PaymentEvent struct {
	Type          string        `json:"type"`
	OrderID       string        `json:"order_id"`
	OrderNumber   string        `json:"order_number"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	PaymentMethod string        `json:"payment_method,omitempty"`
	TransactionID string        `json:"transaction_id,omitempty"`
	Amount        float64       `json:"amount"`
	Timestamp     time.Time     `json:"timestamp"`
}

// VerificationView is what the payer sees after a redirect. It is never blank.
type VerificationView struct {
	Outcome     PaymentOutcome `json:"outcome"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Action      string         `json:"action,omitempty"`
}

func NewVerificationView(outcome PaymentOutcome) VerificationView {
	switch outcome {
	case OutcomeSuccess:
		return VerificationView{
			Outcome:     OutcomeSuccess,
			Title:       "Payment Successful!",
			Description: "Your payment has been processed successfully.",
		}
	case OutcomePending:
		return VerificationView{
			Outcome:     OutcomePending,
			Title:       "Payment Processing",
			Description: "Your payment is being processed. Please wait for confirmation.",
			Action:      "retry",
		}
	default:
		return VerificationView{
			Outcome:     OutcomeFailed,
			Title:       "Payment Verification Failed",
			Description: "There was an issue verifying your payment.",
			Action:      "try_again",
		}
	}
}

// PaymentTransition is the terminal write a reconciliation performs.
type PaymentTransition struct {
	Token         string
	OrderID       string
	State         TokenState
	PaymentStatus PaymentStatus
	PaymentMethod string
	TransactionID string
	PromoteOrder  bool
	At            time.Time
}
