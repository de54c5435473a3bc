package models

import (
	"time"

	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderDeclined   OrderStatus = "declined"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderCompleted, OrderDeclined:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentUnknown   PaymentStatus = "unknown"
)

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID            string        `bun:"id,pk" json:"id"`
	OrderNumber   string        `bun:"order_number,unique,notnull" json:"order_number"`
	Status        OrderStatus   `bun:"status,notnull" json:"status"`
	PaymentStatus PaymentStatus `bun:"payment_status,notnull" json:"payment_status"`
	PaymentMethod string        `bun:"payment_method,nullzero" json:"payment_method,omitempty"`
	TransactionID string        `bun:"transaction_id,nullzero" json:"transaction_id,omitempty"`
	Amount        float64       `bun:"amount,notnull" json:"amount"`
	Notes         string        `bun:"notes" json:"notes"`
	CreatedAt     time.Time     `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time     `bun:"updated_at,notnull" json:"updated_at"`
}

// OrderUpdate carries the fields an admin may change. A nil field is left untouched.
type OrderUpdate struct {
	Status *OrderStatus `json:"status,omitempty"`
	Notes  *string      `json:"notes,omitempty"`
}

func (u OrderUpdate) IsEmpty() bool {
	return u.Status == nil && u.Notes == nil
}

// Fields lists the column names the update touches, for logging and events.
func (u OrderUpdate) Fields() []string {
	fields := []string{}
	if u.Status != nil {
		fields = append(fields, "status")
	}
	if u.Notes != nil {
		fields = append(fields, "notes")
	}
	return fields
}

type OrderUpdatedEvent struct {
	OrderID   string       `json:"order_id"`
	Fields    []string     `json:"fields"`
	Status    *OrderStatus `json:"status,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// OrderFilter narrows the admin order listing. Zero values mean no filter.
type OrderFilter struct {
	Status OrderStatus
	Limit  int
	Offset int
}
