package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"ms-storefront/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- TOKENS ----------------

// IssueToken stores token as the only redeemable token of its order. Any token still
// issued for the same order is revoked in the same transaction.
func (d *DB) IssueToken(ctx context.Context, token models.PaymentToken) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewUpdate().
			Model((*models.PaymentToken)(nil)).
			Set("state = ?", models.TokenRevoked).
			Set("reconciled_at = ?", token.IssuedAt).
			Where("order_id = ?", token.OrderID).
			Where("state = ?", models.TokenIssued).
			Exec(ctx)
		if err != nil {
			return err
		}

		_, err = tx.NewInsert().Model(&token).Exec(ctx)
		return err
	})
}

func (d *DB) GetToken(ctx context.Context, token string) (*models.PaymentToken, error) {
	var pt models.PaymentToken
	err := d.Bun.NewSelect().
		Model(&pt).
		Where("token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &pt, nil
}

// ---------------- ORDERS ----------------

func (d *DB) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return getOrder(ctx, d.Bun, id)
}

func getOrder(ctx context.Context, db bun.IDB, id string) (*models.Order, error) {
	var order models.Order
	err := db.NewSelect().
		Model(&order).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ---------------- RECONCILIATION ----------------

// errOrderSettled rolls back a token transition whose order is already paid.
var errOrderSettled = errors.New("order payment already completed")

// ApplyTransition moves an issued token to a terminal state and writes the order's payment
// fields in one transaction. applied is false when the token was already terminal or the
// order already records a completed payment; in both cases nothing is written.
func (d *DB) ApplyTransition(ctx context.Context, t models.PaymentTransition) (applied bool, order *models.Order, err error) {
	err = d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.PaymentToken)(nil)).
			Set("state = ?", t.State).
			Set("transaction_id = ?", nullString(t.TransactionID)).
			Set("reconciled_at = ?", t.At).
			Where("token = ?", t.Token).
			Where("state = ?", models.TokenIssued).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}

		q := tx.NewUpdate().
			Model((*models.Order)(nil)).
			Set("payment_status = ?", t.PaymentStatus).
			Set("updated_at = ?", t.At).
			Where("id = ?", t.OrderID).
			Where("payment_status <> ?", models.PaymentCompleted)
		if t.PaymentMethod != "" {
			q = q.Set("payment_method = ?", t.PaymentMethod)
		}
		if t.TransactionID != "" {
			q = q.Set("transaction_id = ?", t.TransactionID)
		}
		res, err = q.Exec(ctx)
		if err != nil {
			return err
		}
		if n, err = res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			if _, err := getOrder(ctx, tx, t.OrderID); err != nil {
				return err
			}
			return errOrderSettled
		}
		applied = true

		if t.PromoteOrder {
			_, err = tx.NewUpdate().
				Model((*models.Order)(nil)).
				Set("status = ?", models.OrderProcessing).
				Where("id = ?", t.OrderID).
				Where("status = ?", models.OrderPending).
				Exec(ctx)
			if err != nil {
				return err
			}
		}

		order, err = getOrder(ctx, tx, t.OrderID)
		return err
	})
	if errors.Is(err, errOrderSettled) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	return applied, order, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
