package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"

	"ms-storefront/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- ORDERS ----------------

// GetOrderByID → fetch one order by its ID
func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
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

// ListOrders → newest first
func (d *DB) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	orders := []models.Order{}
	q := d.Bun.NewSelect().
		Model(&orders).
		Order("created_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return orders, nil
}

// CreateOrder inserts a new order
func (d *DB) CreateOrder(ctx context.Context, order models.Order) error {
	_, err := d.Bun.NewInsert().Model(&order).Exec(ctx)
	return err
}

// UpdateOrderFields writes only the supplied columns plus updated_at and returns the stored row.
func (d *DB) UpdateOrderFields(ctx context.Context, id string, update models.OrderUpdate, at time.Time) (*models.Order, error) {
	var order *models.Order
	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewUpdate().
			Model((*models.Order)(nil)).
			Set("updated_at = ?", at).
			Where("id = ?", id)
		if update.Status != nil {
			q = q.Set("status = ?", *update.Status)
		}
		if update.Notes != nil {
			q = q.Set("notes = ?", *update.Notes)
		}

		res, err := q.Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return sql.ErrNoRows
		}

		order, err = getOrder(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}
