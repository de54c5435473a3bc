package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-storefront/internal/config"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
)

// Connect opens PostgreSQL with retries and wraps it in bun.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	var sqldb *sql.DB
	var err error

	retries := cfg.ConnectRetries
	if retries < 1 {
		retries = 1
	}

	for i := 0; i < retries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, retries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
		} else {
			err = sqldb.PingContext(ctx)
			if err == nil {
				break
			}
			log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
			sqldb.Close()
		}

		if i < retries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL after %d attempts: %w", retries, err)
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "✅ PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// Tables lists every model owned by the service, parents first.
func Tables() []interface{} {
	return []interface{}{
		(*models.AdminAccount)(nil),
		(*models.AdminSession)(nil),
		(*models.Order)(nil),
		(*models.PaymentToken)(nil),
		(*models.ChatRoom)(nil),
		(*models.ChatParticipant)(nil),
		(*models.ChatMessage)(nil),
	}
}

// CreateSchema creates tables straight from the bun models. Production uses the
// SQL migrations; this is for SQLite-backed tests and local tooling.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range Tables() {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}

	_, err := db.NewCreateIndex().
		Model((*models.PaymentToken)(nil)).
		Index("idx_payment_tokens_open_order").
		Unique().
		IfNotExists().
		Column("order_id").
		Where("state = ?", models.TokenIssued).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create open token index: %w", err)
	}
	return nil
}
