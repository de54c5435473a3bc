package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-storefront/internal/database/dbtest"
	"ms-storefront/internal/models"
	paymentdb "ms-storefront/internal/payment/db"
)

func seed(t *testing.T, store *paymentdb.DB) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := store.Bun.NewInsert().Model(&models.Order{
		ID: "o1", OrderNumber: "ORD-1", Status: models.OrderPending, PaymentStatus: models.PaymentPending,
		Amount: 99.5, CreatedAt: now, UpdatedAt: now,
	}).Exec(ctx)
	require.NoError(t, err)

	require.NoError(t, store.IssueToken(ctx, models.PaymentToken{
		Token: "tok", OrderID: "o1", State: models.TokenIssued, IssuedAt: now,
	}))
}

func TestApplyTransition_FirstWins(t *testing.T) {
	store := &paymentdb.DB{Bun: dbtest.New(t)}
	seed(t, store)
	ctx := context.Background()

	transition := models.PaymentTransition{
		Token: "tok", OrderID: "o1", State: models.TokenCompleted, PaymentStatus: models.PaymentCompleted,
		PaymentMethod: "bkash", TransactionID: "TX1", PromoteOrder: true, At: time.Now().UTC(),
	}

	applied, order, err := store.ApplyTransition(ctx, transition)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.OrderProcessing, order.Status)
	assert.Equal(t, models.PaymentCompleted, order.PaymentStatus)
	assert.Equal(t, "TX1", order.TransactionID)

	transition.State = models.TokenFailed
	transition.PaymentStatus = models.PaymentFailed
	applied, order, err = store.ApplyTransition(ctx, transition)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Nil(t, order)

	binding, err := store.GetToken(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, models.TokenCompleted, binding.State)
	require.NotNil(t, binding.ReconciledAt)
}

func TestApplyTransition_MissingOrderRollsBack(t *testing.T) {
	store := &paymentdb.DB{Bun: dbtest.New(t)}
	ctx := context.Background()
	require.NoError(t, store.IssueToken(ctx, models.PaymentToken{
		Token: "orphan", OrderID: "gone", State: models.TokenIssued, IssuedAt: time.Now().UTC(),
	}))

	_, _, err := store.ApplyTransition(ctx, models.PaymentTransition{
		Token: "orphan", OrderID: "gone", State: models.TokenFailed, PaymentStatus: models.PaymentFailed, At: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)

	binding, err := store.GetToken(ctx, "orphan")
	require.NoError(t, err)
	assert.Equal(t, models.TokenIssued, binding.State)
}

func TestIssueToken_RevokesOpenToken(t *testing.T) {
	store := &paymentdb.DB{Bun: dbtest.New(t)}
	seed(t, store)
	ctx := context.Background()

	require.NoError(t, store.IssueToken(ctx, models.PaymentToken{
		Token: "tok2", OrderID: "o1", State: models.TokenIssued, IssuedAt: time.Now().UTC(),
	}))

	old, err := store.GetToken(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, models.TokenRevoked, old.State)
	require.NotNil(t, old.ReconciledAt)

	current, err := store.GetToken(ctx, "tok2")
	require.NoError(t, err)
	assert.Equal(t, models.TokenIssued, current.State)

	applied, _, err := store.ApplyTransition(ctx, models.PaymentTransition{
		Token: "tok", OrderID: "o1", State: models.TokenCompleted, PaymentStatus: models.PaymentCompleted,
		TransactionID: "TX1", PromoteOrder: true, At: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestApplyTransition_CompletedOrderUnchanged(t *testing.T) {
	store := &paymentdb.DB{Bun: dbtest.New(t)}
	seed(t, store)
	ctx := context.Background()

	_, err := store.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("payment_status = ?", models.PaymentCompleted).
		Set("transaction_id = ?", "TX1").
		Where("id = ?", "o1").
		Exec(ctx)
	require.NoError(t, err)

	applied, order, err := store.ApplyTransition(ctx, models.PaymentTransition{
		Token: "tok", OrderID: "o1", State: models.TokenFailed, PaymentStatus: models.PaymentFailed,
		TransactionID: "TX2", At: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Nil(t, order)

	current, err := store.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, current.PaymentStatus)
	assert.Equal(t, "TX1", current.TransactionID)

	binding, err := store.GetToken(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, models.TokenIssued, binding.State)
	assert.Nil(t, binding.ReconciledAt)
}
