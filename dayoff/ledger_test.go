package dayoff_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/compday/dayoff"
	"github.com/warp/compday/dayoff/store"
	"github.com/warp/compday/generic"
)

func TestLedger_DebitToZeroMarksConsumed(t *testing.T) {
	m := store.NewTxMemory()
	seedCredit(t, m, "c1", "emp-1", date(1), 1)
	ledger := dayoff.NewLedger(m)
	ctx := context.Background()

	c, err := ledger.Debit(ctx, "c1", days(0.4))
	require.NoError(t, err)
	assert.True(t, c.Balance.Equal(days(0.6)))
	assert.False(t, c.Consumed)

	c, err = ledger.Debit(ctx, "c1", days(0.6))
	require.NoError(t, err)
	assert.True(t, c.Balance.IsZero())
	assert.True(t, c.Consumed)

	available, err := ledger.ListAvailable(ctx, "emp-1")
	require.NoError(t, err)
	assert.Empty(t, available)
}

func TestLedger_DebitBeyondBalance(t *testing.T) {
	m := store.NewTxMemory()
	seedCredit(t, m, "c1", "emp-1", date(1), 0.5)

	_, err := dayoff.NewLedger(m).Debit(context.Background(), "c1", days(0.75))
	require.ErrorIs(t, err, generic.ErrInsufficientBalance)
	requireCredit(t, m, "c1", 0.5, false)
}

func TestLedger_DebitUnknownCredit(t *testing.T) {
	_, err := dayoff.NewLedger(store.NewTxMemory()).Debit(context.Background(), "nope", days(1))
	require.ErrorIs(t, err, generic.ErrCreditNotFound)
	assert.True(t, generic.IsNotFound(err))
}

func TestLedger_RestoreCannotExceedInitialBalance(t *testing.T) {
	m := store.NewTxMemory()
	seedCredit(t, m, "c1", "emp-1", date(1), 1)
	ledger := dayoff.NewLedger(m)
	ctx := context.Background()

	_, err := ledger.Debit(ctx, "c1", days(1))
	require.NoError(t, err)

	c, err := ledger.Restore(ctx, "c1", days(1))
	require.NoError(t, err)
	assert.False(t, c.Consumed)

	_, err = ledger.Restore(ctx, "c1", days(0.5))
	require.ErrorIs(t, err, generic.ErrInvalidRequest)
	requireCredit(t, m, "c1", 1, false)
}

func TestLedger_TotalAvailableAndRemove(t *testing.T) {
	m := store.NewTxMemory()
	seedCredit(t, m, "c1", "emp-1", date(1), 1)
	seedCredit(t, m, "c2", "emp-1", date(2), 0.25)
	seedCredit(t, m, "other", "emp-2", date(2), 3)
	ledger := dayoff.NewLedger(m)
	ctx := context.Background()

	total, err := ledger.TotalAvailable(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "1.25", total.String())

	require.NoError(t, ledger.Remove(ctx, "c1"))
	_, err = ledger.Get(ctx, "c1")
	require.ErrorIs(t, err, generic.ErrCreditNotFound)

	err = ledger.Remove(ctx, "c1")
	require.ErrorIs(t, err, generic.ErrNotFound)
}
