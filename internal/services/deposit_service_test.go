package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/playvault/backend/internal/events"
	"github.com/playvault/backend/internal/models"
)

func TestDepositRequest(t *testing.T) {
	t.Run("creates pending deposit with linked ledger record", func(t *testing.T) {
		f := newFixture()
		userID := f.accounts.seed(100)
		svc := f.depositService()

		dep, err := svc.Request(context.Background(), asOwner(userID), userID, 50, "")
		require.NoError(t, err)

		assert.Equal(t, models.DepositPending, dep.Status)
		assert.True(t, strings.HasPrefix(dep.Reference, "DEP-"))
		assert.Equal(t, 100.0, f.accounts.balance(userID), "request must not touch the balance")

		rec, ok := f.ledger.byReference(dep.Reference)
		require.True(t, ok, "no ledger record for %s", dep.Reference)
		assert.Equal(t, models.TransactionDeposit, rec.Type)
		assert.Equal(t, models.TransactionPending, rec.Status)
		assert.Equal(t, 50.0, rec.Amount)

		assert.Equal(t, []string{events.EventDepositRequested}, f.published.names())
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		f := newFixture()
		userID := f.accounts.seed(0)
		svc := f.depositService()

		_, err := svc.Request(context.Background(), asOwner(userID), userID, 0, "")
		assert.ErrorIs(t, err, ErrInvalidAmount)

		_, err = svc.Request(context.Background(), asOwner(userID), userID, -5, "")
		assert.ErrorIs(t, err, ErrInvalidAmount)
		assert.Empty(t, f.published.names())
	})

	t.Run("unknown account creates nothing", func(t *testing.T) {
		f := newFixture()
		svc := f.depositService()

		missing := primitive.NewObjectID().Hex()
		_, err := svc.Request(context.Background(), asOwner(missing), missing, 25, "")
		assert.True(t, IsCode(err, CodeNotFound))

		deps, err := f.deposits.ListAll(context.Background(), Page{})
		require.NoError(t, err)
		assert.Empty(t, deps)
	})

	t.Run("stranger cannot open a deposit for another account", func(t *testing.T) {
		f := newFixture()
		userID := f.accounts.seed(100)
		svc := f.depositService()

		_, err := svc.Request(context.Background(), asOwner("someone-else"), userID, 25, "")
		assert.ErrorIs(t, err, ErrForbidden)

		deps, err := f.deposits.ListAll(context.Background(), Page{})
		require.NoError(t, err)
		assert.Empty(t, deps)
	})

	t.Run("admin may open a deposit for any account", func(t *testing.T) {
		f := newFixture()
		userID := f.accounts.seed(0)
		svc := f.depositService()

		dep, err := svc.Request(context.Background(), asAdmin(), userID, 25, "")
		require.NoError(t, err)
		assert.Equal(t, userID, dep.UserID)
	})

	t.Run("keeps a caller-supplied reference", func(t *testing.T) {
		f := newFixture()
		userID := f.accounts.seed(0)
		svc := f.depositService()

		dep, err := svc.Request(context.Background(), asOwner(userID), userID, 25, "INV-2026-0815")
		require.NoError(t, err)
		assert.Equal(t, "INV-2026-0815", dep.Reference)

		rec, ok := f.ledger.byReference("INV-2026-0815")
		require.True(t, ok)
		assert.Equal(t, models.TransactionPending, rec.Status)
	})

	t.Run("failed ledger append rolls back the deposit", func(t *testing.T) {
		f := newFixture()
		userID := f.accounts.seed(10)
		f.ledger.failAppend = Errorf(CodeInternal, "disk full")
		svc := f.depositService()

		_, err := svc.Request(context.Background(), asOwner(userID), userID, 25, "")
		require.Error(t, err)

		deps, err := f.deposits.ListAll(context.Background(), Page{})
		require.NoError(t, err)
		assert.Empty(t, deps, "deposit row must not survive the rollback")
		assert.Empty(t, f.published.names(), "no event for an aborted request")
	})

	t.Run("pending list tracks outstanding requests", func(t *testing.T) {
		f := newFixture()
		userID := f.accounts.seed(0)
		svc := f.depositService()

		first, err := svc.Request(context.Background(), asOwner(userID), userID, 20, "")
		require.NoError(t, err)
		_, err = svc.Request(context.Background(), asOwner(userID), userID, 30, "")
		require.NoError(t, err)

		_, err = svc.Approve(context.Background(), first.ID.Hex())
		require.NoError(t, err)

		pending, err := svc.ListPending(context.Background(), Page{})
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, 30.0, pending[0].Amount)
	})
}

func TestDepositApprove(t *testing.T) {
	t.Run("credits the account and completes the record", func(t *testing.T) {
		f := newFixture()
		userID := f.accounts.seed(5)
		svc := f.depositService()

		dep, err := svc.Request(context.Background(), asOwner(userID), userID, 45, "")
		require.NoError(t, err)

		approved, err := svc.Approve(context.Background(), dep.ID.Hex())
		require.NoError(t, err)

		assert.Equal(t, models.DepositApproved, approved.Status)
		assert.Equal(t, 50.0, f.accounts.balance(userID))

		rec, ok := f.ledger.byReference(dep.Reference)
		require.True(t, ok)
		assert.Equal(t, models.TransactionCompleted, rec.Status)

		assert.Equal(t, []string{events.EventDepositRequested, events.EventDepositApproved}, f.published.names())
	})

	t.Run("concurrent approvals settle exactly once", func(t *testing.T) {
		f := newFixture()
		userID := f.accounts.seed(0)
		svc := f.depositService()

		dep, err := svc.Request(context.Background(), asOwner(userID), userID, 80, "")
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = svc.Approve(context.Background(), dep.ID.Hex())
			}(i)
		}
		wg.Wait()

		var won, lost int
		for _, err := range errs {
			switch {
			case err == nil:
				won++
			case IsCode(err, CodeInvalidState):
				lost++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, won, "exactly one approval must win")
		assert.Equal(t, 1, lost, "the loser must see the already-approved state")
		assert.Equal(t, 80.0, f.accounts.balance(userID), "the credit must land exactly once")
	})

	t.Run("approve after reject is refused", func(t *testing.T) {
		f := newFixture()
		userID := f.accounts.seed(0)
		svc := f.depositService()

		dep, err := svc.Request(context.Background(), asOwner(userID), userID, 60, "")
		require.NoError(t, err)
		_, err = svc.Reject(context.Background(), dep.ID.Hex())
		require.NoError(t, err)

		_, err = svc.Approve(context.Background(), dep.ID.Hex())
		assert.True(t, IsCode(err, CodeInvalidState))
		assert.Contains(t, err.Error(), "already rejected")
		assert.Equal(t, 0.0, f.accounts.balance(userID))
	})

	t.Run("unknown deposit id", func(t *testing.T) {
		f := newFixture()
		svc := f.depositService()

		_, err := svc.Approve(context.Background(), primitive.NewObjectID().Hex())
		assert.True(t, IsCode(err, CodeNotFound))
	})

	t.Run("failed ledger update rolls back the credit", func(t *testing.T) {
		f := newFixture()
		userID := f.accounts.seed(0)
		svc := f.depositService()

		dep, err := svc.Request(context.Background(), asOwner(userID), userID, 40, "")
		require.NoError(t, err)

		f.ledger.failUpdate = Errorf(CodeTransient, "socket closed")
		_, err = svc.Approve(context.Background(), dep.ID.Hex())
		require.Error(t, err)

		assert.Equal(t, 0.0, f.accounts.balance(userID), "credit must not survive the rollback")

		cur, err := f.deposits.Get(context.Background(), dep.ID.Hex())
		require.NoError(t, err)
		assert.Equal(t, models.DepositPending, cur.Status, "deposit must stay pending")

		rec, ok := f.ledger.byReference(dep.Reference)
		require.True(t, ok)
		assert.Equal(t, models.TransactionPending, rec.Status)
	})
}

func TestDepositReject(t *testing.T) {
	t.Run("closes the deposit without moving money", func(t *testing.T) {
		f := newFixture()
		userID := f.accounts.seed(15)
		svc := f.depositService()

		dep, err := svc.Request(context.Background(), asOwner(userID), userID, 100, "")
		require.NoError(t, err)

		rejected, err := svc.Reject(context.Background(), dep.ID.Hex())
		require.NoError(t, err)

		assert.Equal(t, models.DepositRejected, rejected.Status)
		assert.Equal(t, 15.0, f.accounts.balance(userID))

		rec, ok := f.ledger.byReference(dep.Reference)
		require.True(t, ok)
		assert.Equal(t, models.TransactionRejected, rec.Status)

		assert.Equal(t, []string{events.EventDepositRequested, events.EventDepositRejected}, f.published.names())
	})
}

func TestManualAdjust(t *testing.T) {
	t.Run("credit writes a completed deposit record", func(t *testing.T) {
		f := newFixture()
		userID := f.accounts.seed(10)
		svc := f.depositService()

		rec, err := svc.ManualAdjust(context.Background(), userID, 30, "promo credit")
		require.NoError(t, err)

		assert.Equal(t, models.TransactionDeposit, rec.Type)
		assert.Equal(t, 30.0, rec.Amount)
		assert.Equal(t, models.TransactionCompleted, rec.Status)
		assert.Equal(t, "promo credit", rec.Notes)
		assert.True(t, strings.HasPrefix(rec.Reference, "ADJ-"))
		assert.Equal(t, 40.0, f.accounts.balance(userID))
		assert.Equal(t, []string{events.EventBalanceAdjusted}, f.published.names())
	})

	t.Run("debit writes a completed withdrawal record", func(t *testing.T) {
		f := newFixture()
		userID := f.accounts.seed(100)
		svc := f.depositService()

		rec, err := svc.ManualAdjust(context.Background(), userID, -60, "chargeback")
		require.NoError(t, err)

		assert.Equal(t, models.TransactionWithdrawal, rec.Type)
		assert.Equal(t, 60.0, rec.Amount, "the record keeps the positive magnitude")
		assert.Equal(t, 40.0, f.accounts.balance(userID))
	})

	t.Run("debit beyond the balance is refused", func(t *testing.T) {
		f := newFixture()
		userID := f.accounts.seed(10)
		svc := f.depositService()

		_, err := svc.ManualAdjust(context.Background(), userID, -50, "")
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.Equal(t, 10.0, f.accounts.balance(userID))

		recs, err := f.ledger.ListAll(context.Background(), Page{})
		require.NoError(t, err)
		assert.Empty(t, recs, "a refused debit must leave no record")
	})

	t.Run("zero amount is refused", func(t *testing.T) {
		f := newFixture()
		userID := f.accounts.seed(10)
		svc := f.depositService()

		_, err := svc.ManualAdjust(context.Background(), userID, 0, "")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}
