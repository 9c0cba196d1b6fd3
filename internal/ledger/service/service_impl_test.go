package service

import (
	"context"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	ledgerdomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/ledger/domain"
)

func newTestService(t *testing.T) (ledgerdomain.Service, *gorm.DB) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&ledgerdomain.CreditAccount{},
		&ledgerdomain.CreditTransaction{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(Params{DB: conn, Log: zap.NewNop(), GenID: node}), conn
}

func TestCreateAccountWithInitialGrant(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, ledgerdomain.CreateAccountRequest{InitialBalance: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(50), account.Balance)
	assert.Equal(t, ledgerdomain.AccountStatusActive, account.Status)

	resp, err := svc.ListTransactions(ctx, ledgerdomain.ListTransactionsRequest{AccountID: account.ID})
	require.NoError(t, err)
	require.Len(t, resp.Transactions, 1)
	assert.Equal(t, ledgerdomain.TransactionKindBonus, resp.Transactions[0].Kind)
	assert.Equal(t, int64(50), resp.Transactions[0].Amount)
	assert.Equal(t, int64(50), resp.Transactions[0].BalanceAfter)
}

func TestHasSufficientFunds(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, ledgerdomain.CreateAccountRequest{InitialBalance: 10})
	require.NoError(t, err)

	ok, err := svc.HasSufficientFunds(ctx, account.ID, 10)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HasSufficientFunds(ctx, account.ID, 11)
	require.NoError(t, err)
	assert.False(t, ok)

	// The check is a pure read: the balance and history are untouched.
	balance, err := svc.GetBalance(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)
	resp, err := svc.ListTransactions(ctx, ledgerdomain.ListTransactionsRequest{AccountID: account.ID})
	require.NoError(t, err)
	assert.Len(t, resp.Transactions, 1)

	_, err = svc.HasSufficientFunds(ctx, snowflake.ID(404), 1)
	assert.ErrorIs(t, err, ledgerdomain.ErrAccountNotFound)

	require.NoError(t, conn.Model(&ledgerdomain.CreditAccount{}).
		Where("id = ?", account.ID).
		Update("status", ledgerdomain.AccountStatusDeactivated).Error)
	_, err = svc.HasSufficientFunds(ctx, account.ID, 1)
	assert.ErrorIs(t, err, ledgerdomain.ErrAccountNotFound)
}

func TestDebitHappyPath(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, ledgerdomain.CreateAccountRequest{InitialBalance: 50})
	require.NoError(t, err)

	txn, err := svc.Debit(ctx, ledgerdomain.DebitRequest{
		AccountID:   account.ID,
		Amount:      20,
		Description: "synopsis generation",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-20), txn.Amount)
	assert.Equal(t, int64(30), txn.BalanceAfter)
	assert.Equal(t, ledgerdomain.TransactionKindUsage, txn.Kind)

	balance, err := svc.GetBalance(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), balance)
}

func TestDebitInsufficientFunds(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, ledgerdomain.CreateAccountRequest{InitialBalance: 10})
	require.NoError(t, err)

	_, err = svc.Debit(ctx, ledgerdomain.DebitRequest{AccountID: account.ID, Amount: 11})
	assert.ErrorIs(t, err, ledgerdomain.ErrInsufficientFunds)

	// The rejection writes nothing.
	balance, err := svc.GetBalance(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)

	resp, err := svc.ListTransactions(ctx, ledgerdomain.ListTransactionsRequest{AccountID: account.ID})
	require.NoError(t, err)
	assert.Len(t, resp.Transactions, 1)
}

func TestDebitExactBalanceSucceeds(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, ledgerdomain.CreateAccountRequest{InitialBalance: 10})
	require.NoError(t, err)

	txn, err := svc.Debit(ctx, ledgerdomain.DebitRequest{AccountID: account.ID, Amount: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(0), txn.BalanceAfter)
}

func TestDebitUnknownAccount(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Debit(context.Background(), ledgerdomain.DebitRequest{AccountID: 42, Amount: 1})
	assert.ErrorIs(t, err, ledgerdomain.ErrAccountNotFound)
}

func TestDebitRejectsNonPositiveAmount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, ledgerdomain.CreateAccountRequest{InitialBalance: 10})
	require.NoError(t, err)

	_, err = svc.Debit(ctx, ledgerdomain.DebitRequest{AccountID: account.ID, Amount: 0})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidAmount)

	_, err = svc.Debit(ctx, ledgerdomain.DebitRequest{AccountID: account.ID, Amount: -5})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidAmount)
}

func TestDebitDeactivatedAccount(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, ledgerdomain.CreateAccountRequest{InitialBalance: 10})
	require.NoError(t, err)
	require.NoError(t, conn.Model(&ledgerdomain.CreditAccount{}).
		Where("id = ?", account.ID).
		Update("status", ledgerdomain.AccountStatusDeactivated).Error)

	_, err = svc.Debit(ctx, ledgerdomain.DebitRequest{AccountID: account.ID, Amount: 1})
	assert.ErrorIs(t, err, ledgerdomain.ErrAccountNotFound)
}

func TestCreditRefundLinksGeneration(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, ledgerdomain.CreateAccountRequest{InitialBalance: 10})
	require.NoError(t, err)

	generationID := snowflake.ID(777)
	txn, err := svc.Credit(ctx, ledgerdomain.CreditRequest{
		AccountID:    account.ID,
		Amount:       5,
		Kind:         ledgerdomain.TransactionKindRefund,
		GenerationID: &generationID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), txn.Amount)
	assert.Equal(t, int64(15), txn.BalanceAfter)
	require.NotNil(t, txn.GenerationID)
	assert.Equal(t, generationID, *txn.GenerationID)
}

func TestCreditRejectsUnknownKind(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, ledgerdomain.CreateAccountRequest{InitialBalance: 0})
	require.NoError(t, err)

	_, err = svc.Credit(ctx, ledgerdomain.CreditRequest{
		AccountID: account.ID,
		Amount:    5,
		Kind:      ledgerdomain.TransactionKind("rebate"),
	})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidKind)
}

func TestConcurrentDebitsNeverOverspend(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, ledgerdomain.CreateAccountRequest{InitialBalance: 10})
	require.NoError(t, err)

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Debit(ctx, ledgerdomain.DebitRequest{AccountID: account.ID, Amount: 3})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var successes int
	for err := range errs {
		if err == nil {
			successes++
		} else {
			require.ErrorIs(t, err, ledgerdomain.ErrInsufficientFunds)
		}
	}
	assert.Equal(t, 3, successes)

	balance, err := svc.GetBalance(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), balance)
}

func TestListTransactionsPaginates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, ledgerdomain.CreateAccountRequest{InitialBalance: 100})
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		_, err := svc.Debit(ctx, ledgerdomain.DebitRequest{AccountID: account.ID, Amount: 1})
		require.NoError(t, err)
	}

	req := ledgerdomain.ListTransactionsRequest{AccountID: account.ID}
	req.PageSize = 4
	first, err := svc.ListTransactions(ctx, req)
	require.NoError(t, err)
	assert.Len(t, first.Transactions, 4)
	require.True(t, first.HasMore)

	req.PageToken = first.NextPageToken
	second, err := svc.ListTransactions(ctx, req)
	require.NoError(t, err)
	assert.Len(t, second.Transactions, 3) // 6 debits + initial grant
	assert.False(t, second.HasMore)

	// Newest first, strictly descending ids across pages.
	assert.True(t, first.Transactions[3].ID > second.Transactions[0].ID)
}
