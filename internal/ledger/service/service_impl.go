package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/ledger/domain"
	obsmetrics "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/observability/metrics"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) CreateAccount(ctx context.Context, req ledgerdomain.CreateAccountRequest) (*ledgerdomain.CreditAccount, error) {
	if req.InitialBalance < 0 {
		return nil, ledgerdomain.ErrInvalidAmount
	}

	now := time.Now().UTC()
	account := &ledgerdomain.CreditAccount{
		ID:        s.genID.Generate(),
		OrgID:     req.OrgID,
		Balance:   0,
		Status:    ledgerdomain.AccountStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(account).Error; err != nil {
			return err
		}
		if req.InitialBalance > 0 {
			_, err := s.CreditTx(ctx, tx, ledgerdomain.CreditRequest{
				AccountID:   account.ID,
				Amount:      req.InitialBalance,
				Kind:        ledgerdomain.TransactionKindBonus,
				Description: "initial credit grant",
			})
			if err != nil {
				return err
			}
			account.Balance = req.InitialBalance
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Service) GetAccount(ctx context.Context, accountID snowflake.ID) (*ledgerdomain.CreditAccount, error) {
	var account ledgerdomain.CreditAccount
	err := s.db.WithContext(ctx).Take(&account, "id = ?", accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ledgerdomain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *Service) GetBalance(ctx context.Context, accountID snowflake.ID) (int64, error) {
	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// HasSufficientFunds is a side-effect-free read. It exists for cheap
// pre-checks only: the authoritative funds decision is the conditional
// update inside DebitTx, so two callers passing this check can still race
// down to a single successful debit.
func (s *Service) HasSufficientFunds(ctx context.Context, accountID snowflake.ID, cost int64) (bool, error) {
	if cost < 0 {
		return false, ledgerdomain.ErrInvalidAmount
	}
	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return false, err
	}
	if account.Status != ledgerdomain.AccountStatusActive {
		return false, ledgerdomain.ErrAccountNotFound
	}
	return account.Balance >= cost, nil
}

func (s *Service) Debit(ctx context.Context, req ledgerdomain.DebitRequest) (*ledgerdomain.CreditTransaction, error) {
	var txn *ledgerdomain.CreditTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		txn, err = s.DebitTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// DebitTx applies the atomic conditional decrement: the balance is reduced
// only when the row still holds at least the requested amount, so concurrent
// debits against the same account cannot drive it negative.
func (s *Service) DebitTx(ctx context.Context, tx *gorm.DB, req ledgerdomain.DebitRequest) (*ledgerdomain.CreditTransaction, error) {
	if req.Amount <= 0 {
		return nil, ledgerdomain.ErrInvalidAmount
	}

	now := time.Now().UTC()
	result := tx.WithContext(ctx).Exec(
		`UPDATE credit_accounts
		 SET balance = balance - ?, updated_at = ?
		 WHERE id = ? AND status = ? AND balance >= ?`,
		req.Amount, now, req.AccountID, ledgerdomain.AccountStatusActive, req.Amount,
	)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		var exists int64
		if err := tx.WithContext(ctx).
			Model(&ledgerdomain.CreditAccount{}).
			Where("id = ? AND status = ?", req.AccountID, ledgerdomain.AccountStatusActive).
			Count(&exists).Error; err != nil {
			return nil, err
		}
		if exists == 0 {
			return nil, ledgerdomain.ErrAccountNotFound
		}
		return nil, ledgerdomain.ErrInsufficientFunds
	}

	txn := &ledgerdomain.CreditTransaction{
		ID:           s.genID.Generate(),
		AccountID:    req.AccountID,
		Amount:       -req.Amount,
		Kind:         ledgerdomain.TransactionKindUsage,
		GenerationID: req.GenerationID,
		Description:  req.Description,
		CreatedAt:    now,
	}
	if err := s.appendTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *Service) Credit(ctx context.Context, req ledgerdomain.CreditRequest) (*ledgerdomain.CreditTransaction, error) {
	var txn *ledgerdomain.CreditTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		txn, err = s.CreditTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *Service) CreditTx(ctx context.Context, tx *gorm.DB, req ledgerdomain.CreditRequest) (*ledgerdomain.CreditTransaction, error) {
	if req.Amount <= 0 {
		return nil, ledgerdomain.ErrInvalidAmount
	}
	kind := req.Kind
	if kind == "" {
		kind = ledgerdomain.TransactionKindRefund
	}
	switch kind {
	case ledgerdomain.TransactionKindRefund,
		ledgerdomain.TransactionKindBonus,
		ledgerdomain.TransactionKindAdjustment,
		ledgerdomain.TransactionKindSubscriptionCredit,
		ledgerdomain.TransactionKindPurchase:
	default:
		return nil, ledgerdomain.ErrInvalidKind
	}

	now := time.Now().UTC()
	result := tx.WithContext(ctx).Exec(
		`UPDATE credit_accounts
		 SET balance = balance + ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		req.Amount, now, req.AccountID, ledgerdomain.AccountStatusActive,
	)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ledgerdomain.ErrAccountNotFound
	}

	txn := &ledgerdomain.CreditTransaction{
		ID:           s.genID.Generate(),
		AccountID:    req.AccountID,
		Amount:       req.Amount,
		Kind:         kind,
		GenerationID: req.GenerationID,
		Description:  req.Description,
		CreatedAt:    now,
	}
	if err := s.appendTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// appendTransaction snapshots the post-update balance and inserts the
// immutable transaction row inside the caller's transaction.
func (s *Service) appendTransaction(ctx context.Context, tx *gorm.DB, txn *ledgerdomain.CreditTransaction) error {
	var balance int64
	if err := tx.WithContext(ctx).
		Model(&ledgerdomain.CreditAccount{}).
		Where("id = ?", txn.AccountID).
		Pluck("balance", &balance).Error; err != nil {
		return err
	}
	txn.BalanceAfter = balance

	if err := tx.WithContext(ctx).Create(txn).Error; err != nil {
		return err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordLedgerTransaction(ctx, string(txn.Kind))
	}
	return nil
}

func (s *Service) ListTransactions(ctx context.Context, req ledgerdomain.ListTransactionsRequest) (ledgerdomain.ListTransactionsResponse, error) {
	limit := req.PageSize
	if limit <= 0 {
		limit = 25
	}

	query := s.db.WithContext(ctx).
		Where("account_id = ?", req.AccountID).
		Order("id DESC").
		Limit(limit + 1)

	if token := req.PageToken; token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return ledgerdomain.ListTransactionsResponse{}, err
		}
		lastID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return ledgerdomain.ListTransactionsResponse{}, err
		}
		query = query.Where("id < ?", lastID)
	}

	var rows []ledgerdomain.CreditTransaction
	if err := query.Find(&rows).Error; err != nil {
		return ledgerdomain.ListTransactionsResponse{}, err
	}

	rows, pageInfo, err := pagination.BuildPageInfo(rows, limit, func(t ledgerdomain.CreditTransaction) pagination.Cursor {
		return pagination.Cursor{ID: t.ID.String()}
	})
	if err != nil {
		return ledgerdomain.ListTransactionsResponse{}, err
	}

	return ledgerdomain.ListTransactionsResponse{
		PageInfo:     pageInfo,
		Transactions: rows,
	}, nil
}
