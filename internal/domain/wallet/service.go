package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

type Service struct {
	repo          *Repository
	minWithdrawal int64
	maxWithdrawal int64
}

func NewService(repo *Repository, minWithdrawal, maxWithdrawal int64) *Service {
	return &Service{repo: repo, minWithdrawal: minWithdrawal, maxWithdrawal: maxWithdrawal}
}

func (s *Service) EnsureWallet(ctx context.Context, accountID uuid.UUID) error {
	return s.repo.EnsureWallet(ctx, accountID)
}

func (s *Service) GetByAccount(ctx context.Context, accountID uuid.UUID) (*Wallet, error) {
	return s.repo.GetByAccount(ctx, accountID)
}

func (s *Service) ListTransactions(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]Transaction, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	txns, err := s.repo.ListTransactions(ctx, accountID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountTransactions(ctx, accountID)
	if err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

func (s *Service) SetActive(ctx context.Context, accountID uuid.UUID, active bool) error {
	if err := s.repo.SetActive(ctx, accountID, active); err != nil {
		return err
	}
	log.Info().Str("account_id", accountID.String()).Bool("active", active).Msg("Wallet activation changed")
	return nil
}

// apply runs fn inside its own database transaction
func (s *Service) apply(ctx context.Context, fn func(tx *sqlx.Tx) (*Transaction, error)) (*Transaction, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	t, err := fn(tx)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) Credit(ctx context.Context, accountID uuid.UUID, amount int64, txType TransactionType, reference, description string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	t, err := s.apply(ctx, func(tx *sqlx.Tx) (*Transaction, error) {
		return s.repo.CreditTx(ctx, tx, accountID, amount, txType, reference, description)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("account_id", accountID.String()).Int64("amount", amount).Str("type", string(txType)).Str("reference", reference).Msg("Wallet credited")
	return t, nil
}

func (s *Service) Debit(ctx context.Context, accountID uuid.UUID, amount int64, txType TransactionType, reference, description string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	t, err := s.apply(ctx, func(tx *sqlx.Tx) (*Transaction, error) {
		return s.repo.DebitTx(ctx, tx, accountID, amount, txType, reference, description)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("account_id", accountID.String()).Int64("amount", amount).Str("type", string(txType)).Str("reference", reference).Msg("Wallet debited")
	return t, nil
}

func (s *Service) Hold(ctx context.Context, accountID uuid.UUID, amount int64, reference, description string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	t, err := s.apply(ctx, func(tx *sqlx.Tx) (*Transaction, error) {
		return s.repo.HoldTx(ctx, tx, accountID, amount, reference, description)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("account_id", accountID.String()).Int64("amount", amount).Str("reference", reference).Msg("Wallet hold placed")
	return t, nil
}

func (s *Service) ReleaseHold(ctx context.Context, accountID uuid.UUID, amount int64, reference, description string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	t, err := s.apply(ctx, func(tx *sqlx.Tx) (*Transaction, error) {
		return s.repo.ReleaseHoldTx(ctx, tx, accountID, amount, reference, description)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("account_id", accountID.String()).Int64("amount", amount).Str("reference", reference).Msg("Wallet hold released")
	return t, nil
}

// Withdraw moves available funds out to an external destination. Per-request
// bounds are checked before any ledger work.
func (s *Service) Withdraw(ctx context.Context, accountID uuid.UUID, amount int64, destination string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if amount < s.minWithdrawal || amount > s.maxWithdrawal {
		return nil, ErrAmountOutOfRange
	}

	t, err := s.apply(ctx, func(tx *sqlx.Tx) (*Transaction, error) {
		return s.repo.DebitTx(ctx, tx, accountID, amount, TransactionTypeWithdrawal, destination, "Withdrawal to "+destination)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("account_id", accountID.String()).Int64("amount", amount).Str("destination", destination).Msg("Withdrawal applied")
	return t, nil
}

// Tx-composable variants for orchestrators that own the enclosing
// database transaction.

func (s *Service) CreditTx(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, amount int64, txType TransactionType, reference, description string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.repo.CreditTx(ctx, tx, accountID, amount, txType, reference, description)
}

func (s *Service) DebitTx(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, amount int64, txType TransactionType, reference, description string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.repo.DebitTx(ctx, tx, accountID, amount, txType, reference, description)
}

func (s *Service) HoldTx(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, amount int64, reference, description string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.repo.HoldTx(ctx, tx, accountID, amount, reference, description)
}

func (s *Service) ReleaseHoldTx(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, amount int64, reference, description string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.repo.ReleaseHoldTx(ctx, tx, accountID, amount, reference, description)
}

func (s *Service) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return s.repo.BeginTx(ctx)
}
