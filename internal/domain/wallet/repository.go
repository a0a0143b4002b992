package wallet

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// EnsureWallet provisions an empty wallet for the account. Idempotent.
func (r *Repository) EnsureWallet(ctx context.Context, accountID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wallets (account_id, balance, hold_balance, total_deposited, total_withdrawn, is_active)
		VALUES ($1, 0, 0, 0, 0, true)
		ON CONFLICT (account_id) DO NOTHING
	`, accountID)
	return err
}

func (r *Repository) GetByAccount(ctx context.Context, accountID uuid.UUID) (*Wallet, error) {
	var w Wallet
	err := r.db.GetContext(ctx, &w, `SELECT * FROM wallets WHERE account_id = $1`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *Repository) ListTransactions(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]Transaction, error) {
	txns := []Transaction{}
	err := r.db.SelectContext(ctx, &txns, `
		SELECT * FROM wallet_transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	return txns, err
}

func (r *Repository) CountTransactions(ctx context.Context, accountID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM wallet_transactions WHERE account_id = $1`, accountID)
	return count, err
}

func (r *Repository) SetActive(ctx context.Context, accountID uuid.UUID, active bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE wallets SET is_active = $1, updated_at = now() WHERE account_id = $2
	`, active, accountID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrWalletNotFound
	}
	return nil
}

func (r *Repository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

// lockWallet provisions the wallet if missing and takes the row lock that
// serializes all ledger mutations on this wallet
func (r *Repository) lockWallet(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID) (*Wallet, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (account_id, balance, hold_balance, total_deposited, total_withdrawn, is_active)
		VALUES ($1, 0, 0, 0, 0, true)
		ON CONFLICT (account_id) DO NOTHING
	`, accountID); err != nil {
		return nil, err
	}

	var w Wallet
	err := tx.GetContext(ctx, &w, `SELECT * FROM wallets WHERE account_id = $1 FOR UPDATE`, accountID)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *Repository) updateBalances(ctx context.Context, tx *sqlx.Tx, w *Wallet) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = $1, hold_balance = $2, total_deposited = $3, total_withdrawn = $4, updated_at = now()
		WHERE account_id = $5
	`, w.Balance, w.HoldBalance, w.TotalDeposited, w.TotalWithdrawn, w.AccountID)
	return err
}

func (r *Repository) insertTransaction(ctx context.Context, tx *sqlx.Tx, t *Transaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_transactions (id, transaction_id, account_id, type, amount, previous_balance, new_balance, reference, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, t.ID, t.TransactionID, t.AccountID, string(t.Type), t.Amount, t.PreviousBalance, t.NewBalance, t.Reference, t.Description)
	return err
}

// CreditTx adds funds to the wallet inside an existing transaction
func (r *Repository) CreditTx(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, amount int64, txType TransactionType, reference, description string) (*Transaction, error) {
	w, err := r.lockWallet(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	if !w.IsActive {
		return nil, ErrWalletInactive
	}

	previous := w.Balance
	w.Balance += amount
	if txType == TransactionTypeDeposit {
		w.TotalDeposited += amount
	}

	if err := r.updateBalances(ctx, tx, w); err != nil {
		return nil, err
	}

	t := &Transaction{
		ID:              uuid.New(),
		TransactionID:   NewTransactionID(),
		AccountID:       accountID,
		Type:            txType,
		Amount:          amount,
		PreviousBalance: previous,
		NewBalance:      w.Balance,
		Reference:       reference,
		Description:     description,
	}
	if err := r.insertTransaction(ctx, tx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// DebitTx removes funds from the available balance inside an existing
// transaction. Fails with ErrInsufficientFunds leaving the wallet unchanged.
func (r *Repository) DebitTx(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, amount int64, txType TransactionType, reference, description string) (*Transaction, error) {
	w, err := r.lockWallet(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	if !w.IsActive {
		return nil, ErrWalletInactive
	}
	if amount > w.AvailableBalance() {
		return nil, ErrInsufficientFunds
	}

	previous := w.Balance
	w.Balance -= amount
	if txType == TransactionTypeWithdrawal {
		w.TotalWithdrawn += amount
	}

	if err := r.updateBalances(ctx, tx, w); err != nil {
		return nil, err
	}

	t := &Transaction{
		ID:              uuid.New(),
		TransactionID:   NewTransactionID(),
		AccountID:       accountID,
		Type:            txType,
		Amount:          amount,
		PreviousBalance: previous,
		NewBalance:      w.Balance,
		Reference:       reference,
		Description:     description,
	}
	if err := r.insertTransaction(ctx, tx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// HoldTx earmarks available funds. The balance is unchanged; the held
// amount is excluded from the available balance until released.
func (r *Repository) HoldTx(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, amount int64, reference, description string) (*Transaction, error) {
	w, err := r.lockWallet(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	if !w.IsActive {
		return nil, ErrWalletInactive
	}
	if amount > w.AvailableBalance() {
		return nil, ErrInsufficientFunds
	}

	w.HoldBalance += amount
	if err := r.updateBalances(ctx, tx, w); err != nil {
		return nil, err
	}

	t := &Transaction{
		ID:              uuid.New(),
		TransactionID:   NewTransactionID(),
		AccountID:       accountID,
		Type:            TransactionTypeHold,
		Amount:          amount,
		PreviousBalance: w.Balance,
		NewBalance:      w.Balance,
		Reference:       reference,
		Description:     description,
	}
	if err := r.insertTransaction(ctx, tx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ReleaseHoldTx returns earmarked funds to the available balance
func (r *Repository) ReleaseHoldTx(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, amount int64, reference, description string) (*Transaction, error) {
	w, err := r.lockWallet(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	if !w.IsActive {
		return nil, ErrWalletInactive
	}
	if amount > w.HoldBalance {
		return nil, ErrExcessiveRelease
	}

	w.HoldBalance -= amount
	if err := r.updateBalances(ctx, tx, w); err != nil {
		return nil, err
	}

	t := &Transaction{
		ID:              uuid.New(),
		TransactionID:   NewTransactionID(),
		AccountID:       accountID,
		Type:            TransactionTypeRelease,
		Amount:          amount,
		PreviousBalance: w.Balance,
		NewBalance:      w.Balance,
		Reference:       reference,
		Description:     description,
	}
	if err := r.insertTransaction(ctx, tx, t); err != nil {
		return nil, err
	}
	return t, nil
}
