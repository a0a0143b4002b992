package wallet

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TransactionType classifies a ledger entry. Balance sign conventions:
// deposit/refund/transfer-in credit the balance, withdrawal/payment/fee
// debit it, hold/release move funds between balance and hold_balance
// without changing the balance itself.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypePayment    TransactionType = "payment"
	TransactionTypeRefund     TransactionType = "refund"
	TransactionTypeFee        TransactionType = "fee"
	TransactionTypeHold       TransactionType = "hold"
	TransactionTypeRelease    TransactionType = "release"
	TransactionTypeTransfer   TransactionType = "transfer"
)

// Wallet holds an account's funds in KES cents. One wallet per account,
// never deleted, only deactivated.
type Wallet struct {
	AccountID      uuid.UUID `db:"account_id" json:"account_id"`
	Balance        int64     `db:"balance" json:"balance"`
	HoldBalance    int64     `db:"hold_balance" json:"hold_balance"`
	TotalDeposited int64     `db:"total_deposited" json:"total_deposited"`
	TotalWithdrawn int64     `db:"total_withdrawn" json:"total_withdrawn"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// AvailableBalance is the spendable portion: balance minus held funds
func (w *Wallet) AvailableBalance() int64 {
	return w.Balance - w.HoldBalance
}

// Transaction is an immutable ledger entry. Corrections are new offsetting
// entries, never updates.
type Transaction struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	TransactionID   string          `db:"transaction_id" json:"transaction_id"`
	AccountID       uuid.UUID       `db:"account_id" json:"account_id"`
	Type            TransactionType `db:"type" json:"type"`
	Amount          int64           `db:"amount" json:"amount"`
	PreviousBalance int64           `db:"previous_balance" json:"previous_balance"`
	NewBalance      int64           `db:"new_balance" json:"new_balance"`
	Reference       string          `db:"reference" json:"reference"`
	Description     string          `db:"description" json:"description"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// NewTransactionID generates a globally unique external ledger id,
// e.g. WLT-20250831-A1B2C3D4
func NewTransactionID() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return "WLT-" + time.Now().Format("20060102") + "-" + suffix
}
