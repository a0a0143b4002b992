package invoice

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}

func (r *Repository) Create(ctx context.Context, inv *Invoice) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO invoices (
			id, invoice_number, project_id, client_id, artisan_id,
			amount, tax_amount, total_amount, description, due_date, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
	`, inv.ID, inv.InvoiceNumber, inv.ProjectID, inv.ClientID, inv.ArtisanID,
		inv.Amount, inv.TaxAmount, inv.TotalAmount, inv.Description, inv.DueDate, string(inv.Status))
	return err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	var inv Invoice
	err := r.db.GetContext(ctx, &inv, `SELECT * FROM invoices WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *Repository) Lock(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Invoice, error) {
	var inv Invoice
	err := tx.GetContext(ctx, &inv, `SELECT * FROM invoices WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// UpdateStatusTx moves the invoice to status and optionally stamps a
// timestamp column (sent_at). stampColumn is always a literal column name,
// never user input.
func (r *Repository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status Status, stampColumn string) error {
	query := `UPDATE invoices SET status = $1, updated_at = now() WHERE id = $2`
	if stampColumn != "" {
		query = `UPDATE invoices SET status = $1, updated_at = now(), ` + stampColumn + ` = now() WHERE id = $2`
	}
	_, err := tx.ExecContext(ctx, query, string(status), id)
	return err
}

func (r *Repository) MarkPaidTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, paymentRef string, paidAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE invoices
		SET status = $1, payment_ref = $2, paid_at = $3, updated_at = now()
		WHERE id = $4
	`, string(StatusPaid), paymentRef, paidAt, id)
	return err
}

// MarkOverdueBatch sweeps every sent or viewed invoice whose due date has
// passed into overdue. Returns the number of invoices moved.
func (r *Repository) MarkOverdueBatch(ctx context.Context, asOf time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE invoices
		SET status = $1, updated_at = now()
		WHERE status IN ($2, $3) AND due_date IS NOT NULL AND due_date < $4
	`, string(StatusOverdue), string(StatusSent), string(StatusViewed), asOf)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]Invoice, error) {
	invoices := []Invoice{}
	err := r.db.SelectContext(ctx, &invoices, `
		SELECT * FROM invoices
		WHERE client_id = $1 OR artisan_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	return invoices, err
}

func (r *Repository) CountByAccount(ctx context.Context, accountID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM invoices WHERE client_id = $1 OR artisan_id = $1
	`, accountID)
	return count, err
}
