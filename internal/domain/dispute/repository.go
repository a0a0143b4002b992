package dispute

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

func (r *Repository) CreateTx(ctx context.Context, tx *sqlx.Tx, d *PaymentDispute) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payment_disputes (
			id, dispute_id, payment_id, project_id, raised_by, raised_against,
			category, severity, status, resolution, description,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
	`, d.ID, d.DisputeID, d.PaymentID, d.ProjectID, d.RaisedBy, d.RaisedAgainst,
		d.Category, string(d.Severity), string(d.Status), string(d.Resolution), d.Description)
	return err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*PaymentDispute, error) {
	var d PaymentDispute
	err := r.db.GetContext(ctx, &d, `SELECT * FROM payment_disputes WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDisputeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repository) Lock(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*PaymentDispute, error) {
	var d PaymentDispute
	err := tx.GetContext(ctx, &d, `SELECT * FROM payment_disputes WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDisputeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// HasOpenDisputeTx reports whether the payment already has a dispute that
// has not reached resolved or closed
func (r *Repository) HasOpenDisputeTx(ctx context.Context, tx *sqlx.Tx, paymentID uuid.UUID) (bool, error) {
	var count int
	err := tx.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM payment_disputes
		WHERE payment_id = $1 AND status NOT IN ($2, $3)
	`, paymentID, string(StatusResolved), string(StatusClosed))
	return count > 0, err
}

func (r *Repository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status Status) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payment_disputes SET status = $1, updated_at = now() WHERE id = $2
	`, string(status), id)
	return err
}

func (r *Repository) UpdateSeverityTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, severity Severity) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payment_disputes SET severity = $1, updated_at = now() WHERE id = $2
	`, string(severity), id)
	return err
}

func (r *Repository) ResolveTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, resolution Resolution, resolvedBy uuid.UUID, resolvedAmount int64, resolvedAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payment_disputes
		SET status = $1, resolution = $2, resolved_by = $3, resolved_amount = $4,
			resolved_at = $5, updated_at = now()
		WHERE id = $6
	`, string(StatusResolved), string(resolution), resolvedBy, resolvedAmount, resolvedAt, id)
	return err
}

func (r *Repository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]PaymentDispute, error) {
	disputes := []PaymentDispute{}
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM payment_disputes
		WHERE raised_by = $1 OR raised_against = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	return disputes, err
}

func (r *Repository) CountByAccount(ctx context.Context, accountID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM payment_disputes WHERE raised_by = $1 OR raised_against = $1
	`, accountID)
	return count, err
}

func (r *Repository) CreateEvidence(ctx context.Context, e *Evidence) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dispute_evidence (
			id, dispute_id, uploaded_by, file_key, content_type, description, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, now())
	`, e.ID, e.DisputeID, e.UploadedBy, e.FileKey, e.ContentType, e.Description)
	return err
}

func (r *Repository) ListEvidence(ctx context.Context, disputeID uuid.UUID) ([]Evidence, error) {
	evidence := []Evidence{}
	err := r.db.SelectContext(ctx, &evidence, `
		SELECT * FROM dispute_evidence WHERE dispute_id = $1 ORDER BY created_at
	`, disputeID)
	return evidence, err
}
