package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

func (r *Repository) Create(ctx context.Context, p *Project) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projects (id, homeowner_id, title, description, category, location, budget_min, budget_max, status, bid_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0)
	`, p.ID, p.HomeownerID, p.Title, p.Description, p.Category, p.Location, p.BudgetMin, p.BudgetMax, string(p.Status))
	return err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	var p Project
	err := r.db.GetContext(ctx, &p, `SELECT * FROM projects WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// LockProject takes the row lock that serializes all project mutations
func (r *Repository) LockProject(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Project, error) {
	var p Project
	err := tx.GetContext(ctx, &p, `SELECT * FROM projects WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type ListFilter struct {
	Status      string
	Category    string
	HomeownerID uuid.UUID
	AssignedTo  uuid.UUID
	Limit       int
	Offset      int
}

func (r *Repository) List(ctx context.Context, f ListFilter) ([]Project, int, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	n := 0

	add := func(clause string, v interface{}) {
		n++
		where += fmt.Sprintf(" AND %s = $%d", clause, n)
		args = append(args, v)
	}

	if f.Status != "" {
		add("status", f.Status)
	}
	if f.Category != "" {
		add("category", f.Category)
	}
	if f.HomeownerID != uuid.Nil {
		add("homeowner_id", f.HomeownerID)
	}
	if f.AssignedTo != uuid.Nil {
		add("assigned_to", f.AssignedTo)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM projects `+where, args...); err != nil {
		return nil, 0, err
	}

	projects := []Project{}
	query := fmt.Sprintf(`SELECT * FROM projects %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, n+1, n+2)
	args = append(args, f.Limit, f.Offset)
	if err := r.db.SelectContext(ctx, &projects, query, args...); err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

func (r *Repository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status Status, stampColumn string) error {
	query := `UPDATE projects SET status = $1, updated_at = now() WHERE id = $2`
	if stampColumn != "" {
		query = fmt.Sprintf(`UPDATE projects SET status = $1, %s = now(), updated_at = now() WHERE id = $2`, stampColumn)
	}
	_, err := tx.ExecContext(ctx, query, string(status), id)
	return err
}

func (r *Repository) AssignTx(ctx context.Context, tx *sqlx.Tx, projectID, artisanID uuid.UUID, finalPrice int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE projects
		SET status = $1, assigned_to = $2, final_price = $3, assigned_at = now(), updated_at = now()
		WHERE id = $4
	`, string(StatusAssigned), artisanID, finalPrice, projectID)
	return err
}

// Bids

func (r *Repository) InsertBidTx(ctx context.Context, tx *sqlx.Tx, b *Bid) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO bids (id, project_id, artisan_id, amount, timeline_days, proposal, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, b.ID, b.ProjectID, b.ArtisanID, b.Amount, b.TimelineDays, b.Proposal, string(b.Status))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateBid
		}
		return err
	}
	_, err = tx.ExecContext(ctx, `UPDATE projects SET bid_count = bid_count + 1, updated_at = now() WHERE id = $1`, b.ProjectID)
	return err
}

func (r *Repository) GetBid(ctx context.Context, id uuid.UUID) (*Bid, error) {
	var b Bid
	err := r.db.GetContext(ctx, &b, `SELECT * FROM bids WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBidNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repository) LockBid(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Bid, error) {
	var b Bid
	err := tx.GetContext(ctx, &b, `SELECT * FROM bids WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBidNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repository) ListBids(ctx context.Context, projectID uuid.UUID) ([]Bid, error) {
	bids := []Bid{}
	err := r.db.SelectContext(ctx, &bids, `SELECT * FROM bids WHERE project_id = $1 ORDER BY created_at ASC`, projectID)
	return bids, err
}

func (r *Repository) AcceptBidTx(ctx context.Context, tx *sqlx.Tx, bidID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE bids SET status = $1, accepted_at = now(), updated_at = now() WHERE id = $2
	`, string(BidStatusAccepted), bidID)
	return err
}

// RejectSiblingsTx rejects every other pending bid on the project
func (r *Repository) RejectSiblingsTx(ctx context.Context, tx *sqlx.Tx, projectID, acceptedBidID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE bids SET status = $1, updated_at = now()
		WHERE project_id = $2 AND id <> $3 AND status = $4
	`, string(BidStatusRejected), projectID, acceptedBidID, string(BidStatusPending))
	return err
}

func (r *Repository) WithdrawBidTx(ctx context.Context, tx *sqlx.Tx, bidID, projectID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE bids SET status = $1, updated_at = now() WHERE id = $2
	`, string(BidStatusWithdrawn), bidID)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `UPDATE projects SET bid_count = bid_count - 1, updated_at = now() WHERE id = $1 AND bid_count > 0`, projectID)
	return err
}

// Milestones

func (r *Repository) InsertMilestone(ctx context.Context, m *Milestone) error {
	var due interface{}
	if m.DueDate != nil {
		due = *m.DueDate
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO project_milestones (id, project_id, title, amount, due_date, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.ID, m.ProjectID, m.Title, m.Amount, due, string(m.Status))
	return err
}

func (r *Repository) GetMilestone(ctx context.Context, id uuid.UUID) (*Milestone, error) {
	var m Milestone
	err := r.db.GetContext(ctx, &m, `SELECT * FROM project_milestones WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMilestoneNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repository) LockMilestone(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Milestone, error) {
	var m Milestone
	err := tx.GetContext(ctx, &m, `SELECT * FROM project_milestones WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMilestoneNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repository) ListMilestones(ctx context.Context, projectID uuid.UUID) ([]Milestone, error) {
	milestones := []Milestone{}
	err := r.db.SelectContext(ctx, &milestones, `SELECT * FROM project_milestones WHERE project_id = $1 ORDER BY created_at ASC`, projectID)
	return milestones, err
}

func (r *Repository) UpdateMilestoneStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status MilestoneStatus, stampColumn string) error {
	query := `UPDATE project_milestones SET status = $1, updated_at = now() WHERE id = $2`
	if stampColumn != "" {
		query = fmt.Sprintf(`UPDATE project_milestones SET status = $1, %s = now(), updated_at = now() WHERE id = $2`, stampColumn)
	}
	_, err := tx.ExecContext(ctx, query, string(status), id)
	return err
}

func (r *Repository) MarkMilestonePaidTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, paidAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE project_milestones SET status = $1, paid_at = $2, updated_at = now() WHERE id = $3
	`, string(MilestoneStatusPaid), paidAt, id)
	return err
}

// CountUnpaidTx counts milestones not yet paid, inside the caller's
// transaction so the auto-completion check never reads stale state
func (r *Repository) CountUnpaidTx(ctx context.Context, tx *sqlx.Tx, projectID uuid.UUID) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM project_milestones WHERE project_id = $1 AND status <> $2
	`, projectID, string(MilestoneStatusPaid))
	return count, err
}
