package invoice

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/starpro23/MjengoLink-Constructors/internal/domain/project"
	"github.com/starpro23/MjengoLink-Constructors/internal/middleware"
	"github.com/starpro23/MjengoLink-Constructors/internal/pkg/response"
	"github.com/starpro23/MjengoLink-Constructors/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type issueInvoiceRequest struct {
	ClientID    uuid.UUID  `json:"client_id" validate:"required"`
	ProjectID   uuid.UUID  `json:"project_id"`
	Amount      int64      `json:"amount" validate:"required,gt=0"`
	TaxAmount   int64      `json:"tax_amount" validate:"gte=0"`
	Description string     `json:"description" validate:"max=500"`
	DueDate     *time.Time `json:"due_date"`
}

type markPaidRequest struct {
	PaymentRef string `json:"payment_ref" validate:"required,max=50"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvoiceNotFound), errors.Is(err, project.ErrProjectNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrInvalidAmount):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrNotIssuer), errors.Is(err, ErrNotParty), errors.Is(err, project.ErrNotAssignedArtisan):
		response.Forbidden(w, err.Error())
	case errors.Is(err, ErrInvalidStateTransition):
		response.Conflict(w, err.Error())
	default:
		response.InternalError(w)
	}
}

func (h *Handler) Issue(w http.ResponseWriter, r *http.Request) {
	artisanID := middleware.GetUserID(r.Context())

	var req issueInvoiceRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	inv, err := h.svc.Issue(r.Context(), artisanID, IssueInput{
		ClientID:    req.ClientID,
		ProjectID:   req.ProjectID,
		Amount:      req.Amount,
		TaxAmount:   req.TaxAmount,
		Description: req.Description,
		DueDate:     req.DueDate,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Created(w, inv)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid invoice id")
		return
	}

	inv, err := h.svc.Get(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, inv)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	invoices, total, err := h.svc.List(r.Context(), accountID, limit, (page-1)*limit)
	if err != nil {
		response.InternalError(w)
		return
	}

	pages := (total + limit - 1) / limit
	response.WithMeta(w, invoices, response.Meta{
		Total:   total,
		Page:    page,
		Limit:   limit,
		Pages:   pages,
		HasNext: page < pages,
		HasPrev: page > 1,
	})
}

func (h *Handler) action(fn func(r *http.Request, id uuid.UUID) (*Invoice, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			response.BadRequest(w, "invalid invoice id")
			return
		}
		inv, err := fn(r, id)
		if err != nil {
			h.writeError(w, err)
			return
		}
		response.OK(w, inv)
	}
}

func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid invoice id")
		return
	}

	var req markPaidRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	inv, err := h.svc.MarkPaid(r.Context(), id, middleware.GetUserID(r.Context()), req.PaymentRef)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, inv)
}

func (h *Handler) Routes(authMiddleware, artisanOnly func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.With(artisanOnly).Post("/", h.Issue)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.With(artisanOnly).Post("/{id}/send", h.action(func(req *http.Request, id uuid.UUID) (*Invoice, error) {
		return h.svc.Send(req.Context(), id, middleware.GetUserID(req.Context()))
	}))
	r.Post("/{id}/viewed", h.action(func(req *http.Request, id uuid.UUID) (*Invoice, error) {
		return h.svc.MarkViewed(req.Context(), id, middleware.GetUserID(req.Context()))
	}))
	r.Post("/{id}/paid", h.MarkPaid)
	r.With(artisanOnly).Post("/{id}/cancel", h.action(func(req *http.Request, id uuid.UUID) (*Invoice, error) {
		return h.svc.Cancel(req.Context(), id, middleware.GetUserID(req.Context()))
	}))
	return r
}
