package dispute

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/starpro23/MjengoLink-Constructors/internal/domain/payment"
	"github.com/starpro23/MjengoLink-Constructors/internal/domain/wallet"
	"github.com/starpro23/MjengoLink-Constructors/internal/middleware"
	"github.com/starpro23/MjengoLink-Constructors/internal/pkg/response"
	"github.com/starpro23/MjengoLink-Constructors/internal/pkg/storage"
	"github.com/starpro23/MjengoLink-Constructors/internal/pkg/validator"
)

const maxEvidenceForm = 12 << 20

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type openDisputeRequest struct {
	PaymentID     uuid.UUID `json:"payment_id" validate:"required"`
	RaisedAgainst uuid.UUID `json:"raised_against" validate:"required"`
	Category      string    `json:"category" validate:"required,dispute_category"`
	Severity      string    `json:"severity" validate:"omitempty,severity"`
	Description   string    `json:"description" validate:"required,min=20,max=2000"`
}

type resolveDisputeRequest struct {
	Resolution    string `json:"resolution" validate:"required,oneof=refund_full refund_partial payment_released project_restart mediation escalated"`
	PartialAmount int64  `json:"partial_amount" validate:"gte=0"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrDisputeNotFound), errors.Is(err, payment.ErrPaymentNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrInvalidParty), errors.Is(err, ErrInvalidResolution),
		errors.Is(err, ErrInvalidRefundAmount),
		errors.Is(err, storage.ErrFileTooLarge), errors.Is(err, storage.ErrInvalidMimeType),
		errors.Is(err, storage.ErrEmptyFile):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrNotParty):
		response.Forbidden(w, err.Error())
	case errors.Is(err, ErrDisputeAlreadyOpen), errors.Is(err, ErrAlreadyResolved),
		errors.Is(err, ErrInvalidStateTransition), errors.Is(err, wallet.ErrInsufficientFunds):
		response.Conflict(w, err.Error())
	default:
		response.InternalError(w)
	}
}

func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())

	var req openDisputeRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	d, err := h.svc.Open(r.Context(), req.PaymentID, actorID, OpenInput{
		RaisedAgainst: req.RaisedAgainst,
		Category:      req.Category,
		Severity:      Severity(req.Severity),
		Description:   req.Description,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Created(w, d)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid dispute id")
		return
	}

	isAdmin := middleware.GetRole(r.Context()) == "admin"
	d, evidence, err := h.svc.Get(r.Context(), id, middleware.GetUserID(r.Context()), isAdmin)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"dispute":  d,
		"evidence": evidence,
	})
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

	disputes, total, err := h.svc.List(r.Context(), accountID, limit, (page-1)*limit)
	if err != nil {
		response.InternalError(w)
		return
	}

	pages := (total + limit - 1) / limit
	response.WithMeta(w, disputes, response.Meta{
		Total:   total,
		Page:    page,
		Limit:   limit,
		Pages:   pages,
		HasNext: page < pages,
		HasPrev: page > 1,
	})
}

func (h *Handler) AddEvidence(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid dispute id")
		return
	}

	if err := r.ParseMultipartForm(maxEvidenceForm); err != nil {
		response.BadRequest(w, "invalid multipart form")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "file field is required")
		return
	}
	defer file.Close()

	e, err := h.svc.AddEvidence(r.Context(), id, middleware.GetUserID(r.Context()), file, r.FormValue("description"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Created(w, e)
}

func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid dispute id")
		return
	}

	var req resolveDisputeRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	d, err := h.svc.Resolve(r.Context(), id, middleware.GetUserID(r.Context()), Resolution(req.Resolution), req.PartialAmount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, d)
}

func (h *Handler) action(fn func(r *http.Request, id uuid.UUID) (*PaymentDispute, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			response.BadRequest(w, "invalid dispute id")
			return
		}
		d, err := fn(r, id)
		if err != nil {
			h.writeError(w, err)
			return
		}
		response.OK(w, d)
	}
}

func (h *Handler) Routes(authMiddleware, adminOnly func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/", h.Open)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/evidence", h.AddEvidence)
	r.Post("/{id}/close", h.action(func(req *http.Request, id uuid.UUID) (*PaymentDispute, error) {
		return h.svc.Close(req.Context(), id, middleware.GetUserID(req.Context()))
	}))
	r.With(adminOnly).Post("/{id}/review", h.action(func(req *http.Request, id uuid.UUID) (*PaymentDispute, error) {
		return h.svc.Review(req.Context(), id)
	}))
	r.With(adminOnly).Post("/{id}/respond", h.action(func(req *http.Request, id uuid.UUID) (*PaymentDispute, error) {
		return h.svc.AwaitResponse(req.Context(), id)
	}))
	r.With(adminOnly).Post("/{id}/escalate", h.action(func(req *http.Request, id uuid.UUID) (*PaymentDispute, error) {
		return h.svc.Escalate(req.Context(), id)
	}))
	r.With(adminOnly).Post("/{id}/resolve", h.Resolve)
	return r
}
