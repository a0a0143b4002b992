package payment

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/starpro23/MjengoLink-Constructors/internal/domain/project"
	"github.com/starpro23/MjengoLink-Constructors/internal/middleware"
	"github.com/starpro23/MjengoLink-Constructors/internal/pkg/mpesa"
	"github.com/starpro23/MjengoLink-Constructors/internal/pkg/response"
	"github.com/starpro23/MjengoLink-Constructors/internal/pkg/validator"
)

type Handler struct {
	svc           *Service
	feed          *Feed
	validationKey string
}

// NewHandler creates the payment HTTP surface. validationKey signs gateway
// callbacks; empty disables verification (sandbox).
func NewHandler(svc *Service, feed *Feed, validationKey string) *Handler {
	return &Handler{svc: svc, feed: feed, validationKey: validationKey}
}

type createPaymentRequest struct {
	RecipientID uuid.UUID `json:"recipient_id" validate:"required"`
	Amount      int64     `json:"amount" validate:"required,gt=0"`
	Method      string    `json:"method" validate:"required,payment_method"`
	Type        string    `json:"type" validate:"required,oneof=milestone deposit final refund service_fee other"`
	ProjectID   uuid.UUID `json:"project_id"`
	MilestoneID uuid.UUID `json:"milestone_id"`
	Description string    `json:"description" validate:"max=200"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPaymentNotFound), errors.Is(err, project.ErrProjectNotFound), errors.Is(err, project.ErrMilestoneNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrAmountTooLarge), errors.Is(err, ErrSelfPayment),
		errors.Is(err, project.ErrMilestoneMismatch), errors.Is(err, project.ErrRecipientMismatch),
		errors.Is(err, ErrNotQueryable), errors.Is(err, mpesa.ErrInvalidPhone), errors.Is(err, ErrMissingPhoneNumber):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrNotPayer), errors.Is(err, ErrNotParty):
		response.Forbidden(w, err.Error())
	case errors.Is(err, ErrRetryNotAllowed), errors.Is(err, ErrInvalidStateTransition), errors.Is(err, project.ErrMilestoneAlreadyPaid):
		response.Conflict(w, err.Error())
	case errors.Is(err, ErrGatewayUnavailable):
		response.Error(w, http.StatusServiceUnavailable, "GATEWAY_UNAVAILABLE", err.Error())
	default:
		response.InternalError(w)
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	payerID := middleware.GetUserID(r.Context())

	var req createPaymentRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	p, err := h.svc.CreateAndDispatch(r.Context(), payerID, CreateInput{
		RecipientID: req.RecipientID,
		Amount:      req.Amount,
		Method:      Method(req.Method),
		Type:        Type(req.Type),
		ProjectID:   req.ProjectID,
		MilestoneID: req.MilestoneID,
		Description: req.Description,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Created(w, p)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid payment id")
		return
	}
	p, err := h.svc.Get(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, p)
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

	payments, total, err := h.svc.List(r.Context(), accountID, limit, (page-1)*limit)
	if err != nil {
		response.InternalError(w)
		return
	}

	pages := (total + limit - 1) / limit
	response.WithMeta(w, payments, response.Meta{
		Total: total, Page: page, Limit: limit, Pages: pages,
		HasNext: page < pages, HasPrev: page > 1,
	})
}

func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid payment id")
		return
	}
	p, err := h.svc.Retry(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, p)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid payment id")
		return
	}
	p, err := h.svc.Cancel(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, p)
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid payment id")
		return
	}
	p, outcome, err := h.svc.QueryStatus(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, map[string]interface{}{"payment": p, "outcome": outcome})
}

// Webhook receives the gateway's asynchronous confirmation. Every outcome
// except an invalid signature is acknowledged with ResultCode 0 so the
// gateway never retries a processed callback indefinitely.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		response.BadRequest(w, "unreadable body")
		return
	}

	signature := r.Header.Get("X-MPesa-Signature")
	if !mpesa.VerifySignature(body, signature, h.validationKey) {
		log.Warn().Str("remote", r.RemoteAddr).Msg("Callback signature invalid")
		response.BadRequest(w, "invalid signature")
		return
	}

	cb, err := mpesa.ParseCallback(body)
	if err != nil {
		log.Warn().Err(err).Msg("Malformed callback acknowledged")
		h.ack(w, "malformed")
		return
	}

	outcome, err := h.svc.Reconcile(r.Context(), cb)
	if err != nil {
		// Internal failure: let the gateway redeliver, reconciliation is
		// idempotent
		log.Error().Err(err).Str("gateway_code", cb.CheckoutRequestID).Msg("Reconciliation failed")
		response.InternalError(w)
		return
	}
	h.ack(w, string(outcome))
}

func (h *Handler) ack(w http.ResponseWriter, outcome string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"ResultCode":0,"ResultDesc":"Accepted","Outcome":"` + outcome + `"}`))
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/retry", h.Retry)
	r.Post("/{id}/cancel", h.Cancel)
	r.Get("/{id}/status", h.Status)
	return r
}
