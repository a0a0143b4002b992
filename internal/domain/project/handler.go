package project

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

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

type createProjectRequest struct {
	Title       string `json:"title" validate:"required,min=5,max=200"`
	Description string `json:"description" validate:"required,min=20"`
	Category    string `json:"category" validate:"required,category"`
	Location    string `json:"location" validate:"required,max=100"`
	BudgetMin   int64  `json:"budget_min" validate:"required,gt=0"`
	BudgetMax   int64  `json:"budget_max" validate:"required,gt=0"`
}

type submitBidRequest struct {
	Amount       int64  `json:"amount" validate:"required,gt=0"`
	TimelineDays int    `json:"timeline_days" validate:"required,gt=0,lte=730"`
	Proposal     string `json:"proposal" validate:"required,min=20"`
}

type addMilestoneRequest struct {
	Title   string     `json:"title" validate:"required,min=3,max=200"`
	Amount  int64      `json:"amount" validate:"gte=0"`
	DueDate *time.Time `json:"due_date"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrProjectNotFound), errors.Is(err, ErrBidNotFound), errors.Is(err, ErrMilestoneNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrInvalidBudget), errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrMilestoneMismatch):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrNotOwner), errors.Is(err, ErrNotAssignedArtisan), errors.Is(err, ErrOwnProjectBid):
		response.Forbidden(w, err.Error())
	case errors.Is(err, ErrInvalidStateTransition), errors.Is(err, ErrDuplicateBid), errors.Is(err, ErrMilestoneAlreadyPaid):
		response.Conflict(w, err.Error())
	default:
		response.InternalError(w)
	}
}

func urlID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	homeownerID := middleware.GetUserID(r.Context())

	var req createProjectRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	p, err := h.svc.Create(r.Context(), homeownerID, CreateProjectInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Location:    req.Location,
		BudgetMin:   req.BudgetMin,
		BudgetMax:   req.BudgetMax,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Created(w, p)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		response.BadRequest(w, "invalid project id")
		return
	}
	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, p)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	f := ListFilter{
		Status:   q.Get("status"),
		Category: q.Get("category"),
		Limit:    limit,
		Offset:   (page - 1) * limit,
	}
	if q.Get("mine") == "true" {
		f.HomeownerID = middleware.GetUserID(r.Context())
	}
	if q.Get("assigned") == "true" {
		f.AssignedTo = middleware.GetUserID(r.Context())
	}

	projects, total, err := h.svc.List(r.Context(), f)
	if err != nil {
		response.InternalError(w)
		return
	}

	pages := (total + limit - 1) / limit
	response.WithMeta(w, projects, response.Meta{
		Total: total, Page: page, Limit: limit, Pages: pages,
		HasNext: page < pages, HasPrev: page > 1,
	})
}

func (h *Handler) projectAction(fn func(r *http.Request, projectID, actorID uuid.UUID) (*Project, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(r, "id")
		if !ok {
			response.BadRequest(w, "invalid project id")
			return
		}
		p, err := fn(r, id, middleware.GetUserID(r.Context()))
		if err != nil {
			h.writeError(w, err)
			return
		}
		response.OK(w, p)
	}
}

func (h *Handler) SubmitBid(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlID(r, "id")
	if !ok {
		response.BadRequest(w, "invalid project id")
		return
	}

	var req submitBidRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	b, err := h.svc.SubmitBid(r.Context(), projectID, middleware.GetUserID(r.Context()), SubmitBidInput{
		Amount:       req.Amount,
		TimelineDays: req.TimelineDays,
		Proposal:     req.Proposal,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Created(w, b)
}

func (h *Handler) ListBids(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlID(r, "id")
	if !ok {
		response.BadRequest(w, "invalid project id")
		return
	}
	bids, err := h.svc.ListBids(r.Context(), projectID, middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, bids)
}

func (h *Handler) AcceptBid(w http.ResponseWriter, r *http.Request) {
	bidID, ok := urlID(r, "id")
	if !ok {
		response.BadRequest(w, "invalid bid id")
		return
	}
	p, err := h.svc.AcceptBid(r.Context(), bidID, middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, p)
}

func (h *Handler) WithdrawBid(w http.ResponseWriter, r *http.Request) {
	bidID, ok := urlID(r, "id")
	if !ok {
		response.BadRequest(w, "invalid bid id")
		return
	}
	b, err := h.svc.WithdrawBid(r.Context(), bidID, middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, b)
}

func (h *Handler) AddMilestone(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlID(r, "id")
	if !ok {
		response.BadRequest(w, "invalid project id")
		return
	}

	var req addMilestoneRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	m, err := h.svc.AddMilestone(r.Context(), projectID, middleware.GetUserID(r.Context()), AddMilestoneInput{
		Title:   req.Title,
		Amount:  req.Amount,
		DueDate: req.DueDate,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Created(w, m)
}

func (h *Handler) ListMilestones(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlID(r, "id")
	if !ok {
		response.BadRequest(w, "invalid project id")
		return
	}
	milestones, err := h.svc.ListMilestones(r.Context(), projectID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, milestones)
}

func (h *Handler) CompleteMilestone(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		response.BadRequest(w, "invalid milestone id")
		return
	}
	m, err := h.svc.CompleteMilestone(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, m)
}

func (h *Handler) ApproveMilestone(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		response.BadRequest(w, "invalid milestone id")
		return
	}
	m, err := h.svc.ApproveMilestone(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, m)
}

// Routes mounts the /projects surface
func (h *Handler) Routes(authMiddleware, homeownerOnly, artisanOnly func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.With(homeownerOnly).Post("/", h.Create)
	r.With(homeownerOnly).Post("/{id}/post", h.projectAction(func(req *http.Request, id, actor uuid.UUID) (*Project, error) {
		return h.svc.Post(req.Context(), id, actor)
	}))
	r.With(homeownerOnly).Post("/{id}/cancel", h.projectAction(func(req *http.Request, id, actor uuid.UUID) (*Project, error) {
		return h.svc.Cancel(req.Context(), id, actor)
	}))
	r.With(homeownerOnly).Post("/{id}/close-bidding", h.projectAction(func(req *http.Request, id, actor uuid.UUID) (*Project, error) {
		return h.svc.CloseBidding(req.Context(), id, actor)
	}))
	r.With(artisanOnly).Post("/{id}/start", h.projectAction(func(req *http.Request, id, actor uuid.UUID) (*Project, error) {
		return h.svc.StartWork(req.Context(), id, actor)
	}))
	r.Post("/{id}/hold", h.projectAction(func(req *http.Request, id, actor uuid.UUID) (*Project, error) {
		return h.svc.HoldWork(req.Context(), id, actor)
	}))
	r.Post("/{id}/resume", h.projectAction(func(req *http.Request, id, actor uuid.UUID) (*Project, error) {
		return h.svc.ResumeWork(req.Context(), id, actor)
	}))

	r.With(artisanOnly).Post("/{id}/bids", h.SubmitBid)
	r.With(homeownerOnly).Get("/{id}/bids", h.ListBids)
	r.With(homeownerOnly).Post("/{id}/milestones", h.AddMilestone)
	r.Get("/{id}/milestones", h.ListMilestones)

	return r
}

// BidRoutes mounts the /bids surface
func (h *Handler) BidRoutes(authMiddleware, homeownerOnly, artisanOnly func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.With(homeownerOnly).Post("/{id}/accept", h.AcceptBid)
	r.With(artisanOnly).Post("/{id}/withdraw", h.WithdrawBid)
	return r
}

// MilestoneRoutes mounts the /milestones surface
func (h *Handler) MilestoneRoutes(authMiddleware, homeownerOnly, artisanOnly func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.With(artisanOnly).Post("/{id}/complete", h.CompleteMilestone)
	r.With(homeownerOnly).Post("/{id}/approve", h.ApproveMilestone)
	return r
}
