package wallet

import (
	"errors"
	"net/http"
	"strconv"

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

type withdrawRequest struct {
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Destination string `json:"destination" validate:"required,max=100"`
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())
	if accountID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	wal, err := h.svc.GetByAccount(r.Context(), accountID)
	if errors.Is(err, ErrWalletNotFound) {
		if err := h.svc.EnsureWallet(r.Context(), accountID); err != nil {
			response.InternalError(w)
			return
		}
		wal, err = h.svc.GetByAccount(r.Context(), accountID)
		if err != nil {
			response.InternalError(w)
			return
		}
	} else if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{
		"wallet":            wal,
		"available_balance": wal.AvailableBalance(),
	})
}

func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())
	if accountID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	txns, total, err := h.svc.ListTransactions(r.Context(), accountID, limit, (page-1)*limit)
	if err != nil {
		response.InternalError(w)
		return
	}

	pages := (total + limit - 1) / limit
	response.WithMeta(w, txns, response.Meta{
		Total:   total,
		Page:    page,
		Limit:   limit,
		Pages:   pages,
		HasNext: page < pages,
		HasPrev: page > 1,
	})
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())
	if accountID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req withdrawRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	txn, err := h.svc.Withdraw(r.Context(), accountID, req.Amount, req.Destination)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrAmountOutOfRange):
			response.BadRequest(w, "withdrawal amount outside allowed range")
		case errors.Is(err, ErrInsufficientFunds):
			response.Conflict(w, "insufficient available balance")
		case errors.Is(err, ErrWalletInactive):
			response.Conflict(w, "wallet is deactivated")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, txn)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		response.BadRequest(w, "invalid account id")
		return
	}

	if err := h.svc.SetActive(r.Context(), accountID, false); err != nil {
		if errors.Is(err, ErrWalletNotFound) {
			response.NotFound(w, "wallet not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"account_id": accountID, "is_active": false})
}

func (h *Handler) Routes(authMiddleware, adminOnly func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/", h.Balance)
	r.Get("/transactions", h.Transactions)
	r.Post("/withdraw", h.Withdraw)
	r.With(adminOnly).Post("/{accountID}/deactivate", h.Deactivate)
	return r
}
