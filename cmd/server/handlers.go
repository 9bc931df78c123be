package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"portfolio-sim-go/internal/auth"
	"portfolio-sim-go/internal/dashboard"
	"portfolio-sim-go/internal/market"
	"portfolio-sim-go/internal/portfolio"
	"portfolio-sim-go/internal/simulator"
)

const defaultTransactionLimit = 20

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log           *zap.Logger
	auth          *auth.Service
	session       *dashboard.Session
	sim           *simulator.Simulator
	simCtx        context.Context
	interval      time.Duration
	minWithdrawal decimal.Decimal
}

// NewAPIHandler creates a new APIHandler. simCtx bounds simulator runs started over the API.
func NewAPIHandler(log *zap.Logger, authSvc *auth.Service, session *dashboard.Session, sim *simulator.Simulator,
	simCtx context.Context, interval time.Duration, minWithdrawal decimal.Decimal) *APIHandler {
	return &APIHandler{
		log:           log,
		auth:          authSvc,
		session:       session,
		sim:           sim,
		simCtx:        simCtx,
		interval:      interval,
		minWithdrawal: minWithdrawal,
	}
}

type errorResponse struct {
	Title string `json:"title,omitempty"`
	Error string `json:"error"`
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type tradeRequest struct {
	Symbol market.Symbol   `json:"symbol"`
	Amount decimal.Decimal `json:"amount"`
}

type noticeResponse struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

type simulatorStatus struct {
	State string `json:"state"`
	Ticks uint64 `json:"ticks"`
}

// HealthHandler reports liveness.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RegisterHandler creates an account and opens its dashboard.
func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.auth.Register(req)
	if err != nil {
		h.writeError(w, err, "")
		return
	}
	if err := h.session.Open(); err != nil {
		h.writeError(w, err, "")
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{"user": user.Profile()})
}

// LoginHandler authenticates and opens the user's dashboard.
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.auth.Login(req.Email, req.Password, req.RememberMe)
	if err != nil {
		h.writeError(w, err, "")
		return
	}
	if err := h.session.Open(); err != nil {
		h.writeError(w, err, "")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"user": user.Profile()})
}

// LogoutHandler ends the session.
func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	h.session.Close()
	if err := h.auth.Logout(); err != nil {
		h.writeError(w, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MeHandler returns the logged-in user's profile.
func (h *APIHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.CurrentUser()
	if err != nil {
		h.writeError(w, err, "")
		return
	}
	h.writeJSON(w, http.StatusOK, user.Profile())
}

// MarketsHandler returns the current quotes.
func (h *APIHandler) MarketsHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.session.Markets())
}

// PortfolioHandler returns the aggregate view of the account.
func (h *APIHandler) PortfolioHandler(w http.ResponseWriter, r *http.Request) {
	view, err := h.session.Summary()
	if err != nil {
		h.writeError(w, err, "")
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// TransactionsHandler returns the most recent transactions, newest first.
func (h *APIHandler) TransactionsHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultTransactionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	txs, err := h.session.Transactions(limit)
	if err != nil {
		h.writeError(w, err, "")
		return
	}
	h.writeJSON(w, http.StatusOK, txs)
}

// InvestHandler buys an asset.
func (h *APIHandler) InvestHandler(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if !h.decode(w, r, &req) {
		return
	}
	pos, err := h.session.Invest(req.Symbol, req.Amount)
	if err != nil {
		h.writeError(w, err, req.Symbol)
		return
	}
	h.writeJSON(w, http.StatusOK, pos)
}

// SellHandler closes a position.
func (h *APIHandler) SellHandler(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if !h.decode(w, r, &req) {
		return
	}
	pos, err := h.session.Sell(req.Symbol)
	if err != nil {
		h.writeError(w, err, req.Symbol)
		return
	}
	h.writeJSON(w, http.StatusOK, pos)
}

// WithdrawHandler withdraws profit and returns the updated view.
func (h *APIHandler) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.session.Withdraw(req.Amount); err != nil {
		h.writeError(w, err, "")
		return
	}
	h.PortfolioHandler(w, r)
}

// DepositHandler accepts a deposit for verification. The balance is unchanged.
func (h *APIHandler) DepositHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Deposit(); err != nil {
		h.writeError(w, err, "")
		return
	}
	h.writeJSON(w, http.StatusAccepted, noticeResponse{
		Title:   dashboard.DepositPendingTitle,
		Message: dashboard.DepositPendingMessage,
	})
}

// InvestPreviewHandler reports what an investment would buy, given either
// an amount or a percent of the cash balance.
func (h *APIHandler) InvestPreviewHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := market.Symbol(q.Get("symbol"))
	rawAmount, rawPercent := q.Get("amount"), q.Get("percent")
	if symbol == "" || (rawAmount == "") == (rawPercent == "") {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "symbol and exactly one of amount or percent are required"})
		return
	}

	var (
		preview portfolio.InvestPreview
		err     error
	)
	if rawAmount != "" {
		amount, perr := decimal.NewFromString(rawAmount)
		if perr != nil {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "amount must be a number"})
			return
		}
		preview, err = h.session.PreviewInvest(symbol, amount)
	} else {
		percent, perr := decimal.NewFromString(rawPercent)
		if perr != nil {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "percent must be a number"})
			return
		}
		preview, err = h.session.PreviewInvestPercent(symbol, percent)
	}
	if err != nil {
		h.writeError(w, err, symbol)
		return
	}
	h.writeJSON(w, http.StatusOK, preview)
}

// SimulatorHandler reports the simulator state.
func (h *APIHandler) SimulatorHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, simulatorStatus{State: h.sim.State().String(), Ticks: h.sim.Ticks()})
}

// SimulatorStartHandler starts the price simulation.
func (h *APIHandler) SimulatorStartHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.sim.Start(h.simCtx, h.interval); err != nil {
		h.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		return
	}
	h.SimulatorHandler(w, r)
}

// SimulatorStopHandler stops the price simulation.
func (h *APIHandler) SimulatorStopHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.sim.Stop(); err != nil {
		h.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		return
	}
	h.SimulatorHandler(w, r)
}

func (h *APIHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func (h *APIHandler) writeError(w http.ResponseWriter, err error, symbol market.Symbol) {
	switch {
	case portfolio.IsValidation(err):
		title, message := dashboard.FailureMessage(err, symbol, h.minWithdrawal)
		h.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Title: title, Error: message})
	case errors.Is(err, auth.ErrNotAuthenticated),
		errors.Is(err, auth.ErrAccountNotFound),
		errors.Is(err, auth.ErrInvalidPassword):
		h.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.Is(err, auth.ErrEmailTaken):
		h.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case auth.IsAuthError(err):
		h.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	default:
		h.log.Error("Request failed", zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}
