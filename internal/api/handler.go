package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/punchamoorthee/mockbank/internal/domain"
	"github.com/punchamoorthee/mockbank/internal/logging"
	"github.com/punchamoorthee/mockbank/internal/models"
	"github.com/punchamoorthee/mockbank/internal/service"
	"go.uber.org/zap"
)

type Handler struct {
	auth      *service.AuthService
	ledger    *service.LedgerService
	transfers *service.TransferService
	log       *logging.Logger
}

func NewHandler(auth *service.AuthService, ledger *service.LedgerService, transfers *service.TransferService, logger *logging.Logger) *Handler {
	return &Handler{auth: auth, ledger: ledger, transfers: transfers, log: logger.Named("api")}
}

type ctxKey int

const requestIDKey ctxKey = iota

// authedFunc is a handler that runs only for a resolved user.
type authedFunc func(w http.ResponseWriter, r *http.Request, user *domain.User)

func (h *Handler) authed(next authedFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := h.auth.RequireAuth(r.Context(), bearerToken(r.Header.Get("Authorization")))
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		next(w, r, user)
	}
}

func bearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// decode reads a JSON body into a request struct of type T.
func decode[T any](r *http.Request) (T, error) {
	var req T
	if r.Body == nil {
		return req, domain.E(domain.CodeValidation, "request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, domain.Wrap(err, domain.CodeValidation, "malformed JSON body")
	}
	return req, nil
}

// statusFor maps an error code to its HTTP status.
func statusFor(code domain.ErrorCode) int {
	switch code {
	case domain.CodeValidation:
		return http.StatusBadRequest
	case domain.CodeUnauthorized, domain.CodeInvalidCredentials:
		return http.StatusUnauthorized
	case domain.CodeEmailInUse, domain.CodeOTPRequired:
		return http.StatusConflict
	case domain.CodeAccountNotFound, domain.CodeTransferNotFound, domain.CodeUnknownEndpoint:
		return http.StatusNotFound
	case domain.CodeInsufficientFunds, domain.CodeOTPInvalid:
		return http.StatusUnprocessableEntity
	case domain.CodeOTPExpired:
		return http.StatusGone
	case domain.CodeOTPLocked:
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	h.respondErrorStatus(w, r, err, statusFor(domain.CodeOf(err)))
}

func (h *Handler) respondErrorStatus(w http.ResponseWriter, r *http.Request, err error, status int) {
	code := domain.CodeOf(err)
	if code == domain.CodeInternal {
		h.log.Error("request failed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}

	id := requestID(r.Context())
	if id == "" {
		id = newRequestID()
		w.Header().Set(requestIDHeader, id)
	}

	respondJSON(w, status, models.ErrorResponse{
		ErrorCode: code,
		Message:   domain.MessageOf(err),
		RequestID: id,
	})
}

func respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
