package api

import (
	"net/http"

	"github.com/punchamoorthee/mockbank/internal/domain"
	"github.com/punchamoorthee/mockbank/internal/models"
)

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	req, err := decode[models.RegisterRequest](r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	sess, err := h.auth.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, models.AuthResponse{User: sess.User.Summary(), Token: sess.Token})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	req, err := decode[models.LoginRequest](r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	sess, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, models.AuthResponse{User: sess.User.Summary(), Token: sess.Token})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request, user *domain.User) {
	respondJSON(w, http.StatusOK, models.MeResponse{User: user.Summary()})
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request, user *domain.User) {
	accounts, err := h.ledger.ListAccounts(r.Context(), user.ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, accounts)
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request, user *domain.User) {
	txs, err := h.ledger.ListTransactions(r.Context(), user.ID, r.URL.Query().Get("accountId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, txs)
}

func (h *Handler) InitiateTransfer(w http.ResponseWriter, r *http.Request, user *domain.User) {
	req, err := decode[models.InitiateTransferRequest](r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	// Sign is validated here, not in the workflow.
	if req.Amount != nil && !req.Amount.IsPositive() {
		h.respondError(w, r, domain.E(domain.CodeValidation, "amount must be positive"))
		return
	}

	t, err := h.transfers.Initiate(r.Context(), user.ID, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.Header().Set("Location", "/transfers/"+t.ID)
	respondJSON(w, http.StatusCreated, models.InitiateTransferResponse{TransferID: t.ID, Status: t.Status})
}

func (h *Handler) SendOTP(w http.ResponseWriter, r *http.Request, user *domain.User) {
	req, err := decode[models.SendOTPRequest](r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	t, err := h.transfers.SendOTP(r.Context(), user.ID, req.TransferID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, models.SendOTPResponse{Status: t.Status, Code: t.OTP.Code, ExpiresAt: t.OTP.ExpiresAt})
}

func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request, user *domain.User) {
	req, err := decode[models.VerifyOTPRequest](r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	t, err := h.transfers.VerifyOTP(r.Context(), user.ID, req.TransferID, req.Code)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, models.VerifyOTPResponse{Status: t.Status})
}

func (h *Handler) ConfirmTransfer(w http.ResponseWriter, r *http.Request, user *domain.User) {
	req, err := decode[models.ConfirmTransferRequest](r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	t, receipt, err := h.transfers.Confirm(r.Context(), user.ID, req.TransferID, req.Note)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, models.ConfirmTransferResponse{TransferID: t.ID, Receipt: *receipt})
}
