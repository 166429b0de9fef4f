package models

import (
	"time"

	"github.com/punchamoorthee/mockbank/internal/domain"
	"github.com/shopspring/decimal"
)

// RegisterRequest is the payload for POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginRequest is the payload for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	User  domain.UserSummary `json:"user"`
	Token string             `json:"token"`
}

type MeResponse struct {
	User domain.UserSummary `json:"user"`
}

// InitiateTransferRequest is the payload from the client. Amount is a
// pointer so a missing amount can be told apart from zero.
type InitiateTransferRequest struct {
	FromAccountID string           `json:"fromAccountId"`
	ToAccountID   string           `json:"toAccountId"`
	Amount        *decimal.Decimal `json:"amount"`
}

type InitiateTransferResponse struct {
	TransferID string                `json:"transferId"`
	Status     domain.TransferStatus `json:"status"`
}

type SendOTPRequest struct {
	TransferID string `json:"transferId"`
}

// SendOTPResponse carries the code in-band. Demo only.
type SendOTPResponse struct {
	Status    domain.TransferStatus `json:"status"`
	Code      string                `json:"code"`
	ExpiresAt time.Time             `json:"expiresAt"`
}

type VerifyOTPRequest struct {
	TransferID string `json:"transferId"`
	Code       string `json:"code"`
}

type VerifyOTPResponse struct {
	Status domain.TransferStatus `json:"status"`
}

type ConfirmTransferRequest struct {
	TransferID string `json:"transferId"`
	Note       string `json:"note,omitempty"`
}

type ConfirmTransferResponse struct {
	TransferID string         `json:"transferId"`
	Receipt    domain.Receipt `json:"receipt"`
}

// ErrorResponse is the only shape an error ever leaves the API in.
type ErrorResponse struct {
	ErrorCode domain.ErrorCode `json:"errorCode"`
	Message   string           `json:"message"`
	RequestID string           `json:"requestId"`
}
