package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/mockbank/internal/domain"
	"github.com/punchamoorthee/mockbank/internal/events"
	"github.com/punchamoorthee/mockbank/internal/logging"
	"github.com/punchamoorthee/mockbank/internal/models"
	"github.com/punchamoorthee/mockbank/internal/store"
	"go.uber.org/zap"
)

const (
	DefaultOTPTTL         = 5 * time.Minute
	DefaultOTPMaxAttempts = 5
	otpDigits             = 6
)

type TransferConfig struct {
	OTPTTL         time.Duration
	OTPMaxAttempts int
	Now            Clock
	// NewCode generates OTP codes; defaults to six random digits.
	NewCode func() (string, error)
}

// TransferService drives a transfer through PENDING_OTP -> VERIFIED -> COMPLETED.
// A failed step returns an error and leaves the stored transfer as it was,
// except that a wrong code still consumes an attempt.
type TransferService struct {
	store  store.Store
	events events.Publisher
	log    *logging.Logger
	cfg    TransferConfig
}

func NewTransferService(st store.Store, pub events.Publisher, logger *logging.Logger, cfg TransferConfig) *TransferService {
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = DefaultOTPTTL
	}
	if cfg.OTPMaxAttempts <= 0 {
		cfg.OTPMaxAttempts = DefaultOTPMaxAttempts
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewCode == nil {
		cfg.NewCode = func() (string, error) { return randomDigits(otpDigits) }
	}
	return &TransferService{store: st, events: pub, log: logger.Named("transfer"), cfg: cfg}
}

// Initiate records a new transfer awaiting OTP. The amount's sign is not
// checked here; callers are expected to reject non-positive amounts.
func (s *TransferService) Initiate(ctx context.Context, userID string, req models.InitiateTransferRequest) (*domain.Transfer, error) {
	from := strings.TrimSpace(req.FromAccountID)
	to := strings.TrimSpace(req.ToAccountID)
	if from == "" || to == "" || req.Amount == nil {
		return nil, domain.E(domain.CodeValidation, "fromAccountId, toAccountId and amount are required")
	}
	if from == to {
		return nil, domain.E(domain.CodeValidation, "cannot transfer to the same account")
	}

	source, err := s.store.GetAccount(ctx, from)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, domain.Wrap(err, domain.CodeInternal, "account lookup failed")
	}
	if source.OwnerUserID != userID {
		return nil, domain.ErrAccountNotFound
	}
	if req.Amount.GreaterThan(source.Balance) {
		return nil, domain.ErrInsufficientFunds
	}

	t := &domain.Transfer{
		ID:               uuid.NewString(),
		InitiatingUserID: userID,
		FromAccountID:    from,
		ToAccountID:      to,
		Amount:           *req.Amount,
		CurrencyCode:     source.CurrencyCode,
		Status:           domain.StatusPendingOTP,
		CreatedAt:        s.cfg.Now().UTC(),
	}
	if err := s.store.CreateTransfer(ctx, t); err != nil {
		return nil, domain.Wrap(err, domain.CodeInternal, "transfer creation failed")
	}

	transfersTotal.WithLabelValues("initiated").Inc()
	s.log.Info("transfer initiated",
		zap.String("transfer_id", t.ID),
		zap.String("user_id", userID),
		zap.String("amount", t.Amount.String()),
	)
	return t, nil
}

// SendOTP issues a fresh challenge, replacing any earlier one and resetting
// the attempt counter. The status is left alone.
func (s *TransferService) SendOTP(ctx context.Context, userID, transferID string) (*domain.Transfer, error) {
	code, err := s.cfg.NewCode()
	if err != nil {
		return nil, domain.Wrap(err, domain.CodeInternal, "code generation failed")
	}

	t, err := s.store.UpdateTransfer(ctx, transferID, func(t *domain.Transfer) error {
		if t.InitiatingUserID != userID {
			return domain.ErrTransferNotFound
		}
		now := s.cfg.Now().UTC()
		t.OTP = &domain.OTPChallenge{
			Code:      code,
			SentAt:    now,
			ExpiresAt: now.Add(s.cfg.OTPTTL),
		}
		return nil
	})
	if err != nil {
		return nil, s.transferErr(err)
	}

	transfersTotal.WithLabelValues("otp_sent").Inc()
	s.log.Info("otp issued", zap.String("transfer_id", t.ID), zap.Time("expires_at", t.OTP.ExpiresAt))
	return t, nil
}

// VerifyOTP checks code against the current challenge. Expiry is tested
// first, then the lockout, then the code itself.
func (s *TransferService) VerifyOTP(ctx context.Context, userID, transferID, code string) (*domain.Transfer, error) {
	var outcome error

	t, err := s.store.UpdateTransfer(ctx, transferID, func(t *domain.Transfer) error {
		if t.InitiatingUserID != userID || t.OTP == nil {
			return domain.ErrTransferNotFound
		}
		if t.OTP.Expired(s.cfg.Now()) {
			return domain.ErrOTPExpired
		}
		if t.OTP.AttemptCount >= s.cfg.OTPMaxAttempts {
			return domain.ErrOTPLocked
		}
		if subtle.ConstantTimeCompare([]byte(t.OTP.Code), []byte(code)) != 1 {
			// Persist the spent attempt, then fail.
			t.OTP.AttemptCount++
			outcome = domain.ErrOTPInvalid
			return nil
		}
		if t.Status == domain.StatusPendingOTP {
			t.Status = domain.StatusVerified
		}
		return nil
	})
	if err != nil {
		err = s.transferErr(err)
		otpVerificationsTotal.WithLabelValues(string(domain.CodeOf(err))).Inc()
		s.log.Warn("otp rejected", zap.String("transfer_id", transferID), zap.String("code", string(domain.CodeOf(err))))
		return nil, err
	}
	if outcome != nil {
		otpVerificationsTotal.WithLabelValues(string(domain.CodeOTPInvalid)).Inc()
		s.log.Warn("otp mismatch",
			zap.String("transfer_id", transferID),
			zap.Int("attempts", t.OTP.AttemptCount),
		)
		return nil, outcome
	}

	otpVerificationsTotal.WithLabelValues("ok").Inc()
	s.log.Info("otp verified", zap.String("transfer_id", t.ID))
	return t, nil
}

// Confirm settles a verified transfer. The balance is checked again because
// it may have moved since initiation.
func (s *TransferService) Confirm(ctx context.Context, userID, transferID, note string) (*domain.Transfer, *domain.Receipt, error) {
	reference, err := newReference()
	if err != nil {
		return nil, nil, domain.Wrap(err, domain.CodeInternal, "reference generation failed")
	}
	note = strings.TrimSpace(note)

	settled, err := s.store.SettleTransfer(ctx, transferID, func(st *store.Settlement) ([]domain.Transaction, error) {
		t := st.Transfer
		if t.InitiatingUserID != userID {
			return nil, domain.ErrTransferNotFound
		}
		if t.Status != domain.StatusVerified {
			return nil, domain.ErrOTPRequired
		}
		if st.From == nil || st.From.OwnerUserID != userID {
			return nil, domain.ErrAccountNotFound
		}
		if t.Amount.GreaterThan(st.From.Balance) {
			return nil, domain.ErrInsufficientFunds
		}

		now := s.cfg.Now().UTC()
		st.From.Balance = st.From.Balance.Sub(t.Amount)

		debitDesc := note
		if debitDesc == "" {
			debitDesc = fmt.Sprintf("Transfer to %s", counterparty(st.To, t.ToAccountID))
		}
		lines := []domain.Transaction{{
			ID:           uuid.NewString(),
			AccountID:    st.From.ID,
			TransferID:   t.ID,
			Description:  debitDesc,
			SignedAmount: t.Amount.Neg(),
			Timestamp:    now,
		}}

		if st.To != nil {
			st.To.Balance = st.To.Balance.Add(t.Amount)
			creditDesc := note
			if creditDesc == "" {
				creditDesc = fmt.Sprintf("Transfer from %s", counterparty(st.From, t.FromAccountID))
			}
			lines = append(lines, domain.Transaction{
				ID:           uuid.NewString(),
				AccountID:    st.To.ID,
				TransferID:   t.ID,
				Description:  creditDesc,
				SignedAmount: t.Amount,
				Timestamp:    now,
			})
		}

		t.Status = domain.StatusCompleted
		t.Note = note
		t.Reference = reference
		t.CompletedAt = &now
		return lines, nil
	})
	if err != nil {
		err = s.transferErr(err)
		s.log.Warn("transfer confirmation failed", zap.String("transfer_id", transferID), zap.Error(err))
		return nil, nil, err
	}

	t := settled.Transfer
	receipt := &domain.Receipt{
		Reference:          t.Reference,
		FromAccountID:      t.FromAccountID,
		ToAccountID:        t.ToAccountID,
		Amount:             t.Amount,
		CurrencyCode:       t.CurrencyCode,
		Note:               t.Note,
		SourceBalanceAfter: settled.From.Balance,
		Internal:           settled.To != nil,
		CompletedAt:        *t.CompletedAt,
	}

	transfersTotal.WithLabelValues("completed").Inc()
	s.log.Info("transfer completed",
		zap.String("transfer_id", t.ID),
		zap.String("reference", t.Reference),
		zap.Bool("internal", receipt.Internal),
	)

	evt := events.TransferCompleted{
		TransferID:    t.ID,
		Reference:     t.Reference,
		UserID:        userID,
		FromAccountID: t.FromAccountID,
		ToAccountID:   t.ToAccountID,
		Amount:        t.Amount,
		CurrencyCode:  t.CurrencyCode,
		Internal:      receipt.Internal,
		OccurredAt:    receipt.CompletedAt,
	}
	if err := s.events.Publish(ctx, events.RoutingTransferCompleted, evt); err != nil {
		s.log.Warn("event publish failed", zap.String("routing_key", events.RoutingTransferCompleted), zap.Error(err))
	}

	return t, receipt, nil
}

// transferErr maps store failures onto the transfer error taxonomy.
func (s *TransferService) transferErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return domain.ErrTransferNotFound
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.Wrap(err, domain.CodeInternal, "transfer store failure")
}

func counterparty(a *domain.Account, fallbackID string) string {
	if a != nil {
		return a.Number
	}
	return fallbackID
}
