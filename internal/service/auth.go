package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/mockbank/internal/domain"
	"github.com/punchamoorthee/mockbank/internal/events"
	"github.com/punchamoorthee/mockbank/internal/logging"
	"github.com/punchamoorthee/mockbank/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthConfig struct {
	// Currency of the default account opened on registration.
	Currency string
	// HashCost is the bcrypt cost; zero means bcrypt.DefaultCost.
	HashCost int
	Now      Clock
}

// AuthService issues and resolves session tokens.
type AuthService struct {
	store  store.Store
	events events.Publisher
	log    *logging.Logger
	cfg    AuthConfig
}

func NewAuthService(st store.Store, pub events.Publisher, logger *logging.Logger, cfg AuthConfig) *AuthService {
	if cfg.HashCost == 0 {
		cfg.HashCost = bcrypt.DefaultCost
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	return &AuthService{store: st, events: pub, log: logger.Named("auth"), cfg: cfg}
}

// Session is what register and login hand back.
type Session struct {
	User  *domain.User
	Token string
}

// Register creates a user with one empty account and signs them in.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*Session, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if email == "" || strings.TrimSpace(password) == "" {
		authEventsTotal.WithLabelValues("register", string(domain.CodeValidation)).Inc()
		return nil, domain.E(domain.CodeValidation, "email and password are required")
	}
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.HashCost)
	if err != nil {
		return nil, domain.Wrap(err, domain.CodeInternal, "password hashing failed")
	}

	now := s.cfg.Now().UTC()
	user := &domain.User{
		ID:          uuid.NewString(),
		Email:       email,
		Password:    string(hash),
		DisplayName: name,
		CreatedAt:   now,
	}

	number, err := randomDigits(10)
	if err != nil {
		return nil, domain.Wrap(err, domain.CodeInternal, "account number generation failed")
	}
	account := &domain.Account{
		ID:           uuid.NewString(),
		OwnerUserID:  user.ID,
		DisplayName:  name + " Checking",
		Number:       number,
		Balance:      decimal.Zero,
		CurrencyCode: s.cfg.Currency,
		CreatedAt:    now,
	}

	if err := s.store.CreateUser(ctx, user, account); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			authEventsTotal.WithLabelValues("register", string(domain.CodeEmailInUse)).Inc()
			return nil, domain.ErrEmailInUse
		}
		return nil, domain.Wrap(err, domain.CodeInternal, "user creation failed")
	}

	token, err := s.issueToken(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	authEventsTotal.WithLabelValues("register", "ok").Inc()
	s.log.Info("user registered", zap.String("user_id", user.ID), zap.String("account_id", account.ID))

	evt := events.UserRegistered{UserID: user.ID, Email: user.Email, AccountID: account.ID, OccurredAt: now}
	if err := s.events.Publish(ctx, events.RoutingUserRegistered, evt); err != nil {
		s.log.Warn("event publish failed", zap.String("routing_key", events.RoutingUserRegistered), zap.Error(err))
	}

	return &Session{User: user, Token: token}, nil
}

// Login checks credentials and issues a fresh token. Earlier tokens stay valid.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			authEventsTotal.WithLabelValues("login", string(domain.CodeInvalidCredentials)).Inc()
			return nil, domain.ErrInvalidCredentials
		}
		return nil, domain.Wrap(err, domain.CodeInternal, "user lookup failed")
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		authEventsTotal.WithLabelValues("login", string(domain.CodeInvalidCredentials)).Inc()
		return nil, domain.ErrInvalidCredentials
	}

	token, err := s.issueToken(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	authEventsTotal.WithLabelValues("login", "ok").Inc()
	s.log.Debug("user logged in", zap.String("user_id", user.ID))
	return &Session{User: user, Token: token}, nil
}

// RequireAuth resolves a bearer token to its user.
func (s *AuthService) RequireAuth(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}

	userID, err := s.store.SessionUser(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, domain.Wrap(err, domain.CodeInternal, "session lookup failed")
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, domain.Wrap(err, domain.CodeInternal, "user lookup failed")
	}
	return user, nil
}

func (s *AuthService) issueToken(ctx context.Context, userID string) (string, error) {
	token := uuid.NewString()
	if err := s.store.CreateSession(ctx, token, userID); err != nil {
		return "", domain.Wrap(err, domain.CodeInternal, "session creation failed")
	}
	return token, nil
}
