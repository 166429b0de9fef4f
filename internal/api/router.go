package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/punchamoorthee/mockbank/internal/domain"
)

// Operation names one thing a client can ask the API to do.
type Operation int

const (
	OpRegister Operation = iota
	OpLogin
	OpMe
	OpListAccounts
	OpListTransactions
	OpInitiateTransfer
	OpSendOTP
	OpVerifyOTP
	OpConfirmTransfer
	opCount
)

type route struct {
	method string
	path   string
	name   string
}

// routes is indexed by Operation.
var routes = [opCount]route{
	OpRegister:         {http.MethodPost, "/auth/register", "register"},
	OpLogin:            {http.MethodPost, "/auth/login", "login"},
	OpMe:               {http.MethodGet, "/auth/me", "me"},
	OpListAccounts:     {http.MethodGet, "/accounts", "list_accounts"},
	OpListTransactions: {http.MethodGet, "/transactions", "list_transactions"},
	OpInitiateTransfer: {http.MethodPost, "/transfer/initiate", "initiate_transfer"},
	OpSendOTP:          {http.MethodPost, "/transfer/send-otp", "send_otp"},
	OpVerifyOTP:        {http.MethodPost, "/transfer/verify-otp", "verify_otp"},
	OpConfirmTransfer:  {http.MethodPost, "/transfer/confirm", "confirm_transfer"},
}

func (o Operation) String() string {
	if o < 0 || o >= opCount {
		return "unknown"
	}
	return routes[o].name
}

// operations binds every Operation to its handler.
func (h *Handler) operations() [opCount]http.HandlerFunc {
	return [opCount]http.HandlerFunc{
		OpRegister:         h.Register,
		OpLogin:            h.Login,
		OpMe:               h.authed(h.Me),
		OpListAccounts:     h.authed(h.ListAccounts),
		OpListTransactions: h.authed(h.ListTransactions),
		OpInitiateTransfer: h.authed(h.InitiateTransfer),
		OpSendOTP:          h.authed(h.SendOTP),
		OpVerifyOTP:        h.authed(h.VerifyOTP),
		OpConfirmTransfer:  h.authed(h.ConfirmTransfer),
	}
}

// apiPrefix is the versioned mount. Every operation is also served unprefixed.
const apiPrefix = "/api/v1"

// middleware is the chain every matched route runs through, outermost first.
func (h *Handler) middleware() []mux.MiddlewareFunc {
	return []mux.MiddlewareFunc{h.requestIDMiddleware, h.instrumentMiddleware, h.recoverMiddleware}
}

// NewRouter mounts the operation table at the root and under /api/v1. Both
// mounts live on one router so a wrong method is reported the same way.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(h.middleware()...)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	ops := h.operations()
	for op, rt := range routes {
		r.HandleFunc(rt.path, ops[op]).Methods(rt.method).Name(rt.name)
		r.HandleFunc(apiPrefix+rt.path, ops[op]).Methods(rt.method)
	}

	r.NotFoundHandler = h.unknownEndpoint(http.StatusNotFound)
	r.MethodNotAllowedHandler = h.unknownEndpoint(http.StatusMethodNotAllowed)
	return r
}

func (h *Handler) unknownEndpoint(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		unmatchedTotal.WithLabelValues(r.Method).Inc()
		h.respondErrorStatus(w, r, domain.ErrUnknownEndpoint, status)
	}
}
