package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Clock returns the current time. Tests swap it to step through OTP expiry.
type Clock func() time.Time

var (
	transfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mockbank_transfers_total",
		Help: "Transfers that reached a workflow stage",
	}, []string{"stage"})

	otpVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mockbank_otp_verifications_total",
		Help: "OTP verification attempts, labeled by outcome",
	}, []string{"outcome"})

	authEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mockbank_auth_events_total",
		Help: "Registrations and logins, labeled by outcome",
	}, []string{"event", "outcome"})
)

const referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// randomDigits returns n uniformly random decimal digits.
func randomDigits(n int) (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("random source: %w", err)
	}
	return fmt.Sprintf("%0*d", n, v), nil
}

// newReference returns a display code such as TRF-7KQ2MZ9D.
func newReference() (string, error) {
	buf := make([]byte, 8)
	limit := big.NewInt(int64(len(referenceAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("random source: %w", err)
		}
		buf[i] = referenceAlphabet[n.Int64()]
	}
	return "TRF-" + string(buf), nil
}
