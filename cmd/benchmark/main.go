package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/punchamoorthee/mockbank/internal/domain"
	"github.com/punchamoorthee/mockbank/internal/models"
	"github.com/punchamoorthee/mockbank/internal/seed"
	"github.com/shopspring/decimal"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	email       string
)

// Metrics
var (
	totalFlows uint64
	completed  uint64
	failOther  uint64

	codesMu sync.Mutex
	codes   = map[domain.ErrorCode]uint64{}
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | drain")
	flag.StringVar(&email, "email", "demo@mockbank.test", "Seeded customer to drive transfers for")
}

type client struct {
	http  *http.Client
	token string
}

func main() {
	flag.Parse()
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	c := &client{http: &http.Client{Timeout: 5 * time.Second}}
	var auth models.AuthResponse
	if status, err := c.call(http.MethodPost, "/auth/login", models.LoginRequest{Email: email, Password: seed.DemoPassword}, &auth); err != nil || status != http.StatusOK {
		log.Fatalf("login failed: status=%d err=%v", status, err)
	}
	c.token = auth.Token

	accounts := c.accounts()
	if len(accounts) < 2 {
		log.Fatalf("%s needs at least two accounts, has %d", email, len(accounts))
	}
	before := total(accounts)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go worker(&wg, c, accounts, start)
	}
	wg.Wait()
	elapsed := time.Since(start)

	after := total(c.accounts())
	printResults(elapsed, before, after)
	if !before.Equal(after) {
		log.Fatalf("ledger drifted: before=%s after=%s", before, after)
	}
}

func worker(wg *sync.WaitGroup, c *client, accounts []domain.Account, start time.Time) {
	defer wg.Done()

	for time.Since(start) < duration {
		from, to := pickAccounts(accounts)
		amount := decimal.New(int64(rand.Intn(2000)+1), -2)

		atomic.AddUint64(&totalFlows, 1)
		code, err := c.transfer(from.ID, to.ID, amount)
		switch {
		case err != nil:
			atomic.AddUint64(&failOther, 1)
		case code == "":
			atomic.AddUint64(&completed, 1)
		default:
			codesMu.Lock()
			codes[code]++
			codesMu.Unlock()
		}
	}
}

// transfer walks one transfer through every stage. It returns the error
// code of the first stage that was refused, or "" when it completed.
func (c *client) transfer(from, to string, amount decimal.Decimal) (domain.ErrorCode, error) {
	var initiated models.InitiateTransferResponse
	if code, err := c.stage("/transfer/initiate", models.InitiateTransferRequest{FromAccountID: from, ToAccountID: to, Amount: &amount}, &initiated); code != "" || err != nil {
		return code, err
	}

	var sent models.SendOTPResponse
	if code, err := c.stage("/transfer/send-otp", models.SendOTPRequest{TransferID: initiated.TransferID}, &sent); code != "" || err != nil {
		return code, err
	}

	if code, err := c.stage("/transfer/verify-otp", models.VerifyOTPRequest{TransferID: initiated.TransferID, Code: sent.Code}, nil); code != "" || err != nil {
		return code, err
	}

	return c.stage("/transfer/confirm", models.ConfirmTransferRequest{TransferID: initiated.TransferID, Note: "benchmark"}, nil)
}

func (c *client) stage(path string, req, out interface{}) (domain.ErrorCode, error) {
	status, raw, err := c.send(http.MethodPost, path, req)
	if err != nil {
		return "", err
	}
	if status >= 300 {
		var env models.ErrorResponse
		if err := json.Unmarshal(raw, &env); err != nil {
			return "", err
		}
		return env.ErrorCode, nil
	}
	if out == nil {
		return "", nil
	}
	return "", json.Unmarshal(raw, out)
}

func pickAccounts(accounts []domain.Account) (domain.Account, domain.Account) {
	if workload == "drain" {
		return accounts[0], accounts[1]
	}
	i := rand.Intn(len(accounts))
	j := rand.Intn(len(accounts))
	for i == j {
		j = rand.Intn(len(accounts))
	}
	return accounts[i], accounts[j]
}

func (c *client) accounts() []domain.Account {
	var accounts []domain.Account
	status, err := c.call(http.MethodGet, "/accounts", nil, &accounts)
	if err != nil || status != http.StatusOK {
		log.Fatalf("list accounts failed: status=%d err=%v", status, err)
	}
	return accounts
}

func total(accounts []domain.Account) decimal.Decimal {
	sum := decimal.Zero
	for _, a := range accounts {
		sum = sum.Add(a.Balance)
	}
	return sum
}

func printResults(d time.Duration, before, after decimal.Decimal) {
	flows := atomic.LoadUint64(&totalFlows)
	done := atomic.LoadUint64(&completed)

	codesMu.Lock()
	refused := make(map[domain.ErrorCode]uint64, len(codes))
	for k, v := range codes {
		refused[k] = v
	}
	codesMu.Unlock()

	results := map[string]interface{}{
		"workload":         workload,
		"duration_sec":     d.Seconds(),
		"total_flows":      flows,
		"throughput_tps":   float64(done) / d.Seconds(),
		"completed":        done,
		"refused_by_code":  refused,
		"errors":           atomic.LoadUint64(&failOther),
		"balance_before":   before.String(),
		"balance_after":    after.String(),
		"zero_sum_holding": before.Equal(after),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		log.Printf("write %s: %v", filename, err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}

func (c *client) call(method, path string, body, out interface{}) (int, error) {
	status, raw, err := c.send(method, path, body)
	if err != nil {
		return status, err
	}
	return status, json.Unmarshal(raw, out)
}

func (c *client) send(method, path string, body interface{}) (int, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, nil, err
		}
	}
	req, err := http.NewRequest(method, targetURL+path, &buf)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	return resp.StatusCode, raw, err
}
