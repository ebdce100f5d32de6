package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/visaops/internal/domain"
	"github.com/punchamoorthee/visaops/internal/logging"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	username    string
	password    string
	coverBudget int64
	amount      int64
	replayRate  int
)

// Metrics
var (
	totalRequests uint64
	success200    uint64 // Idempotent replays, whatever their stored status
	success201    uint64 // Created
	fail409       uint64 // Balance moved or key in flight
	fail422       uint64 // Budget exhausted
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&username, "user", "sales.rep", "Login username")
	flag.StringVar(&password, "password", "changeme", "Login password")
	flag.Int64Var(&coverBudget, "budget", 100000, "Budget of the Cover visa the workers drain")
	flag.Int64Var(&amount, "amount", 100, "Amount each Regular visa consumes")
	flag.IntVar(&replayRate, "replay", 10, "Percent of requests that resend the previous idempotency key")
}

type client struct {
	http  *http.Client
	token string
}

func main() {
	flag.Parse()
	log := logging.Logger()
	log.Infof("Starting Benchmark | Workers: %d | Duration: %s | Budget: %d | Amount: %d", concurrency, duration, coverBudget, amount)

	c := &client{http: &http.Client{Timeout: 5 * time.Second}}
	if err := c.login(); err != nil {
		log.Fatalf("Login failed: %v", err)
	}
	cover, err := c.createCover()
	if err != nil {
		log.Fatalf("Creating cover visa failed: %v", err)
	}
	log.Infof("Draining cover budget %s", cover)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go worker(&wg, c, cover, start)
	}
	wg.Wait()
	elapsed := time.Since(start)

	remaining, err := c.remaining(cover)
	if err != nil {
		log.Fatalf("Reading final budget failed: %v", err)
	}
	printResults(elapsed, cover, remaining)
}

func worker(wg *sync.WaitGroup, c *client, cover string, start time.Time) {
	defer wg.Done()
	var lastKey string

	for time.Since(start) < duration {
		key := lastKey
		if key == "" || int(time.Now().UnixNano()%100) >= replayRate {
			key = uuid.NewString()
		}
		lastKey = key

		resp, err := c.post("/api/v1/visas", key, regularDraft(cover))
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}
		atomic.AddUint64(&totalRequests, 1)
		switch {
		case resp.Header.Get("Idempotent-Replayed") == "true":
			atomic.AddUint64(&success200, 1)
		case resp.StatusCode == 201:
			atomic.AddUint64(&success201, 1)
		case resp.StatusCode == 409:
			atomic.AddUint64(&fail409, 1)
		case resp.StatusCode == 422:
			atomic.AddUint64(&fail422, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

// regularDraft is identical for every request so replays hash the same.
func regularDraft(cover string) domain.VisaDraft {
	return domain.VisaDraft{
		Type:          domain.VisaRegular,
		DistributorID: "D001",
		AccountTypes:  []string{"A001"},
		Objective:     "benchmark",
		ParentCode:    cover,
		FlatAmount:    fmt.Sprint(amount),
		Approvers:     []string{"sales.manager"},
	}
}

func (c *client) login() error {
	body, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	resp, err := c.http.Post(targetURL+"/api/v1/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	c.token = out.Token
	return nil
}

func (c *client) createCover() (string, error) {
	resp, err := c.post("/api/v1/visas", uuid.NewString(), domain.VisaDraft{
		Type:          domain.VisaCover,
		DistributorID: "D001",
		AccountTypes:  []string{"A001"},
		Amount:        decimal.NewFromInt(coverBudget),
		Objective:     "benchmark cover",
		Approvers:     []string{"sales.manager"},
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	var out domain.SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Visa.Code, nil
}

func (c *client) remaining(code string) (decimal.Decimal, error) {
	req, _ := http.NewRequest("GET", targetURL+"/api/v1/budgets/"+code, nil)
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.http.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()
	var out struct {
		Budget domain.BudgetAllocation `json:"budget"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return decimal.Zero, err
	}
	return out.Budget.RemainingBalance, nil
}

func (c *client) post(path, key string, payload any) (*http.Response, error) {
	body, _ := json.Marshal(payload)
	req, _ := http.NewRequest("POST", targetURL+path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Idempotency-Key", key)
	return c.http.Do(req)
}

func printResults(d time.Duration, cover string, remaining decimal.Decimal) {
	total := atomic.LoadUint64(&totalRequests)
	s201 := atomic.LoadUint64(&success201)
	s200 := atomic.LoadUint64(&success200)
	f409 := atomic.LoadUint64(&fail409)
	f422 := atomic.LoadUint64(&fail422)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()
	expected := decimal.NewFromInt(coverBudget - int64(s201)*amount)

	results := map[string]interface{}{
		"cover_code":         cover,
		"duration_sec":       d.Seconds(),
		"total_requests":     total,
		"throughput_tps":     tps,
		"success_created":    s201,
		"success_replay":     s200,
		"aborts_conflict":    f409,
		"rejected_exhausted": f422,
		"errors":             fErr,
		"remaining":          remaining.String(),
		"expected_remaining": expected.String(),
		"balanced":           remaining.Equal(expected) && !remaining.IsNegative(),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	file, err := os.Create("results_visas.json")
	if err != nil {
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
