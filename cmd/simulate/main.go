package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/health-first-scheduling/internal/config"
	"github.com/hackgods/health-first-scheduling/internal/db"
	"github.com/hackgods/health-first-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	CreateRatio   float64
	ProviderLimit int
	Password      string
	DaysAhead     int
	PostgresDSN   string
}

type session struct {
	ProviderID uuid.UUID
	Token      string
}

// DataPool holds the logged-in providers workers act as.
type DataPool struct {
	Sessions []session
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, lo, hi, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	lo = latencies[0]
	hi = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, lo, hi, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Create         OperationMetrics
	Search         OperationMetrics
	ListByProvider OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	log     zerolog.Logger
}

func main() {
	var cfg SimConfig
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Fire concurrent availability writes and reads at a running API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.APIBaseURL, "api", "http://localhost:8080", "Base URL of the api-server")
	f.DurationVar(&cfg.Duration, "duration", 30*time.Second, "How long to run")
	f.IntVar(&cfg.Workers, "workers", 20, "Concurrent workers")
	f.Float64Var(&cfg.CreateRatio, "create-ratio", 0.7, "Share of operations that create availability")
	f.IntVar(&cfg.ProviderLimit, "providers", 5, "Seeded providers to act as")
	f.StringVar(&cfg.Password, "password", "SeedPassword123!", "Password of the seeded providers")
	f.IntVar(&cfg.DaysAhead, "days-ahead", 90, "First date targeted by creates, in days from today")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg SimConfig) error {
	baseCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.PostgresDSN = baseCfg.PostgresDSN
	if err := validateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.New(baseCfg.Env, baseCfg.LogLevel, "simulate")
	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("create_ratio", cfg.CreateRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2, AppName: "simulate"})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pgPool.Close()

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    logger,
	}

	sim.pool, err = sim.loadDataPool(ctx, pgPool)
	if err != nil {
		return fmt.Errorf("load data pool: %w", err)
	}
	logger.Info().Int("providers", len(sim.pool.Sessions)).Msg("logged in")

	sim.Run()
	sim.PrintReport()

	overlaps, err := countOverlaps(context.Background(), pgPool)
	if err != nil {
		return fmt.Errorf("overlap check: %w", err)
	}
	fmt.Printf("Overlapping window pairs in storage: %d\n", overlaps)
	if overlaps > 0 {
		return fmt.Errorf("%d overlapping window pairs found", overlaps)
	}
	return nil
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("--workers must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("--duration must be > 0")
	}
	if cfg.CreateRatio < 0 || cfg.CreateRatio > 1 {
		return fmt.Errorf("--create-ratio must be between 0 and 1")
	}
	return nil
}

// loadDataPool picks verified providers from Postgres and logs each one in
// through the API. Providers are expected to come from cmd/seed.
func (s *Simulator) loadDataPool(ctx context.Context, pool *pgxpool.Pool) (*DataPool, error) {
	rows, err := pool.Query(ctx, `
		SELECT email FROM providers
		WHERE is_active = TRUE AND verification_status = 'VERIFIED'
		ORDER BY created_at
		LIMIT $1
	`, s.config.ProviderLimit)
	if err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	dataPool := &DataPool{}
	for _, email := range emails {
		sess, err := s.login(ctx, email)
		if err != nil {
			s.log.Warn().Err(err).Str("email", email).Msg("login failed, skipping provider")
			continue
		}
		dataPool.Sessions = append(dataPool.Sessions, sess)
	}
	if len(dataPool.Sessions) == 0 {
		return nil, fmt.Errorf("no providers could log in; run cmd/seed first")
	}
	return dataPool, nil
}

func (s *Simulator) login(ctx context.Context, email string) (session, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": s.config.Password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/api/v1/provider/login", bytes.NewReader(body))
	if err != nil {
		return session{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return session{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return session{}, fmt.Errorf("login returned %d", resp.StatusCode)
	}

	var out struct {
		Data struct {
			AccessToken string `json:"access_token"`
			Provider    struct {
				ID uuid.UUID `json:"id"`
			} `json:"provider"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return session{}, err
	}
	return session{ProviderID: out.Data.Provider.ID, Token: out.Data.AccessToken}, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			sess := s.pool.Sessions[rng.Intn(len(s.pool.Sessions))]
			if rng.Float64() < s.config.CreateRatio {
				s.doCreate(ctx, rng, sess)
			} else if rng.Intn(2) == 0 {
				s.doSearch(ctx, rng)
			} else {
				s.doListByProvider(ctx, sess)
			}
		}
	}
}

// isOverlapRejection reports whether a failed create was turned away because
// of an overlapping window. The overlap check answers 400 validation_error;
// the schedule lock and the storage constraint answer 409.
func isOverlapRejection(status int, body []byte) bool {
	switch status {
	case http.StatusConflict:
		return true
	case http.StatusBadRequest:
		var e struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &e) != nil {
			return false
		}
		return e.Error == "validation_error" && strings.Contains(e.Message, "overlaps")
	}
	return false
}

// doCreate posts a window inside a narrow band of days and hours so that
// concurrent workers acting for the same provider collide often.
func (s *Simulator) doCreate(ctx context.Context, rng *rand.Rand, sess session) {
	date := time.Now().UTC().AddDate(0, 0, s.config.DaysAhead+rng.Intn(3))
	startHour := 8 + rng.Intn(8)
	length := 1 + rng.Intn(3)

	payload := map[string]any{
		"date":             date.Format("2006-01-02"),
		"start_time":       fmt.Sprintf("%02d:00", startHour),
		"end_time":         fmt.Sprintf("%02d:00", startHour+length),
		"timezone":         "America/New_York",
		"slot_duration":    30,
		"appointment_type": "CONSULTATION",
		"location": map[string]any{
			"type":    "CLINIC",
			"address": gofakeit.Street(),
		},
		"notes": gofakeit.Sentence(6),
	}
	body, _ := json.Marshal(payload)

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/api/v1/provider/availability", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+sess.Token)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusCreated
		if !success {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
			conflict = isOverlapRejection(resp.StatusCode, body)
		}
	}
	s.metrics.Create.Record(latency, success, conflict)
}

func (s *Simulator) doSearch(ctx context.Context, rng *rand.Rand) {
	from := time.Now().UTC().AddDate(0, 0, rng.Intn(14))
	url := fmt.Sprintf("%s/api/v1/provider/availability/search?start_date=%s&end_date=%s&size=20",
		s.config.APIBaseURL, from.Format("2006-01-02"), from.AddDate(0, 0, 7).Format("2006-01-02"))

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}
	s.metrics.Search.Record(latency, success, false)
}

func (s *Simulator) doListByProvider(ctx context.Context, sess session) {
	from := time.Now().UTC().AddDate(0, 0, s.config.DaysAhead)
	url := fmt.Sprintf("%s/api/v1/provider/%s/availability?start_date=%s&end_date=%s",
		s.config.APIBaseURL, sess.ProviderID, from.Format("2006-01-02"), from.AddDate(0, 0, 3).Format("2006-01-02"))

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}
	s.metrics.ListByProvider.Record(latency, success, false)
}

// countOverlaps looks for two windows of one provider whose ranges intersect
// on the same date. Any hit means a concurrent create slipped through.
func countOverlaps(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var n int
	err := pool.QueryRow(ctx, `
		SELECT count(*)
		FROM provider_availability a
		JOIN provider_availability b
		  ON a.provider_id = b.provider_id
		 AND a.date = b.date
		 AND a.id < b.id
		 AND a.start_time < b.end_time
		 AND b.start_time < a.end_time
	`).Scan(&n)
	return n, err
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Providers: %d\n", len(s.pool.Sessions))
	fmt.Println()

	printOperationReport("Create availability", &s.metrics.Create)
	printOperationReport("Search", &s.metrics.Search)
	printOperationReport("List by provider", &s.metrics.ListByProvider)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, lo, hi, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Rejected (overlap): %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), lo.Round(time.Millisecond), hi.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}
