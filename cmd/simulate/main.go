package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/appointment-lifecycle/internal/calendar"
	"github.com/hackgods/appointment-lifecycle/internal/config"
	"github.com/hackgods/appointment-lifecycle/internal/db"
	"github.com/hackgods/appointment-lifecycle/internal/doctor"
	"github.com/hackgods/appointment-lifecycle/internal/logging"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	AcceptRatio  float64
	ReadRatio    float64
	DoctorLimit  int
	PatientCount int
}

type slotTarget struct {
	DoctorID string
	Channel  calendar.Channel
	Date     string
	Time     string
}

func (t slotTarget) key() string {
	return strings.Join([]string{t.DoctorID, string(t.Channel), t.Date, t.Time}, "|")
}

type patient struct {
	ID   string
	Name string
	Age  int
}

type DataPool struct {
	Doctors  []string
	Slots    []slotTarget
	Patients []patient

	mu           sync.RWMutex
	appointments []uuid.UUID
	holders      map[string]uuid.UUID // slot key -> appointment that booked it
	violations   int64
}

func (dp *DataPool) AddBooking(target slotTarget, id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if prev, ok := dp.holders[target.key()]; ok && prev != id {
		dp.violations++
	}
	dp.holders[target.key()] = id
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
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
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0
	}

	latencies := append([]time.Duration(nil), om.Latencies...)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	n := len(latencies)
	return sum / time.Duration(n), latencies[n*50/100], latencies[min(n*95/100, n-1)], latencies[n-1]
}

type Metrics struct {
	Booking       OperationMetrics
	Accept        OperationMetrics
	ReadByID      OperationMetrics
	PatientView   OperationMetrics
	DoctorConsole OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  zerolog.Logger
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		fallback := logging.New("info", "prod")
		fallback.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(baseCfg.LogLevel, baseCfg.Env).With().Str("service", "simulate").Logger()

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("accept", cfg.AcceptRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, baseCfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	sim.pool, err = sim.loadDataPool(ctx, doctor.NewPgRepository(pgPool))
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	logger.Info().
		Int("doctors", len(sim.pool.Doctors)).
		Int("slots", len(sim.pool.Slots)).
		Int("patients", len(sim.pool.Patients)).
		Msg("data pool loaded")

	sim.Run()
	sim.PrintReport()

	if sim.pool.violations > 0 {
		os.Exit(1)
	}
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		AcceptRatio:  getFloat("SIM_ACCEPT_RATIO", 0.2),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		DoctorLimit:  getInt("SIM_DOCTOR_LIMIT", 10),
		PatientCount: getInt("SIM_PATIENTS", 500),
	}

	total := cfg.BookingRatio + cfg.AcceptRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.AcceptRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.PatientCount <= 0 {
		return fmt.Errorf("SIM_PATIENTS must be > 0")
	}
	return nil
}

// loadDataPool reads doctors from Postgres and their open slots through the
// API, so the run targets the same calendar the server sees.
func (s *Simulator) loadDataPool(ctx context.Context, doctors *doctor.PgRepository) (*DataPool, error) {
	dp := &DataPool{holders: make(map[string]uuid.UUID)}

	list, err := doctors.ListDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	if len(list) > s.config.DoctorLimit {
		list = list[:s.config.DoctorLimit]
	}

	for _, d := range list {
		dp.Doctors = append(dp.Doctors, d.ID)
		for _, ch := range calendar.Channels {
			var dates struct {
				Dates []string `json:"dates"`
			}
			if err := s.getJSON(ctx, fmt.Sprintf("/doctors/%s/channels/%s/dates", d.ID, ch), &dates); err != nil {
				return nil, err
			}
			for _, date := range dates.Dates {
				var slots struct {
					Slots []struct {
						Time string `json:"time"`
					} `json:"slots"`
				}
				if err := s.getJSON(ctx, fmt.Sprintf("/doctors/%s/channels/%s/dates/%s/slots", d.ID, ch, date), &slots); err != nil {
					return nil, err
				}
				for _, slot := range slots.Slots {
					dp.Slots = append(dp.Slots, slotTarget{DoctorID: d.ID, Channel: ch, Date: date, Time: slot.Time})
				}
			}
		}
	}

	for i := 0; i < s.config.PatientCount; i++ {
		dp.Patients = append(dp.Patients, patient{
			ID:   fmt.Sprintf("pt-%05d", i+1),
			Name: gofakeit.Name(),
			Age:  gofakeit.Number(1, 90),
		})
	}

	if len(dp.Slots) == 0 {
		return nil, fmt.Errorf("no open slots; run seed or calendar-worker first")
	}
	return dp, nil
}

func (s *Simulator) getJSON(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.AcceptRatio:
				s.doAccept(ctx, rng)
			default:
				switch rng.Intn(3) {
				case 0:
					s.doReadByID(ctx, rng)
				case 1:
					s.doPatientView(ctx, rng)
				case 2:
					s.doDoctorConsole(ctx, rng)
				}
			}
		}
	}
}

// send performs one request and classifies the response.
func (s *Simulator) send(ctx context.Context, method, path string, body any, okStatus int, dst any) (time.Duration, bool, bool) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, &buf)
	if err != nil {
		return 0, false, false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return latency, false, false
	}
	defer resp.Body.Close()

	if resp.StatusCode == okStatus {
		if dst != nil {
			_ = json.NewDecoder(resp.Body).Decode(dst)
		}
		return latency, true, false
	}
	return latency, false, resp.StatusCode == http.StatusConflict
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	target := s.pool.Slots[rng.Intn(len(s.pool.Slots))]
	p := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	latency, ok, conflict := s.send(ctx, http.MethodPost, "/appointments", map[string]any{
		"doctor_id":      target.DoctorID,
		"channel":        target.Channel,
		"date":           target.Date,
		"time":           target.Time,
		"patient_id":     p.ID,
		"patient_name":   p.Name,
		"patient_age":    p.Age,
		"payment_method": []string{"cash", "online"}[rng.Intn(2)],
		"reason":         "Load test visit",
	}, http.StatusCreated, &created)

	if ok && created.ID != uuid.Nil {
		s.pool.AddBooking(target, created.ID)
	}
	s.metrics.Booking.Record(latency, ok, conflict)
}

func (s *Simulator) doAccept(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	latency, success, conflict := s.send(ctx, http.MethodPost, "/appointments/"+id.String()+"/accept", nil, http.StatusOK, nil)
	s.metrics.Accept.Record(latency, success, conflict)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	latency, success, _ := s.send(ctx, http.MethodGet, "/appointments/"+id.String(), nil, http.StatusOK, nil)
	s.metrics.ReadByID.Record(latency, success, false)
}

func (s *Simulator) doPatientView(ctx context.Context, rng *rand.Rand) {
	p := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	latency, success, _ := s.send(ctx, http.MethodGet, "/patients/"+p.ID+"/appointments", nil, http.StatusOK, nil)
	s.metrics.PatientView.Record(latency, success, false)
}

func (s *Simulator) doDoctorConsole(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	q := url.Values{}
	q.Set("status", []string{"all", "pending", "accepted"}[rng.Intn(3)])
	latency, success, _ := s.send(ctx, http.MethodGet, "/doctors/"+doctorID+"/appointments?"+q.Encode(), nil, http.StatusOK, nil)
	s.metrics.DoctorConsole.Record(latency, success, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Accept", &s.metrics.Accept)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("Patient view", &s.metrics.PatientView)
	printOperationReport("Doctor console", &s.metrics.DoctorConsole)

	s.pool.mu.RLock()
	violations := s.pool.violations
	booked := len(s.pool.holders)
	s.pool.mu.RUnlock()

	fmt.Printf("Slots booked: %d of %d\n", booked, len(s.pool.Slots))
	if violations > 0 {
		fmt.Printf("DOUBLE BOOKINGS DETECTED: %d\n", violations)
	} else {
		fmt.Println("No double bookings detected")
	}
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, p50, p95, max := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond),
		p95.Round(time.Millisecond), max.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
