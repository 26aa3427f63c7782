// Package health probes the backend services on a cron schedule and keeps
// the latest result per service. The probe results feed the status command,
// so a user can see which capabilities are degraded without triggering them.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Target is one backend service to probe. URL points at the service root;
// the probe requests <URL>/health.
type Target struct {
	Name string
	URL  string
}

// Status is the latest probe result for one service.
type Status struct {
	Name      string
	Healthy   bool
	Detail    string
	Latency   time.Duration
	CheckedAt time.Time
}

// Monitor runs scheduled health probes against a fixed set of targets.
type Monitor struct {
	targets  []Target
	schedule string
	client   *http.Client
	logger   *slog.Logger

	cron *cron.Cron

	mu       sync.RWMutex
	statuses map[string]Status
}

// New creates a monitor for the given targets. schedule is a cron expression
// or descriptor ("@every 60s" when empty). Targets with an empty URL are
// skipped, so disabled backends never show up as unhealthy.
func New(targets []Target, schedule string, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if schedule == "" {
		schedule = "@every 60s"
	}
	active := make([]Target, 0, len(targets))
	for _, t := range targets {
		if t.URL != "" {
			active = append(active, t)
		}
	}
	return &Monitor{
		targets:  active,
		schedule: schedule,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger.With("component", "health"),
		statuses: make(map[string]Status),
	}
}

// Start runs an immediate probe round and schedules recurring ones.
func (m *Monitor) Start(ctx context.Context) error {
	m.CheckAll(ctx)

	c := cron.New()
	if _, err := c.AddFunc(m.schedule, func() {
		probeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		m.CheckAll(probeCtx)
	}); err != nil {
		return fmt.Errorf("health: invalid schedule %q: %w", m.schedule, err)
	}
	c.Start()
	m.cron = c

	m.logger.Info("health monitor started",
		"targets", len(m.targets),
		"schedule", m.schedule,
	)
	return nil
}

// Stop cancels the recurring probes.
func (m *Monitor) Stop() {
	if m.cron != nil {
		m.cron.Stop()
	}
}

// CheckAll probes every target once and records the results.
func (m *Monitor) CheckAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, t := range m.targets {
		wg.Add(1)
		go func(t Target) {
			defer wg.Done()
			st := m.probe(ctx, t)

			m.mu.Lock()
			prev, known := m.statuses[t.Name]
			m.statuses[t.Name] = st
			m.mu.Unlock()

			if known && prev.Healthy != st.Healthy {
				if st.Healthy {
					m.logger.Info("service recovered", "service", t.Name)
				} else {
					m.logger.Warn("service degraded", "service", t.Name, "detail", st.Detail)
				}
			}
		}(t)
	}
	wg.Wait()
}

// Statuses returns the latest results, sorted by service name.
func (m *Monitor) Statuses() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Status, 0, len(m.statuses))
	for _, st := range m.statuses {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *Monitor) probe(ctx context.Context, t Target) Status {
	st := Status{Name: t.Name, CheckedAt: time.Now()}

	url := strings.TrimRight(t.URL, "/") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		st.Detail = err.Error()
		return st
	}

	start := time.Now()
	resp, err := m.client.Do(req)
	st.Latency = time.Since(start)
	if err != nil {
		st.Detail = "unreachable"
		return st
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		st.Detail = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return st
	}

	// The backends report readiness flags alongside "status": the model
	// may still be loading even though the HTTP layer is up.
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		st.Detail = "invalid health payload"
		return st
	}
	for _, key := range []string{"model_loaded", "models_loaded", "ocr_ready"} {
		if v, ok := payload[key].(bool); ok && !v {
			st.Detail = "starting up"
			return st
		}
	}

	st.Healthy = true
	return st
}
