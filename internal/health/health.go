package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status представляет статус компонента
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

const defaultCheckTimeout = 2 * time.Second

// Check — результат проверки одного компонента.
type Check struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	// Critical-компоненты влияют на readiness.
	Critical bool `json:"critical"`
}

// Response представляет ответ health check
type Response struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Checks        map[string]Check `json:"checks,omitempty"`
	Version       string           `json:"version,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
}

// Checker проверяет компонент с учётом дедлайна ctx.
type Checker interface {
	Check(ctx context.Context) Check
}

type registration struct {
	checker  Checker
	critical bool
}

// Handler обслуживает /healthz и /readyz.
type Handler struct {
	mu        sync.RWMutex
	checkers  map[string]registration
	version   string
	startTime time.Time
	timeout   time.Duration
}

// NewHandler создаёт новый health handler
func NewHandler(version string) *Handler {
	return &Handler{
		checkers:  make(map[string]registration),
		version:   version,
		startTime: time.Now(),
		timeout:   defaultCheckTimeout,
	}
}

// RegisterChecker регистрирует критичную проверку: её отказ делает сервис not ready.
func (h *Handler) RegisterChecker(name string, checker Checker) {
	h.register(name, checker, true)
}

// RegisterOptionalChecker регистрирует проверку, отказ которой лишь деградирует сервис.
func (h *Handler) RegisterOptionalChecker(name string, checker Checker) {
	h.register(name, checker, false)
}

func (h *Handler) register(name string, checker Checker, critical bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = registration{checker: checker, critical: critical}
}

// runChecks выполняет все проверки параллельно с общим таймаутом.
func (h *Handler) runChecks(ctx context.Context) map[string]Check {
	h.mu.RLock()
	regs := make(map[string]registration, len(h.checkers))
	for k, v := range h.checkers {
		regs[k] = v
	}
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		checks = make(map[string]Check, len(regs))
	)
	for name, reg := range regs {
		wg.Add(1)
		go func(name string, reg registration) {
			defer wg.Done()
			check := reg.checker.Check(ctx)
			check.Name = name
			check.Critical = reg.critical
			if !reg.critical && check.Status == StatusUnhealthy {
				check.Status = StatusDegraded
			}
			mu.Lock()
			checks[name] = check
			mu.Unlock()
		}(name, reg)
	}
	wg.Wait()

	return checks
}

func overall(checks map[string]Check) Status {
	status := StatusHealthy
	for _, check := range checks {
		if check.Status == StatusUnhealthy {
			return StatusUnhealthy
		}
		if check.Status == StatusDegraded {
			status = StatusDegraded
		}
	}
	return status
}

// ServeHTTP отдаёт подробный отчёт по всем проверкам.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := h.runChecks(r.Context())
	overallStatus := overall(checks)

	response := Response{
		Status:        overallStatus,
		Timestamp:     time.Now(),
		Checks:        checks,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	}

	statusCode := http.StatusOK
	if overallStatus == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// LivenessHandler простой liveness probe (всегда возвращает 200)
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ReadinessHandler отвечает 503, пока хотя бы одна критичная проверка не проходит.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if overall(h.runChecks(r.Context())) == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Register вешает /healthz, /livez и /readyz на mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("/healthz", h)
	mux.HandleFunc("/livez", LivenessHandler)
	mux.HandleFunc("/readyz", h.ReadinessHandler)
}

// CheckerFunc адаптирует функцию к Checker.
type CheckerFunc func(ctx context.Context) error

// Check выполняет проверку и замеряет её длительность.
func (f CheckerFunc) Check(ctx context.Context) Check {
	start := time.Now()
	err := f(ctx)
	duration := time.Since(start)

	if err != nil {
		return Check{
			Status:     StatusUnhealthy,
			Message:    err.Error(),
			DurationMs: duration.Milliseconds(),
		}
	}

	return Check{
		Status:     StatusHealthy,
		DurationMs: duration.Milliseconds(),
	}
}
