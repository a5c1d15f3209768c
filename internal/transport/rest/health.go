package rest

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"
)

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

type HealthResponse struct {
	Status     HealthStatus          `json:"status"`
	CheckedAt  time.Time             `json:"checked_at"`
	Components map[string]CheckEntry `json:"components"`
}

type CheckEntry struct {
	Status     HealthStatus   `json:"status"`
	Message    string         `json:"message,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CheckedAt  time.Time      `json:"checked_at"`
	DurationMs int64          `json:"duration_ms"`
}

// PaymentStats reports how many records sit in each status.
type PaymentStats interface {
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// Pinger is any optional dependency with a liveness probe, such as the status cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db       *sql.DB
	stats    PaymentStats
	optional map[string]Pinger
}

func NewHealthHandler(db *sql.DB, stats PaymentStats) *HealthHandler {
	return &HealthHandler{db: db, stats: stats, optional: make(map[string]Pinger)}
}

// WithComponent adds a dependency whose failure is reported but does not
// make the service unhealthy.
func (h *HealthHandler) WithComponent(name string, p Pinger) *HealthHandler {
	h.optional[name] = p
	return h
}

func (h *HealthHandler) pingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "OK"})
}

func (h *HealthHandler) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	components := map[string]CheckEntry{
		"postgres": h.checkDatabase(ctx),
	}
	for name, p := range h.optional {
		components[name] = check(ctx, p.Ping)
	}

	resp := HealthResponse{
		Status:     components["postgres"].Status,
		CheckedAt:  time.Now(),
		Components: components,
	}

	statusCode := http.StatusOK
	if resp.Status == HealthUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *HealthHandler) checkDatabase(ctx context.Context) CheckEntry {
	entry := check(ctx, h.db.PingContext)
	if entry.Status == HealthUnhealthy || h.stats == nil {
		return entry
	}

	counts, err := h.stats.CountByStatus(ctx)
	if err != nil {
		entry.Message = err.Error()
		return entry
	}
	entry.Details = map[string]any{"payments": counts}
	return entry
}

func check(ctx context.Context, probe func(context.Context) error) CheckEntry {
	start := time.Now()
	err := probe(ctx)

	entry := CheckEntry{
		Status:     HealthHealthy,
		CheckedAt:  time.Now(),
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		entry.Status = HealthUnhealthy
		entry.Message = err.Error()
	}
	return entry
}
