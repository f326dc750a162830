package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/easelhq/easel/pkg/board"
)

// HealthServer exposes the engine's liveness over HTTP: Redis reachability
// plus how many sessions currently hold in-memory state.
type HealthServer struct {
	client   *board.Client
	sessions func() int
	addr     string
	server   *http.Server
}

// NewHealthServer creates a health check server on the default port 8080.
// sessions reports the engine's live session count; nil disables it.
func NewHealthServer(client *board.Client, sessions func() int) *HealthServer {
	if sessions == nil {
		sessions = func() int { return 0 }
	}
	return &HealthServer{
		client:   client,
		sessions: sessions,
		addr:     ":8080",
	}
}

// SetAddr overrides the listen address. Must be called before Start.
func (h *HealthServer) SetAddr(addr string) {
	h.addr = addr
}

// Start starts the HTTP health check server.
func (h *HealthServer) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.healthCheckHandler)

	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("Health server error: %v\n", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the health check server.
func (h *HealthServer) Shutdown(ctx context.Context) error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

// healthCheckHandler handles GET /healthz requests.
// Returns 200 OK if Redis is accessible, 503 Service Unavailable otherwise.
func (h *HealthServer) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:   "healthy",
		Redis:    "connected",
		Sessions: h.sessions(),
	}
	code := http.StatusOK

	if err := h.client.Ping(ctx); err != nil {
		response.Status = "unhealthy"
		response.Redis = "disconnected"
		response.Error = err.Error()
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response)
}

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status   string `json:"status"`
	Redis    string `json:"redis,omitempty"`
	Sessions int    `json:"sessions"`
	Error    string `json:"error,omitempty"`
}
