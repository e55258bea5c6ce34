package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ipguard/internal/alert"
	"ipguard/internal/config"
	"ipguard/internal/scheduler"
)

// StatusSource reports the outcome of the most recent inference cycle.
type StatusSource interface {
	Status() scheduler.Status
}

type Server struct {
	cfg     *config.Config
	sched   StatusSource
	history *alert.History
	logger  *slog.Logger
	version string
}

type statusResponse struct {
	Status    string           `json:"status"`
	Time      string           `json:"time"`
	Version   string           `json:"version"`
	Service   string           `json:"service"`
	Driver    string           `json:"storage_driver"`
	Inference inferenceStatus  `json:"inference"`
	LastCycle scheduler.Status `json:"last_cycle"`
}

type inferenceStatus struct {
	WindowSec       int     `json:"window_sec"`
	EverySec        int     `json:"every_sec"`
	HighThreshold   float64 `json:"high_threshold"`
	MediumThreshold float64 `json:"medium_threshold"`
	ModelPath       string  `json:"model_path"`
}

// Start serves the operational endpoints when the API is enabled. The
// returned server shuts down when ctx is cancelled; nil means disabled.
func Start(ctx context.Context, cfg *config.Config, sched StatusSource, history *alert.History, logger *slog.Logger, version string) *http.Server {
	if !cfg.API.Enabled {
		logger.Info("api disabled")
		return nil
	}
	logger.Info("api enabled", "addr", cfg.API.Addr)
	server := &Server{
		cfg:     cfg,
		sched:   sched,
		history: history,
		logger:  logger,
		version: version,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", server.handleHealth)
	mux.HandleFunc("/status", server.handleStatus)
	mux.HandleFunc("/alerts", server.handleAlerts)
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{Addr: cfg.API.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server error", "err", err)
		}
	}()
	return httpServer
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp := statusResponse{
		Status:  "ok",
		Time:    time.Now().UTC().Format(time.RFC3339Nano),
		Version: s.version,
		Service: s.cfg.Publish.Producer,
		Driver:  s.cfg.Storage.Driver,
		Inference: inferenceStatus{
			WindowSec:       s.cfg.Inference.WindowSec,
			EverySec:        s.cfg.Inference.EverySec,
			HighThreshold:   s.cfg.Inference.HighThreshold,
			MediumThreshold: s.cfg.Inference.MediumThreshold,
			ModelPath:       s.cfg.Inference.ModelPath,
		},
		LastCycle: s.sched.Status(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	sinceStr := r.URL.Query().Get("since")
	var list []alert.Entry
	if sinceStr != "" {
		ts, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		list = s.history.Since(ts)
	} else {
		list = s.history.List(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": list,
		"count":  len(list),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
