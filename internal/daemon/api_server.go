package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"lectern/internal/api"
	"lectern/internal/config"
	"lectern/internal/logging"
	"lectern/internal/stage"
)

// apiServer serves the job HTTP API on cfg.Paths.APIBind. A blank bind
// address disables the server.
type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           api.NewHandler(d.jobSvc, srv.healthPayload, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return err
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once the server has started.
func (s *apiServer) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

type healthResponse struct {
	Status  string            `json:"status"`
	Running bool              `json:"running"`
	Workers int               `json:"workers"`
	Queue   map[string]int    `json:"queue"`
	Stages  map[string]string `json:"stages"`
}

func (s *apiServer) healthPayload(r *http.Request) (any, bool) {
	status := s.daemon.Status(r.Context())

	resp := healthResponse{
		Running: status.Running,
		Workers: status.Workflow.Workers,
		Queue:   make(map[string]int, len(status.Workflow.QueueStats)),
		Stages:  make(map[string]string, len(status.Workflow.StageHealth)),
	}
	ready := status.Running
	for jobStatus, count := range status.Workflow.QueueStats {
		resp.Queue[string(jobStatus)] = count
	}
	for stageID, health := range status.Workflow.StageHealth {
		resp.Stages[string(stageID)] = describeHealth(health)
		if !health.Ready {
			ready = false
		}
	}
	if ready {
		resp.Status = "ok"
	} else {
		resp.Status = "degraded"
	}
	return resp, ready
}

func describeHealth(h stage.Health) string {
	if h.Ready {
		return "ready"
	}
	if h.Detail != "" {
		return h.Detail
	}
	return "unavailable"
}
