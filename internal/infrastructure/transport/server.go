package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"formfill/internal/application/port/output"
	"formfill/internal/domain/entity"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
)

const maxBodyBytes = 4 << 20

// Server exposes the bus over HTTP: POST /messages/{name} and GET /healthz.
type Server struct {
	addr   string
	bus    *Bus
	logger output.LoggerPort
}

func NewServer(addr string, bus *Bus, logger output.LoggerPort) *Server {
	return &Server{
		addr:   addr,
		bus:    bus,
		logger: logger.WithField("component", "http"),
	}
}

func (s *Server) Routes() http.Handler {
	requestLog := httplog.NewLogger("formfill", httplog.Options{
		JSON:    true,
		Concise: true,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(httplog.RequestLogger(requestLog))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/messages/{name}", s.handleMessage)

	return r
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	name := entity.MessageName(chi.URLParam(r, "name"))
	if !s.bus.Has(name) {
		writeJSON(w, http.StatusNotFound, entity.Response{Error: ErrUnknownMessage.Error() + ": " + name.String()})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, entity.Response{Error: err.Error()})
		return
	}
	if len(body) > 0 && !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, entity.Response{Error: "body is not valid JSON"})
		return
	}

	resp := s.bus.Send(r.Context(), name, body)
	status := http.StatusOK
	if !resp.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

// ListenAndServe blocks until ctx is cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Control API listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		s.logger.Info("Control API stopped")
		return nil
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
