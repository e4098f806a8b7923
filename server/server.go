// Package server implements the backend the session core talks to: it mints
// ephemeral credentials against the model provider, answers knowledge
// retrieval from a pgvector store and keeps the appointment book in
// Postgres.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

const retrieveLimit = 5

type storage interface {
	SearchDocuments(ctx context.Context, embedding []float32, limit int) ([]string, error)
	BookedTimes(ctx context.Context, date string) ([]string, error)
	ScheduleAppointment(ctx context.Context, appointment Appointment) error
}

type provider interface {
	MintSession(ctx context.Context) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Server serves the collaborator endpoints the session clients depend on.
type Server struct {
	config   Config
	store    storage
	provider provider
}

func NewServer(config Config, store *Store) *Server {
	return &Server{
		config:   config,
		store:    store,
		provider: newProviderClient(config.Provider),
	}
}

// Handler builds the instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /realtime/config", s.handleRealtimeConfig)
	mux.HandleFunc("GET /realtime/session", s.handleRealtimeSession)
	mux.HandleFunc("GET /context/retrieve", s.handleRetrieveContext)
	mux.HandleFunc("GET /appointments/booked", s.handleBookedTimes)
	mux.HandleFunc("POST /appointments/schedule", s.handleScheduleAppointment)
	return otelhttp.NewHandler(mux, "frontdesk-backend")
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("backend listening", "addr", s.config.Addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

func (s *Server) handleRealtimeConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"keyExpirationTime": s.config.KeyExpiry.Milliseconds(),
	})
}

func (s *Server) handleRealtimeSession(w http.ResponseWriter, r *http.Request) {
	credential, err := s.provider.MintSession(r.Context())
	if err != nil {
		logger.Error("failed to mint session credential", "error", err)
		writeError(w, http.StatusBadGateway, "failed to mint session credential")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"credential":  credential,
		"expiresInMs": s.config.KeyExpiry.Milliseconds(),
	})
}

func (s *Server) handleRetrieveContext(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}

	embedding, err := s.provider.Embed(r.Context(), query)
	if err != nil {
		logger.Error("failed to embed query", "error", err)
		writeError(w, http.StatusBadGateway, "failed to embed query")
		return
	}

	contents, err := s.store.SearchDocuments(r.Context(), embedding, retrieveLimit)
	if err != nil {
		logger.Error("failed to search documents", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to search documents")
		return
	}

	results := make([]map[string]string, 0, len(contents))
	for _, content := range contents {
		results = append(results, map[string]string{"content": content})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleBookedTimes(w http.ResponseWriter, r *http.Request) {
	times, err := s.store.BookedTimes(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		logger.Error("failed to list booked times", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list booked times")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookedTimes": times})
}

func (s *Server) handleScheduleAppointment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PatientName string `json:"patientName"`
		DateTime    string `json:"dateTime"`
		Service     string `json:"service"`
		PhoneNumber string `json:"phoneNumber"`
		Notes       string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.PatientName == "" || body.DateTime == "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"reason":  "patientName and dateTime are required",
		})
		return
	}

	err := s.store.ScheduleAppointment(r.Context(), Appointment{
		PatientName: body.PatientName,
		DateTime:    body.DateTime,
		Service:     body.Service,
		PhoneNumber: body.PhoneNumber,
		Notes:       body.Notes,
	})
	if errors.Is(err, ErrSlotTaken) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"reason":  ErrSlotTaken.Error(),
		})
		return
	}
	if err != nil {
		logger.Error("failed to schedule appointment", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to schedule appointment")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
