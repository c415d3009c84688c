// Package transport implements the spec §6 external interfaces: a single
// JSON-RPC 2.0 endpoint for tasks/send, a health endpoint, and an agent-card
// endpoint, generalised from the teacher's internal/web.Server (ServeMux +
// graceful shutdown) with the chat/SSE handlers replaced by one task
// handler over the Worker orchestrator.
package transport

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abhishec/purple-agent/internal/worker"
)

// Server holds the HTTP mux and its task, health, and agent-card handlers.
type Server struct {
	mux           *http.ServeMux
	taskHandler   *TaskHandler
	healthHandler *HealthHandler
	cardHandler   *AgentCardHandler
}

// NewServer wires the JSON-RPC, health, and agent-card handlers over w.
func NewServer(w *worker.Worker, info HealthInfo, card AgentCard) *Server {
	s := &Server{
		mux:           http.NewServeMux(),
		taskHandler:   NewTaskHandler(w),
		healthHandler: NewHealthHandler(info),
		cardHandler:   NewAgentCardHandler(card),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/tasks/send", s.taskHandler.ServeHTTP)
	s.mux.HandleFunc("/health", s.healthHandler.ServeHTTP)
	s.mux.HandleFunc("/agent-card", s.cardHandler.ServeHTTP)
}

// Start begins listening with graceful shutdown on SIGINT/SIGTERM, matching
// the teacher's Server.Start shape.
func (s *Server) Start() error {
	port := os.Getenv("TRANSPORT_PORT")
	if port == "" {
		port = "8080"
	}
	host := os.Getenv("TRANSPORT_HOST")
	if host == "" {
		host = "0.0.0.0"
	}
	addr := host + ":" + port

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       worker.DefaultTaskTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		log.Printf("received signal %v, shutting down", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("graceful shutdown error: %v", err)
		}
	}()

	log.Printf("task worker listening at %s", addr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
