// Package server exposes a Prover over HTTP/3.
package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	http3 "github.com/quic-go/quic-go/http3"

	"github.com/orizon-lang/refinement/internal/prover"
	"github.com/orizon-lang/refinement/internal/solver"
)

const maxBodyBytes = 1 << 20

// Server serves proof requests over HTTP/3.
type Server struct {
	prover   *prover.Prover
	gatherer prometheus.Gatherer
	logger   *slog.Logger

	srv   *http3.Server
	pc    net.PacketConn
	addr  string
	close func() error
}

// New creates a server bound to addr. gatherer backs /metrics and may be
// nil, in which case the default prometheus gatherer is used.
func New(addr string, tlsCfg *tls.Config, p *prover.Prover, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{prover: p, gatherer: gatherer, logger: logger, addr: addr}
	s.srv = &http3.Server{Addr: addr, TLSConfig: tlsCfg, Handler: s.Handler()}
	return s
}

// Start begins serving on a UDP socket and returns the bound address, which
// differs from the configured one when the port is 0.
func (s *Server) Start() (string, error) {
	var err error
	s.pc, err = net.ListenPacket("udp", s.addr)
	if err != nil {
		return "", err
	}
	bound := s.pc.LocalAddr().String()

	done := make(chan struct{})
	go func() {
		if err := s.srv.Serve(s.pc); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
			s.logger.Error("proof server stopped", slog.String("error", err.Error()))
		}
		close(done)
	}()

	s.close = func() error {
		err := s.srv.Close()
		_ = s.pc.Close()
		select {
		case <-done:
		case <-time.After(time.Second):
		}
		return err
	}

	s.logger.Info("proof server listening", slog.String("addr", bound))
	return bound, nil
}

// Stop closes the listener and waits briefly for the serve loop to exit.
func (s *Server) Stop() error {
	if s.close != nil {
		return s.close()
	}
	return nil
}

// Handler returns the HTTP routes, usable with any transport.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/prove", s.handleProve)
	mux.HandleFunc("POST /v1/widen", s.handleWiden)
	mux.HandleFunc("POST /v1/brand", s.handleBrand)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return s.withAttempt(mux)
}

// withAttempt assigns each request an attempt id, echoes it in a response
// header and logs the request.
func (s *Server) withAttempt(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(solver.AttemptHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}
		w.Header().Set(solver.AttemptHeader, id)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(prover.WithAttempt(r.Context(), id)))
		s.logger.Debug("request served",
			slog.String("attempt", id),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("elapsed", time.Since(start)))
	})
}

func (s *Server) handleProve(w http.ResponseWriter, r *http.Request) {
	var req solver.ProveRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Goal == "" {
		writeError(w, http.StatusBadRequest, "goal is required")
		return
	}

	ctx := r.Context()
	if req.TimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMS)*time.Millisecond)
		defer cancel()
	}
	writeJSON(w, http.StatusOK, s.prover.TryProve(ctx, req.Goal, req.Facts))
}

func (s *Server) handleWiden(w http.ResponseWriter, r *http.Request) {
	var req solver.WidenRequest
	if !decode(w, r, &req) {
		return
	}
	if req.From == "" || req.To == "" {
		writeError(w, http.StatusBadRequest, "from and to are required")
		return
	}
	writeJSON(w, http.StatusOK, s.prover.Widen(r.Context(), req.From, req.To))
}

func (s *Server) handleBrand(w http.ResponseWriter, r *http.Request) {
	var req solver.BrandRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Variable == "" || req.Brand == "" {
		writeError(w, http.StatusBadRequest, "variable and brand are required")
		return
	}
	writeJSON(w, http.StatusOK, s.prover.ProveBrand(r.Context(), req.Variable, req.Brand, req.Facts))
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, solver.ErrorResponse{Error: msg})
}
