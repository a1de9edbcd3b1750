package solver

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	http3 "github.com/quic-go/quic-go/http3"
	"golang.org/x/sync/singleflight"

	perrors "github.com/orizon-lang/refinement/internal/errors"
	"github.com/orizon-lang/refinement/internal/facts"
	"github.com/orizon-lang/refinement/internal/proof"
)

// Remote delegates proofs to another prover over HTTP/3.
type Remote struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger

	init  singleflight.Group
	ready atomic.Bool
}

// NewRemote creates a plugin talking to the prover server at endpoint,
// e.g. "https://prover.internal:8443". A nil tlsCfg uses TLS 1.3 with
// system roots.
func NewRemote(endpoint string, tlsCfg *tls.Config, logger *slog.Logger) *Remote {
	if tlsCfg == nil {
		tlsCfg = &tls.Config{MinVersion: tls.VersionTLS13}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Remote{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Transport: &http3.Transport{TLSClientConfig: tlsCfg}},
		logger:   logger,
	}
}

// InsecureTLS skips certificate verification. Local testing only.
func InsecureTLS() *tls.Config {
	return &tls.Config{InsecureSkipVerify: true, MinVersion: tls.VersionTLS13}
}

func (r *Remote) Name() string { return "remote:" + r.endpoint }

func (r *Remote) Ready() bool { return r.ready.Load() }

// Init checks the server's health endpoint.
func (r *Remote) Init(ctx context.Context) error {
	if r.Ready() {
		return nil
	}

	_, err, _ := r.init.Do("init", func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint+"/healthz", nil)
		if err != nil {
			return nil, perrors.SolverUnavailable(r.Name(), err)
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return nil, perrors.SolverUnavailable(r.Name(), err)
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		if resp.StatusCode != http.StatusOK {
			return nil, perrors.SolverUnavailable(r.Name(), fmt.Errorf("health check returned %s", resp.Status))
		}
		r.ready.Store(true)
		return nil, nil
	})
	return err
}

// Prove posts the query to /v1/prove and returns the server's result.
func (r *Remote) Prove(ctx context.Context, goal string, fs []facts.Fact, timeout time.Duration) (proof.Result, error) {
	if err := r.Init(ctx); err != nil {
		return proof.Result{}, err
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	body, err := json.Marshal(ProveRequest{Goal: goal, Facts: fs, TimeoutMS: timeout.Milliseconds()})
	if err != nil {
		return proof.Result{}, perrors.SolverFailure(r.Name(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/v1/prove", bytes.NewReader(body))
	if err != nil {
		return proof.Result{}, perrors.SolverFailure(r.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return proof.Result{}, perrors.SolverTimeout(r.Name(), timeout)
		}
		return proof.Result{}, perrors.SolverFailure(r.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return proof.Result{}, perrors.SolverFailure(r.Name(), fmt.Errorf("%s: %s", resp.Status, e.Error))
	}

	var res proof.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return proof.Result{}, perrors.SolverFailure(r.Name(), err)
	}

	r.logger.Debug("remote proof finished",
		slog.String("goal", goal),
		slog.String("attempt", resp.Header.Get(AttemptHeader)),
		slog.Bool("proven", res.Proven))

	if !res.Proven {
		return res, nil
	}
	// The remote certificate becomes a subgoal of a local external step.
	return proof.Proven(proof.MethodExternal, proof.StrategyExternal, proof.Step{
		Rule:          proof.RuleExternal,
		Description:   fmt.Sprintf("%s proved the goal", r.Name()),
		Justification: fmt.Sprintf("remote %s", res.String()),
		UsedFacts:     res.UsedFacts(),
		Subgoals:      []proof.Result{res},
	}), nil
}

// Close releases the underlying QUIC connections.
func (r *Remote) Close() error {
	if tr, ok := r.client.Transport.(*http3.Transport); ok {
		return tr.Close()
	}
	return nil
}
