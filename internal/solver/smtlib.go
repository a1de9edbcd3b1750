package solver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	perrors "github.com/orizon-lang/refinement/internal/errors"
	"github.com/orizon-lang/refinement/internal/facts"
	"github.com/orizon-lang/refinement/internal/proof"
)

// DefaultCommand runs Z3 reading an SMT-LIB2 script from stdin.
var DefaultCommand = []string{"z3", "-in", "-smt2"}

// SMTLib runs an SMT-LIB2 solver binary as a subprocess per query.
type SMTLib struct {
	command []string
	logger  *slog.Logger

	init  singleflight.Group
	ready atomic.Bool
	mu    sync.RWMutex
	path  string
}

// NewSMTLib creates a plugin running command; an empty command uses
// DefaultCommand.
func NewSMTLib(command []string, logger *slog.Logger) *SMTLib {
	if len(command) == 0 {
		command = DefaultCommand
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTLib{command: append([]string(nil), command...), logger: logger}
}

func (s *SMTLib) Name() string { return "smtlib:" + s.command[0] }

// Ready reports whether the solver binary has been located.
func (s *SMTLib) Ready() bool { return s.ready.Load() }

// Init locates the solver binary. Concurrent calls share one lookup and
// calls after a success return immediately.
func (s *SMTLib) Init(ctx context.Context) error {
	if s.Ready() {
		return nil
	}

	_, err, _ := s.init.Do("init", func() (interface{}, error) {
		if s.Ready() {
			return nil, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path, err := exec.LookPath(s.command[0])
		if err != nil {
			return nil, perrors.SolverUnavailable(s.Name(), err)
		}

		s.mu.Lock()
		s.path = path
		s.mu.Unlock()
		s.ready.Store(true)
		s.logger.Debug("SMT solver located", slog.String("path", path))
		return nil, nil
	})
	return err
}

// Prove asks the solver whether the facts and the negation of goal are
// jointly satisfiable; "unsat" proves the goal.
func (s *SMTLib) Prove(ctx context.Context, goal string, fs []facts.Fact, timeout time.Duration) (proof.Result, error) {
	if err := s.Init(ctx); err != nil {
		return proof.Result{}, err
	}

	script, err := BuildScript(goal, fs)
	if err != nil {
		return proof.Unproven("%v", err), nil
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	s.mu.RLock()
	path := s.path
	s.mu.RUnlock()

	cmd := exec.CommandContext(ctx, path, s.command[1:]...)
	cmd.Stdin = strings.NewReader(script.Text)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second
	killProcessGroup(cmd)

	start := time.Now()
	runErr := cmd.Run()
	s.logger.Debug("SMT query finished",
		slog.String("goal", goal),
		slog.Duration("elapsed", time.Since(start)),
		slog.Int("facts", len(script.Used)))

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return proof.Result{}, perrors.SolverTimeout(s.Name(), timeout)
	}
	if ctx.Err() != nil {
		return proof.Result{}, ctx.Err()
	}

	verdict := firstLine(stdout.String())
	switch verdict {
	case "unsat":
		return proof.Proven(proof.MethodExternal, proof.StrategyExternal, proof.Step{
			Rule:          proof.RuleExternal,
			Description:   fmt.Sprintf("%s reported the negated goal unsatisfiable", s.Name()),
			Justification: fmt.Sprintf("facts && !(%s) is unsat over the reals", facts.Normalize(goal)),
			UsedFacts:     script.Used,
		}), nil
	case "sat":
		return proof.Unproven("%s found a counterexample", s.Name()), nil
	case "unknown":
		return proof.Unproven("%s returned unknown", s.Name()), nil
	}

	if runErr != nil {
		return proof.Result{}, perrors.SolverFailure(s.Name(), fmt.Errorf("%w: %s", runErr, strings.TrimSpace(stderr.String())))
	}
	return proof.Result{}, perrors.SolverFailure(s.Name(), fmt.Errorf("unexpected output %q", verdict))
}

func firstLine(out string) string {
	out = strings.TrimSpace(out)
	if i := strings.IndexByte(out, '\n'); i >= 0 {
		out = out[:i]
	}
	return strings.TrimSpace(out)
}
