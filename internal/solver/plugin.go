// Package solver connects the prover to external decision procedures.
//
// A Plugin is only consulted after the in-process strategies fail. Whatever
// a plugin does, the orchestrator treats errors and timeouts as "not
// proven", so a plugin can under-prove but never over-prove.
package solver

import (
	"context"
	"time"

	"github.com/orizon-lang/refinement/internal/facts"
	"github.com/orizon-lang/refinement/internal/proof"
)

//go:generate mockgen -source=plugin.go -destination=solvermock/plugin.go -package=solvermock

// Plugin is an external decision procedure.
type Plugin interface {
	// Name identifies the procedure in logs and certificates.
	Name() string
	// Init prepares the procedure. It is safe to call more than once.
	Init(ctx context.Context) error
	// Ready reports whether Init has completed successfully.
	Ready() bool
	// Prove attempts goal from fs, initializing first when needed. A zero
	// timeout means no deadline beyond ctx.
	Prove(ctx context.Context, goal string, fs []facts.Fact, timeout time.Duration) (proof.Result, error)
}
