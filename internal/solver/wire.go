package solver

import (
	"github.com/orizon-lang/refinement/internal/facts"
)

// ProveRequest is the body of POST /v1/prove.
type ProveRequest struct {
	Goal      string       `json:"goal"`
	Facts     []facts.Fact `json:"facts"`
	TimeoutMS int64        `json:"timeout_ms,omitempty"`
}

// WidenRequest is the body of POST /v1/widen.
type WidenRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// BrandRequest is the body of POST /v1/brand.
type BrandRequest struct {
	Variable string       `json:"variable"`
	Brand    string       `json:"brand"`
	Facts    []facts.Fact `json:"facts"`
}

// ErrorResponse is returned with any non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// AttemptHeader carries the proof attempt id on server responses.
const AttemptHeader = "X-Proof-Attempt"
