package harness

import (
	"github.com/roach88/tickmerge/internal/merge"
	"github.com/roach88/tickmerge/internal/stage"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Errors contains one message per failed assertion.
	Errors []string `json:"errors,omitempty"`

	Stage stage.Stage   `json:"stage"`
	Merge *merge.Result `json:"merge"`

	// Digest is the merge's result digest. See ir.ResultDigest.
	Digest string `json:"digest"`
}

// NewResult creates a new passing result.
func NewResult(st stage.Stage, res *merge.Result) *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
		Stage:  st,
		Merge:  res,
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
