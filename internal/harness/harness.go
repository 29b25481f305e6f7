package harness

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/roach88/tickmerge/internal/batch"
	"github.com/roach88/tickmerge/internal/clientevents"
	"github.com/roach88/tickmerge/internal/ir"
	"github.com/roach88/tickmerge/internal/merge"
	"github.com/roach88/tickmerge/internal/observe"
	"github.com/roach88/tickmerge/internal/stage"
)

// Option configures a scenario run.
type Option func(*options)

type options struct {
	obs   observe.Observer
	merge []merge.Option
}

// WithObserver routes client decoding and merge logs to o.
func WithObserver(o observe.Observer) Option {
	return func(opts *options) { opts.obs = o }
}

// WithMergeOptions passes extra options to the merger, e.g. non-default
// similarity constants.
func WithMergeOptions(o ...merge.Option) Option {
	return func(opts *options) { opts.merge = append(opts.merge, o...) }
}

// Run executes a scenario: every client batch is validated and decoded, the
// clients are merged and the assertions are evaluated against the result.
//
// An error is returned when the scenario cannot be executed at all. Failed
// assertions are reported through Result.Errors instead.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := &options{obs: observe.Nop}
	for _, opt := range opts {
		opt(o)
	}

	st, err := stage.Parse(scenario.Stage)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	clients := make([]*clientevents.ClientEvents, 0, len(scenario.Clients))
	for i, spec := range scenario.Clients {
		b, err := loadBatch(scenario, spec)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: clients[%d]: %w", scenario.Name, i, err)
		}
		if b.Stage != scenario.Stage {
			return nil, fmt.Errorf("scenario %s: clients[%d]: stage %s does not match %s",
				scenario.Name, i, b.Stage, scenario.Stage)
		}
		c, err := b.Client(clientevents.WithObserver(o.obs))
		if err != nil {
			return nil, fmt.Errorf("scenario %s: clients[%d]: %w", scenario.Name, i, err)
		}
		clients = append(clients, c)
	}

	mergeOpts := append([]merge.Option{merge.WithObserver(o.obs)}, o.merge...)
	res := merge.New(st, scenario.Challenge, clients, mergeOpts...).Merge()
	if res == nil {
		return nil, fmt.Errorf("scenario %s: merge produced no result", scenario.Name)
	}

	result := NewResult(st, res)
	if result.Digest, err = ir.ResultDigest(st, res); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// loadBatch reads a file client, or builds an inline client's batch from the
// scenario's stage and challenge. Both pass through schema validation.
func loadBatch(scenario *Scenario, spec ClientSpec) (*batch.Batch, error) {
	if spec.File != "" {
		data, err := os.ReadFile(spec.File)
		if err != nil {
			return nil, err
		}
		return batch.Parse(data)
	}

	challenge := scenario.Challenge
	if challenge.Party == nil {
		challenge.Party = []string{}
	}
	events := spec.Events
	if events == nil {
		events = []batch.Event{}
	}
	data, err := json.Marshal(batch.Batch{
		ClientID:  spec.ID,
		Challenge: challenge,
		Stage:     scenario.Stage,
		Events:    events,
	})
	if err != nil {
		return nil, fmt.Errorf("encode inline client: %w", err)
	}
	return batch.Parse(data)
}
