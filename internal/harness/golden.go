package harness

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tickmerge/internal/ir"
)

// Snapshot renders the parts of a scenario result that golden files pin: the
// client outcomes, the alerts and the full merged timeline in wire form.
// Alignment figures are left out.
//
// The output is canonical JSON, indented for review.
func Snapshot(name string, result *Result) ([]byte, error) {
	res := result.Merge

	clients := make(ir.Array, len(res.Clients))
	for i, c := range res.Clients {
		clients[i] = ir.Object{
			"id":              ir.Int(c.ID),
			"status":          ir.String(c.Status),
			"classification":  ir.String(c.Classification),
			"sequence_number": ir.Int(c.SequenceNumber),
		}
	}
	alerts := make(ir.Array, len(res.Alerts))
	for i, a := range res.Alerts {
		alerts[i] = ir.String(a.Type)
	}
	timeline, err := ir.EventsValue(result.Stage, res.Events.Events())
	if err != nil {
		return nil, err
	}

	canonical, err := ir.MarshalCanonical(ir.Object{
		"scenario": ir.String(name),
		"clients":  clients,
		"counts": ir.Object{
			"merged":   ir.Int(res.MergedCount),
			"unmerged": ir.Int(res.UnmergedCount),
			"skipped":  ir.Int(res.SkippedCount),
		},
		"alerts":        alerts,
		"missing_ticks": ir.Int(res.Events.MissingTickCount()),
		"timeline":      timeline,
	})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, canonical, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against the golden file for
// name without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snapshot)
	return nil
}
