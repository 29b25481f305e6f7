package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/tickmerge/internal/event"
	"github.com/roach88/tickmerge/internal/merge"
)

// AssertionError is returned when an assertion fails. It carries a summary
// of the merge result to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Clients  []string // One line per merged client
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Clients) > 0 {
		fmt.Fprintf(&buf, "\nClients:\n")
		for _, c := range e.Clients {
			fmt.Fprintf(&buf, "  %s\n", c)
		}
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion against the result and returns one
// message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result.Merge, a); err != nil {
			if ae, ok := err.(*AssertionError); ok {
				ae.Clients = clientSummary(result.Merge)
			}
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(res *merge.Result, a Assertion) error {
	switch a.Type {
	case AssertClient:
		return assertClient(res, a)
	case AssertCounts:
		return assertCounts(res, *a.Counts)
	case AssertAlert:
		return assertAlert(res, merge.AlertType(a.Alert))
	case AssertTickContains:
		return assertTickContains(res.Events, *a.Tick, a.Kinds)
	case AssertTickMissing:
		return assertTickMissing(res.Events, *a.Tick)
	case AssertPlayerAt:
		return assertPlayerAt(res.Events, *a.Tick, a.Player, a.X, a.Y)
	case AssertEventCount:
		return assertEventCount(res.Events, a.Kinds, *a.Count)
	case AssertMissingTicks:
		return compareInt(AssertMissingTicks, "missing ticks", *a.Count, res.Events.MissingTickCount())
	case AssertLastTick:
		return compareInt(AssertLastTick, "last tick", *a.Count, res.Events.LastTick())
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

// assertClient checks a client's status and classification. Empty fields in
// the assertion are not checked.
func assertClient(res *merge.Result, a Assertion) error {
	c, ok := res.Client(a.Client)
	if !ok {
		return &AssertionError{
			Type:     AssertClient,
			Expected: fmt.Sprintf("client %d in result", a.Client),
			Actual:   "not found",
		}
	}
	if a.Status != "" && string(c.Status) != a.Status {
		return &AssertionError{
			Type:     AssertClient,
			Expected: fmt.Sprintf("client %d status %s", a.Client, a.Status),
			Actual:   string(c.Status),
		}
	}
	if a.Classification != "" && string(c.Classification) != a.Classification {
		return &AssertionError{
			Type:     AssertClient,
			Expected: fmt.Sprintf("client %d classification %s", a.Client, a.Classification),
			Actual:   string(c.Classification),
		}
	}
	return nil
}

func assertCounts(res *merge.Result, want Counts) error {
	got := Counts{Merged: res.MergedCount, Unmerged: res.UnmergedCount, Skipped: res.SkippedCount}
	if got != want {
		return &AssertionError{
			Type:     AssertCounts,
			Expected: fmt.Sprintf("%+v", want),
			Actual:   fmt.Sprintf("%+v", got),
		}
	}
	return nil
}

func assertAlert(res *merge.Result, want merge.AlertType) error {
	types := make([]string, len(res.Alerts))
	for i, a := range res.Alerts {
		if a.Type == want {
			return nil
		}
		types[i] = string(a.Type)
	}
	return &AssertionError{
		Type:     AssertAlert,
		Expected: fmt.Sprintf("alert %s", want),
		Actual:   fmt.Sprintf("alerts %v", types),
	}
}

// assertTickContains checks that the tick has at least one event of every
// listed kind.
func assertTickContains(m *merge.MergedEvents, tick int, kinds []string) error {
	ts := m.TickState(tick)
	if ts == nil {
		return &AssertionError{
			Type:     AssertTickContains,
			Expected: fmt.Sprintf("tick %d with %v", tick, kinds),
			Actual:   "tick missing from timeline",
		}
	}
	for _, name := range kinds {
		k, err := event.ParseKind(name)
		if err != nil {
			return err
		}
		if !ts.HasKind(k) {
			return &AssertionError{
				Type:     AssertTickContains,
				Expected: fmt.Sprintf("tick %d with %s", tick, name),
				Actual:   fmt.Sprintf("kinds %v", tickKinds(ts.Events())),
			}
		}
	}
	return nil
}

func assertTickMissing(m *merge.MergedEvents, tick int) error {
	if tick >= m.Len() {
		return &AssertionError{
			Type:     AssertTickMissing,
			Expected: fmt.Sprintf("missing tick %d", tick),
			Actual:   fmt.Sprintf("timeline ends at tick %d", m.LastTick()),
		}
	}
	if ts := m.TickState(tick); ts != nil {
		return &AssertionError{
			Type:     AssertTickMissing,
			Expected: fmt.Sprintf("missing tick %d", tick),
			Actual:   fmt.Sprintf("tick has %d events", len(ts.Events())),
		}
	}
	return nil
}

func assertPlayerAt(m *merge.MergedEvents, tick int, name string, x, y int) error {
	ts := m.TickState(tick)
	if ts == nil {
		return &AssertionError{
			Type:     AssertPlayerAt,
			Expected: fmt.Sprintf("%s at (%d, %d) on tick %d", name, x, y, tick),
			Actual:   "tick missing from timeline",
		}
	}
	p := ts.Player(name)
	if p == nil {
		return &AssertionError{
			Type:     AssertPlayerAt,
			Expected: fmt.Sprintf("%s at (%d, %d) on tick %d", name, x, y, tick),
			Actual:   fmt.Sprintf("no state for %s, players %v", name, ts.PlayerNames()),
		}
	}
	if p.X != x || p.Y != y {
		return &AssertionError{
			Type:     AssertPlayerAt,
			Expected: fmt.Sprintf("%s at (%d, %d) on tick %d", name, x, y, tick),
			Actual:   fmt.Sprintf("(%d, %d)", p.X, p.Y),
		}
	}
	return nil
}

// assertEventCount counts timeline events, restricted to kinds when given.
func assertEventCount(m *merge.MergedEvents, kinds []string, want int) error {
	var filter []event.Kind
	for _, name := range kinds {
		k, err := event.ParseKind(name)
		if err != nil {
			return err
		}
		filter = append(filter, k)
	}

	got := 0
	for e := range m.Events() {
		if len(filter) == 0 || slices.Contains(filter, e.Kind()) {
			got++
		}
	}
	what := "events"
	if len(kinds) > 0 {
		what = fmt.Sprintf("%v events", kinds)
	}
	return compareInt(AssertEventCount, what, want, got)
}

func compareInt(typ, what string, want, got int) error {
	if want != got {
		return &AssertionError{
			Type:     typ,
			Expected: fmt.Sprintf("%d %s", want, what),
			Actual:   fmt.Sprintf("%d %s", got, what),
		}
	}
	return nil
}

func tickKinds(events []event.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Kind().String()
	}
	return out
}

func clientSummary(res *merge.Result) []string {
	out := make([]string, len(res.Clients))
	for i, c := range res.Clients {
		out[i] = fmt.Sprintf("[%d] client %d %s %s", c.SequenceNumber, c.ID, c.Classification, c.Status)
	}
	return out
}
