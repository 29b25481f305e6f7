package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tickmerge/internal/batch"
	"github.com/roach88/tickmerge/internal/clientevents"
	"github.com/roach88/tickmerge/internal/event"
	"github.com/roach88/tickmerge/internal/merge"
	"github.com/roach88/tickmerge/internal/stage"
)

// Scenario defines a merge conformance scenario: a set of client recordings
// of one stage and the assertions the merged result must satisfy.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Stage is the wire name of the recorded stage, e.g. TOB_MAIDEN.
	Stage string `yaml:"stage"`

	// Challenge is shared by every inline client.
	Challenge clientevents.ChallengeInfo `yaml:"challenge"`

	// Clients are the recordings to merge.
	Clients []ClientSpec `yaml:"clients"`

	// Assertions validate the merge result.
	Assertions []Assertion `yaml:"assertions"`
}

// ClientSpec is one client recording, given either inline or as a path to a
// batch document. File paths are relative to the scenario file.
type ClientSpec struct {
	File   string        `yaml:"file,omitempty"`
	ID     int           `yaml:"id,omitempty"`
	Events []batch.Event `yaml:"events,omitempty"`
}

// Counts are the expected per-status client counts.
type Counts struct {
	Merged   int `yaml:"merged"`
	Unmerged int `yaml:"unmerged"`
	Skipped  int `yaml:"skipped"`
}

// Assertion validates one aspect of the merge result.
type Assertion struct {
	// Type selects the check. See the Assert constants.
	Type string `yaml:"type"`

	// Client is the client id (client).
	Client int `yaml:"client,omitempty"`

	// Status and Classification are the expected client outcome (client).
	Status         string `yaml:"status,omitempty"`
	Classification string `yaml:"classification,omitempty"`

	// Tick is the timeline tick (tick_contains, tick_missing, player_at).
	Tick *int `yaml:"tick,omitempty"`

	// Kinds are event wire types (tick_contains, event_count).
	Kinds []string `yaml:"kinds,omitempty"`

	// Player, X and Y are the expected player position (player_at).
	Player string `yaml:"player,omitempty"`
	X      int    `yaml:"x,omitempty"`
	Y      int    `yaml:"y,omitempty"`

	// Alert is the expected alert type (alert).
	Alert string `yaml:"alert,omitempty"`

	// Counts are the expected client counts (counts).
	Counts *Counts `yaml:"counts,omitempty"`

	// Count is an expected total (event_count, missing_ticks, last_tick).
	Count *int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertClient       = "client"
	AssertCounts       = "counts"
	AssertAlert        = "alert"
	AssertTickContains = "tick_contains"
	AssertTickMissing  = "tick_missing"
	AssertPlayerAt     = "player_at"
	AssertEventCount   = "event_count"
	AssertMissingTicks = "missing_ticks"
	AssertLastTick     = "last_tick"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected, and client file paths are resolved against the scenario's
// directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	for i, c := range scenario.Clients {
		if c.File != "" && !filepath.IsAbs(c.File) {
			scenario.Clients[i].File = filepath.Join(base, c.File)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if _, err := stage.Parse(s.Stage); err != nil {
		return fmt.Errorf("stage: %w", err)
	}
	if len(s.Clients) == 0 {
		return fmt.Errorf("clients list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	ids := make(map[int]bool)
	for i, c := range s.Clients {
		if c.File != "" {
			if c.ID != 0 || len(c.Events) > 0 {
				return fmt.Errorf("clients[%d]: file clients take no inline id or events", i)
			}
			if _, err := os.Stat(c.File); err != nil {
				return fmt.Errorf("clients[%d]: %w", i, err)
			}
			continue
		}
		if s.Challenge.ID == "" {
			return fmt.Errorf("clients[%d]: inline clients need challenge.id", i)
		}
		if ids[c.ID] {
			return fmt.Errorf("clients[%d]: duplicate client id %d", i, c.ID)
		}
		ids[c.ID] = true
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	needTick := func() error {
		if a.Tick == nil {
			return fmt.Errorf("assertions[%d]: tick is required for %s", index, a.Type)
		}
		return nil
	}
	needCount := func() error {
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for %s", index, a.Type)
		}
		return nil
	}

	switch a.Type {
	case AssertClient:
		if a.Status == "" && a.Classification == "" {
			return fmt.Errorf("assertions[%d]: status or classification is required for client", index)
		}
		if a.Status != "" && !validStatus(merge.Status(a.Status)) {
			return fmt.Errorf("assertions[%d]: unknown status %q", index, a.Status)
		}
		if a.Classification != "" && !validClassification(merge.Classification(a.Classification)) {
			return fmt.Errorf("assertions[%d]: unknown classification %q", index, a.Classification)
		}
	case AssertCounts:
		if a.Counts == nil {
			return fmt.Errorf("assertions[%d]: counts is required for counts", index)
		}
	case AssertAlert:
		if a.Alert == "" {
			return fmt.Errorf("assertions[%d]: alert is required for alert", index)
		}
	case AssertTickContains:
		if err := needTick(); err != nil {
			return err
		}
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for tick_contains", index)
		}
	case AssertTickMissing:
		return needTick()
	case AssertPlayerAt:
		if err := needTick(); err != nil {
			return err
		}
		if a.Player == "" {
			return fmt.Errorf("assertions[%d]: player is required for player_at", index)
		}
	case AssertEventCount, AssertMissingTicks, AssertLastTick:
		if err := needCount(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	for _, k := range a.Kinds {
		if _, err := event.ParseKind(k); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	}
	return nil
}

func validStatus(s merge.Status) bool {
	switch s {
	case merge.StatusMerged, merge.StatusUnmerged, merge.StatusSkipped:
		return true
	}
	return false
}

func validClassification(c merge.Classification) bool {
	switch c {
	case merge.ClassificationReference, merge.ClassificationMatching, merge.ClassificationMismatched:
		return true
	}
	return false
}
