package merge

import (
	"github.com/roach88/tickmerge/internal/classify"
	"github.com/roach88/tickmerge/internal/clientevents"
	"github.com/roach88/tickmerge/internal/event"
)

// Status is the outcome of merging one client.
type Status string

const (
	// StatusMerged means the client's events are part of the timeline.
	StatusMerged Status = "MERGED"

	// StatusUnmerged means the client could not be reconciled with the
	// timeline.
	StatusUnmerged Status = "UNMERGED"

	// StatusSkipped means the client was not considered at all.
	StatusSkipped Status = "SKIPPED"
)

// Classification is the role a client played in the merge.
type Classification string

const (
	ClassificationReference  Classification = "REFERENCE"
	ClassificationMatching   Classification = "MATCHING"
	ClassificationMismatched Classification = "MISMATCHED"
)

// AlertType identifies a merge-wide problem.
type AlertType string

const AlertMultipleAccurateTickModes AlertType = "MULTIPLE_ACCURATE_TICK_MODES"

// Alert is a merge-wide problem that needs attention.
type Alert struct {
	Type    AlertType      `json:"type"`
	Details map[string]any `json:"details,omitempty"`
}

// AlignmentSummary describes how well an unmerged client's ticks aligned
// against the timeline.
type AlignmentSummary struct {
	MappedTicks int     `json:"mappedTicks"`
	Coverage    float64 `json:"coverage"`
	GapCount    int     `json:"gapCount"`
	MeanScore   float64 `json:"meanScore"`
}

// Client is the audit record of one client's part in a merge.
type Client struct {
	ID                int                             `json:"id"`
	Status            Status                          `json:"status"`
	Classification    Classification                  `json:"classification"`
	SequenceNumber    int                             `json:"sequenceNumber"`
	RecordedTicks     int                             `json:"recordedTicks"`
	ServerTicks       *event.ServerTicks              `json:"serverTicks"`
	ReportedAccurate  bool                            `json:"reportedAccurate"`
	DerivedAccurate   bool                            `json:"derivedAccurate"`
	Anomalies         []clientevents.Anomaly          `json:"anomalies"`
	ConsistencyIssues []clientevents.ConsistencyIssue `json:"consistencyIssues"`
	Spectator         bool                            `json:"spectator"`

	// Alignment is set for clients that were aligned rather than merged.
	Alignment *AlignmentSummary `json:"alignment,omitempty"`
}

func newClient(c *clientevents.ClientEvents, cls Classification, status Status, seq int) Client {
	return Client{
		ID:                c.ID(),
		Status:            status,
		Classification:    cls,
		SequenceNumber:    seq,
		RecordedTicks:     c.FinalTick(),
		ServerTicks:       c.ServerTicks(),
		ReportedAccurate:  c.ReportedAccurate(),
		DerivedAccurate:   c.Accurate(),
		Anomalies:         c.Anomalies(),
		ConsistencyIssues: c.ConsistencyIssues(),
		Spectator:         c.IsSpectator(),
	}
}

// Result is the outcome of a merge.
type Result struct {
	Events             *MergedEvents               `json:"-"`
	Clients            []Client                    `json:"clients"`
	MergedCount        int                         `json:"mergedCount"`
	UnmergedCount      int                         `json:"unmergedCount"`
	SkippedCount       int                         `json:"skippedCount"`
	Alerts             []Alert                     `json:"alerts"`
	ReferenceSelection classify.ReferenceSelection `json:"referenceSelection"`
}

// Client returns the audit record of the client with the given ID.
func (r *Result) Client(id int) (Client, bool) {
	for _, c := range r.Clients {
		if c.ID == id {
			return c, true
		}
	}
	return Client{}, false
}

func (r *Result) count() {
	r.MergedCount, r.UnmergedCount, r.SkippedCount = 0, 0, 0
	for _, c := range r.Clients {
		switch c.Status {
		case StatusMerged:
			r.MergedCount++
		case StatusUnmerged:
			r.UnmergedCount++
		case StatusSkipped:
			r.SkippedCount++
		}
	}
}
