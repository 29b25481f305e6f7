package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"iter"
	"math"
	"slices"

	"github.com/roach88/tickmerge/internal/batch"
	"github.com/roach88/tickmerge/internal/clientevents"
	"github.com/roach88/tickmerge/internal/event"
	"github.com/roach88/tickmerge/internal/merge"
	"github.com/roach88/tickmerge/internal/stage"
)

// Domain prefixes separate the digest spaces. The version suffix allows the
// encoding to change without colliding with stored digests.
const (
	DomainBatch    = "tickmerge/batch/v1"
	DomainRun      = "tickmerge/run/v1"
	DomainTimeline = "tickmerge/timeline/v1"
	DomainResult   = "tickmerge/result/v1"
	DomainSettings = "tickmerge/settings/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data) as lowercase hex.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest canonicalizes v and hashes it within domain.
func Digest(domain string, v Value) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// BatchDigest identifies a raw batch document by its content, ignoring
// whitespace and key order.
func BatchDigest(data []byte) (string, error) {
	v, err := Parse(data)
	if err != nil {
		return "", fmt.Errorf("batch digest: %w", err)
	}
	return Digest(DomainBatch, v)
}

// RunDigest identifies the inputs of a merge: the stage, the challenge, the
// batches that took part and the settings they were merged with. Batch
// order does not matter. Settings may hold floats, so they enter the digest
// as the hash of their encoding/json form, which is stable for structs.
func RunDigest(challengeID string, st stage.Stage, batchDigests []string, settings any) (string, error) {
	digests := slices.Clone(batchDigests)
	slices.Sort(digests)
	batches := make(Array, len(digests))
	for i, d := range digests {
		batches[i] = String(d)
	}

	data, err := json.Marshal(settings)
	if err != nil {
		return "", fmt.Errorf("run digest: settings: %w", err)
	}

	return Digest(DomainRun, Object{
		"challenge_id": String(challengeID),
		"stage":        String(st.String()),
		"batches":      batches,
		"settings":     String(hashWithDomain(DomainSettings, data)),
	})
}

// EventsValue converts events to their wire form.
func EventsValue(st stage.Stage, events iter.Seq[event.Event]) (Array, error) {
	b := batch.FromEvents(0, clientevents.ChallengeInfo{}, st, events)
	v, err := FromJSON(b.Events)
	if err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}
	return v.(Array), nil
}

// TimelineDigest identifies a merged timeline by its events.
func TimelineDigest(st stage.Stage, events iter.Seq[event.Event]) (string, error) {
	v, err := EventsValue(st, events)
	if err != nil {
		return "", fmt.Errorf("timeline digest: %w", err)
	}
	return Digest(DomainTimeline, v)
}

// ResultValue converts the parts of a merge result that define its outcome:
// the timeline digest, each client's role and status, and the alerts.
// Fractional alignment figures are scaled to integers: coverage in basis
// points and the mean score in thousandths.
func ResultValue(st stage.Stage, res *merge.Result) (Object, error) {
	timeline, err := TimelineDigest(st, res.Events.Events())
	if err != nil {
		return nil, err
	}

	clients := make(Array, len(res.Clients))
	for i, c := range res.Clients {
		obj := Object{
			"id":               Int(c.ID),
			"status":           String(c.Status),
			"classification":   String(c.Classification),
			"sequence_number":  Int(c.SequenceNumber),
			"recorded_ticks":   Int(c.RecordedTicks),
			"derived_accurate": Bool(c.DerivedAccurate),
		}
		if a := c.Alignment; a != nil {
			obj["alignment"] = Object{
				"mapped_ticks": Int(a.MappedTicks),
				"coverage_bp":  Int(scaled(a.Coverage, 10000)),
				"gap_count":    Int(a.GapCount),
				"mean_score_m": Int(scaled(a.MeanScore, 1000)),
			}
		}
		clients[i] = obj
	}

	alerts := make(Array, len(res.Alerts))
	for i, a := range res.Alerts {
		obj := Object{"type": String(a.Type)}
		if len(a.Details) > 0 {
			details, err := FromJSON(a.Details)
			if err != nil {
				return nil, fmt.Errorf("alert %s: %w", a.Type, err)
			}
			obj["details"] = details
		}
		alerts[i] = obj
	}

	return Object{
		"timeline": String(timeline),
		"clients":  clients,
		"alerts":   alerts,
	}, nil
}

// ResultDigest identifies the outcome of a merge. Replaying the same inputs
// must reproduce it.
func ResultDigest(st stage.Stage, res *merge.Result) (string, error) {
	v, err := ResultValue(st, res)
	if err != nil {
		return "", fmt.Errorf("result digest: %w", err)
	}
	return Digest(DomainResult, v)
}

func scaled(f, factor float64) int64 {
	return int64(math.Round(f * factor))
}
