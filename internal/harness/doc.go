// Package harness runs merge conformance scenarios.
//
// A scenario names a stage, a set of client recordings and assertions about
// the merged result. Recordings are given inline or as batch documents, and
// every one passes through the same schema validation and decoding as an
// uploaded batch.
//
// # Scenario Format
//
//	name: late_maiden_spawn
//	description: "What this scenario validates"
//	stage: TOB_MAIDEN
//	challenge:
//	  id: challenge-1
//	  party: [player1]
//	clients:
//	  - file: ../../batch/testdata/maiden_client1.json
//	  - id: 2
//	    events:
//	      - type: PLAYER_UPDATE
//	        tick: 0
//	        player: {name: player1, source: PRIMARY}
//	assertions:
//	  - type: client
//	    client: 2
//	    status: MERGED
//	  - type: tick_contains
//	    tick: 0
//	    kinds: [NPC_SPAWN]
//
// # Assertion Types
//
//   - client: a client's status and classification
//   - counts: merged, unmerged and skipped client counts
//   - alert: an alert of the given type was raised
//   - tick_contains: a timeline tick has events of every listed kind
//   - tick_missing: no client recorded a tick
//   - player_at: a player's position on a tick
//   - event_count: timeline events, optionally of the listed kinds
//   - missing_ticks: the number of ticks no client recorded
//   - last_tick: the final tick of the timeline
//
// # Golden Files
//
// RunWithGolden snapshots the client outcomes and the merged timeline as
// canonical JSON and compares them against testdata/golden. Merging is
// deterministic, so the snapshot of a scenario never changes unless the
// merge does.
package harness
