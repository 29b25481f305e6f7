// Package clientevents turns one client's raw recording of a stage into a
// dense per-tick timeline of reconstructed actor state.
//
// Construction never fails. Problems found in a recording are attached to
// the result as anomalies instead:
//
//   - MULTIPLE_PRIMARY_PLAYERS: more than one player claimed to be the
//     recording player, so the client is treated as a spectator.
//   - MISSING_STAGE_METADATA: the stream ended without a terminal stage
//     update, so tick counts were inferred from the events.
//   - CONSISTENCY_ISSUES: some player moved further than they could have
//     run, which usually means the client dropped ticks.
//
// A client is accurate only when it claims to be and its recorded tick count
// equals a precise tick count reported by the server.
package clientevents
