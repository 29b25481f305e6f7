// Package merge reconciles several clients' recordings of one stage into a
// single authoritative timeline.
//
// A merge runs in four steps:
//
//  1. Accuracy check. Clients claiming accurate tick numbers must agree on
//     the stage length. If the claims split evenly between lengths the merge
//     raises MULTIPLE_ACCURATE_TICK_MODES and trusts none of them; otherwise
//     the outliers are demoted.
//  2. Classification. The classify package picks a base client and sorts
//     the rest into matching and mismatched clients.
//  3. Timeline construction. The base client's ticks seed the timeline,
//     right-aligned to the server's stage length when the base cannot be
//     trusted from the start. Every other client is then folded in: two
//     accurate recordings merge tick for tick, anything else is only
//     aligned and scored so the result records how well it fits.
//  4. Postprocessing. Stage-specific corrections for known client bugs.
//
// Merging is deterministic and synchronous. Inputs are never modified;
// demotions act on copies and the timeline owns cloned tick states.
package merge
