// Package sweeper schedules background compaction of the update log.
//
// A sweep lists every document, filters by the policy's record threshold
// and optional CEL expression, and compacts the matches through the shared
// compactor. The policy can be swapped at runtime; the loop picks up the
// new interval and filter on its next cycle.
package sweeper
