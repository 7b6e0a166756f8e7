// Package outcomes stores forecast snapshots and resolves them against
// realized price action (forward truth).
//
// Every snapshot is tagged with the Source cohort it belongs to (LIVE,
// V2020, V2014, BOOTSTRAP). Cohorts are strictly isolated: backfilled
// history can feed learning and drift analysis, but only resolved LIVE
// samples count toward the governance apply gate.
//
// The SQLite backend uses the pure-Go modernc.org/sqlite driver; the
// memory backend serves tests.
package outcomes
