// Package intel maintains a daily governance timeline: per-symbol
// rollups of proposal, application and outcome activity, collected on a
// cron schedule and queryable over a window. The timeline is
// observability data, not an input to any governance decision.
package intel
