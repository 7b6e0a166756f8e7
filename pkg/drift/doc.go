// Package drift compares model behavior across dataset cohorts and
// grades the divergence. The governance lock consumes the overall
// severity: HIGH and CRITICAL drift block policy applies.
package drift
