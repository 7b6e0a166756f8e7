// Package learning aggregates resolved forecast outcomes into a learning
// vector: per-tier and per-regime accuracy, divergence impact,
// calibration error, and an eligibility verdict.
//
// The vector is the sole statistical input to the proposal engine. Its
// eligibility signals gate proposal quality; the governance lock gates
// application separately, on live-sample count and drift.
package learning
