// Package bootstrap ingests historical forecast records as resolved
// outcome snapshots. Every backfilled snapshot is tagged with a batch ID
// and Source BOOTSTRAP, so backfilled data can be removed as a unit and
// can never satisfy the live-only governance gate.
package bootstrap
