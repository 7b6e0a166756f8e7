// Fractal is a policy governance and proposal lifecycle engine for
// forecast scoring policies.
//
// It watches resolved forecast outcomes, derives weight-adjustment
// proposals from learning vectors, and gates every policy change behind
// a governance lock, shadow-replay simulation, and an append-only
// application ledger with rollback.
//
// Usage:
//
//	# Start the governance server with default configuration
//	fractal run
//
//	# Start with a custom configuration file
//	fractal run --config /etc/fractal/config.yaml
//
//	# Validate a configuration file without starting
//	fractal validate --config config.yaml
//
//	# Inspect the active policy for a symbol
//	fractal policy show --symbol BTC
//
//	# Show policy version history
//	fractal policy history --symbol BTC --limit 10
//
//	# Show version information
//	fractal version
package main

func main() {
	Execute()
}
