// Janus is an authenticating reverse proxy for API traffic.
//
// It validates bearer credentials against a configured set of per-identity
// keys, forwards authorized requests to a single upstream server, and keeps
// a durable usage log queryable over HTTP and from the command line.
//
// Usage:
//
//	# Start the proxy with default configuration
//	janus run
//
//	# Start with a custom configuration file
//	janus run --config /path/to/config.yaml
//
//	# Show version information
//	janus version
//
//	# Query the usage database
//	janus usage query --identity alice
//
//	# Per-identity usage report
//	janus usage report
//
// For complete documentation, see: https://github.com/mercator-hq/janus
package main

func main() {
	Execute()
}
