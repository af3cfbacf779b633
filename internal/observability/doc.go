// Package observability builds the zap logger and the Prometheus collectors
// the request client reports into.
package observability
