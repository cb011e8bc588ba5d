// Package observability exports the transport's prometheus metrics. Every
// recorder registers the collectors on first use.
package observability
