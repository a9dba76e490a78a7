// Package observability provides structured logging and distributed
// tracing for the teamreel services.
package observability
