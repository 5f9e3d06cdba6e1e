// Package server exposes the operational HTTP endpoints of autoreplier on a
// dedicated port: Prometheus metrics and the liveness and readiness probes.
//
// Readiness follows the reply engine. The process becomes ready after its
// first successful cycle and stops being ready when no cycle has succeeded
// within the configured window.
package server
