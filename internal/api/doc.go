// Package api hosts the status HTTP server for a running crawl. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/status for per-profile cursors and ledger counts.
//   - GET /v1/ledger for the ledger entries collected so far; ?failed=true
//     returns only failures.
package api
