// Package httpserver serves the operational HTTP endpoints of a logkv node:
// GET /healthz (reader state and applied offset, 503 once the reader has
// stopped) and GET /metrics (Prometheus).
package httpserver
