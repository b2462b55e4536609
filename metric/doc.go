// Package metric provides Prometheus-based metrics collection and an HTTP
// endpoint for blockstream observability.
//
// The package offers a centralized metrics registry managing both core
// platform metrics (block lifecycle state, work cycle accounting, stream
// throughput, logged errors) and block-specific metrics registered by
// individual blocks. A small HTTP server exposes the registry in Prometheus
// format at /metrics plus a /health liveness endpoint.
//
// Core metrics use the "blockstream" namespace:
//   - blockstream_block_state{block="..."}
//   - blockstream_scheduler_cycles_total{block="..."}
//   - blockstream_scheduler_yields_total{block="..."}
//   - blockstream_stream_elements_total{block="...",direction="in|out"}
//   - blockstream_block_errors_total{block="...",kind="..."}
//
// Blocks register their own collectors through the MetricsRegistrar
// interface; duplicate (block, metric) pairs are rejected. All registry
// operations are safe for concurrent use.
package metric
