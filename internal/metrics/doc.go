// Package metrics defines the Prometheus collectors exposed at /metrics.
//
// Metrics are registered once in init() and referenced as package-level
// variables; callers never register anything at runtime. The categories are:
//
//   - Identity: users_total by key scheme (legacy vs current), tracking
//     migration progress.
//   - Data: data_entries_total, a coarse gauge of storage footprint.
//   - API: requests_total and request_duration_seconds by route/status.
//   - Sync: uploads_total by outcome (accepted/dropped_dominance/rejected)
//     and downloads_total.
//   - Auth: legacy_auth_total, counting requests still authenticating with
//     a legacy secret.
//   - Health: health_probe_failures_total, the running count of all failed
//     storage probes (it is never reset on recovery).
//   - Storage: storage_op_duration_seconds by operation name.
//   - Process: process_uptime_seconds, refreshed alongside the identity and
//     data gauges.
//
// The identity, data, and process gauges are not updated on the request
// path: a Collector (collector.go) polls a StatsSource periodically and
// republishes them, the way the teacher's own metrics.Collector polls a
// manager handle for node/service/task counts.
package metrics
