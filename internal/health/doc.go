// Package health implements the storage liveness probe: a background
// task that pings the store every 30 seconds, tracks consecutive failures
// via Status, and terminates the process with a fatal exit after 3 in a
// row, on the assumption that the orchestrator restarts it.
package health
