// Package storage provides the gocql-backed wide-column adapter that
// every other service is built on: typed CRUD over the users and data
// tables, with multi-key reads/writes expressed as concurrent fan-out over
// independent, idempotent per-row statements rather than server-side
// batches. There is no cross-key transactionality; callers (notably the
// delta-sync engine) provide their own logical atomicity via the
// per-(user,key) version discipline.
package storage
