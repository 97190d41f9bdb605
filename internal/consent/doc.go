// Package consent gates channel processing on per-user consent.
//
// The Ledger is a thin read-through cache over a durable domain.ConsentStore.
// Users without a stored record are treated as deny-all. Replicas sharing a
// store either run uncached or evict on invalidations published by writers.
package consent
