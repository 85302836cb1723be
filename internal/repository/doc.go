// Package repository defines the stream store abstraction for camscout.
//
// Every pipeline stage reads and writes discovered streams through the
// Store interface; no stage knows which backend is active. Backends are
// created by name through a Registry (see the plugin package for the
// loader that also accepts out-of-tree backends).
//
// # Backends
//
// - memory: process-local, SetStreams replaces the working set wholesale
// - sqlite: file-backed via modernc.org/sqlite, keeps results across runs
// - postgres: shared database via pgx, with reconnect backoff and migrations
//
// The persistent backends skip inserting a stream whose (address, port)
// already exists, so credentials found in an earlier run survive a rescan.
//
// # Concurrency
//
// UpdateStream is called from many attack workers at once. Every backend
// serializes writes; writes to the same key are last-write-wins.
//
// # Change tracking
//
// Backends may implement ChangeTracker so long-running attacks can abort
// early when a record was already resolved elsewhere.
package repository
