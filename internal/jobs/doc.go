// Package jobs defines the persistent job model and its SQLite store.
//
// A job tracks one source video through the fixed seven-stage pipeline.
// The store is the single source of truth for job state; the workflow
// manager, HTTP API, and CLI all operate through it.
package jobs
