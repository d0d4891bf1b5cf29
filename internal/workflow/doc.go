// Package workflow advances jobs through the seven-stage pipeline.
//
// The Manager runs a fixed pool of workers. Each worker claims the
// oldest queued job, then drives it stage by stage until the job
// completes, fails, or a cancellation request is observed between
// stages. Claims are strictly FIFO and atomic, so a job is only ever
// processed by one worker.
//
// Workers sleep on a wake channel signalled whenever a job is enqueued
// or released; a slow fallback ticker covers jobs enqueued by other
// processes writing to the same database.
package workflow
