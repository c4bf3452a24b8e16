// Package tasks runs long-lived note maintenance jobs with real-time progress reporting.
//
// # Core Operations
//
//  1. [NoteEngine.Purge] : Retention purge
//     - Counts notes created before the cutoff (now minus the policy's max age)
//     - Skips pinned notes when the policy keeps them
//     - Batch deletes the matches through the note controller
//
//  2. [NoteEngine.BulkExport] : One export file per tag
//     - Collects tags from every stored note when none are given
//     - Exports each tag concurrently on a rate limited worker pool
//     - Writes a manifest summarizing the files
//
//  3. [Scheduler] : Runs the purge on a cron schedule
//
// # Progress Reporting
//
// Operations accept an optional channel of [ProgressUpdate] values.
// Updates use select with default so a slow reader never blocks a job.
package tasks
