// Package pipeline contains the job execution pipeline: fetching and
// normalizing the source document, fusing linked notes, invoking the
// generation engine, and writing the versioned artifact back to the
// workspace. It also owns the failure classification that decides whether
// a failed job is re-queued or marked terminally failed.
package pipeline
