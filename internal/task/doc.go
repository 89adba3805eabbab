// Package task provides the in-memory job queue and its single worker.
// Jobs are processed strictly in arrival order, one at a time, so the
// generation pipeline never runs concurrently against the workspace.
package task
