// Package api contains the HTTP layer: the webhook entry point that
// accepts jobs, the job status and retry endpoints, and the dashboard.
// Handlers translate between HTTP and the store/queue layers and never
// touch the workspace or the model directly.
package api
