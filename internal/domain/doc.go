// Package domain contains the core entities of the lectern pipeline: jobs,
// runs, the generated artifact documents, and the workspace-facing value
// types. It represents the heart of the system, independent of any specific
// infrastructure or delivery mechanism.
package domain
