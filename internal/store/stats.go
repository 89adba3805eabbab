package store

import "context"

// Stats aggregates job, run, and output counts for the dashboard.
type Stats struct {
	TotalJobs      int            `json:"total_jobs"`
	JobsByAction   map[string]int `json:"jobs_by_action"`
	TotalRuns      int            `json:"total_runs"`
	SuccessfulRuns int            `json:"successful_runs"`
	FailedRuns     int            `json:"failed_runs"`
	TotalTokens    int            `json:"total_tokens"`
	TreeNodes      int            `json:"tree_nodes"`
	PageRuns       int            `json:"page_runs"`
	FlashcardRuns  int            `json:"flashcard_runs"`
}

// StatsStore defines the aggregation queries behind the dashboard.
type StatsStore interface {
	// Summary computes the aggregate counters across jobs, runs, and
	// generated outputs.
	Summary(ctx context.Context) (*Stats, error)
}
