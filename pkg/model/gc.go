package model

import "time"

// GCPlan lists the repository objects a collection would delete.
type GCPlan struct {
	PlanID    string        `json:"plan_id"`
	CreatedAt time.Time     `json:"created_at"`
	Grace     time.Duration `json:"grace"`
	ToDelete  []string      `json:"to_delete"`
}

// GCResult is the outcome of running a plan.
type GCResult struct {
	PlanID  string `json:"plan_id"`
	Deleted int    `json:"deleted"`
	// Skipped counts planned objects that became reachable before the run.
	Skipped int `json:"skipped"`
}
