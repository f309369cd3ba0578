// Package gc reclaims repository objects left behind when history lines are
// deleted or rewritten.
package gc

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/savify/savify/pkg/model"
)

// DefaultGrace keeps recently written objects, matching git's prune default.
const DefaultGrace = 14 * 24 * time.Hour

// ObjectStore is the part of the repository a collection needs.
// *backend.Git satisfies it.
type ObjectStore interface {
	UnreachableObjects(ctx context.Context, olderThan time.Time) ([]string, error)
	DeleteObjects(ctx context.Context, ids []string) (int, error)
}

// Auditor records a completed collection.
type Auditor interface {
	Append(eventType model.AuditEventType, path, lineID string, snapshotID model.SnapshotID, details map[string]any) error
}

// Collector plans and runs object collection.
type Collector struct {
	store ObjectStore
	audit Auditor
	now   func() time.Time
}

// NewCollector creates a collector. audit may be nil.
func NewCollector(store ObjectStore, audit Auditor) *Collector {
	return &Collector{store: store, audit: audit, now: time.Now}
}

func (c *Collector) cutoff(grace time.Duration) time.Time {
	if grace <= 0 {
		return time.Time{}
	}
	return c.now().Add(-grace)
}

// Plan lists objects that no reference, reflog entry or staged file reaches
// and that are older than grace.
func (c *Collector) Plan(ctx context.Context, grace time.Duration) (*model.GCPlan, error) {
	ids, err := c.store.UnreachableObjects(ctx, c.cutoff(grace))
	if err != nil {
		return nil, fmt.Errorf("compute unreachable objects: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return &model.GCPlan{
		PlanID:    uuid.NewString(),
		CreatedAt: c.now().UTC(),
		Grace:     grace,
		ToDelete:  ids,
	}, nil
}

// Run deletes the objects of plan that are still unreachable.
func (c *Collector) Run(ctx context.Context, plan *model.GCPlan) (*model.GCResult, error) {
	// Revalidate: a line committed since planning may point at an object
	// again.
	current, err := c.store.UnreachableObjects(ctx, c.cutoff(plan.Grace))
	if err != nil {
		return nil, fmt.Errorf("revalidate plan: %w", err)
	}
	still := make(map[string]bool, len(current))
	for _, id := range current {
		still[id] = true
	}

	result := &model.GCResult{PlanID: plan.PlanID}
	var ids []string
	for _, id := range plan.ToDelete {
		if still[id] {
			ids = append(ids, id)
		} else {
			result.Skipped++
		}
	}

	result.Deleted, err = c.store.DeleteObjects(ctx, ids)
	if err != nil {
		return result, fmt.Errorf("delete objects: %w", err)
	}

	if c.audit != nil {
		if err := c.audit.Append(model.EventTypeGC, "", "", "", map[string]any{
			"plan_id": plan.PlanID,
			"deleted": result.Deleted,
			"skipped": result.Skipped,
		}); err != nil {
			return result, fmt.Errorf("audit gc: %w", err)
		}
	}
	return result, nil
}
