package graph

import (
	"github.com/c5t/c5t/internal/types"
)

// Activity computes the derived last_activity_at value for every record
// that tracks one:
//
//   - a task: the latest updated_at of itself and its direct subtasks
//   - a note: the latest updated_at of itself and its direct children
//   - a task list: the latest updated_at of itself and its tasks
//
// The result maps identifier to timestamp; the raw timestamp string of the
// winning record is used so output stays in the store's own layout.
// Unparseable timestamps never win over parseable ones.
//
// Activity does not modify the graph.
func (g *Graph) Activity() map[string]string {
	latest := make(map[string]string)
	for _, e := range g.nodes {
		if _, ok := e.(types.ActivityTracker); ok {
			latest[e.EntityID()] = e.Modified()
		}
	}

	bump := func(id, ts string) {
		cur, ok := latest[id]
		if !ok {
			return
		}
		if later(ts, cur) {
			latest[id] = ts
		}
	}

	for _, e := range g.nodes {
		switch rec := e.(type) {
		case *types.Task:
			bump(rec.ListID, rec.UpdatedAt)
			if rec.ParentID != nil {
				bump(*rec.ParentID, rec.UpdatedAt)
			}
		case *types.Note:
			if rec.ParentID != nil {
				bump(*rec.ParentID, rec.UpdatedAt)
			}
		}
	}

	return latest
}

// ApplyActivity sets the derived field on every tracker in the graph from
// the result of Activity.
func (g *Graph) ApplyActivity(activity map[string]string) {
	for _, e := range g.nodes {
		if at, ok := e.(types.ActivityTracker); ok {
			at.SetLastActivity(activity[e.EntityID()])
		}
	}
}

// later reports whether a is strictly later than b. A parseable timestamp
// is later than an unparseable one.
func later(a, b string) bool {
	ta, errA := types.ParseTimestamp(a)
	tb, errB := types.ParseTimestamp(b)
	switch {
	case errA != nil:
		return false
	case errB != nil:
		return true
	default:
		return ta.After(tb)
	}
}
