package planner

import (
	"jira-capacity-sync/database"
)

// SyncDiff is the read-only classification of a fetched batch against the
// stored items of the same connection. Items are matched by JiraKey.
type SyncDiff struct {
	// ToAdd holds fetched items with no stored counterpart.
	ToAdd []database.WorkItem
	// ToUpdate holds fetched items that already exist locally.
	ToUpdate []database.WorkItem
	// ToRemove holds stored items absent from the fetch with no local mappings.
	ToRemove []database.WorkItem
	// ToKeepStale holds stored items absent from the fetch that carry local
	// mappings; they are retained and flagged stale rather than removed.
	ToKeepStale []database.WorkItem
	// MappingsToPreserve counts updated items whose local mappings survive.
	MappingsToPreserve int
	// Fetched is the full mapped batch, in fetch order.
	Fetched []database.WorkItem
}

// ComputeDiff classifies fetched against stored. It never mutates either
// slice; applying the diff is the merge engine's job.
func ComputeDiff(stored, fetched []database.WorkItem) SyncDiff {
	diff := SyncDiff{Fetched: fetched}

	storedByKey := make(map[string]database.WorkItem, len(stored))
	for _, item := range stored {
		storedByKey[item.JiraKey] = item
	}

	fetchedKeys := make(map[string]bool, len(fetched))
	for _, item := range fetched {
		fetchedKeys[item.JiraKey] = true
		existing, ok := storedByKey[item.JiraKey]
		if !ok {
			diff.ToAdd = append(diff.ToAdd, item)
			continue
		}
		diff.ToUpdate = append(diff.ToUpdate, item)
		if existing.HasMapping() {
			diff.MappingsToPreserve++
		}
	}

	for _, item := range stored {
		if fetchedKeys[item.JiraKey] {
			continue
		}
		if item.HasMapping() {
			diff.ToKeepStale = append(diff.ToKeepStale, item)
		} else {
			diff.ToRemove = append(diff.ToRemove, item)
		}
	}

	return diff
}
