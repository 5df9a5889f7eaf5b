package planner

import (
	"github.com/google/uuid"

	"jira-capacity-sync/database"
)

// MergeResult carries the counters of one merge pass.
type MergeResult struct {
	Created           int
	Updated           int
	Removed           int
	MappingsPreserved int
}

// MergeItems reconciles one connection's stored items with an incoming batch
// and returns the replacement item set. Incoming items win every tracker
// field; the stored local ID and the three mapping fields always survive. An
// incoming item with no stored counterpart gets a fresh local ID. Stored
// items absent from the batch are dropped, which is why the caller includes
// retained-stale copies in the incoming set.
//
// Merging the same batch twice produces the same result.
func MergeItems(stored, incoming []database.WorkItem) ([]database.WorkItem, MergeResult) {
	storedByKey := make(map[string]database.WorkItem, len(stored))
	for _, item := range stored {
		storedByKey[item.JiraKey] = item
	}

	var result MergeResult
	merged := make([]database.WorkItem, 0, len(incoming))
	for _, item := range incoming {
		existing, ok := storedByKey[item.JiraKey]
		if !ok {
			item.ID = uuid.New().String()
			merged = append(merged, item)
			result.Created++
			continue
		}
		item.ID = existing.ID
		item.MappedProjectID = existing.MappedProjectID
		item.MappedPhaseID = existing.MappedPhaseID
		item.MappedMemberID = existing.MappedMemberID
		merged = append(merged, item)
		result.Updated++
		if existing.HasMapping() {
			result.MappingsPreserved++
		}
	}

	incomingKeys := make(map[string]bool, len(incoming))
	for _, item := range incoming {
		incomingKeys[item.JiraKey] = true
	}
	for _, item := range stored {
		if !incomingKeys[item.JiraKey] {
			result.Removed++
		}
	}

	return merged, result
}
