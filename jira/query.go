package jira

import (
	"errors"
	"fmt"
	"strings"

	"jira-capacity-sync/database"
)

// ErrNoTypesEnabled means the connection has every item type switched off.
// This is a configuration error: it must be surfaced before any network call
// and is not retryable.
var ErrNoTypesEnabled = errors.New("jira: no item types enabled for sync")

var jqlTypeNames = map[database.ItemType]string{
	database.TypeEpic:    "Epic",
	database.TypeFeature: "Feature",
	database.TypeStory:   "Story",
	database.TypeTask:    "Task",
	database.TypeBug:     "Bug",
}

func statusClause(filter database.StatusFilter) string {
	switch filter {
	case database.FilterExcludeDone:
		return "statusCategory != Done"
	case database.FilterActiveOnly:
		return `statusCategory = "In Progress"`
	case database.FilterTodoOnly:
		return `statusCategory = "To Do"`
	default:
		return ""
	}
}

// BuildQuery turns the per-type sync toggles and status filters into one JQL
// string. Types sharing a status filter are grouped; a single group yields a
// flat clause, several groups a parenthesized OR. The extra clause, when set,
// is ANDed in its own parentheses. Deterministic for identical inputs.
func BuildQuery(projectKey string, types []database.TypeSyncConfig, extra string) (string, error) {
	type group struct {
		filter database.StatusFilter
		names  []string
	}

	var groups []group
	index := map[database.StatusFilter]int{}
	for _, tc := range types {
		if !tc.Enabled {
			continue
		}
		name, ok := jqlTypeNames[tc.Type]
		if !ok {
			continue
		}
		if i, seen := index[tc.StatusFilter]; seen {
			groups[i].names = append(groups[i].names, name)
		} else {
			index[tc.StatusFilter] = len(groups)
			groups = append(groups, group{filter: tc.StatusFilter, names: []string{name}})
		}
	}

	if len(groups) == 0 {
		return "", ErrNoTypesEnabled
	}

	clause := func(g group) string {
		typePart := fmt.Sprintf("issuetype IN (%s)", strings.Join(g.names, ", "))
		if status := statusClause(g.filter); status != "" {
			return typePart + " AND " + status
		}
		return typePart
	}

	jql := fmt.Sprintf("project = %q", projectKey)
	if len(groups) == 1 {
		jql += " AND " + clause(groups[0])
	} else {
		parts := make([]string, len(groups))
		for i, g := range groups {
			parts[i] = "(" + clause(g) + ")"
		}
		jql += " AND (" + strings.Join(parts, " OR ") + ")"
	}

	if extra = strings.TrimSpace(extra); extra != "" {
		jql += " AND (" + extra + ")"
	}

	return jql + " ORDER BY created DESC", nil
}
