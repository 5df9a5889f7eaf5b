package jira

import (
	"math"
	"strconv"
	"strings"
	"time"

	"jira-capacity-sync/database"
)

// jiraTimestamp is the timestamp layout Jira returns for created/updated.
const jiraTimestamp = "2006-01-02T15:04:05.000-0700"

// MapIssue normalizes one raw search record into a WorkItem. It is a pure
// transform: a malformed field falls back to a documented default instead of
// failing the batch, and the local-only mapping fields are never populated
// here. The local ID is assigned later by the merge engine.
func MapIssue(connectionID string, issue Issue, storyPointsFieldID string) database.WorkItem {
	fields := issue.Fields
	if fields == nil {
		fields = map[string]interface{}{}
	}

	item := database.WorkItem{
		ConnectionID: connectionID,
		JiraID:       issue.ID,
		JiraKey:      issue.Key,
		Summary:      nestedString(fields, "summary"),
		Type:         inferType(nestedString(fields, "issuetype", "name")),
		Status:       nestedString(fields, "status", "name"),
		ParentKey:    resolveParentKey(fields),
		Labels:       stringSlice(fields["labels"]),
		Components:   namedSlice(fields["components"]),
	}

	item.StatusCategory = normalizeStatusCategory(nestedString(fields, "status", "statusCategory", "key"))

	if email := nestedString(fields, "assignee", "emailAddress"); email != "" {
		item.AssigneeEmail = email
	}
	if accountID := nestedString(fields, "assignee", "accountId"); accountID != "" {
		item.AssigneeAccountID = accountID
	}

	item.StoryPoints = resolveStoryPoints(fields, storyPointsFieldID)
	item.EstimateHours = secondsToHours(fields["timeoriginalestimate"])
	item.SpentHours = secondsToHours(fields["timespent"])

	if sprint := selectSprint(fields[sprintField]); sprint != nil {
		item.SprintID = sprint.id
		item.SprintName = sprint.name
		item.SprintStart = sprint.start
		item.SprintEnd = sprint.end
	}

	item.Created = parseTimestamp(nestedString(fields, "created"))
	item.Updated = parseTimestamp(nestedString(fields, "updated"))
	item.StartDate = parseDate(nestedString(fields, startDateField))
	item.DueDate = parseDate(nestedString(fields, "duedate"))

	return item
}

// inferType substring-matches the raw type name; anything unrecognized is a task.
func inferType(rawType string) database.ItemType {
	name := strings.ToLower(rawType)
	switch {
	case strings.Contains(name, "epic"):
		return database.TypeEpic
	case strings.Contains(name, "feature"):
		return database.TypeFeature
	case strings.Contains(name, "story"):
		return database.TypeStory
	case strings.Contains(name, "bug"):
		return database.TypeBug
	default:
		return database.TypeTask
	}
}

func normalizeStatusCategory(key string) database.StatusCategory {
	switch key {
	case "done":
		return database.StatusDone
	case "indeterminate":
		return database.StatusInProgress
	default:
		return database.StatusTodo
	}
}

// resolveParentKey prefers the structural parent link, then tries the legacy
// epic-link custom fields in priority order. Each legacy field may hold a
// bare key string or an object carrying a key.
func resolveParentKey(fields map[string]interface{}) string {
	if key := nestedString(fields, "parent", "key"); key != "" {
		return key
	}
	for _, fieldID := range epicLinkFields {
		switch value := fields[fieldID].(type) {
		case string:
			if value != "" {
				return value
			}
		case map[string]interface{}:
			if key, ok := value["key"].(string); ok && key != "" {
				return key
			}
		}
	}
	return ""
}

// resolveStoryPoints consults the instance-discovered field first when it
// carries a positive number, then the known legacy field ids in order.
func resolveStoryPoints(fields map[string]interface{}, discoveredFieldID string) *float64 {
	candidates := make([]string, 0, len(legacyStoryPointsFields)+1)
	if discoveredFieldID != "" {
		candidates = append(candidates, discoveredFieldID)
	}
	candidates = append(candidates, legacyStoryPointsFields...)

	for _, fieldID := range candidates {
		if points, ok := fields[fieldID].(float64); ok && points > 0 {
			value := points
			return &value
		}
	}
	return nil
}

type sprintInfo struct {
	id    string
	name  string
	start *time.Time
	end   *time.Time
}

// selectSprint picks the active sprint when one exists, otherwise the
// most-recently-listed one.
func selectSprint(raw interface{}) *sprintInfo {
	entries, ok := raw.([]interface{})
	if !ok || len(entries) == 0 {
		return nil
	}

	var chosen map[string]interface{}
	for _, entry := range entries {
		sprint, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		chosen = sprint
		if state, _ := sprint["state"].(string); strings.EqualFold(state, "active") {
			break
		}
	}
	if chosen == nil {
		return nil
	}

	info := &sprintInfo{name: asString(chosen["name"]), id: asString(chosen["id"])}
	if start := parseFlexibleTime(asString(chosen["startDate"])); start != nil {
		info.start = start
	}
	if end := parseFlexibleTime(asString(chosen["endDate"])); end != nil {
		info.end = end
	}
	return info
}

// secondsToHours converts source seconds to hours rounded to one decimal.
func secondsToHours(raw interface{}) *float64 {
	seconds, ok := raw.(float64)
	if !ok || seconds <= 0 {
		return nil
	}
	hours := math.Round(seconds/3600*10) / 10
	return &hours
}

func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(jiraTimestamp, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}

func parseFlexibleTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	t := parseTimestamp(value)
	if !t.IsZero() {
		return &t
	}
	if d, err := time.Parse("2006-01-02", value); err == nil {
		return &d
	}
	return nil
}

func parseDate(value string) *time.Time {
	return parseFlexibleTime(value)
}

// Loose-map extraction helpers.

func nestedString(fields map[string]interface{}, path ...string) string {
	current := interface{}(fields)
	for _, key := range path {
		m, ok := current.(map[string]interface{})
		if !ok {
			return ""
		}
		current = m[key]
	}
	return asString(current)
}

func asString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		// Jira serializes some ids as numbers.
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func stringSlice(raw interface{}) []string {
	entries, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, entry := range entries {
		if s, ok := entry.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func namedSlice(raw interface{}) []string {
	entries, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, entry := range entries {
		if m, ok := entry.(map[string]interface{}); ok {
			if name, ok := m["name"].(string); ok && name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}
