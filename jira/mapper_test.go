package jira

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jira-capacity-sync/database"
)

func issueWithFields(key string, fields map[string]interface{}) Issue {
	return Issue{ID: "1000", Key: key, Fields: fields}
}

func TestMapIssueFullRecord(t *testing.T) {
	item := MapIssue("conn-1", issueWithFields("CAP-42", map[string]interface{}{
		"summary":   "Payment API",
		"issuetype": map[string]interface{}{"name": "Story"},
		"status": map[string]interface{}{
			"name":           "In Progress",
			"statusCategory": map[string]interface{}{"key": "indeterminate"},
		},
		"assignee": map[string]interface{}{
			"emailAddress": "a@x.com",
			"accountId":    "acc-1",
		},
		"parent":               map[string]interface{}{"key": "CAP-10"},
		"customfield_10016":    float64(8),
		"timeoriginalestimate": float64(7200),
		"timespent":            float64(5400),
		"labels":               []interface{}{"roadmap", "q3"},
		"components":           []interface{}{map[string]interface{}{"name": "payments"}},
		"created":              "2026-03-01T09:30:00.000+0000",
		"updated":              "2026-03-05T10:00:00.000+0000",
		"duedate":              "2026-04-01",
		"customfield_10015":    "2026-03-10",
		"customfield_10020": []interface{}{
			map[string]interface{}{"id": float64(7), "name": "Sprint 3", "state": "active", "startDate": "2026-03-02T00:00:00.000+0000"},
		},
	}), "")

	assert.Equal(t, "conn-1", item.ConnectionID)
	assert.Equal(t, "CAP-42", item.JiraKey)
	assert.Equal(t, "Payment API", item.Summary)
	assert.Equal(t, database.TypeStory, item.Type)
	assert.Equal(t, "In Progress", item.Status)
	assert.Equal(t, database.StatusInProgress, item.StatusCategory)
	assert.Equal(t, "a@x.com", item.AssigneeEmail)
	assert.Equal(t, "acc-1", item.AssigneeAccountID)
	assert.Equal(t, "CAP-10", item.ParentKey)
	require.NotNil(t, item.StoryPoints)
	assert.Equal(t, 8.0, *item.StoryPoints)
	require.NotNil(t, item.EstimateHours)
	assert.Equal(t, 2.0, *item.EstimateHours)
	require.NotNil(t, item.SpentHours)
	assert.Equal(t, 1.5, *item.SpentHours)
	assert.Equal(t, []string{"roadmap", "q3"}, item.Labels)
	assert.Equal(t, []string{"payments"}, item.Components)
	assert.Equal(t, "Sprint 3", item.SprintName)
	assert.Equal(t, "7", item.SprintID)
	require.NotNil(t, item.SprintStart)
	assert.Equal(t, 2026, item.Created.Year())
	require.NotNil(t, item.DueDate)
	assert.Equal(t, time.April, item.DueDate.Month())
	require.NotNil(t, item.StartDate)

	// Local-only fields stay untouched by the mapper.
	assert.Empty(t, item.ID)
	assert.Empty(t, item.MappedProjectID)
	assert.Empty(t, item.MappedPhaseID)
	assert.Empty(t, item.MappedMemberID)
	assert.False(t, item.StaleFromJira)
}

func TestMapIssueTypeInference(t *testing.T) {
	cases := map[string]database.ItemType{
		"Epic":        database.TypeEpic,
		"Feature":     database.TypeFeature,
		"New Feature": database.TypeFeature,
		"Story":       database.TypeStory,
		"User Story":  database.TypeStory,
		"Bug":         database.TypeBug,
		"Task":        database.TypeTask,
		"Sub-task":    database.TypeTask,
		"Improvement": database.TypeTask,
		"":            database.TypeTask,
	}
	for raw, want := range cases {
		item := MapIssue("c", issueWithFields("K-1", map[string]interface{}{
			"issuetype": map[string]interface{}{"name": raw},
		}), "")
		assert.Equal(t, want, item.Type, "type name %q", raw)
	}
}

func TestMapIssueMalformedFieldsFallBack(t *testing.T) {
	item := MapIssue("c", issueWithFields("K-2", map[string]interface{}{
		"summary":           float64(12),
		"issuetype":         "not-an-object",
		"status":            nil,
		"labels":            "not-a-list",
		"customfield_10020": "not-a-list",
	}), "")

	assert.Equal(t, database.TypeTask, item.Type)
	assert.Equal(t, database.StatusTodo, item.StatusCategory)
	assert.Empty(t, item.Summary)
	assert.Nil(t, item.Labels)
	assert.Empty(t, item.SprintName)

	// A nil fields map must not panic either.
	item = MapIssue("c", Issue{Key: "K-3"}, "")
	assert.Equal(t, "K-3", item.JiraKey)
}

func TestMapIssueStoryPointsPriority(t *testing.T) {
	fields := map[string]interface{}{
		"customfield_10099": float64(13),
		"customfield_10016": float64(5),
		"customfield_10026": float64(3),
	}

	// Discovered field wins when positive.
	item := MapIssue("c", issueWithFields("K-1", fields), "customfield_10099")
	require.NotNil(t, item.StoryPoints)
	assert.Equal(t, 13.0, *item.StoryPoints)

	// Without discovery the legacy list is tried in order.
	item = MapIssue("c", issueWithFields("K-1", fields), "")
	require.NotNil(t, item.StoryPoints)
	assert.Equal(t, 5.0, *item.StoryPoints)

	// A zero discovered value falls through to the legacy fields.
	fields["customfield_10099"] = float64(0)
	item = MapIssue("c", issueWithFields("K-1", fields), "customfield_10099")
	require.NotNil(t, item.StoryPoints)
	assert.Equal(t, 5.0, *item.StoryPoints)

	// No positive value anywhere means no points.
	item = MapIssue("c", issueWithFields("K-1", map[string]interface{}{}), "")
	assert.Nil(t, item.StoryPoints)
}

func TestMapIssueEpicLinkFallback(t *testing.T) {
	// Structural parent wins.
	item := MapIssue("c", issueWithFields("K-1", map[string]interface{}{
		"parent":            map[string]interface{}{"key": "CAP-1"},
		"customfield_10014": "CAP-2",
	}), "")
	assert.Equal(t, "CAP-1", item.ParentKey)

	// Epic link as bare string.
	item = MapIssue("c", issueWithFields("K-1", map[string]interface{}{
		"customfield_10014": "CAP-2",
	}), "")
	assert.Equal(t, "CAP-2", item.ParentKey)

	// Epic link as object with key, on the second legacy field.
	item = MapIssue("c", issueWithFields("K-1", map[string]interface{}{
		"customfield_10008": map[string]interface{}{"key": "CAP-3"},
	}), "")
	assert.Equal(t, "CAP-3", item.ParentKey)

	item = MapIssue("c", issueWithFields("K-1", map[string]interface{}{}), "")
	assert.Empty(t, item.ParentKey)
}

func TestMapIssueSprintSelection(t *testing.T) {
	// The active sprint wins over earlier closed ones.
	item := MapIssue("c", issueWithFields("K-1", map[string]interface{}{
		"customfield_10020": []interface{}{
			map[string]interface{}{"id": float64(1), "name": "Sprint 1", "state": "closed"},
			map[string]interface{}{"id": float64(2), "name": "Sprint 2", "state": "active"},
			map[string]interface{}{"id": float64(3), "name": "Sprint 3", "state": "future"},
		},
	}), "")
	assert.Equal(t, "Sprint 2", item.SprintName)

	// Without an active sprint the last listed one is used.
	item = MapIssue("c", issueWithFields("K-1", map[string]interface{}{
		"customfield_10020": []interface{}{
			map[string]interface{}{"id": float64(1), "name": "Sprint 1", "state": "closed"},
			map[string]interface{}{"id": float64(2), "name": "Sprint 2", "state": "closed"},
		},
	}), "")
	assert.Equal(t, "Sprint 2", item.SprintName)
}

func TestMapIssueHoursRounding(t *testing.T) {
	item := MapIssue("c", issueWithFields("K-1", map[string]interface{}{
		"timeoriginalestimate": float64(10000),
	}), "")
	require.NotNil(t, item.EstimateHours)
	assert.Equal(t, 2.8, *item.EstimateHours)

	item = MapIssue("c", issueWithFields("K-1", map[string]interface{}{
		"timespent": float64(-60),
	}), "")
	assert.Nil(t, item.SpentHours)
}
