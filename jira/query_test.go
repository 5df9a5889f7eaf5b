package jira

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jira-capacity-sync/database"
)

func TestBuildQuerySingleFilterGroup(t *testing.T) {
	types := []database.TypeSyncConfig{
		{Type: database.TypeEpic, Enabled: true, StatusFilter: database.FilterExcludeDone},
		{Type: database.TypeStory, Enabled: true, StatusFilter: database.FilterExcludeDone},
	}

	jql, err := BuildQuery("CAP", types, "")
	require.NoError(t, err)
	assert.Equal(t, `project = "CAP" AND issuetype IN (Epic, Story) AND statusCategory != Done ORDER BY created DESC`, jql)
}

func TestBuildQueryCompoundGroups(t *testing.T) {
	types := []database.TypeSyncConfig{
		{Type: database.TypeEpic, Enabled: true, StatusFilter: database.FilterAll},
		{Type: database.TypeStory, Enabled: true, StatusFilter: database.FilterActiveOnly},
		{Type: database.TypeBug, Enabled: true, StatusFilter: database.FilterActiveOnly},
	}

	jql, err := BuildQuery("CAP", types, "")
	require.NoError(t, err)
	assert.Equal(t, `project = "CAP" AND ((issuetype IN (Epic)) OR (issuetype IN (Story, Bug) AND statusCategory = "In Progress")) ORDER BY created DESC`, jql)
}

func TestBuildQueryStatusFilters(t *testing.T) {
	cases := map[database.StatusFilter]string{
		database.FilterExcludeDone: "statusCategory != Done",
		database.FilterActiveOnly:  `statusCategory = "In Progress"`,
		database.FilterTodoOnly:    `statusCategory = "To Do"`,
	}
	for filter, want := range cases {
		types := []database.TypeSyncConfig{{Type: database.TypeTask, Enabled: true, StatusFilter: filter}}
		jql, err := BuildQuery("X", types, "")
		require.NoError(t, err)
		assert.Contains(t, jql, want, "filter %s", filter)
	}
}

func TestBuildQueryExtraClause(t *testing.T) {
	types := []database.TypeSyncConfig{
		{Type: database.TypeTask, Enabled: true, StatusFilter: database.FilterAll},
	}

	jql, err := BuildQuery("CAP", types, `labels = "roadmap"`)
	require.NoError(t, err)
	assert.Equal(t, `project = "CAP" AND issuetype IN (Task) AND (labels = "roadmap") ORDER BY created DESC`, jql)
}

func TestBuildQueryNoTypesEnabled(t *testing.T) {
	types := []database.TypeSyncConfig{
		{Type: database.TypeEpic, Enabled: false},
		{Type: database.TypeStory, Enabled: false},
	}

	_, err := BuildQuery("CAP", types, "")
	assert.ErrorIs(t, err, ErrNoTypesEnabled)

	_, err = BuildQuery("CAP", nil, "")
	assert.ErrorIs(t, err, ErrNoTypesEnabled)
}

func TestBuildQueryDeterministic(t *testing.T) {
	types := []database.TypeSyncConfig{
		{Type: database.TypeEpic, Enabled: true, StatusFilter: database.FilterAll},
		{Type: database.TypeFeature, Enabled: true, StatusFilter: database.FilterExcludeDone},
		{Type: database.TypeStory, Enabled: true, StatusFilter: database.FilterAll},
	}

	first, err := BuildQuery("CAP", types, "")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := BuildQuery("CAP", types, "")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
