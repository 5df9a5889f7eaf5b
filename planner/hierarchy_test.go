package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jira-capacity-sync/database"
)

func testConnection(mode database.HierarchyMode) *database.Connection {
	return &database.Connection{
		ID:                 "conn-1",
		UserID:             7,
		Name:               "Checkout",
		ProjectKey:         "CAP",
		HierarchyMode:      mode,
		AutoCreateProjects: true,
	}
}

func typedItem(key, summary string, itemType database.ItemType, parentKey string) database.WorkItem {
	return database.WorkItem{
		ID:           "id-" + key,
		ConnectionID: "conn-1",
		JiraKey:      key,
		Summary:      summary,
		Type:         itemType,
		ParentKey:    parentKey,
	}
}

func TestResolveHierarchyMode(t *testing.T) {
	epics := []database.WorkItem{typedItem("E-1", "Epic", database.TypeEpic, "")}
	features := []database.WorkItem{typedItem("F-1", "Feature", database.TypeFeature, "")}
	tasks := []database.WorkItem{typedItem("T-1", "Task", database.TypeTask, "")}

	assert.Equal(t, database.ModeEpicAsProject, ResolveHierarchyMode(database.ModeAuto, epics))
	assert.Equal(t, database.ModeFeatureAsProject, ResolveHierarchyMode(database.ModeAuto, features))
	assert.Equal(t, database.ModeFlat, ResolveHierarchyMode(database.ModeAuto, tasks))
	assert.Equal(t, database.ModeFlat, ResolveHierarchyMode(database.ModeAuto, nil))

	// Explicit modes pass through untouched.
	assert.Equal(t, database.ModeFlat, ResolveHierarchyMode(database.ModeFlat, epics))
	assert.Equal(t, database.ModeFeatureAsProject, ResolveHierarchyMode(database.ModeFeatureAsProject, epics))
}

func TestProjectHierarchyEpicScenario(t *testing.T) {
	conn := testConnection(database.ModeEpicAsProject)
	items := []database.WorkItem{
		typedItem("E1", "Checkout Revamp", database.TypeEpic, ""),
		typedItem("F1", "Payment API", database.TypeFeature, "E1"),
	}

	result := ProjectHierarchy(conn, items, nil, nil, time.Now())

	require.Len(t, result.Projects, 1)
	project := result.Projects[0]
	assert.Equal(t, "Checkout Revamp", project.Name)
	assert.Equal(t, "E1", project.JiraSourceKey)
	assert.True(t, project.SyncedFromJira)
	assert.Equal(t, 7, project.UserID)

	require.Len(t, result.Phases, 1)
	phase := result.Phases[0]
	assert.Equal(t, "Payment API", phase.Name)
	assert.Equal(t, "F1", phase.JiraSourceKey)
	assert.Equal(t, project.ID, phase.ProjectID)

	feature := result.Items[1]
	assert.Equal(t, project.ID, feature.MappedProjectID)
	assert.Equal(t, phase.ID, feature.MappedPhaseID)

	assert.Equal(t, 1, result.ProjectsCreated)
	assert.Equal(t, 0, result.ProjectsUpdated)
}

func TestProjectHierarchyEpicModeLeafMapping(t *testing.T) {
	conn := testConnection(database.ModeEpicAsProject)
	items := []database.WorkItem{
		typedItem("E1", "Epic One", database.TypeEpic, ""),
		typedItem("F1", "Feature One", database.TypeFeature, "E1"),
		typedItem("F2", "Standalone Feature", database.TypeFeature, ""),
		typedItem("S1", "Story under feature", database.TypeStory, "F1"),
		typedItem("S2", "Story under standalone", database.TypeStory, "F2"),
		typedItem("S3", "Story under epic", database.TypeStory, "E1"),
		typedItem("S4", "Orphan story", database.TypeStory, "GONE-1"),
	}

	result := ProjectHierarchy(conn, items, nil, nil, time.Now())

	byKey := map[string]database.WorkItem{}
	for _, item := range result.Items {
		byKey[item.JiraKey] = item
	}
	projectByKey := map[string]database.Project{}
	for _, p := range result.Projects {
		projectByKey[p.JiraSourceKey] = p
	}

	// Standalone feature becomes its own project.
	require.Contains(t, projectByKey, "F2")
	assert.Equal(t, projectByKey["F2"].ID, byKey["F2"].MappedProjectID)
	assert.Empty(t, byKey["F2"].MappedPhaseID)

	// Story under an epic-parented feature lands in the feature's phase.
	assert.Equal(t, projectByKey["E1"].ID, byKey["S1"].MappedProjectID)
	assert.Equal(t, byKey["F1"].MappedPhaseID, byKey["S1"].MappedPhaseID)
	assert.NotEmpty(t, byKey["S1"].MappedPhaseID)

	// Story under a standalone feature follows the feature's own project.
	assert.Equal(t, projectByKey["F2"].ID, byKey["S2"].MappedProjectID)
	assert.Empty(t, byKey["S2"].MappedPhaseID)

	// Story directly under an epic maps to the project with no phase.
	assert.Equal(t, projectByKey["E1"].ID, byKey["S3"].MappedProjectID)
	assert.Empty(t, byKey["S3"].MappedPhaseID)

	// Orphans stay unmapped but are not errors.
	assert.Empty(t, byKey["S4"].MappedProjectID)
}

func TestProjectHierarchyUpsertsByExternalKey(t *testing.T) {
	conn := testConnection(database.ModeEpicAsProject)
	items := []database.WorkItem{
		typedItem("E1", "Checkout Revamp", database.TypeEpic, ""),
		typedItem("F1", "Payment API", database.TypeFeature, "E1"),
	}

	first := ProjectHierarchy(conn, items, nil, nil, time.Now())

	// Second run with a renamed epic, input in reverse order.
	renamed := []database.WorkItem{
		typedItem("F1", "Payment API", database.TypeFeature, "E1"),
		typedItem("E1", "Checkout Revamp v2", database.TypeEpic, ""),
	}
	second := ProjectHierarchy(conn, renamed, first.Projects, first.Phases, time.Now())

	require.Len(t, second.Projects, 1)
	assert.Equal(t, first.Projects[0].ID, second.Projects[0].ID)
	assert.Equal(t, "Checkout Revamp v2", second.Projects[0].Name)
	assert.Equal(t, 0, second.ProjectsCreated)
	assert.Equal(t, 1, second.ProjectsUpdated)

	require.Len(t, second.Phases, 1)
	assert.Equal(t, first.Phases[0].ID, second.Phases[0].ID)
}

func TestProjectHierarchyFeatureAsProject(t *testing.T) {
	conn := testConnection(database.ModeFeatureAsProject)
	items := []database.WorkItem{
		typedItem("F1", "Payment API", database.TypeFeature, ""),
		typedItem("S1", "Story", database.TypeStory, "F1"),
		typedItem("B1", "Bug", database.TypeBug, "F1"),
	}

	result := ProjectHierarchy(conn, items, nil, nil, time.Now())

	require.Len(t, result.Projects, 1)
	assert.Empty(t, result.Phases)

	for _, item := range result.Items {
		assert.Equal(t, result.Projects[0].ID, item.MappedProjectID, "item %s", item.JiraKey)
		assert.Empty(t, item.MappedPhaseID)
	}
}

func TestProjectHierarchyFlat(t *testing.T) {
	conn := testConnection(database.ModeFlat)
	items := []database.WorkItem{
		typedItem("T-1", "Task one", database.TypeTask, ""),
		typedItem("T-2", "Task two", database.TypeTask, ""),
	}

	result := ProjectHierarchy(conn, items, nil, nil, time.Now())

	require.Len(t, result.Projects, 1)
	assert.Equal(t, "Checkout", result.Projects[0].Name)
	assert.Equal(t, "CAP", result.Projects[0].JiraSourceKey)
	for _, item := range result.Items {
		assert.Equal(t, result.Projects[0].ID, item.MappedProjectID)
	}
}

func TestProjectHierarchyPreservesManualProjects(t *testing.T) {
	conn := testConnection(database.ModeEpicAsProject)
	manual := database.Project{ID: "manual-1", UserID: 7, Name: "Hand-built plan"}
	other := database.Project{
		ID: "other-1", UserID: 7, ConnectionID: "conn-2",
		Name: "Other connection", JiraSourceKey: "E1", SyncedFromJira: true,
	}
	items := []database.WorkItem{typedItem("E1", "Epic", database.TypeEpic, "")}

	result := ProjectHierarchy(conn, items, []database.Project{manual, other}, nil, time.Now())

	// Manual and foreign projects pass through untouched; the same source
	// key on another connection is not reused.
	require.Len(t, result.Projects, 3)
	assert.Equal(t, manual, result.Projects[0])
	assert.Equal(t, other, result.Projects[1])
	assert.NotEqual(t, "other-1", result.Items[0].MappedProjectID)
}

func TestProjectHierarchyPreservesOtherConnectionPhases(t *testing.T) {
	items := []database.WorkItem{
		typedItem("E1", "Checkout Revamp", database.TypeEpic, ""),
		typedItem("F1", "Payment API", database.TypeFeature, "E1"),
	}

	first := ProjectHierarchy(testConnection(database.ModeEpicAsProject), items, nil, nil, time.Now())
	require.Len(t, first.Projects, 1)
	require.Len(t, first.Phases, 1)

	// A second connection syncing the same tracker keys builds its own
	// hierarchy; the first connection's phase keeps its project.
	second := testConnection(database.ModeEpicAsProject)
	second.ID = "conn-2"
	result := ProjectHierarchy(second, items, first.Projects, first.Phases, time.Now())

	require.Len(t, result.Projects, 2)
	require.Len(t, result.Phases, 2)
	assert.Equal(t, first.Phases[0], result.Phases[0])
	assert.NotEqual(t, result.Phases[0].ProjectID, result.Phases[1].ProjectID)
	assert.NotEqual(t, first.Phases[0].ID, result.Items[1].MappedPhaseID)
}

func TestProjectHierarchyAutoCreateDisabled(t *testing.T) {
	conn := testConnection(database.ModeEpicAsProject)
	conn.AutoCreateProjects = false
	items := []database.WorkItem{typedItem("E1", "Epic", database.TypeEpic, "")}

	result := ProjectHierarchy(conn, items, nil, nil, time.Now())

	assert.Empty(t, result.Projects)
	assert.Empty(t, result.Items[0].MappedProjectID)
	assert.Equal(t, 0, result.ProjectsCreated)

	// Existing synced projects are still matched and updated.
	existing := database.Project{
		ID: "p-1", UserID: 7, ConnectionID: "conn-1",
		Name: "Old name", JiraSourceKey: "E1", SyncedFromJira: true,
	}
	result = ProjectHierarchy(conn, items, []database.Project{existing}, nil, time.Now())
	require.Len(t, result.Projects, 1)
	assert.Equal(t, "Epic", result.Projects[0].Name)
	assert.Equal(t, "p-1", result.Items[0].MappedProjectID)
}
