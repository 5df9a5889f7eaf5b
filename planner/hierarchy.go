package planner

import (
	"time"

	"github.com/google/uuid"

	"jira-capacity-sync/database"
)

// ProjectionResult is the output of one hierarchy projection pass. Projects
// and Phases are the full replacement lists for the user, including every
// entity the pass did not touch.
type ProjectionResult struct {
	Mode            database.HierarchyMode
	Projects        []database.Project
	Phases          []database.Phase
	Items           []database.WorkItem
	ProjectsCreated int
	ProjectsUpdated int
}

// ResolveHierarchyMode pins auto to a concrete mode for this batch: epics
// win, then features, then flat.
func ResolveHierarchyMode(mode database.HierarchyMode, items []database.WorkItem) database.HierarchyMode {
	if mode != database.ModeAuto {
		return mode
	}
	hasFeature := false
	for _, item := range items {
		if item.Type == database.TypeEpic {
			return database.ModeEpicAsProject
		}
		if item.Type == database.TypeFeature {
			hasFeature = true
		}
	}
	if hasFeature {
		return database.ModeFeatureAsProject
	}
	return database.ModeFlat
}

// projector carries the upsert indexes for one projection pass. Every lookup
// of a tracker-sourced entity goes through the source-key index built once up
// front, so repeated syncs update in place instead of duplicating.
type projector struct {
	conn *database.Connection
	now  time.Time

	projects   []database.Project
	phases     []database.Phase
	projectIdx map[string]int
	phaseIdx   map[string]int

	created int
	updated int
}

// ProjectHierarchy derives projects and phases from a merged item batch and
// back-fills each item's project and phase mapping. Entities this pass does
// not touch, and every manually authored project or phase, pass through
// unchanged. Items whose parent cannot be resolved inside the batch keep
// whatever mapping they already carry.
func ProjectHierarchy(conn *database.Connection, items []database.WorkItem, projects []database.Project, phases []database.Phase, now time.Time) ProjectionResult {
	mode := ResolveHierarchyMode(conn.HierarchyMode, items)

	p := &projector{
		conn:       conn,
		now:        now,
		projects:   append([]database.Project(nil), projects...),
		phases:     append([]database.Phase(nil), phases...),
		projectIdx: make(map[string]int),
		phaseIdx:   make(map[string]int),
	}
	ownProjects := make(map[string]bool)
	for i, project := range p.projects {
		if project.SyncedFromJira && project.ConnectionID == conn.ID && project.JiraSourceKey != "" {
			p.projectIdx[project.JiraSourceKey] = i
			ownProjects[project.ID] = true
		}
	}
	// Phases carry no connection id of their own, so scope the index through
	// their parent project. Another connection syncing the same tracker keys
	// must get its own phases, not re-point these.
	for i, phase := range p.phases {
		if phase.JiraSourceKey != "" && ownProjects[phase.ProjectID] {
			p.phaseIdx[phase.JiraSourceKey] = i
		}
	}

	out := append([]database.WorkItem(nil), items...)
	switch mode {
	case database.ModeEpicAsProject:
		p.projectEpics(out)
	case database.ModeFeatureAsProject:
		p.projectFeatures(out)
	default:
		p.projectFlat(out)
	}

	return ProjectionResult{
		Mode:            mode,
		Projects:        p.projects,
		Phases:          p.phases,
		Items:           out,
		ProjectsCreated: p.created,
		ProjectsUpdated: p.updated,
	}
}

// projectEpics maps epics to projects, epic-parented features to phases,
// parentless features to standalone projects, and leaf items to their
// nearest resolvable ancestor.
func (p *projector) projectEpics(items []database.WorkItem) {
	epicByKey := make(map[string]int)
	featureByKey := make(map[string]int)
	for i, item := range items {
		switch item.Type {
		case database.TypeEpic:
			epicByKey[item.JiraKey] = i
		case database.TypeFeature:
			featureByKey[item.JiraKey] = i
		}
	}

	for i := range items {
		if items[i].Type != database.TypeEpic {
			continue
		}
		if id, ok := p.upsertProject(items[i].JiraKey, items[i].Summary); ok {
			items[i].MappedProjectID = id
			items[i].MappedPhaseID = ""
		}
	}

	for i := range items {
		if items[i].Type != database.TypeFeature {
			continue
		}
		if epicIdx, ok := epicByKey[items[i].ParentKey]; ok && items[epicIdx].MappedProjectID != "" {
			projectID := items[epicIdx].MappedProjectID
			if phaseID, ok := p.upsertPhase(items[i].JiraKey, items[i].Summary, projectID); ok {
				items[i].MappedProjectID = projectID
				items[i].MappedPhaseID = phaseID
			}
			continue
		}
		// No epic parent in this batch: the feature stands on its own.
		if id, ok := p.upsertProject(items[i].JiraKey, items[i].Summary); ok {
			items[i].MappedProjectID = id
			items[i].MappedPhaseID = ""
		}
	}

	for i := range items {
		switch items[i].Type {
		case database.TypeEpic, database.TypeFeature:
			continue
		}
		if featureIdx, ok := featureByKey[items[i].ParentKey]; ok {
			feature := items[featureIdx]
			if feature.MappedProjectID != "" {
				items[i].MappedProjectID = feature.MappedProjectID
				items[i].MappedPhaseID = feature.MappedPhaseID
			}
			continue
		}
		if epicIdx, ok := epicByKey[items[i].ParentKey]; ok {
			if items[epicIdx].MappedProjectID != "" {
				items[i].MappedProjectID = items[epicIdx].MappedProjectID
				items[i].MappedPhaseID = ""
			}
		}
	}
}

// projectFeatures maps every feature to its own project, no phases. Leaf
// items follow their parent feature.
func (p *projector) projectFeatures(items []database.WorkItem) {
	featureByKey := make(map[string]int)
	for i := range items {
		if items[i].Type != database.TypeFeature {
			continue
		}
		featureByKey[items[i].JiraKey] = i
		if id, ok := p.upsertProject(items[i].JiraKey, items[i].Summary); ok {
			items[i].MappedProjectID = id
			items[i].MappedPhaseID = ""
		}
	}

	for i := range items {
		if items[i].Type == database.TypeFeature {
			continue
		}
		if featureIdx, ok := featureByKey[items[i].ParentKey]; ok {
			if items[featureIdx].MappedProjectID != "" {
				items[i].MappedProjectID = items[featureIdx].MappedProjectID
				items[i].MappedPhaseID = ""
			}
		}
	}
}

// projectFlat maps everything to one synthetic project keyed by the tracker
// project key.
func (p *projector) projectFlat(items []database.WorkItem) {
	name := p.conn.Name
	if name == "" {
		name = p.conn.ProjectKey
	}
	id, ok := p.upsertProject(p.conn.ProjectKey, name)
	if !ok {
		return
	}
	for i := range items {
		items[i].MappedProjectID = id
		items[i].MappedPhaseID = ""
	}
}

// upsertProject finds or creates the tracker-sourced project for a source
// key. A name change renames in place. When auto-create is off, missing
// projects are not created and the item keeps its existing mapping.
func (p *projector) upsertProject(sourceKey, name string) (string, bool) {
	if sourceKey == "" {
		return "", false
	}
	if i, ok := p.projectIdx[sourceKey]; ok {
		if p.projects[i].Name != name && name != "" {
			p.projects[i].Name = name
			p.projects[i].UpdatedAt = p.now
			p.updated++
		}
		return p.projects[i].ID, true
	}
	if !p.conn.AutoCreateProjects {
		return "", false
	}
	project := database.Project{
		ID:             uuid.New().String(),
		UserID:         p.conn.UserID,
		ConnectionID:   p.conn.ID,
		Name:           name,
		JiraSourceKey:  sourceKey,
		SyncedFromJira: true,
		CreatedAt:      p.now,
		UpdatedAt:      p.now,
	}
	p.projects = append(p.projects, project)
	p.projectIdx[sourceKey] = len(p.projects) - 1
	p.created++
	return project.ID, true
}

func (p *projector) upsertPhase(sourceKey, name, projectID string) (string, bool) {
	if sourceKey == "" {
		return "", false
	}
	if i, ok := p.phaseIdx[sourceKey]; ok {
		changed := false
		if p.phases[i].Name != name && name != "" {
			p.phases[i].Name = name
			changed = true
		}
		if p.phases[i].ProjectID != projectID {
			p.phases[i].ProjectID = projectID
			changed = true
		}
		if changed {
			p.phases[i].UpdatedAt = p.now
		}
		return p.phases[i].ID, true
	}
	if !p.conn.AutoCreateProjects {
		return "", false
	}
	phase := database.Phase{
		ID:            uuid.New().String(),
		ProjectID:     projectID,
		Name:          name,
		JiraSourceKey: sourceKey,
		CreatedAt:     p.now,
		UpdatedAt:     p.now,
	}
	p.phases = append(p.phases, phase)
	p.phaseIdx[sourceKey] = len(p.phases) - 1
	return phase.ID, true
}
