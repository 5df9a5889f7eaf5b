package database

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// ItemType classifies a tracker work item.
type ItemType string

const (
	TypeEpic    ItemType = "epic"
	TypeFeature ItemType = "feature"
	TypeStory   ItemType = "story"
	TypeTask    ItemType = "task"
	TypeBug     ItemType = "bug"
)

// AllItemTypes lists every item type in display order.
var AllItemTypes = []ItemType{TypeEpic, TypeFeature, TypeStory, TypeTask, TypeBug}

// StatusCategory is the normalized status bucket of a work item.
type StatusCategory string

const (
	StatusTodo       StatusCategory = "todo"
	StatusInProgress StatusCategory = "in_progress"
	StatusDone       StatusCategory = "done"
)

// StatusFilter narrows which items of a type are fetched.
type StatusFilter string

const (
	FilterAll         StatusFilter = "all"
	FilterExcludeDone StatusFilter = "exclude_done"
	FilterActiveOnly  StatusFilter = "active_only"
	FilterTodoOnly    StatusFilter = "todo_only"
)

// HierarchyMode controls how fetched items are projected onto projects and phases.
type HierarchyMode string

const (
	ModeAuto             HierarchyMode = "auto"
	ModeEpicAsProject    HierarchyMode = "epic_as_project"
	ModeFeatureAsProject HierarchyMode = "feature_as_project"
	ModeFlat             HierarchyMode = "flat"
)

// User represents a user in the system
type User struct {
	ID           int       `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// TypeSyncConfig is the per-type sync toggle plus its status filter.
type TypeSyncConfig struct {
	Type         ItemType     `json:"type"`
	Enabled      bool         `json:"enabled"`
	StatusFilter StatusFilter `json:"status_filter"`
}

// TypeConfigs wraps the per-type settings for JSON column storage.
type TypeConfigs []TypeSyncConfig

// Value implements the driver.Valuer interface for JSON storage
func (tc TypeConfigs) Value() (driver.Value, error) {
	if len(tc) == 0 {
		return "[]", nil
	}
	return json.Marshal(tc)
}

// Scan implements the sql.Scanner interface for JSON retrieval
func (tc *TypeConfigs) Scan(value interface{}) error {
	if value == nil {
		*tc = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, tc)
	case string:
		return json.Unmarshal([]byte(v), tc)
	default:
		*tc = nil
		return nil
	}
}

// Connection is the configuration for one Jira project being synced.
type Connection struct {
	ID         string `json:"id" db:"id"`
	UserID     int    `json:"user_id" db:"user_id"`
	Name       string `json:"name" db:"name"`
	BaseURL    string `json:"base_url" db:"base_url"`
	Email      string `json:"email" db:"email"`
	APIToken   string `json:"api_token" db:"api_token"`
	ProjectKey string `json:"project_key" db:"project_key"`

	Types         TypeConfigs   `json:"types" db:"types"`
	HierarchyMode HierarchyMode `json:"hierarchy_mode" db:"hierarchy_mode"`
	ExtraQuery    string        `json:"extra_query" db:"extra_query"`

	AutoCreateProjects    bool    `json:"auto_create_projects" db:"auto_create_projects"`
	AutoCreateAssignments bool    `json:"auto_create_assignments" db:"auto_create_assignments"`
	PointsToDays          float64 `json:"points_to_days" db:"points_to_days"`
	DefaultDaysPerItem    float64 `json:"default_days_per_item" db:"default_days_per_item"`

	// Discovered at sync time; cached so later syncs survive a failed discovery.
	StoryPointsFieldID string `json:"story_points_field_id" db:"story_points_field_id"`

	SyncStatus    string      `json:"sync_status" db:"sync_status"`
	LastSyncError string      `json:"last_sync_error,omitempty" db:"last_sync_error"`
	LastSyncAt    *time.Time  `json:"last_sync_at,omitempty" db:"last_sync_at"`
	SyncHistory   SyncHistory `json:"sync_history" db:"sync_history"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Sync status values for a connection.
const (
	SyncStatusIdle    = "idle"
	SyncStatusSyncing = "syncing"
	SyncStatusOK      = "ok"
	SyncStatusError   = "error"
)

// SyncResult carries the per-category counters of one applied sync.
type SyncResult struct {
	Synced             int      `json:"synced"`
	Created            int      `json:"created"`
	Updated            int      `json:"updated"`
	Removed            int      `json:"removed"`
	MappingsPreserved  int      `json:"mappings_preserved"`
	ProjectsCreated    int      `json:"projects_created"`
	ProjectsUpdated    int      `json:"projects_updated"`
	AssignmentsCreated int      `json:"assignments_created"`
	Errors             []string `json:"errors,omitempty"`
}

// SyncHistoryEntry is one timestamped sync outcome on a connection.
type SyncHistoryEntry struct {
	Timestamp time.Time  `json:"timestamp"`
	Success   bool       `json:"success"`
	Result    SyncResult `json:"result"`
	Error     string     `json:"error,omitempty"`
}

// SyncHistory is the bounded, most-recent-first outcome list.
type SyncHistory []SyncHistoryEntry

// Value implements the driver.Valuer interface for JSON storage
func (sh SyncHistory) Value() (driver.Value, error) {
	if len(sh) == 0 {
		return "[]", nil
	}
	return json.Marshal(sh)
}

// Scan implements the sql.Scanner interface for JSON retrieval
func (sh *SyncHistory) Scan(value interface{}) error {
	if value == nil {
		*sh = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, sh)
	case string:
		return json.Unmarshal([]byte(v), sh)
	default:
		*sh = nil
		return nil
	}
}

// WorkItem is one Jira issue projected into the local planning model.
//
// JiraKey is the sole external identity. The Mapped* fields and StaleFromJira
// are local-only: the mapper never sets them, only the merge engine and the
// hierarchy projector do, and they survive every re-sync.
type WorkItem struct {
	ID           string `json:"id"`
	ConnectionID string `json:"connection_id"`
	JiraID       string `json:"jira_id"`
	JiraKey      string `json:"jira_key"`

	Type           ItemType       `json:"type"`
	Summary        string         `json:"summary"`
	Status         string         `json:"status"`
	StatusCategory StatusCategory `json:"status_category"`

	StoryPoints   *float64 `json:"story_points,omitempty"`
	EstimateHours *float64 `json:"estimate_hours,omitempty"`
	SpentHours    *float64 `json:"spent_hours,omitempty"`

	AssigneeEmail     string `json:"assignee_email,omitempty"`
	AssigneeAccountID string `json:"assignee_account_id,omitempty"`

	ParentKey string `json:"parent_key,omitempty"`

	SprintID    string     `json:"sprint_id,omitempty"`
	SprintName  string     `json:"sprint_name,omitempty"`
	SprintStart *time.Time `json:"sprint_start,omitempty"`
	SprintEnd   *time.Time `json:"sprint_end,omitempty"`

	Labels     []string `json:"labels,omitempty"`
	Components []string `json:"components,omitempty"`

	Created   time.Time  `json:"created"`
	Updated   time.Time  `json:"updated"`
	StartDate *time.Time `json:"start_date,omitempty"`
	DueDate   *time.Time `json:"due_date,omitempty"`

	MappedProjectID string `json:"mapped_project_id,omitempty"`
	MappedPhaseID   string `json:"mapped_phase_id,omitempty"`
	MappedMemberID  string `json:"mapped_member_id,omitempty"`
	StaleFromJira   bool   `json:"stale_from_jira,omitempty"`
}

// HasMapping reports whether any local mapping has been layered onto the item.
func (w *WorkItem) HasMapping() bool {
	return w.MappedProjectID != "" || w.MappedPhaseID != "" || w.MappedMemberID != ""
}

// Project is a local planning project. JiraSourceKey plus SyncedFromJira mark
// tracker-originated projects; only those are candidates for automatic update
// on re-sync. User-authored projects are never touched by the sync pipeline.
type Project struct {
	ID             string    `json:"id"`
	UserID         int       `json:"user_id"`
	ConnectionID   string    `json:"connection_id,omitempty"`
	Name           string    `json:"name"`
	JiraSourceKey  string    `json:"jira_source_key,omitempty"`
	SyncedFromJira bool      `json:"synced_from_jira"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Phase is a stage within a project.
type Phase struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"project_id"`
	Name          string    `json:"name"`
	JiraSourceKey string    `json:"jira_source_key,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Assignment is a (member, quarter, days) effort tuple scoped to a phase.
// JiraSynced is tri-state: an explicit false marks a user-authored row the
// suggester must never touch; true or absent means the suggester may
// accumulate into it. At most one such assignment exists per
// (phase, member, quarter).
type Assignment struct {
	ID         string    `json:"id"`
	PhaseID    string    `json:"phase_id"`
	MemberID   string    `json:"member_id"`
	QuarterID  string    `json:"quarter_id"`
	Days       float64   `json:"days"`
	JiraSynced *bool     `json:"jira_synced,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TeamMember is a planned person, matched to Jira by email first, account id second.
type TeamMember struct {
	ID            string `json:"id"`
	UserID        int    `json:"user_id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	JiraAccountID string `json:"jira_account_id,omitempty"`
}

// Quarter is one planning period of the sprint calendar. A sprint resolves to
// the quarter whose Sprints entries match the sprint name by substring.
type Quarter struct {
	ID      string   `json:"id"`
	UserID  int      `json:"user_id"`
	Label   string   `json:"label"`
	Sprints []string `json:"sprints"`
}
