package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"jira-capacity-sync/database"
	"jira-capacity-sync/jira"
)

// ErrAccessDenied aliases the store-level ownership sentinel so callers can
// match it without importing database directly.
var ErrAccessDenied = database.ErrAccessDenied

// Defaults applied to a new connection when the request leaves them unset.
const (
	DefaultPointsToDays          = 0.5
	DefaultDaysPerItem           = 1.0
	DefaultStatusFilter          = database.FilterExcludeDone
	DefaultHierarchyMode         = database.ModeAuto
	DefaultAutoCreateProjects    = true
	DefaultAutoCreateAssignments = true
)

// Service manages tracker connection configuration.
type Service struct {
	store database.Store
}

// NewService creates a new configuration service
func NewService(store database.Store) *Service {
	return &Service{store: store}
}

// ConnectionRequest carries create/update input. Pointer fields distinguish
// "not provided" from a zero value on update.
type ConnectionRequest struct {
	Name       string `json:"name"`
	BaseURL    string `json:"base_url"`
	Email      string `json:"email"`
	APIToken   string `json:"api_token"`
	ProjectKey string `json:"project_key"`

	Types         database.TypeConfigs   `json:"types"`
	HierarchyMode database.HierarchyMode `json:"hierarchy_mode"`
	ExtraQuery    string                 `json:"extra_query"`

	AutoCreateProjects    *bool    `json:"auto_create_projects"`
	AutoCreateAssignments *bool    `json:"auto_create_assignments"`
	PointsToDays          *float64 `json:"points_to_days"`
	DefaultDaysPerItem    *float64 `json:"default_days_per_item"`
}

// DefaultTypeConfigs enables every item type with the done-excluding filter.
func DefaultTypeConfigs() database.TypeConfigs {
	configs := make(database.TypeConfigs, 0, len(database.AllItemTypes))
	for _, t := range database.AllItemTypes {
		configs = append(configs, database.TypeSyncConfig{
			Type:         t,
			Enabled:      true,
			StatusFilter: DefaultStatusFilter,
		})
	}
	return configs
}

// CreateConnection validates the request, fills defaults and persists the
// new connection.
func (s *Service) CreateConnection(userID int, req ConnectionRequest) (*database.Connection, error) {
	if err := validateRequest(&req, true); err != nil {
		return nil, err
	}

	now := time.Now()
	conn := &database.Connection{
		ID:         uuid.New().String(),
		UserID:     userID,
		Name:       req.Name,
		BaseURL:    strings.TrimRight(req.BaseURL, "/"),
		Email:      req.Email,
		APIToken:   req.APIToken,
		ProjectKey: req.ProjectKey,

		Types:         req.Types,
		HierarchyMode: req.HierarchyMode,
		ExtraQuery:    req.ExtraQuery,

		AutoCreateProjects:    DefaultAutoCreateProjects,
		AutoCreateAssignments: DefaultAutoCreateAssignments,
		PointsToDays:          DefaultPointsToDays,
		DefaultDaysPerItem:    DefaultDaysPerItem,

		SyncStatus: database.SyncStatusIdle,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if len(conn.Types) == 0 {
		conn.Types = DefaultTypeConfigs()
	}
	if conn.HierarchyMode == "" {
		conn.HierarchyMode = DefaultHierarchyMode
	}
	if req.AutoCreateProjects != nil {
		conn.AutoCreateProjects = *req.AutoCreateProjects
	}
	if req.AutoCreateAssignments != nil {
		conn.AutoCreateAssignments = *req.AutoCreateAssignments
	}
	if req.PointsToDays != nil {
		conn.PointsToDays = *req.PointsToDays
	}
	if req.DefaultDaysPerItem != nil {
		conn.DefaultDaysPerItem = *req.DefaultDaysPerItem
	}

	if err := s.store.CreateConnection(conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// GetConnections returns all connections owned by the user.
func (s *Service) GetConnections(userID int) ([]*database.Connection, error) {
	return s.store.GetUserConnections(userID)
}

// GetConnection returns one connection, enforcing ownership.
func (s *Service) GetConnection(userID int, connectionID string) (*database.Connection, error) {
	conn, err := s.store.GetConnection(connectionID)
	if err != nil {
		return nil, err
	}
	if conn.UserID != userID {
		return nil, ErrAccessDenied
	}
	return conn, nil
}

// UpdateConnection applies the provided fields to an existing connection.
// Sync state and the discovered field cache are not touched here.
func (s *Service) UpdateConnection(userID int, connectionID string, req ConnectionRequest) (*database.Connection, error) {
	conn, err := s.GetConnection(userID, connectionID)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(&req, false); err != nil {
		return nil, err
	}

	if req.Name != "" {
		conn.Name = req.Name
	}
	if req.BaseURL != "" {
		conn.BaseURL = strings.TrimRight(req.BaseURL, "/")
	}
	if req.Email != "" {
		conn.Email = req.Email
	}
	if req.APIToken != "" {
		conn.APIToken = req.APIToken
	}
	if req.ProjectKey != "" {
		conn.ProjectKey = req.ProjectKey
	}
	if len(req.Types) > 0 {
		conn.Types = req.Types
	}
	if req.HierarchyMode != "" {
		conn.HierarchyMode = req.HierarchyMode
	}
	conn.ExtraQuery = req.ExtraQuery
	if req.AutoCreateProjects != nil {
		conn.AutoCreateProjects = *req.AutoCreateProjects
	}
	if req.AutoCreateAssignments != nil {
		conn.AutoCreateAssignments = *req.AutoCreateAssignments
	}
	if req.PointsToDays != nil {
		conn.PointsToDays = *req.PointsToDays
	}
	if req.DefaultDaysPerItem != nil {
		conn.DefaultDaysPerItem = *req.DefaultDaysPerItem
	}
	conn.UpdatedAt = time.Now()

	if err := s.store.UpdateConnection(conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// DeleteConnection removes a connection and its synced items.
func (s *Service) DeleteConnection(userID int, connectionID string) error {
	if _, err := s.GetConnection(userID, connectionID); err != nil {
		return err
	}
	return s.store.DeleteConnection(connectionID)
}

// TestResult reports what a connectivity probe could reach.
type TestResult struct {
	User        string `json:"user"`
	ProjectName string `json:"project_name"`
}

// TestConnection verifies credentials and project visibility against the
// live tracker.
func (s *Service) TestConnection(ctx context.Context, userID int, connectionID string) (*TestResult, error) {
	conn, err := s.GetConnection(userID, connectionID)
	if err != nil {
		return nil, err
	}

	client := jira.NewClient(conn.BaseURL, conn.Email, conn.APIToken)
	me, err := client.Myself(ctx)
	if err != nil {
		return nil, fmt.Errorf("credential check failed: %w", err)
	}
	project, err := client.Project(ctx, conn.ProjectKey)
	if err != nil {
		return nil, fmt.Errorf("project check failed: %w", err)
	}

	return &TestResult{
		User:        me.DisplayName,
		ProjectName: project.Name,
	}, nil
}

func validateRequest(req *ConnectionRequest, creating bool) error {
	if creating {
		if req.Name == "" {
			return fmt.Errorf("name is required")
		}
		if req.BaseURL == "" {
			return fmt.Errorf("base_url is required")
		}
		if req.Email == "" || req.APIToken == "" {
			return fmt.Errorf("email and api_token are required")
		}
		if req.ProjectKey == "" {
			return fmt.Errorf("project_key is required")
		}
	}
	if req.BaseURL != "" && !strings.HasPrefix(req.BaseURL, "http") {
		return fmt.Errorf("base_url must be an http(s) URL")
	}
	switch req.HierarchyMode {
	case "", database.ModeAuto, database.ModeEpicAsProject, database.ModeFeatureAsProject, database.ModeFlat:
	default:
		return fmt.Errorf("unknown hierarchy mode: %s", req.HierarchyMode)
	}
	for _, tc := range req.Types {
		switch tc.Type {
		case database.TypeEpic, database.TypeFeature, database.TypeStory, database.TypeTask, database.TypeBug:
		default:
			return fmt.Errorf("unknown item type: %s", tc.Type)
		}
		switch tc.StatusFilter {
		case "", database.FilterAll, database.FilterExcludeDone, database.FilterActiveOnly, database.FilterTodoOnly:
		default:
			return fmt.Errorf("unknown status filter: %s", tc.StatusFilter)
		}
	}
	if req.PointsToDays != nil && *req.PointsToDays < 0 {
		return fmt.Errorf("points_to_days must be non-negative")
	}
	if req.DefaultDaysPerItem != nil && *req.DefaultDaysPerItem < 0 {
		return fmt.Errorf("default_days_per_item must be non-negative")
	}
	return nil
}
