package syncer

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"jira-capacity-sync/cache"
	"jira-capacity-sync/database"
	"jira-capacity-sync/jira"
	"jira-capacity-sync/planner"
)

const (
	previewTTL   = 10 * time.Minute
	historyLimit = 20
)

// ErrPreviewExpired is returned when an apply references a preview that was
// never taken or has aged out of the cache.
var ErrPreviewExpired = fmt.Errorf("sync preview expired or not found")

// ClientFactory builds the tracker client for a connection. Tests swap this
// to point at a local server.
type ClientFactory func(conn *database.Connection) *jira.Client

// Service runs the sync pipeline: fetch, diff preview, confirmed apply.
type Service struct {
	store     database.Store
	cache     cache.Cache
	wsManager *WebSocketManager
	newClient ClientFactory

	locksMux  sync.Mutex
	connLocks map[string]*sync.Mutex
}

// NewService creates a new sync service
func NewService(store database.Store, cacheInstance cache.Cache, wsManager *WebSocketManager) *Service {
	return &Service{
		store:     store,
		cache:     cacheInstance,
		wsManager: wsManager,
		newClient: func(conn *database.Connection) *jira.Client {
			return jira.NewClient(conn.BaseURL, conn.Email, conn.APIToken)
		},
		connLocks: make(map[string]*sync.Mutex),
	}
}

// SetClientFactory overrides how tracker clients are built.
func (s *Service) SetClientFactory(factory ClientFactory) {
	s.newClient = factory
}

// Preview is one cached, not-yet-applied diff. Fetched carries the mapped
// batch verbatim so apply never re-fetches.
type Preview struct {
	ID           string              `json:"id"`
	ConnectionID string              `json:"connection_id"`
	CreatedAt    time.Time           `json:"created_at"`
	Fetched      []database.WorkItem `json:"fetched"`
	ToAdd        []database.WorkItem `json:"to_add"`
	ToUpdate     []database.WorkItem `json:"to_update"`
	ToRemove     []database.WorkItem `json:"to_remove"`
	ToKeepStale  []database.WorkItem `json:"to_keep_stale"`

	MappingsToPreserve int `json:"mappings_to_preserve"`
}

// lockConnection serializes all sync work for one connection. The returned
// function releases the lock.
func (s *Service) lockConnection(connectionID string) func() {
	s.locksMux.Lock()
	lock, ok := s.connLocks[connectionID]
	if !ok {
		lock = &sync.Mutex{}
		s.connLocks[connectionID] = lock
	}
	s.locksMux.Unlock()

	lock.Lock()
	return lock.Unlock
}

// loadConnection fetches a connection and enforces ownership.
func (s *Service) loadConnection(userID int, connectionID string) (*database.Connection, error) {
	conn, err := s.store.GetConnection(connectionID)
	if err != nil {
		return nil, err
	}
	if conn.UserID != userID {
		return nil, database.ErrAccessDenied
	}
	return conn, nil
}

// Preview fetches the connection's items and computes the diff against
// stored state without writing anything. The result is cached so a later
// Apply can run on exactly the previewed batch. Stale-but-mapped items get
// one targeted refresh attempt before the diff is final.
func (s *Service) Preview(ctx context.Context, userID int, connectionID string) (*Preview, error) {
	conn, err := s.loadConnection(userID, connectionID)
	if err != nil {
		return nil, err
	}
	unlock := s.lockConnection(conn.ID)
	defer unlock()

	jql, err := jira.BuildQuery(conn.ProjectKey, conn.Types, conn.ExtraQuery)
	if err != nil {
		return nil, err
	}

	client := s.newClient(conn)
	fieldID := s.discoverStoryPointsField(ctx, client, conn)

	fetched, err := client.FetchWorkItems(ctx, conn.ID, jql, fieldID)
	if err != nil {
		s.recordFailure(conn, err)
		return nil, err
	}

	stored, err := s.store.GetWorkItems(conn.ID)
	if err != nil {
		return nil, err
	}

	diff := planner.ComputeDiff(stored, fetched)
	if len(diff.ToKeepStale) > 0 {
		fetched, diff = s.refreshStale(ctx, client, conn, fieldID, stored, fetched, diff)
	}

	preview := &Preview{
		ID:                 uuid.New().String(),
		ConnectionID:       conn.ID,
		CreatedAt:          time.Now(),
		Fetched:            fetched,
		ToAdd:              diff.ToAdd,
		ToUpdate:           diff.ToUpdate,
		ToRemove:           diff.ToRemove,
		ToKeepStale:        diff.ToKeepStale,
		MappingsToPreserve: diff.MappingsToPreserve,
	}
	if err := s.cache.Set(previewKey(conn.ID, preview.ID), preview, previewTTL); err != nil {
		return nil, fmt.Errorf("failed to cache preview: %w", err)
	}

	s.wsManager.NotifySyncPreview(conn.UserID, conn.ID, preview.ID, map[string]int{
		"to_add":        len(preview.ToAdd),
		"to_update":     len(preview.ToUpdate),
		"to_remove":     len(preview.ToRemove),
		"to_keep_stale": len(preview.ToKeepStale),
	})

	return preview, nil
}

// refreshStale re-fetches stale-but-mapped items by key once. Items the
// tracker still returns rejoin the fetched set and the diff is recomputed;
// items still missing stay retained-stale. No second attempt is made.
func (s *Service) refreshStale(ctx context.Context, client *jira.Client, conn *database.Connection, fieldID string, stored, fetched []database.WorkItem, diff planner.SyncDiff) ([]database.WorkItem, planner.SyncDiff) {
	keys := make([]string, 0, len(diff.ToKeepStale))
	for _, item := range diff.ToKeepStale {
		keys = append(keys, item.JiraKey)
	}

	refreshed, err := client.FetchItemsByKeys(ctx, conn.ID, keys, fieldID)
	if err != nil {
		log.Printf("stale refresh failed for connection %s: %v", conn.ID, err)
		return fetched, diff
	}
	if len(refreshed) == 0 {
		return fetched, diff
	}

	fetched = append(fetched, refreshed...)
	return fetched, planner.ComputeDiff(stored, fetched)
}

// discoverStoryPointsField attempts instance discovery and falls back to the
// cached value on failure. A changed result is persisted on the connection
// so later syncs survive a failed discovery.
func (s *Service) discoverStoryPointsField(ctx context.Context, client *jira.Client, conn *database.Connection) string {
	fieldID, err := client.DiscoverStoryPointsField(ctx)
	if err != nil {
		log.Printf("story points discovery failed for connection %s: %v", conn.ID, err)
		return conn.StoryPointsFieldID
	}
	if fieldID != "" && fieldID != conn.StoryPointsFieldID {
		conn.StoryPointsFieldID = fieldID
		if err := s.store.UpdateConnection(conn); err != nil {
			log.Printf("failed to persist discovered field for connection %s: %v", conn.ID, err)
		}
	}
	return conn.StoryPointsFieldID
}

// Apply runs the confirmed half of the pipeline on a cached preview: merge,
// hierarchy projection, assignment suggestion, persistence, history.
func (s *Service) Apply(ctx context.Context, userID int, connectionID, previewID string) (*database.SyncResult, error) {
	conn, err := s.loadConnection(userID, connectionID)
	if err != nil {
		return nil, err
	}
	unlock := s.lockConnection(conn.ID)
	defer unlock()

	var preview Preview
	if err := s.cache.Get(previewKey(conn.ID, previewID), &preview); err != nil {
		return nil, ErrPreviewExpired
	}
	s.cache.Delete(previewKey(conn.ID, previewID))

	conn.SyncStatus = database.SyncStatusSyncing
	if err := s.store.UpdateConnection(conn); err != nil {
		return nil, err
	}
	s.wsManager.NotifySyncStart(conn.UserID, conn.ID)

	result, err := s.applyPreview(conn, &preview)
	if err != nil {
		s.recordFailure(conn, err)
		s.wsManager.NotifySyncError(conn.UserID, conn.ID, err.Error())
		return nil, err
	}

	s.recordSuccess(conn, *result)
	s.wsManager.NotifySyncComplete(conn.UserID, conn.ID, result)
	return result, nil
}

// applyPreview is the write phase. The incoming set for the merge is the
// previewed fetch plus a stale-flagged copy of every retained item, so
// retention and removal both fall out of a single replace.
func (s *Service) applyPreview(conn *database.Connection, preview *Preview) (*database.SyncResult, error) {
	stored, err := s.store.GetWorkItems(conn.ID)
	if err != nil {
		return nil, err
	}

	incoming := append([]database.WorkItem(nil), preview.Fetched...)
	for _, item := range preview.ToKeepStale {
		item.StaleFromJira = true
		incoming = append(incoming, item)
	}

	merged, mergeResult := planner.MergeItems(stored, incoming)

	projects, err := s.store.GetProjects(conn.UserID)
	if err != nil {
		return nil, err
	}
	phases, err := s.store.GetPhases(conn.UserID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	projection := planner.ProjectHierarchy(conn, merged, projects, phases, now)

	result := &database.SyncResult{
		Synced:            len(projection.Items),
		Created:           mergeResult.Created,
		Updated:           mergeResult.Updated,
		Removed:           mergeResult.Removed,
		MappingsPreserved: mergeResult.MappingsPreserved,
		ProjectsCreated:   projection.ProjectsCreated,
		ProjectsUpdated:   projection.ProjectsUpdated,
	}

	finalAssignments, assignmentsCreated, err := s.suggestAssignments(conn, projection.Items, now)
	if err != nil {
		return nil, err
	}
	result.AssignmentsCreated = assignmentsCreated

	if err := s.store.ReplaceWorkItems(conn.ID, projection.Items); err != nil {
		return nil, err
	}
	if err := s.store.ReplaceProjects(conn.UserID, projection.Projects); err != nil {
		return nil, err
	}
	if err := s.store.ReplacePhases(conn.UserID, projection.Phases); err != nil {
		return nil, err
	}
	if finalAssignments != nil {
		if err := s.store.ReplaceAssignments(conn.UserID, finalAssignments); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (s *Service) suggestAssignments(conn *database.Connection, items []database.WorkItem, now time.Time) ([]database.Assignment, int, error) {
	if !conn.AutoCreateAssignments {
		return nil, 0, nil
	}
	assignments, err := s.store.GetAssignments(conn.UserID)
	if err != nil {
		return nil, 0, err
	}
	members, err := s.store.GetTeamMembers(conn.UserID)
	if err != nil {
		return nil, 0, err
	}
	quarters, err := s.store.GetQuarters(conn.UserID)
	if err != nil {
		return nil, 0, err
	}
	out, created := planner.SuggestAssignments(conn, items, assignments, members, quarters, now)
	return out, created, nil
}

// Sync is the one-shot form: preview and apply in a single call, used by the
// "sync now" endpoint where the caller has opted out of confirmation.
func (s *Service) Sync(ctx context.Context, userID int, connectionID string) (*database.SyncResult, error) {
	preview, err := s.Preview(ctx, userID, connectionID)
	if err != nil {
		return nil, err
	}
	return s.Apply(ctx, userID, connectionID, preview.ID)
}

// History returns the connection's bounded sync history, newest first.
func (s *Service) History(userID int, connectionID string) (database.SyncHistory, error) {
	conn, err := s.loadConnection(userID, connectionID)
	if err != nil {
		return nil, err
	}
	return conn.SyncHistory, nil
}

// recordSuccess updates connection status and pushes a history entry.
func (s *Service) recordSuccess(conn *database.Connection, result database.SyncResult) {
	now := time.Now()
	conn.SyncStatus = database.SyncStatusOK
	conn.LastSyncError = ""
	conn.LastSyncAt = &now
	conn.SyncHistory = pushHistory(conn.SyncHistory, database.SyncHistoryEntry{
		Timestamp: now,
		Success:   true,
		Result:    result,
	})
	if err := s.store.UpdateConnection(conn); err != nil {
		log.Printf("failed to persist sync outcome for connection %s: %v", conn.ID, err)
	}
}

// recordFailure marks the connection errored and retains the message.
func (s *Service) recordFailure(conn *database.Connection, syncErr error) {
	now := time.Now()
	conn.SyncStatus = database.SyncStatusError
	conn.LastSyncError = syncErr.Error()
	conn.SyncHistory = pushHistory(conn.SyncHistory, database.SyncHistoryEntry{
		Timestamp: now,
		Success:   false,
		Error:     syncErr.Error(),
	})
	if err := s.store.UpdateConnection(conn); err != nil {
		log.Printf("failed to persist sync failure for connection %s: %v", conn.ID, err)
	}
}

// pushHistory prepends an entry and trims to the retention limit.
func pushHistory(history database.SyncHistory, entry database.SyncHistoryEntry) database.SyncHistory {
	out := make(database.SyncHistory, 0, len(history)+1)
	out = append(out, entry)
	out = append(out, history...)
	if len(out) > historyLimit {
		out = out[:historyLimit]
	}
	return out
}

func previewKey(connectionID, previewID string) string {
	return fmt.Sprintf("sync:preview:%s:%s", connectionID, previewID)
}
