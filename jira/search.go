package jira

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"

	"jira-capacity-sync/database"
)

const (
	searchPageSize  = 100
	parentBatchSize = 50
)

// SearchAll retrieves every issue matching jql across pages. It follows the
// continuation token when the backend supplies one and falls back to numeric
// offsets only when a total is reported without a token. A page that yields
// no new issues is treated as terminal so a backend reporting neither token
// nor total cannot loop forever.
func (c *Client) SearchAll(ctx context.Context, jql string, fields []string) ([]Issue, error) {
	var all []Issue
	token := ""
	offset := 0
	useOffset := false

	for {
		query := url.Values{}
		query.Set("jql", jql)
		query.Set("maxResults", strconv.Itoa(searchPageSize))
		query.Set("fields", strings.Join(fields, ","))
		if token != "" {
			query.Set("nextPageToken", token)
		} else if useOffset {
			query.Set("startAt", strconv.Itoa(offset))
		}

		var page SearchResponse
		if err := c.get(ctx, "/rest/api/3/search", query, &page); err != nil {
			return nil, fmt.Errorf("search page failed: %w", err)
		}

		if len(page.Issues) == 0 {
			break
		}
		all = append(all, page.Issues...)

		if page.NextPageToken != "" {
			token = page.NextPageToken
			continue
		}
		if page.Total > 0 && len(all) < page.Total {
			token = ""
			useOffset = true
			offset = len(all)
			continue
		}
		break
	}

	return all, nil
}

// FetchByKeys retrieves the given issues by key in bounded batches.
func (c *Client) FetchByKeys(ctx context.Context, keys []string, fields []string) ([]Issue, error) {
	var all []Issue
	for start := 0; start < len(keys); start += parentBatchSize {
		end := start + parentBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		jql := fmt.Sprintf("key IN (%s)", strings.Join(keys[start:end], ", "))
		issues, err := c.SearchAll(ctx, jql, fields)
		if err != nil {
			return nil, err
		}
		all = append(all, issues...)
	}
	return all, nil
}

// FetchItemsByKeys retrieves and maps specific issues by key. Keys that no
// longer exist on the tracker are simply absent from the result.
func (c *Client) FetchItemsByKeys(ctx context.Context, connectionID string, keys []string, storyPointsFieldID string) ([]database.WorkItem, error) {
	issues, err := c.FetchByKeys(ctx, keys, searchFields(storyPointsFieldID))
	if err != nil {
		return nil, err
	}
	items := make([]database.WorkItem, 0, len(issues))
	for _, issue := range issues {
		items = append(items, MapIssue(connectionID, issue, storyPointsFieldID))
	}
	return items, nil
}

// FetchWorkItems runs the full fetch for one connection: the main paginated
// search, inline mapping of each record, then a bounded second pass fetching
// parents that the status filters excluded, so the hierarchy projector always
// has a reachable root for every child. Backfill failures are non-fatal.
func (c *Client) FetchWorkItems(ctx context.Context, connectionID, jql, storyPointsFieldID string) ([]database.WorkItem, error) {
	fields := searchFields(storyPointsFieldID)

	issues, err := c.SearchAll(ctx, jql, fields)
	if err != nil {
		return nil, err
	}

	items := make([]database.WorkItem, 0, len(issues))
	fetched := make(map[string]bool, len(issues))
	for _, issue := range issues {
		item := MapIssue(connectionID, issue, storyPointsFieldID)
		items = append(items, item)
		fetched[item.JiraKey] = true
	}

	var missing []string
	seen := map[string]bool{}
	for i := range items {
		parent := items[i].ParentKey
		if parent != "" && !fetched[parent] && !seen[parent] {
			seen[parent] = true
			missing = append(missing, parent)
		}
	}

	if len(missing) > 0 {
		parents, err := c.FetchByKeys(ctx, missing, fields)
		if err != nil {
			log.Printf("jira: parent backfill failed for %d keys: %v", len(missing), err)
		} else {
			for _, issue := range parents {
				items = append(items, MapIssue(connectionID, issue, storyPointsFieldID))
			}
		}
	}

	return items, nil
}
