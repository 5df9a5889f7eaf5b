package jira

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	return NewClient(server.URL, "user@example.com", "token"), server
}

func searchIssue(key string) Issue {
	return Issue{ID: "id-" + key, Key: key, Fields: map[string]interface{}{
		"summary":   "summary " + key,
		"issuetype": map[string]interface{}{"name": "Task"},
	}}
}

func TestSearchAllTokenPagination(t *testing.T) {
	var requestedTokens []string
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/api/3/search", r.URL.Path)
		token := r.URL.Query().Get("nextPageToken")
		requestedTokens = append(requestedTokens, token)

		var resp SearchResponse
		switch token {
		case "":
			resp = SearchResponse{Issues: []Issue{searchIssue("A-1"), searchIssue("A-2")}, NextPageToken: "page2"}
		case "page2":
			resp = SearchResponse{Issues: []Issue{searchIssue("A-3")}}
		default:
			t.Fatalf("unexpected token %q", token)
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	issues, err := client.SearchAll(context.Background(), "project = X", []string{"summary"})
	require.NoError(t, err)
	require.Len(t, issues, 3)
	assert.Equal(t, "A-3", issues[2].Key)
	assert.Equal(t, []string{"", "page2"}, requestedTokens)
}

func TestSearchAllOffsetFallback(t *testing.T) {
	var offsets []string
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offsets = append(offsets, r.URL.Query().Get("startAt"))

		var resp SearchResponse
		switch r.URL.Query().Get("startAt") {
		case "":
			resp = SearchResponse{Issues: []Issue{searchIssue("B-1"), searchIssue("B-2")}, Total: 3}
		case "2":
			resp = SearchResponse{Issues: []Issue{searchIssue("B-3")}, Total: 3}
		default:
			t.Fatalf("unexpected startAt %q", r.URL.Query().Get("startAt"))
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	issues, err := client.SearchAll(context.Background(), "project = X", []string{"summary"})
	require.NoError(t, err)
	require.Len(t, issues, 3)
	assert.Equal(t, []string{"", "2"}, offsets)
}

func TestSearchAllStopsWithoutProgressSignals(t *testing.T) {
	calls := 0
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		// Neither a continuation token nor a total: one page is all there is.
		json.NewEncoder(w).Encode(SearchResponse{Issues: []Issue{searchIssue("C-1")}})
	}))
	defer server.Close()

	issues, err := client.SearchAll(context.Background(), "project = X", []string{"summary"})
	require.NoError(t, err)
	assert.Len(t, issues, 1)
	assert.Equal(t, 1, calls)
}

func TestSearchAllEmptyResult(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(SearchResponse{Total: 0})
	}))
	defer server.Close()

	issues, err := client.SearchAll(context.Background(), "project = X", []string{"summary"})
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestClientErrorTaxonomy(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrInvalidCredentials},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
	}
	for _, tc := range cases {
		client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		_, err := client.Myself(context.Background())
		assert.ErrorIs(t, err, tc.want, "status %d", tc.status)
		server.Close()
	}

	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream broken"))
	}))
	defer server.Close()

	_, err := client.Myself(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "upstream broken")
}

func TestClientSendsBasicAuth(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "user@example.com", user)
		assert.Equal(t, "token", pass)
		json.NewEncoder(w).Encode(Myself{DisplayName: "Test User"})
	}))
	defer server.Close()

	me, err := client.Myself(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Test User", me.DisplayName)
}

func TestDiscoverStoryPointsField(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/api/3/field", r.URL.Path)
		json.NewEncoder(w).Encode([]Field{
			{ID: "summary", Name: "Summary", Custom: false},
			{ID: "customfield_10100", Name: "Story point estimate", Custom: true},
			{ID: "customfield_10200", Name: "Story Points", Custom: true},
		})
	}))
	defer server.Close()

	fieldID, err := client.DiscoverStoryPointsField(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "customfield_10100", fieldID)
}

func TestDiscoverStoryPointsFieldIgnoresNonCustom(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Field{
			{ID: "storypoints", Name: "Story Points", Custom: false},
		})
	}))
	defer server.Close()

	fieldID, err := client.DiscoverStoryPointsField(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fieldID)
}

func TestFetchWorkItemsBackfillsParents(t *testing.T) {
	var jqls []string
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jql := r.URL.Query().Get("jql")
		jqls = append(jqls, jql)

		var resp SearchResponse
		if jql == "project = X" {
			story := searchIssue("X-2")
			story.Fields["parent"] = map[string]interface{}{"key": "X-1"}
			resp = SearchResponse{Issues: []Issue{story}}
		} else {
			// Parent backfill request.
			assert.Contains(t, jql, "key IN (X-1)")
			epic := searchIssue("X-1")
			epic.Fields["issuetype"] = map[string]interface{}{"name": "Epic"}
			resp = SearchResponse{Issues: []Issue{epic}}
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	items, err := client.FetchWorkItems(context.Background(), "conn-1", "project = X", "")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "X-2", items[0].JiraKey)
	assert.Equal(t, "X-1", items[1].JiraKey)
	assert.Len(t, jqls, 2)
}

func TestFetchWorkItemsBackfillFailureIsNonFatal(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jql := r.URL.Query().Get("jql")
		if jql == "project = X" {
			story := searchIssue("X-2")
			story.Fields["parent"] = map[string]interface{}{"key": "X-1"}
			json.NewEncoder(w).Encode(SearchResponse{Issues: []Issue{story}})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	items, err := client.FetchWorkItems(context.Background(), "conn-1", "project = X", "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "X-1", items[0].ParentKey)
}
