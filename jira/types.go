package jira

// Issue is one raw search result. Fields is left as a loose map because half
// of the keys are instance-specific custom field ids only known at runtime.
type Issue struct {
	ID     string                 `json:"id"`
	Key    string                 `json:"key"`
	Fields map[string]interface{} `json:"fields"`
}

// SearchResponse is the search endpoint page envelope. Newer backends return
// nextPageToken; older ones only startAt/maxResults/total.
type SearchResponse struct {
	StartAt       int     `json:"startAt"`
	MaxResults    int     `json:"maxResults"`
	Total         int     `json:"total"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
	Issues        []Issue `json:"issues"`
}

// Field is one entry of the field-metadata endpoint.
type Field struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Custom bool   `json:"custom"`
}

// Myself is the current-user identity used to verify credentials.
type Myself struct {
	AccountID    string `json:"accountId"`
	EmailAddress string `json:"emailAddress"`
	DisplayName  string `json:"displayName"`
}

// ProjectInfo is the tracker-side project record.
type ProjectInfo struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}
