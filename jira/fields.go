package jira

import (
	"context"
	"regexp"
)

// storyPointsName matches the display names Jira instances give the story
// points custom field ("Story Points", "Story point estimate", ...).
var storyPointsName = regexp.MustCompile(`(?i)^story point(s| estimate)?$`)

// Known custom field ids tried when instance discovery is unavailable,
// in priority order.
var legacyStoryPointsFields = []string{
	"customfield_10016",
	"customfield_10026",
	"customfield_10004",
	"customfield_10002",
}

// Legacy "epic link" custom field ids, tried in priority order when an issue
// has no structural parent link.
var epicLinkFields = []string{
	"customfield_10014",
	"customfield_10008",
}

// sprintField is the agile sprint custom field on cloud instances.
const sprintField = "customfield_10020"

// startDateField is the common "Start date" custom field.
const startDateField = "customfield_10015"

// DiscoverStoryPointsField finds the instance-specific custom field that
// holds story points. Failure is non-fatal for a sync: it only disables the
// instance-specific source, leaving the legacy field fallbacks.
func (c *Client) DiscoverStoryPointsField(ctx context.Context) (string, error) {
	fields, err := c.Fields(ctx)
	if err != nil {
		return "", err
	}
	for _, f := range fields {
		if f.Custom && storyPointsName.MatchString(f.Name) {
			return f.ID, nil
		}
	}
	return "", nil
}

// searchFields is the field set requested on every search, plus whatever
// discovered story-points field the caller appends.
func searchFields(storyPointsFieldID string) []string {
	fields := []string{
		"summary", "issuetype", "status", "assignee", "parent",
		"labels", "components", "created", "updated", "duedate",
		"timeoriginalestimate", "timespent",
		sprintField, startDateField,
	}
	fields = append(fields, epicLinkFields...)
	fields = append(fields, legacyStoryPointsFields...)
	if storyPointsFieldID != "" {
		fields = append(fields, storyPointsFieldID)
	}
	return fields
}
