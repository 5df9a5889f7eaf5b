package planner

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"jira-capacity-sync/database"
)

// SuggestAssignments accumulates per-item effort into phase-scoped
// assignments and returns the full replacement list plus the number of
// assignments created. An item contributes only when it carries an assignee,
// a sprint that resolves to a quarter, both hierarchy mappings, and positive
// story points. Assignments explicitly marked jira_synced=false belong to
// the user and are never modified.
//
// One invocation per sync cycle: re-running over an unchanged item set would
// add the same contributions again.
func SuggestAssignments(conn *database.Connection, items []database.WorkItem, assignments []database.Assignment, members []database.TeamMember, quarters []database.Quarter, now time.Time) ([]database.Assignment, int) {
	out := append([]database.Assignment(nil), assignments...)

	index := make(map[[3]string]int, len(out))
	for i, a := range out {
		index[[3]string{a.PhaseID, a.MemberID, a.QuarterID}] = i
	}

	created := 0
	for _, item := range items {
		if item.MappedProjectID == "" || item.MappedPhaseID == "" {
			continue
		}
		if item.SprintName == "" {
			continue
		}
		member := matchMember(members, item.AssigneeEmail, item.AssigneeAccountID)
		if member == nil {
			continue
		}
		quarter := matchQuarter(quarters, item.SprintName)
		if quarter == nil {
			continue
		}
		if item.StoryPoints == nil || *item.StoryPoints <= 0 {
			continue
		}
		days := round1(*item.StoryPoints * conn.PointsToDays)
		if days <= 0 {
			continue
		}

		key := [3]string{item.MappedPhaseID, member.ID, quarter.ID}
		if i, ok := index[key]; ok {
			if out[i].JiraSynced != nil && !*out[i].JiraSynced {
				continue
			}
			out[i].Days = round1(out[i].Days + days)
			out[i].JiraSynced = boolPtr(true)
			out[i].UpdatedAt = now
			continue
		}

		out = append(out, database.Assignment{
			ID:         uuid.New().String(),
			PhaseID:    item.MappedPhaseID,
			MemberID:   member.ID,
			QuarterID:  quarter.ID,
			Days:       days,
			JiraSynced: boolPtr(true),
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		index[key] = len(out) - 1
		created++
	}

	return out, created
}

// matchMember resolves a tracker assignee to a team member, email first
// (case-insensitive), account id second.
func matchMember(members []database.TeamMember, email, accountID string) *database.TeamMember {
	if email != "" {
		for i := range members {
			if strings.EqualFold(members[i].Email, email) {
				return &members[i]
			}
		}
	}
	if accountID != "" {
		for i := range members {
			if members[i].JiraAccountID == accountID {
				return &members[i]
			}
		}
	}
	return nil
}

// matchQuarter resolves a sprint name against the sprint calendar by
// substring in either direction.
func matchQuarter(quarters []database.Quarter, sprintName string) *database.Quarter {
	lower := strings.ToLower(sprintName)
	for i := range quarters {
		for _, pattern := range quarters[i].Sprints {
			p := strings.ToLower(pattern)
			if p == "" {
				continue
			}
			if strings.Contains(lower, p) || strings.Contains(p, lower) {
				return &quarters[i]
			}
		}
	}
	return nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func boolPtr(v bool) *bool {
	return &v
}
