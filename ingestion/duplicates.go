package ingestion

import (
	"sort"
	"strings"

	"bitbucket.org/mmdatafocus/contacts_backend/models"
)

// DuplicateGroup is a set of valid rows sharing a normalized email.
// Conflicting groups need human resolution; identical groups collapse
// silently to the lowest row number.
type DuplicateGroup struct {
	NormalizedEmail string
	Rows            []*models.ContactRow
	Conflicting     bool
}

// Representative is the row that survives into final output when the
// group's members are identical.
func (g DuplicateGroup) Representative() *models.ContactRow {
	rep := g.Rows[0]
	for _, row := range g.Rows[1:] {
		if row.RowNumber < rep.RowNumber {
			rep = row
		}
	}
	return rep
}

func identitySignature(row *models.ContactRow) string {
	parts := []string{row.FirstName, row.LastName, row.Company}
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return strings.Join(parts, "\x00")
}

// DetectDuplicateGroups groups valid rows by normalized email and
// returns every group with more than one member, ordered by email for
// deterministic output. A group is conflicting when any two members
// disagree on a non-email field after trimming and lowercasing.
func DetectDuplicateGroups(rows []*models.ContactRow) []DuplicateGroup {
	byEmail := make(map[string][]*models.ContactRow)
	for _, row := range rows {
		if row.NormalizedEmail == "" {
			continue
		}
		byEmail[row.NormalizedEmail] = append(byEmail[row.NormalizedEmail], row)
	}

	var groups []DuplicateGroup
	for email, members := range byEmail {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool {
			return members[i].RowNumber < members[j].RowNumber
		})
		group := DuplicateGroup{NormalizedEmail: email, Rows: members}
		first := identitySignature(members[0])
		for _, row := range members[1:] {
			if identitySignature(row) != first {
				group.Conflicting = true
				break
			}
		}
		groups = append(groups, group)
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].NormalizedEmail < groups[j].NormalizedEmail
	})
	return groups
}

// DuplicateIssuePayload builds the multi-candidate payload for a
// conflicting group.
func DuplicateIssuePayload(group DuplicateGroup) models.IssuePayload {
	candidates := make([]models.DuplicateCandidate, 0, len(group.Rows))
	for _, row := range group.Rows {
		candidates = append(candidates, models.DuplicateCandidate{
			RowId:     row.ID,
			RowNumber: row.RowNumber,
			Data:      row.FieldMap(),
		})
	}
	return models.IssuePayload{Duplicate: &models.DuplicatePayload{
		NormalizedEmail: group.NormalizedEmail,
		Candidates:      candidates,
	}}
}
