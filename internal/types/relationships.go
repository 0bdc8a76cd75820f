package types

import (
	"fmt"
	"sort"
)

// RelationshipRole tags an edge in the document relationship graph.
// The set is closed: the contribution types plus the abstract
// source_group role. Anything else is rejected at construction.
type RelationshipRole string

const (
	RoleThesis      RelationshipRole = RelationshipRole(ContributionThesis)
	RoleAntithesis  RelationshipRole = RelationshipRole(ContributionAntithesis)
	RoleSynthesis   RelationshipRole = RelationshipRole(ContributionSynthesis)
	RoleParenthesis RelationshipRole = RelationshipRole(ContributionParenthesis)
	RoleParalysis   RelationshipRole = RelationshipRole(ContributionParalysis)
	RoleSourceGroup RelationshipRole = "source_group"
)

var validRoles = map[RelationshipRole]bool{
	RoleThesis:      true,
	RoleAntithesis:  true,
	RoleSynthesis:   true,
	RoleParenthesis: true,
	RoleParalysis:   true,
	RoleSourceGroup: true,
}

// ValidRole reports whether r is a member of the closed role set.
func ValidRole(r RelationshipRole) bool {
	return validRoles[r]
}

// DocumentRelationships maps relationship roles to related document
// ids. It replaces an untyped JSON blob; use NewDocumentRelationships
// so unknown roles are rejected up front.
type DocumentRelationships map[RelationshipRole]string

// NewDocumentRelationships validates every key against the closed role
// set and drops empty-id entries.
func NewDocumentRelationships(entries map[RelationshipRole]string) (DocumentRelationships, error) {
	rels := make(DocumentRelationships, len(entries))
	for role, id := range entries {
		if !ValidRole(role) {
			return nil, fmt.Errorf("unknown relationship role %q", role)
		}
		if id == "" {
			continue
		}
		rels[role] = id
	}
	return rels, nil
}

// Get returns the related document id for role, or "" when absent.
func (r DocumentRelationships) Get(role RelationshipRole) string {
	if r == nil {
		return ""
	}
	return r[role]
}

// Roles returns the populated roles in deterministic order.
func (r DocumentRelationships) Roles() []RelationshipRole {
	roles := make([]RelationshipRole, 0, len(r))
	for role := range r {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// Clone returns an independent copy so payload transformations never
// alias the source job's map.
func (r DocumentRelationships) Clone() DocumentRelationships {
	if r == nil {
		return nil
	}
	out := make(DocumentRelationships, len(r))
	for role, id := range r {
		out[role] = id
	}
	return out
}
