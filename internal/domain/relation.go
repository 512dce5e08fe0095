package domain

// RelationType names a directed issue-to-issue relation.
type RelationType string

const (
	RelationRelates    RelationType = "relates"
	RelationDuplicates RelationType = "duplicates"
	RelationDuplicated RelationType = "duplicated"
	RelationBlocks     RelationType = "blocks"
	RelationBlocked    RelationType = "blocked"
	RelationPrecedes   RelationType = "precedes"
	RelationFollows    RelationType = "follows"
	RelationCopiedTo   RelationType = "copied_to"
	RelationCopiedFrom RelationType = "copied_from"
)

// RelationTypes lists every recognized relation type in a stable order,
// matching the order import columns are offered for mapping.
func RelationTypes() []RelationType {
	return []RelationType{
		RelationRelates,
		RelationDuplicates,
		RelationDuplicated,
		RelationBlocks,
		RelationBlocked,
		RelationPrecedes,
		RelationFollows,
		RelationCopiedTo,
		RelationCopiedFrom,
	}
}

// Relation links two issues.
type Relation struct {
	ID          int64        `json:"id"`
	IssueFromID int64        `json:"issue_from_id"`
	IssueToID   int64        `json:"issue_to_id"`
	Type        RelationType `json:"relation_type"`
}

// OtherIssue returns the counterpart of issueID in the relation.
func (r Relation) OtherIssue(issueID int64) int64 {
	if r.IssueFromID == issueID {
		return r.IssueToID
	}
	return r.IssueFromID
}

// TypeFor returns the relation type as seen from issueID's side. A "blocks"
// relation reads as "blocked" from the target issue, and so on.
func (r Relation) TypeFor(issueID int64) RelationType {
	if r.IssueFromID == issueID {
		return r.Type
	}
	switch r.Type {
	case RelationBlocks:
		return RelationBlocked
	case RelationBlocked:
		return RelationBlocks
	case RelationDuplicates:
		return RelationDuplicated
	case RelationDuplicated:
		return RelationDuplicates
	case RelationPrecedes:
		return RelationFollows
	case RelationFollows:
		return RelationPrecedes
	case RelationCopiedTo:
		return RelationCopiedFrom
	case RelationCopiedFrom:
		return RelationCopiedTo
	default:
		return r.Type
	}
}
