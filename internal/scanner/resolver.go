package scanner

import (
	"asset-catalog/internal/catalog"
)

// Action is the outcome of classifying one discovered file against the
// catalog.
type Action string

const (
	ActionNew       Action = "new"
	ActionUpdate    Action = "update"
	ActionMoved     Action = "moved"
	ActionDuplicate Action = "duplicate"
	ActionUnchanged Action = "unchanged"
	ActionSkip      Action = "skip"
	ActionError     Action = "error"
)

// Candidate is the file-side input to duplicate resolution.
type Candidate struct {
	RelativePath string
	Size         int64
	PartialHash  string
	// FullHash is computed for collision candidates only. Empty means not
	// verified; the partial hash is then trusted as a pre-filter.
	FullHash string
}

// Decision is what the resolver decided to do with a candidate. Target is
// the matched catalog row: the merge target under merge, the original row
// under warn, nil for a plain NEW.
type Decision struct {
	Action Action
	Target *catalog.Asset
}

// ResolveDuplicate applies the duplicate policy to a candidate with no
// catalog row at its own path but partial-hash matches elsewhere.
//
// matches must be ordered by last_seen_at descending so the path most
// recently confirmed to exist wins over stale entries. A match whose stored
// full hash contradicts the candidate's is a partial-hash collision, not a
// duplicate, and is ignored. The candidate's own path is ignored too, so
// callers can pass raw index results.
func ResolveDuplicate(cand *Candidate, matches []*catalog.Asset, policy catalog.DuplicatePolicy) Decision {
	var target *catalog.Asset
	for _, m := range matches {
		if m.RelativePath == cand.RelativePath {
			continue
		}
		if cand.FullHash != "" && m.FullHash != "" && m.FullHash != cand.FullHash {
			continue
		}
		target = m
		break
	}
	if target == nil {
		return Decision{Action: ActionNew}
	}

	switch policy {
	case catalog.PolicyReject:
		return Decision{Action: ActionDuplicate, Target: target}
	case catalog.PolicyWarn:
		return Decision{Action: ActionDuplicate, Target: target}
	default:
		return Decision{Action: ActionMoved, Target: target}
	}
}
