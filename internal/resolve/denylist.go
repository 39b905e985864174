package resolve

import (
	"github.com/solatis/rolebind/internal/types"
)

// DenyListResult is the outcome of the deny-list stage.
type DenyListResult struct {
	// Winner is the most severe matching entry, nil when nothing matched.
	Winner *types.DenyListEntry
	// Matched lists every matching entry in catalog order.
	Matched []types.DenyListID
	// Failures holds one *DenyListEntryError per entry that could not be evaluated.
	Failures []error
}

// CheckDenyList evaluates every entry in catalog order. A broken custom entry
// is recorded in Failures and does not stop the others from being checked.
// Among matches the highest action wins; ties go to the earliest entry.
func (e *Engine) CheckDenyList(catalog *types.Catalog, facts *MemberFacts) *DenyListResult {
	return e.checkDenyList(catalog, newSnapshot(facts))
}

func (e *Engine) checkDenyList(catalog *types.Catalog, snap *snapshot) *DenyListResult {
	res := &DenyListResult{}
	for i := range catalog.DenyList {
		entry := &catalog.DenyList[i]

		matched, err := e.denyListMatches(entry, snap)
		if err != nil {
			e.logger.Warn("deny-list entry failed to evaluate",
				"guild_id", catalog.GuildID,
				"entry_id", entry.ID,
				"error", err)
			res.Failures = append(res.Failures, &DenyListEntryError{EntryID: entry.ID, Err: err})
			continue
		}
		if !matched {
			continue
		}

		res.Matched = append(res.Matched, entry.ID)
		if res.Winner == nil || entry.Action > res.Winner.Action {
			res.Winner = entry
		}
	}
	return res
}

func (e *Engine) denyListMatches(entry *types.DenyListEntry, snap *snapshot) (bool, error) {
	switch entry.Match {
	case types.DenyByUser:
		return snap.facts.RobloxID != 0 && snap.facts.RobloxID == entry.UserID, nil
	case types.DenyByGroup:
		_, member := snap.ctx.Rank(entry.GroupID)
		return member, nil
	case types.DenyByCustom:
		return e.evaluateSource(entry.Source, snap)
	default:
		return false, types.ErrInvalidDenyList
	}
}
