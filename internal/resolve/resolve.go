// internal/resolve/resolve.go
package resolve

import (
	"fmt"
	"slices"

	"github.com/solatis/rolebind/internal/types"
)

/*
 * Resolution: catalog + member facts -> role diff and nickname.
 *
 * Stages, strictly in order:
 *   1. Deny-list. Any match terminates with *DeniedError carrying the most
 *      severe entry. Broken custom entries are collected, never fatal.
 *   2. Baseline. Verified roles are granted; held unverified roles removed.
 *   3. Matching. Kinds run in types.BindKinds order, binds in catalog order.
 *      Matching binds union their roles into the grant set. The nickname bind
 *      is the highest-priority match with a template; the first seen wins ties.
 *      A custom bind that fails to parse or evaluate aborts with *BindError.
 *   4. Nickname. Format the nickname bind's template, else the catalog
 *      default. Empty or over-long output aborts with *InvalidNicknameError.
 *   5. Diff over the managed universe (every bind target plus verified and
 *      unverified roles). Sticky roles are never removed. Roles outside the
 *      universe are never touched.
 *   6. Bypass. A held "all" or "roles" bypass empties the diff; a held
 *      "nickname" bypass marks the nickname as not to be applied.
 *
 * Nothing here performs I/O. Two calls with equal inputs return equal outcomes.
 */

// Outcome is the result of a successful resolution.
type Outcome struct {
	// Add and Remove are sorted ascending and disjoint.
	Add    []types.RoleID `yaml:"add" json:"add"`
	Remove []types.RoleID `yaml:"remove" json:"remove"`

	// Nickname is always computed, even when NicknameBypassed is set.
	Nickname string `yaml:"nickname" json:"nickname"`
	// NicknameBind is the bind whose template produced Nickname; empty for the default.
	NicknameBind types.BindID `yaml:"nickname_bind,omitempty" json:"nickname_bind,omitempty"`
	// MatchedBinds lists matching binds in evaluation order.
	MatchedBinds []types.BindID `yaml:"matched_binds" json:"matched_binds"`

	RolesBypassed    bool `yaml:"roles_bypassed" json:"roles_bypassed"`
	NicknameBypassed bool `yaml:"nickname_bypassed" json:"nickname_bypassed"`

	// ConfigErrors holds deny-list entries that failed to evaluate.
	ConfigErrors []error `yaml:"-" json:"-"`
}

// ApplyNickname reports whether the caller should set Nickname on the member.
func (o *Outcome) ApplyNickname() bool { return !o.NicknameBypassed }

// HasBypass reports whether facts hold a bypass role of kind.
func HasBypass(catalog *types.Catalog, facts *MemberFacts, kind types.BypassKind) bool {
	held := make(map[types.RoleID]struct{}, len(facts.Roles))
	for _, r := range facts.Roles {
		held[r] = struct{}{}
	}
	for _, b := range catalog.Bypass {
		if b.Kind != kind {
			continue
		}
		if _, ok := held[b.RoleID]; ok {
			return true
		}
	}
	return false
}

// Resolve runs every stage for one member.
func (e *Engine) Resolve(catalog *types.Catalog, facts *MemberFacts) (*Outcome, error) {
	if catalog == nil || facts == nil {
		return nil, fmt.Errorf("resolve: catalog and facts are required")
	}
	snap := newSnapshot(facts)

	deny := e.checkDenyList(catalog, snap)
	if deny.Winner != nil {
		e.logger.Debug("member denied",
			"guild_id", catalog.GuildID,
			"member_id", facts.DiscordID,
			"entry_id", deny.Winner.ID,
			"action", deny.Winner.Action)
		return nil, &DeniedError{Entry: *deny.Winner, Failures: deny.Failures}
	}

	out := &Outcome{ConfigErrors: deny.Failures}

	grant := make(map[types.RoleID]struct{})
	for _, r := range catalog.VerifiedRoles {
		grant[r] = struct{}{}
	}

	var nicknameBind *types.Bind
	for _, kind := range types.BindKinds {
		for i := range catalog.Binds {
			b := &catalog.Binds[i]
			if b.Kind != kind {
				continue
			}
			matched, err := e.bindMatches(b, snap)
			if err != nil {
				return nil, withFailures(err, deny.Failures)
			}
			if !matched {
				continue
			}

			out.MatchedBinds = append(out.MatchedBinds, b.ID)
			for _, r := range b.Roles {
				grant[r] = struct{}{}
			}
			if b.Nickname != "" && (nicknameBind == nil || b.Priority > nicknameBind.Priority) {
				nicknameBind = b
			}
		}
	}

	nickname, err := e.materializeNickname(catalog, nicknameBind, facts)
	if err != nil {
		return nil, withFailures(err, deny.Failures)
	}
	out.Nickname = nickname
	if nicknameBind != nil {
		out.NicknameBind = nicknameBind.ID
	}

	out.Add, out.Remove = diffRoles(catalog, grant, snap)

	if HasBypass(catalog, facts, types.BypassAll) || HasBypass(catalog, facts, types.BypassRoles) {
		out.RolesBypassed = true
		out.Add, out.Remove = []types.RoleID{}, []types.RoleID{}
	}
	out.NicknameBypassed = HasBypass(catalog, facts, types.BypassNickname)

	e.logger.Debug("member resolved",
		"guild_id", catalog.GuildID,
		"member_id", facts.DiscordID,
		"matched", len(out.MatchedBinds),
		"add", len(out.Add),
		"remove", len(out.Remove),
		"nickname_bind", out.NicknameBind,
		"roles_bypassed", out.RolesBypassed,
		"nickname_bypassed", out.NicknameBypassed)
	return out, nil
}

// bindMatches tests one bind. Only custom binds can fail.
func (e *Engine) bindMatches(b *types.Bind, snap *snapshot) (bool, error) {
	switch b.Kind {
	case types.BindRank:
		rank, member := snap.ctx.Rank(b.GroupID)
		if b.RankID == types.GuestRank && !member {
			return true, nil
		}
		return member && rank == b.RankID, nil
	case types.BindGroup:
		_, member := snap.ctx.Rank(b.GroupID)
		return member, nil
	case types.BindCustom:
		matched, err := e.evaluateSource(b.Source, snap)
		if err != nil {
			return false, &BindError{BindID: b.ID, Err: err}
		}
		return matched, nil
	case types.BindAsset:
		return snap.owns(b.AssetID), nil
	default:
		return false, nil
	}
}

func (e *Engine) materializeNickname(catalog *types.Catalog, bind *types.Bind, facts *MemberFacts) (string, error) {
	template := catalog.DefaultNickname
	if bind != nil {
		template = bind.Nickname
	}
	if template == "" {
		return "", fmt.Errorf("%w: guild %s", types.ErrNoDefaultNickname, catalog.GuildID)
	}
	nickname := FormatNickname(template, facts)
	if err := ValidateNickname(nickname); err != nil {
		return "", err
	}
	return nickname, nil
}

// diffRoles compares the grant set against held roles over the managed universe.
func diffRoles(catalog *types.Catalog, grant map[types.RoleID]struct{}, snap *snapshot) (add, remove []types.RoleID) {
	unverified := make(map[types.RoleID]struct{}, len(catalog.UnverifiedRoles))
	for _, r := range catalog.UnverifiedRoles {
		unverified[r] = struct{}{}
		delete(grant, r)
	}
	sticky := make(map[types.RoleID]struct{}, len(catalog.Sticky))
	for _, r := range catalog.Sticky {
		sticky[r] = struct{}{}
	}

	universe := make(map[types.RoleID]struct{})
	for _, b := range catalog.Binds {
		for _, r := range b.Roles {
			universe[r] = struct{}{}
		}
	}
	for _, r := range catalog.VerifiedRoles {
		universe[r] = struct{}{}
	}
	for r := range unverified {
		universe[r] = struct{}{}
	}

	add, remove = []types.RoleID{}, []types.RoleID{}
	for r := range universe {
		_, granted := grant[r]
		held := snap.holds(r)
		switch {
		case granted && !held:
			add = append(add, r)
		case !granted && held:
			_, isUnverified := unverified[r]
			_, isSticky := sticky[r]
			if isUnverified || !isSticky {
				remove = append(remove, r)
			}
		}
	}
	slices.Sort(add)
	slices.Sort(remove)
	return add, remove
}
