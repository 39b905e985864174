package api

import (
	"context"
	"errors"
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/rolebind/internal/core/telemetry"
	"github.com/solatis/rolebind/internal/resolve"
	"github.com/solatis/rolebind/internal/types"
)

type resolveMemberRequest struct {
	Member resolve.MemberFacts `json:"member"`
}

// ResolveMember resolves one member of the authenticated guild.
//
// Request:
//
//	{"member": {"discord_id": "...", "discord_name": "...", "roblox_id": "...",
//	            "roblox_name": "...", "display_name": "...", "roles": [...],
//	            "ranks": {"<group_id>": <rank>}, "owned_assets": [...]}}
//
// Response "status" is one of:
//
//	resolved  add_roles, remove_roles, nickname, apply_nickname, nickname_bind,
//	          matched_binds, roles_bypassed, nickname_bypassed
//	bypassed  the member holds a bypass role of kind "all"; nothing to apply
//	denied    denied.entry_id, denied.action, denied.reason
//
// Both resolved and denied responses carry "warnings" for deny-list entries
// whose expressions failed. A FAILED_PRECONDITION error carries the same list
// as a status detail.
func (s *BindingService) ResolveMember(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	guild, err := guildID(ctx)
	if err != nil {
		return nil, err
	}

	var req resolveMemberRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, invalidArgument("decoding request: %v", err)
	}
	if req.Member.DiscordID == 0 {
		return nil, invalidArgument("member.discord_id is required")
	}
	facts := &req.Member
	if facts.Ranks == nil {
		facts.Ranks = map[types.GroupID]types.RankID{}
	}

	catalog, err := s.store.LoadCatalog(ctx, guild)
	if err != nil {
		s.observe(telemetry.OutcomeFailed, 0)
		return nil, storeStatus(err)
	}

	if resolve.HasBypass(catalog, facts, types.BypassAll) {
		s.logger.Debug("member bypassed", "guild_id", guild, "discord_id", facts.DiscordID)
		s.observe(telemetry.OutcomeBypassed, 0)
		return encodeResponse(map[string]any{"status": telemetry.OutcomeBypassed})
	}

	outcome, err := s.engine.Resolve(catalog, facts)
	var denied *resolve.DeniedError
	if errors.As(err, &denied) {
		s.logger.Info("member denied",
			"guild_id", guild, "discord_id", facts.DiscordID,
			"entry_id", denied.Entry.ID, "action", denied.Entry.Action.String())
		s.observe(telemetry.OutcomeDenied, len(denied.Failures))
		return encodeResponse(map[string]any{
			"status": telemetry.OutcomeDenied,
			"denied": map[string]any{
				"entry_id": string(denied.Entry.ID),
				"action":   denied.Entry.Action.String(),
				"reason":   denied.Entry.Reason,
			},
			"warnings": errorList(denied.Failures),
		})
	}
	if err != nil {
		failures := resolve.DenyListFailures(err)
		s.logger.Warn("resolution failed",
			"guild_id", guild, "discord_id", facts.DiscordID,
			"error", err, "deny_list_failures", len(failures))
		s.observe(telemetry.OutcomeFailed, len(failures))
		return nil, resolveStatus(err)
	}

	s.observe(telemetry.OutcomeResolved, len(outcome.ConfigErrors))
	return encodeResponse(outcomeFields(outcome))
}

func outcomeFields(o *resolve.Outcome) map[string]any {
	return map[string]any{
		"status":            telemetry.OutcomeResolved,
		"add_roles":         idStrings(o.Add),
		"remove_roles":      idStrings(o.Remove),
		"nickname":          o.Nickname,
		"apply_nickname":    o.ApplyNickname(),
		"nickname_bind":     string(o.NicknameBind),
		"matched_binds":     stringList(o.MatchedBinds),
		"roles_bypassed":    o.RolesBypassed,
		"nickname_bypassed": o.NicknameBypassed,
		"warnings":          errorList(o.ConfigErrors),
	}
}

// formatID renders a platform identifier for a response field.
func formatID[T ~uint64](id T) string {
	return strconv.FormatUint(uint64(id), 10)
}
