package resolve

import (
	"github.com/solatis/rolebind/internal/expr"
	"github.com/solatis/rolebind/internal/types"
)

// MemberFacts is the already-fetched snapshot of one member.
// The engine reads it and never mutates it.
type MemberFacts struct {
	DiscordID   types.MemberID `yaml:"discord_id" json:"discord_id"`
	DiscordName string         `yaml:"discord_name" json:"discord_name"`
	RobloxID    types.UserID   `yaml:"roblox_id" json:"roblox_id"`
	RobloxName  string         `yaml:"roblox_name" json:"roblox_name"`
	DisplayName string         `yaml:"display_name" json:"display_name"`

	// Roles is the member's current chat-platform role set.
	Roles []types.RoleID `yaml:"roles" json:"roles"`
	// Ranks maps group id to the member's rank. Absent means not a member.
	Ranks map[types.GroupID]types.RankID `yaml:"ranks" json:"ranks"`
	// OwnedAssets lists inventory items the member owns.
	OwnedAssets []types.AssetID `yaml:"owned_assets,omitempty" json:"owned_assets,omitempty"`
}

// snapshot is MemberFacts indexed for lookups during one resolution.
type snapshot struct {
	facts  *MemberFacts
	ctx    *expr.Context
	assets map[types.AssetID]struct{}
}

func newSnapshot(facts *MemberFacts) *snapshot {
	assets := make(map[types.AssetID]struct{}, len(facts.OwnedAssets))
	for _, a := range facts.OwnedAssets {
		assets[a] = struct{}{}
	}
	return &snapshot{
		facts:  facts,
		ctx:    expr.NewContext(facts.Roles, facts.Ranks, facts.RobloxName),
		assets: assets,
	}
}

func (s *snapshot) holds(role types.RoleID) bool { return s.ctx.HasRole(role) }

func (s *snapshot) owns(asset types.AssetID) bool {
	_, ok := s.assets[asset]
	return ok
}
