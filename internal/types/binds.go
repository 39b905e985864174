// internal/types/binds.go
package types

import (
	"fmt"
	"strings"
)

/*
 * Domain types for binding resolution.
 *
 * Provides the Bind Catalog: the ordered, read-only configuration consumed by
 * internal/resolve. Catalogs are supplied by the configuration store (or a
 * catalog file) and never mutated during resolution.
 *
 * Key types:
 *   - Bind: one rule mapping hierarchy facts to target roles and a nickname
 *   - DenyListEntry: a rule refusing service to matching members
 *   - BypassRole: a role exempting its holder from role and/or nickname updates
 *   - Catalog: everything one guild has configured
 *
 * Bind is a sum type over four kinds. Variant-specific fields are mutually
 * exclusive and checked by Validate; readers switch on Kind.
 *
 * Enums marshal as lowercase text so catalog files and the wire format stay
 * readable. Ordinals of DenyAction are significant: higher is more severe.
 */

// BindID identifies a bind (UUIDv7 string).
type BindID string

// DenyListID identifies a deny-list entry (UUIDv7 string).
type DenyListID string

// BindKind selects a Bind variant.
type BindKind int

const (
	BindUnspecified BindKind = iota
	BindRank
	BindGroup
	BindCustom
	BindAsset
)

// BindKinds is the stable kind iteration order used by resolution.
var BindKinds = []BindKind{BindRank, BindGroup, BindCustom, BindAsset}

var bindKindNames = map[BindKind]string{
	BindUnspecified: "unspecified",
	BindRank:        "rank",
	BindGroup:       "group",
	BindCustom:      "custom",
	BindAsset:       "asset",
}

func (k BindKind) String() string {
	if name, ok := bindKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("BindKind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k BindKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *BindKind) UnmarshalText(text []byte) error {
	v, err := parseEnum("bind kind", string(text), bindKindNames)
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// AssetKind distinguishes the reputation-platform inventory an asset lives in.
type AssetKind int

const (
	AssetUnspecified AssetKind = iota
	AssetBadge
	AssetGamepass
	AssetCatalog
	AssetBundle
)

var assetKindNames = map[AssetKind]string{
	AssetUnspecified: "unspecified",
	AssetBadge:       "badge",
	AssetGamepass:    "gamepass",
	AssetCatalog:     "catalog",
	AssetBundle:      "bundle",
}

func (k AssetKind) String() string {
	if name, ok := assetKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("AssetKind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k AssetKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *AssetKind) UnmarshalText(text []byte) error {
	v, err := parseEnum("asset kind", string(text), assetKindNames)
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Bind maps eligibility criteria to target roles and a nickname template.
type Bind struct {
	ID       BindID   `yaml:"id" json:"id"`
	Kind     BindKind `yaml:"kind" json:"kind"`
	Priority int      `yaml:"priority" json:"priority"`
	Nickname string   `yaml:"nickname,omitempty" json:"nickname,omitempty"`
	Roles    []RoleID `yaml:"roles" json:"roles"`

	GroupID   GroupID   `yaml:"group_id,omitempty" json:"group_id,omitempty"`     // rank, group
	RankID    RankID    `yaml:"rank_id,omitempty" json:"rank_id,omitempty"`       // rank; 0 = guest
	Source    string    `yaml:"source,omitempty" json:"source,omitempty"`         // custom
	AssetID   AssetID   `yaml:"asset_id,omitempty" json:"asset_id,omitempty"`     // asset
	AssetKind AssetKind `yaml:"asset_kind,omitempty" json:"asset_kind,omitempty"` // asset
}

// Validate checks that variant-specific fields agree with Kind.
// Expression syntax and source length of custom binds are not checked here;
// the parser enforces both with the engine's configured limits.
func (b *Bind) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("%w: bind id must not be empty", ErrInvalidBind)
	}
	if len(b.Roles) == 0 && b.Nickname == "" {
		return fmt.Errorf("%w: bind %s grants no roles and sets no nickname", ErrInvalidBind, b.ID)
	}

	switch b.Kind {
	case BindRank:
		if b.GroupID == 0 {
			return fmt.Errorf("%w: rank bind %s requires group_id", ErrInvalidBind, b.ID)
		}
		if b.Source != "" || b.AssetID != 0 {
			return fmt.Errorf("%w: rank bind %s carries custom or asset fields", ErrInvalidBind, b.ID)
		}
	case BindGroup:
		if b.GroupID == 0 {
			return fmt.Errorf("%w: group bind %s requires group_id", ErrInvalidBind, b.ID)
		}
		if b.RankID != 0 || b.Source != "" || b.AssetID != 0 {
			return fmt.Errorf("%w: group bind %s carries rank, custom or asset fields", ErrInvalidBind, b.ID)
		}
	case BindCustom:
		if strings.TrimSpace(b.Source) == "" {
			return fmt.Errorf("%w: custom bind %s requires source", ErrInvalidBind, b.ID)
		}
		if b.GroupID != 0 || b.RankID != 0 || b.AssetID != 0 {
			return fmt.Errorf("%w: custom bind %s carries group or asset fields", ErrInvalidBind, b.ID)
		}
	case BindAsset:
		if b.AssetID == 0 {
			return fmt.Errorf("%w: asset bind %s requires asset_id", ErrInvalidBind, b.ID)
		}
		if b.AssetKind == AssetUnspecified {
			return fmt.Errorf("%w: asset bind %s requires asset_kind", ErrInvalidBind, b.ID)
		}
		if b.GroupID != 0 || b.RankID != 0 || b.Source != "" {
			return fmt.Errorf("%w: asset bind %s carries group or custom fields", ErrInvalidBind, b.ID)
		}
	default:
		return fmt.Errorf("%w: bind %s has unsupported kind %v", ErrInvalidBind, b.ID, b.Kind)
	}
	return nil
}

// DenyAction is the action a matching deny-list entry requests.
// Ordinals are ordered by severity: Ban > Kick > None.
type DenyAction int

const (
	DenyNone DenyAction = iota
	DenyKick
	DenyBan
)

var denyActionNames = map[DenyAction]string{
	DenyNone: "none",
	DenyKick: "kick",
	DenyBan:  "ban",
}

func (a DenyAction) String() string {
	if name, ok := denyActionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("DenyAction(%d)", int(a))
}

// MarshalText implements encoding.TextMarshaler.
func (a DenyAction) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *DenyAction) UnmarshalText(text []byte) error {
	v, err := parseEnum("deny action", string(text), denyActionNames)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// DenyMatch selects how a deny-list entry matches members.
type DenyMatch int

const (
	DenyMatchUnspecified DenyMatch = iota
	DenyByUser
	DenyByGroup
	DenyByCustom
)

var denyMatchNames = map[DenyMatch]string{
	DenyMatchUnspecified: "unspecified",
	DenyByUser:           "user",
	DenyByGroup:          "group",
	DenyByCustom:         "custom",
}

func (m DenyMatch) String() string {
	if name, ok := denyMatchNames[m]; ok {
		return name
	}
	return fmt.Sprintf("DenyMatch(%d)", int(m))
}

// MarshalText implements encoding.TextMarshaler.
func (m DenyMatch) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *DenyMatch) UnmarshalText(text []byte) error {
	v, err := parseEnum("deny match", string(text), denyMatchNames)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// DenyListEntry refuses service to members matching by user, group or expression.
type DenyListEntry struct {
	ID     DenyListID `yaml:"id" json:"id"`
	Reason string     `yaml:"reason,omitempty" json:"reason,omitempty"`
	Action DenyAction `yaml:"action" json:"action"`
	Match  DenyMatch  `yaml:"match" json:"match"`

	UserID  UserID  `yaml:"user_id,omitempty" json:"user_id,omitempty"`   // user
	GroupID GroupID `yaml:"group_id,omitempty" json:"group_id,omitempty"` // group
	Source  string  `yaml:"source,omitempty" json:"source,omitempty"`     // custom
}

// Validate checks that match-specific fields agree with Match.
func (d *DenyListEntry) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: entry id must not be empty", ErrInvalidDenyList)
	}
	if _, ok := denyActionNames[d.Action]; !ok {
		return fmt.Errorf("%w: entry %s has unsupported action %v", ErrInvalidDenyList, d.ID, d.Action)
	}
	switch d.Match {
	case DenyByUser:
		if d.UserID == 0 {
			return fmt.Errorf("%w: entry %s requires user_id", ErrInvalidDenyList, d.ID)
		}
	case DenyByGroup:
		if d.GroupID == 0 {
			return fmt.Errorf("%w: entry %s requires group_id", ErrInvalidDenyList, d.ID)
		}
	case DenyByCustom:
		if strings.TrimSpace(d.Source) == "" {
			return fmt.Errorf("%w: entry %s requires source", ErrInvalidDenyList, d.ID)
		}
	default:
		return fmt.Errorf("%w: entry %s has unsupported match %v", ErrInvalidDenyList, d.ID, d.Match)
	}
	return nil
}

// BypassKind selects which half of a resolution a bypass role suppresses.
type BypassKind int

const (
	BypassUnspecified BypassKind = iota
	BypassAll
	BypassRoles
	BypassNickname
)

var bypassKindNames = map[BypassKind]string{
	BypassUnspecified: "unspecified",
	BypassAll:         "all",
	BypassRoles:       "roles",
	BypassNickname:    "nickname",
}

func (k BypassKind) String() string {
	if name, ok := bypassKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("BypassKind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k BypassKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *BypassKind) UnmarshalText(text []byte) error {
	v, err := parseEnum("bypass kind", string(text), bypassKindNames)
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// BypassRole marks a role whose holders skip automatic updates.
type BypassRole struct {
	RoleID RoleID     `yaml:"role_id" json:"role_id"`
	Kind   BypassKind `yaml:"kind" json:"kind"`
}

// Catalog is one guild's complete binding configuration.
// Bind and deny-list order is significant: it breaks priority and severity ties.
type Catalog struct {
	GuildID         GuildID         `yaml:"guild_id" json:"guild_id"`
	DefaultNickname string          `yaml:"default_nickname" json:"default_nickname"`
	Binds           []Bind          `yaml:"binds" json:"binds"`
	DenyList        []DenyListEntry `yaml:"deny_list,omitempty" json:"deny_list,omitempty"`
	Bypass          []BypassRole    `yaml:"bypass,omitempty" json:"bypass,omitempty"`
	Sticky          []RoleID        `yaml:"sticky,omitempty" json:"sticky,omitempty"`
	VerifiedRoles   []RoleID        `yaml:"verified_roles,omitempty" json:"verified_roles,omitempty"`
	UnverifiedRoles []RoleID        `yaml:"unverified_roles,omitempty" json:"unverified_roles,omitempty"`
}

// Validate checks every bind and deny-list entry and rejects duplicate ids.
func (c *Catalog) Validate() error {
	seenBinds := make(map[BindID]struct{}, len(c.Binds))
	for i := range c.Binds {
		b := &c.Binds[i]
		if err := b.Validate(); err != nil {
			return fmt.Errorf("binds[%d]: %w", i, err)
		}
		if _, dup := seenBinds[b.ID]; dup {
			return fmt.Errorf("binds[%d]: %w: bind %s", i, ErrDuplicateID, b.ID)
		}
		seenBinds[b.ID] = struct{}{}
	}

	seenEntries := make(map[DenyListID]struct{}, len(c.DenyList))
	for i := range c.DenyList {
		d := &c.DenyList[i]
		if err := d.Validate(); err != nil {
			return fmt.Errorf("deny_list[%d]: %w", i, err)
		}
		if _, dup := seenEntries[d.ID]; dup {
			return fmt.Errorf("deny_list[%d]: %w: entry %s", i, ErrDuplicateID, d.ID)
		}
		seenEntries[d.ID] = struct{}{}
	}

	for i, b := range c.Bypass {
		if _, ok := bypassKindNames[b.Kind]; !ok || b.Kind == BypassUnspecified {
			return fmt.Errorf("bypass[%d]: unsupported kind %v for role %s", i, b.Kind, b.RoleID)
		}
	}
	return nil
}

// CustomSources returns every expression source in the catalog with a label
// naming its origin, in catalog order (binds first, then deny-list entries).
func (c *Catalog) CustomSources() []LabeledSource {
	var out []LabeledSource
	for _, b := range c.Binds {
		if b.Kind == BindCustom {
			out = append(out, LabeledSource{Origin: "bind", ID: string(b.ID), Source: b.Source})
		}
	}
	for _, d := range c.DenyList {
		if d.Match == DenyByCustom {
			out = append(out, LabeledSource{Origin: "deny_list", ID: string(d.ID), Source: d.Source})
		}
	}
	return out
}

// LabeledSource is expression source text tagged with the object that owns it.
type LabeledSource struct {
	Origin string
	ID     string
	Source string
}

func parseEnum[T comparable](what, text string, names map[T]string) (T, error) {
	needle := strings.ToLower(strings.TrimSpace(text))
	for v, name := range names {
		if name == needle {
			return v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("unknown %s %q", what, text)
}
