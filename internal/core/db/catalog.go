// internal/core/db/catalog.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/solatis/rolebind/internal/types"
)

/*
 * Catalog persistence.
 *
 * A guild catalog is spread over six tables:
 *   guild_settings  one row per guild (default nickname, version counter)
 *   binds           one row per bind, ordered by position
 *   bind_roles      target roles of each bind, ordered by position
 *   deny_list       deny-list entries, ordered by position
 *   bypass_roles    bypass roles, ordered by position
 *   guild_roles     sticky, verified and unverified role lists
 *
 * Order is stored explicitly because it breaks nickname priority ties and
 * deny-list severity ties during resolution. ReplaceCatalog rewrites every
 * table for the guild in one transaction so readers never observe a mix of
 * old and new rows. Enums are stored by their text names.
 */

const (
	roleSetSticky     = "sticky"
	roleSetVerified   = "verified"
	roleSetUnverified = "unverified"
)

// GuildSettings is the per-guild header row of a stored catalog.
type GuildSettings struct {
	GuildID         types.GuildID `db:"guild_id"`
	DefaultNickname string        `db:"default_nickname"`
	CatalogVersion  int64         `db:"catalog_version"`
	UpdatedAt       time.Time     `db:"updated_at"`
}

type bindRow struct {
	BindID    string        `db:"bind_id"`
	Kind      string        `db:"kind"`
	Priority  int           `db:"priority"`
	Nickname  string        `db:"nickname"`
	GroupID   types.GroupID `db:"group_id"`
	RankID    types.RankID  `db:"rank_id"`
	Source    string        `db:"source"`
	AssetID   types.AssetID `db:"asset_id"`
	AssetKind string        `db:"asset_kind"`
}

type bindRoleRow struct {
	BindID string       `db:"bind_id"`
	RoleID types.RoleID `db:"role_id"`
}

type denyListRow struct {
	EntryID string        `db:"entry_id"`
	Reason  string        `db:"reason"`
	Action  string        `db:"action"`
	Match   string        `db:"match_kind"`
	UserID  types.UserID  `db:"user_id"`
	GroupID types.GroupID `db:"group_id"`
	Source  string        `db:"source"`
}

type bypassRow struct {
	RoleID types.RoleID `db:"role_id"`
	Kind   string       `db:"kind"`
}

type guildRoleRow struct {
	RoleSet string       `db:"role_set"`
	RoleID  types.RoleID `db:"role_id"`
}

// GetGuildSettings returns the header row for guildID, or
// types.ErrCatalogNotFound when the guild has no stored catalog.
func (q *Queries) GetGuildSettings(ctx context.Context, guildID types.GuildID) (*GuildSettings, error) {
	return q.runner.guildSettings(ctx, guildID)
}

// ListGuilds returns the header rows of every stored catalog ordered by guild.
func (q *Queries) ListGuilds(ctx context.Context) ([]GuildSettings, error) {
	var out []GuildSettings
	if err := q.Select(ctx, "list-guild-settings", &out); err != nil {
		return nil, fmt.Errorf("listing guilds: %w", err)
	}
	return out, nil
}

// LoadCatalog reads guildID's catalog in a single transaction.
func (q *Queries) LoadCatalog(ctx context.Context, guildID types.GuildID) (*types.Catalog, error) {
	var catalog *types.Catalog
	err := q.InTx(ctx, func(tx *Tx) error {
		var err error
		catalog, err = tx.loadCatalog(ctx, guildID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return catalog, nil
}

// ReplaceCatalog validates catalog and overwrites the stored catalog for
// catalog.GuildID. Returns the new catalog version.
func (q *Queries) ReplaceCatalog(ctx context.Context, catalog *types.Catalog) (int64, error) {
	if catalog == nil {
		return 0, errors.New("replace catalog: nil catalog")
	}
	if catalog.GuildID == 0 {
		return 0, errors.New("replace catalog: guild_id must be set")
	}
	if err := catalog.Validate(); err != nil {
		return 0, fmt.Errorf("replace catalog: %w", err)
	}

	var version int64
	err := q.InTx(ctx, func(tx *Tx) error {
		if err := tx.replaceCatalog(ctx, catalog); err != nil {
			return err
		}
		settings, err := tx.guildSettings(ctx, catalog.GuildID)
		if err != nil {
			return err
		}
		version = settings.CatalogVersion
		return nil
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

// DeleteCatalog removes every row stored for guildID.
func (q *Queries) DeleteCatalog(ctx context.Context, guildID types.GuildID) error {
	return q.InTx(ctx, func(tx *Tx) error {
		if _, err := tx.guildSettings(ctx, guildID); err != nil {
			return err
		}
		if err := tx.deleteChildren(ctx, guildID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "delete-guild-settings", guildID); err != nil {
			return fmt.Errorf("deleting guild settings: %w", err)
		}
		return nil
	})
}

func (r runner) guildSettings(ctx context.Context, guildID types.GuildID) (*GuildSettings, error) {
	var settings GuildSettings
	err := r.Get(ctx, "get-guild-settings", &settings, guildID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: guild %s", types.ErrCatalogNotFound, guildID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading guild settings: %w", err)
	}
	return &settings, nil
}

func (r runner) loadCatalog(ctx context.Context, guildID types.GuildID) (*types.Catalog, error) {
	settings, err := r.guildSettings(ctx, guildID)
	if err != nil {
		return nil, err
	}
	catalog := &types.Catalog{
		GuildID:         settings.GuildID,
		DefaultNickname: settings.DefaultNickname,
	}

	var roleRows []bindRoleRow
	if err := r.Select(ctx, "list-bind-roles", &roleRows, guildID); err != nil {
		return nil, fmt.Errorf("loading bind roles: %w", err)
	}
	roles := make(map[string][]types.RoleID)
	for _, row := range roleRows {
		roles[row.BindID] = append(roles[row.BindID], row.RoleID)
	}

	var bindRows []bindRow
	if err := r.Select(ctx, "list-binds", &bindRows, guildID); err != nil {
		return nil, fmt.Errorf("loading binds: %w", err)
	}
	for _, row := range bindRows {
		bind, err := row.toBind(roles[row.BindID])
		if err != nil {
			return nil, err
		}
		catalog.Binds = append(catalog.Binds, bind)
	}

	var denyRows []denyListRow
	if err := r.Select(ctx, "list-deny-list", &denyRows, guildID); err != nil {
		return nil, fmt.Errorf("loading deny list: %w", err)
	}
	for _, row := range denyRows {
		entry, err := row.toEntry()
		if err != nil {
			return nil, err
		}
		catalog.DenyList = append(catalog.DenyList, entry)
	}

	var bypassRows []bypassRow
	if err := r.Select(ctx, "list-bypass-roles", &bypassRows, guildID); err != nil {
		return nil, fmt.Errorf("loading bypass roles: %w", err)
	}
	for _, row := range bypassRows {
		var kind types.BypassKind
		if err := kind.UnmarshalText([]byte(row.Kind)); err != nil {
			return nil, fmt.Errorf("bypass role %s: %w", row.RoleID, err)
		}
		catalog.Bypass = append(catalog.Bypass, types.BypassRole{RoleID: row.RoleID, Kind: kind})
	}

	var guildRoles []guildRoleRow
	if err := r.Select(ctx, "list-guild-roles", &guildRoles, guildID); err != nil {
		return nil, fmt.Errorf("loading guild roles: %w", err)
	}
	for _, row := range guildRoles {
		switch row.RoleSet {
		case roleSetSticky:
			catalog.Sticky = append(catalog.Sticky, row.RoleID)
		case roleSetVerified:
			catalog.VerifiedRoles = append(catalog.VerifiedRoles, row.RoleID)
		case roleSetUnverified:
			catalog.UnverifiedRoles = append(catalog.UnverifiedRoles, row.RoleID)
		default:
			return nil, fmt.Errorf("guild role %s: unknown role set %q", row.RoleID, row.RoleSet)
		}
	}

	return catalog, nil
}

func (r runner) replaceCatalog(ctx context.Context, c *types.Catalog) error {
	if _, err := r.Exec(ctx, "upsert-guild-settings", c.GuildID, c.DefaultNickname, time.Now().UTC()); err != nil {
		return fmt.Errorf("saving guild settings: %w", err)
	}
	if err := r.deleteChildren(ctx, c.GuildID); err != nil {
		return err
	}

	for i, b := range c.Binds {
		_, err := r.Exec(ctx, "insert-bind",
			c.GuildID, string(b.ID), i, b.Kind.String(), b.Priority, b.Nickname,
			b.GroupID, b.RankID, b.Source, b.AssetID, b.AssetKind.String())
		if err != nil {
			return fmt.Errorf("saving bind %s: %w", b.ID, err)
		}
		for j, role := range b.Roles {
			if _, err := r.Exec(ctx, "insert-bind-role", c.GuildID, string(b.ID), j, role); err != nil {
				return fmt.Errorf("saving bind %s role %s: %w", b.ID, role, err)
			}
		}
	}

	for i, d := range c.DenyList {
		_, err := r.Exec(ctx, "insert-deny-list-entry",
			c.GuildID, string(d.ID), i, d.Reason, d.Action.String(), d.Match.String(),
			d.UserID, d.GroupID, d.Source)
		if err != nil {
			return fmt.Errorf("saving deny-list entry %s: %w", d.ID, err)
		}
	}

	for i, b := range c.Bypass {
		if _, err := r.Exec(ctx, "insert-bypass-role", c.GuildID, i, b.RoleID, b.Kind.String()); err != nil {
			return fmt.Errorf("saving bypass role %s: %w", b.RoleID, err)
		}
	}

	sets := []struct {
		name  string
		roles []types.RoleID
	}{
		{roleSetSticky, c.Sticky},
		{roleSetVerified, c.VerifiedRoles},
		{roleSetUnverified, c.UnverifiedRoles},
	}
	for _, set := range sets {
		for i, role := range set.roles {
			if _, err := r.Exec(ctx, "insert-guild-role", c.GuildID, set.name, i, role); err != nil {
				return fmt.Errorf("saving %s role %s: %w", set.name, role, err)
			}
		}
	}
	return nil
}

func (r runner) deleteChildren(ctx context.Context, guildID types.GuildID) error {
	for _, name := range []string{"delete-bind-roles", "delete-binds", "delete-deny-list", "delete-bypass-roles", "delete-guild-roles"} {
		if _, err := r.Exec(ctx, name, guildID); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func (row bindRow) toBind(roles []types.RoleID) (types.Bind, error) {
	b := types.Bind{
		ID:       types.BindID(row.BindID),
		Priority: row.Priority,
		Nickname: row.Nickname,
		Roles:    roles,
		GroupID:  row.GroupID,
		RankID:   row.RankID,
		Source:   row.Source,
		AssetID:  row.AssetID,
	}
	if err := b.Kind.UnmarshalText([]byte(row.Kind)); err != nil {
		return types.Bind{}, fmt.Errorf("bind %s: %w", row.BindID, err)
	}
	if err := b.AssetKind.UnmarshalText([]byte(row.AssetKind)); err != nil {
		return types.Bind{}, fmt.Errorf("bind %s: %w", row.BindID, err)
	}
	return b, nil
}

func (row denyListRow) toEntry() (types.DenyListEntry, error) {
	d := types.DenyListEntry{
		ID:      types.DenyListID(row.EntryID),
		Reason:  row.Reason,
		UserID:  row.UserID,
		GroupID: row.GroupID,
		Source:  row.Source,
	}
	if err := d.Action.UnmarshalText([]byte(row.Action)); err != nil {
		return types.DenyListEntry{}, fmt.Errorf("deny-list entry %s: %w", row.EntryID, err)
	}
	if err := d.Match.UnmarshalText([]byte(row.Match)); err != nil {
		return types.DenyListEntry{}, fmt.Errorf("deny-list entry %s: %w", row.EntryID, err)
	}
	return d, nil
}
