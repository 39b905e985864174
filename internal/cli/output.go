// Package cli renders rolebind command results as tables, JSON or YAML.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/solatis/rolebind/internal/core/db"
	"github.com/solatis/rolebind/internal/resolve"
	"github.com/solatis/rolebind/internal/types"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unsupported format: %s (want table, json or yaml)", s)
	}
}

// Resolution is the printable result of an offline resolution.
type Resolution struct {
	Status   string           `yaml:"status" json:"status"`
	Outcome  *resolve.Outcome `yaml:"outcome,omitempty" json:"outcome,omitempty"`
	Denied   *DeniedEntry     `yaml:"denied,omitempty" json:"denied,omitempty"`
	Warnings []string         `yaml:"warnings,omitempty" json:"warnings,omitempty"`
}

// DeniedEntry names the deny-list entry that refused a member.
type DeniedEntry struct {
	EntryID types.DenyListID `yaml:"entry_id" json:"entry_id"`
	Action  types.DenyAction `yaml:"action" json:"action"`
	Reason  string           `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// PrintResolution outputs a resolution in the specified format
func PrintResolution(w io.Writer, r *Resolution, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, r)
	case FormatYAML:
		return printYAML(w, r)
	case FormatTable:
		return printResolutionTable(w, r)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintChecks outputs expression check results in the specified format
func PrintChecks(w io.Writer, checks []resolve.SourceCheck, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, map[string]any{"checks": checks})
	case FormatYAML:
		return printYAML(w, checks)
	case FormatTable:
		table := tablewriter.NewWriter(w)
		table.Header("Origin", "ID", "Status", "Detail")
		for _, c := range checks {
			if c.OK() {
				table.Append(c.Origin, c.ID, "ok", c.Canonical)
			} else {
				table.Append(c.Origin, c.ID, "error", c.Error)
			}
		}
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintMigrations outputs migration status in the specified format
func PrintMigrations(w io.Writer, statuses []db.MigrationStatus, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, map[string]any{"migrations": statuses})
	case FormatYAML:
		return printYAML(w, statuses)
	case FormatTable:
		table := tablewriter.NewWriter(w)
		table.Header("Migration", "Applied", "Applied At", "Duration")
		for _, s := range statuses {
			appliedAt, duration := "-", "-"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.UTC().Format("2006-01-02 15:04")
				duration = fmt.Sprintf("%dms", s.ExecutionMs)
			}
			table.Append(s.ID, strconv.FormatBool(s.Applied), appliedAt, duration)
		}
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintAPIKeys outputs key metadata in the specified format
func PrintAPIKeys(w io.Writer, keys []db.APIKey, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, map[string]any{"keys": keys})
	case FormatYAML:
		return printYAML(w, keys)
	case FormatTable:
		table := tablewriter.NewWriter(w)
		table.Header("ID", "Guild", "Name", "Created At", "Last Used", "Revoked")
		for _, k := range keys {
			lastUsed, revoked := "never", "-"
			if k.LastUsedAt.Valid {
				lastUsed = k.LastUsedAt.Time.UTC().Format("2006-01-02 15:04")
			}
			if k.RevokedAt.Valid {
				revoked = k.RevokedAt.Time.UTC().Format("2006-01-02 15:04")
			}
			table.Append(k.ID, k.GuildID.String(), k.Name, k.CreatedAt.UTC().Format("2006-01-02 15:04"), lastUsed, revoked)
		}
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintGuilds outputs stored catalog headers in the specified format
func PrintGuilds(w io.Writer, guilds []db.GuildSettings, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, map[string]any{"guilds": guilds})
	case FormatYAML:
		return printYAML(w, guilds)
	case FormatTable:
		table := tablewriter.NewWriter(w)
		table.Header("Guild", "Version", "Default Nickname", "Updated At")
		for _, g := range guilds {
			table.Append(g.GuildID.String(), strconv.FormatInt(g.CatalogVersion, 10), g.DefaultNickname, g.UpdatedAt.UTC().Format("2006-01-02 15:04"))
		}
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printResolutionTable(w io.Writer, r *Resolution) error {
	table := tablewriter.NewWriter(w)
	table.Header("Field", "Value")
	table.Append("status", r.Status)

	if r.Denied != nil {
		table.Append("denied by", string(r.Denied.EntryID))
		table.Append("action", r.Denied.Action.String())
		if r.Denied.Reason != "" {
			table.Append("reason", r.Denied.Reason)
		}
	}
	if o := r.Outcome; o != nil {
		table.Append("add", joinRoles(o.Add))
		table.Append("remove", joinRoles(o.Remove))
		table.Append("nickname", o.Nickname)
		if o.NicknameBind != "" {
			table.Append("nickname bind", string(o.NicknameBind))
		}
		table.Append("apply nickname", strconv.FormatBool(o.ApplyNickname()))
		table.Append("roles bypassed", strconv.FormatBool(o.RolesBypassed))
	}
	for _, warning := range r.Warnings {
		table.Append("warning", warning)
	}
	return table.Render()
}

func joinRoles(roles []types.RoleID) string {
	if len(roles) == 0 {
		return "-"
	}
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}

func printJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printYAML(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}
