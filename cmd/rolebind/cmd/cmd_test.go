package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/rolebind/internal/cli"
	"github.com/solatis/rolebind/internal/core/loader"
	"github.com/solatis/rolebind/internal/resolve"
	"github.com/solatis/rolebind/internal/types"
)

const testCatalog = `
guild_id: 555
default_nickname: "{roblox-username}"
binds:
  - id: members
    kind: group
    group_id: 1000
    roles: [9]
  - id: officers
    kind: custom
    source: HasRank(1000, 200)
    priority: 5
    nickname: "[O] {roblox-username}"
    roles: [10]
deny_list:
  - id: alt
    action: ban
    match: user
    user_id: 13
    reason: alt account
bypass:
  - role_id: 900
    kind: all
`

const testMember = `{
  "discord_id": 111,
  "roblox_id": 222,
  "roblox_name": "builder_bob",
  "roles": [10],
  "ranks": {"1000": 25}
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPickSecret(t *testing.T) {
	one := map[string][]byte{"aa": []byte("s1")}
	two := map[string][]byte{"aa": []byte("s1"), "bb": []byte("s2")}

	tests := []struct {
		name    string
		secrets map[string][]byte
		want    string
		expect  string
		wantErr string
	}{
		{"none configured", nil, "", "", "no HMAC secrets"},
		{"single implicit", one, "", "aa", ""},
		{"explicit", two, "bb", "bb", ""},
		{"unknown", two, "cc", "", "not configured"},
		{"ambiguous", two, "", "", "aa, bb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pickSecret(tt.secrets, tt.want)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expect, got)
		})
	}
}

func TestResolveMember(t *testing.T) {
	dir := t.TempDir()
	catalog := writeFile(t, dir, "catalog.yaml", testCatalog)

	engine := resolve.NewEngine(resolve.DefaultConfig(), slog.New(slog.DiscardHandler))
	c := mustReadCatalog(t, catalog)

	facts := func(roles []types.RoleID, robloxID types.UserID) *resolve.MemberFacts {
		return &resolve.MemberFacts{
			DiscordID:  111,
			RobloxID:   robloxID,
			RobloxName: "builder_bob",
			Roles:      roles,
			Ranks:      map[types.GroupID]types.RankID{1000: 25},
		}
	}

	got, err := resolveMember(engine, c, facts([]types.RoleID{10}, 222))
	require.NoError(t, err)
	assert.Equal(t, "resolved", got.Status)
	assert.Equal(t, []types.RoleID{9}, got.Outcome.Add)
	assert.Equal(t, []types.RoleID{10}, got.Outcome.Remove)
	assert.Equal(t, "builder_bob", got.Outcome.Nickname)

	got, err = resolveMember(engine, c, facts(nil, 13))
	require.NoError(t, err)
	assert.Equal(t, "denied", got.Status)
	assert.Equal(t, &cli.DeniedEntry{EntryID: "alt", Action: types.DenyBan, Reason: "alt account"}, got.Denied)

	// Bypass "all" wins over the deny-list.
	got, err = resolveMember(engine, c, facts([]types.RoleID{900}, 13))
	require.NoError(t, err)
	assert.Equal(t, "bypassed", got.Status)
	assert.Nil(t, got.Outcome)
}

func TestCommands_StoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	catalog := writeFile(t, dir, "catalog.yaml", testCatalog)
	member := writeFile(t, dir, "member.json", testMember)
	url := "sqlite://" + filepath.Join(dir, "rolebind.db")

	_, err := run(t, "migrate", "up", "--db-url", url, "--log-level", "error")
	require.NoError(t, err)

	out, err := run(t, "migrate", "status", "--db-url", url, "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, "002_api_keys.sql")

	_, err = run(t, "import", catalog, "--db-url", url)
	require.NoError(t, err)

	out, err = run(t, "guilds", "--db-url", url, "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, "555")

	exported := filepath.Join(dir, "exported.json")
	_, err = run(t, "export", "--guild", "555", "--output", exported, "--db-url", url)
	require.NoError(t, err)
	roundTrip := mustReadCatalog(t, exported)
	assert.Equal(t, mustReadCatalog(t, catalog), roundTrip)

	out, err = run(t, "resolve", exported, member, "--format", "json")
	require.NoError(t, err)
	var res cli.Resolution
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "resolved", res.Status)
	assert.Equal(t, []types.RoleID{9}, res.Outcome.Add)
}

func TestCheckCommand(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.yaml", testCatalog)
	bad := writeFile(t, dir, "bad.yaml", strings.Replace(testCatalog, "HasRank(1000, 200)", "HasRank(1000,", 1))

	out, err := run(t, "check", good, "--format", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "officers")

	out, err = run(t, "check", bad, "--format", "table")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrCustomBind)
	assert.Contains(t, out, "error")
}

func TestImportRejectsBrokenExpression(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.yaml", strings.Replace(testCatalog, "HasRank(1000, 200)", "HasRank(", 1))
	url := "sqlite://" + filepath.Join(dir, "rolebind.db")

	_, err := run(t, "migrate", "up", "--db-url", url)
	require.NoError(t, err)

	_, err = run(t, "import", bad, "--db-url", url)
	assert.ErrorIs(t, err, types.ErrCustomBind)

	out, err := run(t, "guilds", "--db-url", url, "--format", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "No guilds found")
}

func mustReadCatalog(t *testing.T, path string) *types.Catalog {
	t.Helper()
	c, err := loader.ReadCatalog(path)
	require.NoError(t, err)
	return c
}
