package resolve

import (
	"errors"
	"testing"

	"github.com/solatis/rolebind/internal/types"
)

func TestCheckCatalog(t *testing.T) {
	catalog := &types.Catalog{
		Binds: []types.Bind{
			{ID: "ok", Kind: types.BindCustom, Roles: []types.RoleID{1}, Source: "IsInGroup(1)  or HasRole(2)"},
			{ID: "grp", Kind: types.BindGroup, Roles: []types.RoleID{1}, GroupID: 5},
			{ID: "bad", Kind: types.BindCustom, Roles: []types.RoleID{1}, Source: "IsInGroup(1) or"},
		},
		DenyList: []types.DenyListEntry{
			{ID: "deny-bad", Action: types.DenyKick, Match: types.DenyByCustom, Source: "HasRole(("},
		},
	}

	checks, err := NewEngine(DefaultConfig(), nil).CheckCatalog(catalog)
	if len(checks) != 3 {
		t.Fatalf("got %d checks, want 3", len(checks))
	}
	if !checks[0].OK() || checks[0].Canonical != "(IsInGroup(1) or HasRole(2))" {
		t.Errorf("checks[0] = %+v", checks[0])
	}
	if checks[1].OK() || checks[1].ID != "bad" || checks[1].Origin != "bind" {
		t.Errorf("checks[1] = %+v", checks[1])
	}
	if checks[2].OK() || checks[2].Origin != "deny_list" {
		t.Errorf("checks[2] = %+v", checks[2])
	}

	if !errors.Is(err, types.ErrCustomBind) {
		t.Errorf("error = %v, want %v", err, types.ErrCustomBind)
	}
	if !errors.Is(err, types.ErrDenyListExpression) {
		t.Errorf("error = %v, want %v", err, types.ErrDenyListExpression)
	}
	if !errors.Is(err, types.ErrParse) {
		t.Errorf("error = %v, want %v", err, types.ErrParse)
	}
}

func TestCheckCatalog_Clean(t *testing.T) {
	catalog := &types.Catalog{Binds: []types.Bind{{ID: "ok", Kind: types.BindCustom, Source: "HasRole(1)"}}}
	checks, err := NewEngine(DefaultConfig(), nil).CheckCatalog(catalog)
	if err != nil {
		t.Fatalf("CheckCatalog() error = %v", err)
	}
	if len(checks) != 1 || !checks[0].OK() {
		t.Errorf("checks = %+v", checks)
	}
}
