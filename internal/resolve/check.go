package resolve

import (
	"errors"

	"github.com/solatis/rolebind/internal/types"
)

// SourceCheck is the parse result of one custom expression in a catalog.
type SourceCheck struct {
	Origin    string `yaml:"origin" json:"origin"`
	ID        string `yaml:"id" json:"id"`
	Source    string `yaml:"source" json:"source"`
	Canonical string `yaml:"canonical,omitempty" json:"canonical,omitempty"`
	Error     string `yaml:"error,omitempty" json:"error,omitempty"`
}

// OK reports whether the source parsed.
func (c SourceCheck) OK() bool { return c.Error == "" }

// CheckCatalog parses every custom bind and custom deny-list source. The
// returned error joins a *BindError or *DenyListEntryError per failure and is
// nil when every source parses.
func (e *Engine) CheckCatalog(catalog *types.Catalog) ([]SourceCheck, error) {
	var (
		checks []SourceCheck
		errs   []error
	)
	for _, src := range catalog.CustomSources() {
		check := SourceCheck{Origin: src.Origin, ID: src.ID, Source: src.Source}
		tree, err := e.Parse(src.Source)
		if err != nil {
			check.Error = err.Error()
			if src.Origin == "bind" {
				errs = append(errs, &BindError{BindID: types.BindID(src.ID), Err: err})
			} else {
				errs = append(errs, &DenyListEntryError{EntryID: types.DenyListID(src.ID), Err: err})
			}
		} else {
			check.Canonical = tree.String()
		}
		checks = append(checks, check)
	}
	return checks, errors.Join(errs...)
}
