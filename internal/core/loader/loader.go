// Package loader reads bind catalogs and member fact snapshots from disk.
//
// Two encodings are accepted, chosen by file extension:
//
//	.yaml, .yml   YAML
//	.json, .jsonc JSON, optionally with // and /* */ comments and trailing commas
//
// Unknown fields are rejected in both so a misspelled key fails loudly
// instead of silently configuring nothing. Catalog binds and deny-list entries
// without an id are assigned a fresh UUIDv7 before validation.
package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/solatis/rolebind/internal/resolve"
	"github.com/solatis/rolebind/internal/types"
)

// Format is a supported file encoding.
type Format int

const (
	FormatYAML Format = iota
	FormatJSON
)

// ErrUnsupportedFormat is returned for unrecognized file extensions.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// FormatFromPath selects a Format by extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json", ".jsonc":
		return FormatJSON, nil
	default:
		return 0, fmt.Errorf("%w: %q (want .yaml, .yml, .json or .jsonc)", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ParseCatalog decodes, fills missing ids and validates a catalog.
func ParseCatalog(data []byte, format Format) (*types.Catalog, error) {
	var catalog types.Catalog
	if err := decode(data, format, &catalog); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	AssignMissingIDs(&catalog)
	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("validating catalog: %w", err)
	}
	return &catalog, nil
}

// ReadCatalog reads and parses a catalog file.
func ReadCatalog(path string) (*types.Catalog, error) {
	data, format, err := readFile(path)
	if err != nil {
		return nil, err
	}
	catalog, err := ParseCatalog(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return catalog, nil
}

// ParseMemberFacts decodes a member snapshot.
func ParseMemberFacts(data []byte, format Format) (*resolve.MemberFacts, error) {
	var facts resolve.MemberFacts
	if err := decode(data, format, &facts); err != nil {
		return nil, fmt.Errorf("parsing member facts: %w", err)
	}
	if facts.Ranks == nil {
		facts.Ranks = map[types.GroupID]types.RankID{}
	}
	return &facts, nil
}

// ReadMemberFacts reads and parses a member snapshot file.
func ReadMemberFacts(path string) (*resolve.MemberFacts, error) {
	data, format, err := readFile(path)
	if err != nil {
		return nil, err
	}
	facts, err := ParseMemberFacts(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return facts, nil
}

// WriteCatalog encodes catalog to w.
func WriteCatalog(w io.Writer, catalog *types.Catalog, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(catalog); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(catalog)
	default:
		return ErrUnsupportedFormat
	}
}

// AssignMissingIDs gives every id-less bind and deny-list entry a UUIDv7.
func AssignMissingIDs(catalog *types.Catalog) {
	for i := range catalog.Binds {
		if catalog.Binds[i].ID == "" {
			catalog.Binds[i].ID = types.NewBindID()
		}
	}
	for i := range catalog.DenyList {
		if catalog.DenyList[i].ID == "" {
			catalog.DenyList[i].ID = types.NewDenyListID()
		}
	}
}

func readFile(path string) ([]byte, Format, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, 0, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, format, nil
}

func decode(data []byte, format Format, out any) error {
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		return dec.Decode(out)
	default:
		return ErrUnsupportedFormat
	}
}
