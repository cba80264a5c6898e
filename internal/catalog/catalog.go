// Package catalog holds the read-only Pack -> Character -> styles tree the
// sticker flow validates user choices against.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/m3rciful/stickerbot/core/logger"
)

// DefaultStyleCount is used for characters whose style list is absent or empty.
const DefaultStyleCount = 10

// ErrNotFound is returned when a pack or character does not exist.
var ErrNotFound = errors.New("catalog: not found")

// StyleList is the list of styles of a character. Entries may be numbers or
// strings in the source file; only their count is used.
type StyleList []string

// UnmarshalYAML accepts a sequence of scalars.
func (s *StyleList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("styles: expected sequence at line %d", node.Line)
	}
	out := make(StyleList, 0, len(node.Content))
	for _, item := range node.Content {
		if item.Kind != yaml.ScalarNode {
			return fmt.Errorf("styles: unsupported entry at line %d", item.Line)
		}
		out = append(out, item.Value)
	}
	*s = out
	return nil
}

// Character describes a single character entry.
type Character struct {
	Styles StyleList `yaml:"styles,omitempty"`
}

// Pack groups characters under a pack name.
type Pack struct {
	Characters map[string]Character
	// names keeps the characters in file order.
	names []string
}

// UnmarshalYAML decodes the characters mapping, remembering key order.
func (p *Pack) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Characters yaml.Node `yaml:"characters"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	chars, names, err := decodeOrdered[Character](&raw.Characters)
	if err != nil {
		return fmt.Errorf("characters: %w", err)
	}
	p.Characters, p.names = chars, names
	return nil
}

// Catalog is the full static tree. It is never mutated after Load.
// Listings follow the order of the source file.
type Catalog struct {
	Packs map[string]Pack
	order []string
}

// UnmarshalYAML decodes the packs mapping, remembering key order.
func (c *Catalog) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Packs yaml.Node `yaml:"packs"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	packs, order, err := decodeOrdered[Pack](&raw.Packs)
	if err != nil {
		return fmt.Errorf("packs: %w", err)
	}
	c.Packs, c.order = packs, order
	return nil
}

// decodeOrdered decodes a mapping node into a map plus its keys in document
// order. An absent or null node yields an empty map.
func decodeOrdered[V any](node *yaml.Node) (map[string]V, []string, error) {
	out := make(map[string]V)
	if node.Kind == 0 || (node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null") {
		return out, nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, nil, fmt.Errorf("expected mapping at line %d", node.Line)
	}
	var keys []string
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		var v V
		if err := node.Content[i+1].Decode(&v); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", key, err)
		}
		if _, dup := out[key]; !dup {
			keys = append(keys, key)
		}
		out[key] = v
	}
	return out, keys, nil
}

// Load reads a catalog from a JSON or YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	logger.Info(logger.Background(), logger.CompCatalog, "catalog.loaded",
		slog.String("status", "ok"),
		slog.String("path", path),
		slog.Int("packs", len(cat.Packs)),
		slog.Int("characters", len(cat.AllCharacters())),
	)
	return cat, nil
}

// Parse decodes catalog data. JSON documents are parsed as YAML flow
// mappings so both formats keep their key order.
func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, err
	}
	if cat.Packs == nil {
		cat.Packs = map[string]Pack{}
	}
	return &cat, nil
}

// PackNames returns the pack names in file order.
func (c *Catalog) PackNames() []string {
	return slices.Clone(c.order)
}

// HasPack reports whether pack exists. Names match exactly.
func (c *Catalog) HasPack(pack string) bool {
	_, ok := c.Packs[pack]
	return ok
}

// Characters returns the character names of pack in file order.
func (c *Catalog) Characters(pack string) ([]string, error) {
	p, ok := c.Packs[pack]
	if !ok {
		return nil, fmt.Errorf("pack %q: %w", pack, ErrNotFound)
	}
	return slices.Clone(p.names), nil
}

// HasCharacter reports whether character exists in pack. Names match exactly.
func (c *Catalog) HasCharacter(pack, character string) bool {
	p, ok := c.Packs[pack]
	if !ok {
		return false
	}
	_, ok = p.Characters[character]
	return ok
}

// AllCharacters returns every character across all packs in file order,
// keeping the first occurrence of a name.
func (c *Catalog) AllCharacters() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, pack := range c.order {
		for _, name := range c.Packs[pack].names {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

// FindCharacter matches name case-insensitively across all packs and returns
// the canonical character name together with its owning pack. When several
// packs share a character the first pack in the file wins.
func (c *Catalog) FindCharacter(name string) (pack, character string, err error) {
	for _, packName := range c.order {
		for _, ch := range c.Packs[packName].names {
			if strings.EqualFold(ch, name) {
				return packName, ch, nil
			}
		}
	}
	return "", "", fmt.Errorf("character %q: %w", name, ErrNotFound)
}

// StyleCount returns the number of styles of a character. Unknown entries and
// characters without styles fall back to DefaultStyleCount.
func (c *Catalog) StyleCount(pack, character string) int {
	ch, ok := c.Packs[pack].Characters[character]
	if !ok || len(ch.Styles) == 0 {
		return DefaultStyleCount
	}
	return len(ch.Styles)
}
