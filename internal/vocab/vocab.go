// Package vocab maps free-form category, subcategory and source strings onto a
// closed vocabulary. Normalization is total: unknown input falls back to a
// default member instead of failing.
package vocab

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	FallbackCategory    = "misc"
	FallbackSubcategory = "other"
	FallbackSource      = "other"
)

//go:embed default.yaml
var defaultVocabulary []byte

// file is the on-disk shape. YAML is a superset of JSON, so the same decoder
// reads both formats.
type file struct {
	Categories map[string][]string `yaml:"categories"`
	Sources    []string            `yaml:"sources"`
}

// Vocabulary is an immutable lookup table. All keys are stored lower-cased.
type Vocabulary struct {
	categories    map[string][]string
	subcategories map[string]map[string]struct{}
	sources       []string
	sourceSet     map[string]struct{}
}

// Default returns the embedded vocabulary.
func Default() *Vocabulary {
	v, err := Parse(defaultVocabulary)
	if err != nil {
		panic(fmt.Sprintf("embedded vocabulary is invalid: %v", err))
	}
	return v
}

// Load reads a vocabulary file. An empty path yields the embedded default.
func Load(path string) (*Vocabulary, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading vocabulary: %w", err)
	}
	v, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("vocabulary %s: %w", path, err)
	}
	return v, nil
}

// Parse decodes and validates a vocabulary document.
func Parse(data []byte) (*Vocabulary, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing vocabulary: %w", err)
	}
	return New(f.Categories, f.Sources)
}

// New builds a vocabulary from category→subcategories and a source list.
// The fallback category must be present and no list may be empty.
func New(categories map[string][]string, sources []string) (*Vocabulary, error) {
	v := &Vocabulary{
		categories:    make(map[string][]string, len(categories)),
		subcategories: make(map[string]map[string]struct{}, len(categories)),
		sourceSet:     make(map[string]struct{}, len(sources)),
	}

	for name, subs := range categories {
		key := canonical(name)
		if key == "" {
			return nil, fmt.Errorf("empty category name")
		}
		if len(subs) == 0 {
			return nil, fmt.Errorf("category %q has no subcategories", key)
		}
		set := make(map[string]struct{}, len(subs))
		list := make([]string, 0, len(subs))
		for _, s := range subs {
			s = canonical(s)
			if s == "" {
				return nil, fmt.Errorf("category %q has an empty subcategory", key)
			}
			if _, dup := set[s]; dup {
				continue
			}
			set[s] = struct{}{}
			list = append(list, s)
		}
		v.categories[key] = list
		v.subcategories[key] = set
	}
	if _, ok := v.categories[FallbackCategory]; !ok {
		return nil, fmt.Errorf("fallback category %q is missing", FallbackCategory)
	}

	for _, s := range sources {
		s = canonical(s)
		if s == "" {
			return nil, fmt.Errorf("empty source name")
		}
		if _, dup := v.sourceSet[s]; dup {
			continue
		}
		v.sourceSet[s] = struct{}{}
		v.sources = append(v.sources, s)
	}
	if len(v.sources) == 0 {
		return nil, fmt.Errorf("no saving sources defined")
	}

	return v, nil
}

// NormalizeCategory returns the canonical category for raw, or "misc".
func (v *Vocabulary) NormalizeCategory(raw string) string {
	key := canonical(raw)
	if _, ok := v.categories[key]; ok {
		return key
	}
	return FallbackCategory
}

// NormalizeSubcategory returns the canonical subcategory of category for raw.
// An unknown category is treated as the fallback category.
func (v *Vocabulary) NormalizeSubcategory(category, raw string) string {
	category = v.NormalizeCategory(category)
	key := canonical(raw)
	if _, ok := v.subcategories[category][key]; ok {
		return key
	}
	return fallbackMember(v.subcategories[category], v.categories[category], FallbackSubcategory)
}

// NormalizeSource returns the canonical saving source for raw, or "other".
func (v *Vocabulary) NormalizeSource(raw string) string {
	key := canonical(raw)
	if _, ok := v.sourceSet[key]; ok {
		return key
	}
	return fallbackMember(v.sourceSet, v.sources, FallbackSource)
}

// Categories returns the sorted category names.
func (v *Vocabulary) Categories() []string {
	out := make([]string, 0, len(v.categories))
	for name := range v.categories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Subcategories returns the subcategories of a category in file order.
func (v *Vocabulary) Subcategories(category string) []string {
	return append([]string(nil), v.categories[v.NormalizeCategory(category)]...)
}

// Sources returns the saving sources in file order.
func (v *Vocabulary) Sources() []string {
	return append([]string(nil), v.sources...)
}

// fallbackMember prefers the named fallback and otherwise the first listed member.
func fallbackMember(set map[string]struct{}, ordered []string, preferred string) string {
	if _, ok := set[preferred]; ok {
		return preferred
	}
	return ordered[0]
}

func canonical(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
