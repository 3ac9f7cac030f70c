package profiles

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/username/divledger/src/models"
)

// Profile describes how to recognize and map one broker CSV format.
// Profiles are loaded once per process and never mutated afterwards.
type Profile struct {
	Name    string    `yaml:"name"`
	When    Predicate `yaml:"when"`
	Reader  Reader    `yaml:"reader"`
	Mapping Mapping   `yaml:"mapping"`
}

// Predicate is the match condition for a profile. An absent field is
// vacuously true; a profile matches only when every present field passes.
type Predicate struct {
	FilenameGlob   string   `yaml:"filename_glob"`
	HeaderContains []string `yaml:"header_contains"`
}

// Reader holds per-broker read settings for the raw CSV.
type Reader struct {
	Encoding        string   `yaml:"encoding"`         // "auto" or an IANA charset label
	NegativeFormats []string `yaml:"negative_formats"` // "minus", "paren"; first entry wins
	Thousands       string   `yaml:"thousands"`
	Decimal         string   `yaml:"decimal"`
}

// NegativeFormat returns the effective negative-number convention.
func (r Reader) NegativeFormat() string {
	if len(r.NegativeFormats) > 0 {
		return r.NegativeFormats[0]
	}
	return "minus"
}

// Mapping describes how source columns become canonical columns.
type Mapping struct {
	Columns    map[string]string `yaml:"columns"`   // source column -> canonical column
	Constants  map[string]string `yaml:"constants"` // canonical column -> literal value
	Derived    map[string]string `yaml:"derived"`   // canonical column -> expression text
	Required   []string          `yaml:"required"`
	Rules      []SplitRule       `yaml:"rules"`
	HashFields []string          `yaml:"hash_fields"`

	exprs map[string]Expr // parsed form of Derived, built at load time
}

// Exprs returns the parsed derived-field expressions keyed by canonical
// column name.
func (m *Mapping) Exprs() map[string]Expr {
	return m.exprs
}

// SplitRule reclassifies composite rows whose description matches one of
// the pipe-separated patterns, moving |gross_amount| into the target
// bucket. Rules apply in declaration order.
type SplitRule struct {
	Target string `yaml:"target"` // "withholding_tax" or "fees"
	Match  string `yaml:"match"`  // case-insensitive substring alternatives, "|"-separated
}

// Matches reports whether the description matches any pattern alternative.
func (r SplitRule) Matches(description string) bool {
	lower := strings.ToLower(description)
	for _, alt := range strings.Split(r.Match, "|") {
		alt = strings.TrimSpace(alt)
		if alt != "" && strings.Contains(lower, strings.ToLower(alt)) {
			return true
		}
	}
	return false
}

type document struct {
	Profiles []Profile `yaml:"profiles"`
}

// Registry is the immutable ordered profile list. Selection is a pure
// function over this list plus the candidate file's metadata.
type Registry struct {
	profiles []Profile
}

// Load parses and validates a profile document. A malformed document or an
// unsupported derived-field expression is a hard error; nothing is loaded
// partially.
func Load(r io.Reader) (*Registry, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing profile document: %w", err)
	}
	if len(doc.Profiles) == 0 {
		return nil, fmt.Errorf("profile document declares no profiles")
	}
	for i := range doc.Profiles {
		if err := validate(&doc.Profiles[i]); err != nil {
			return nil, fmt.Errorf("profile %q: %w", profileLabel(&doc.Profiles[i], i), err)
		}
	}
	return &Registry{profiles: doc.Profiles}, nil
}

// Profiles returns the ordered profile list.
func (reg *Registry) Profiles() []Profile {
	return reg.profiles
}

func profileLabel(p *Profile, idx int) string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("#%d", idx)
}

var splitTargets = map[string]bool{
	"withholding_tax": true,
	"fees":            true,
}

// hashableColumns are the canonical columns with a stable text form. The
// row hash, creation timestamp, and notes bag never feed the digest.
var hashableColumns = hashableColumnSet()

func hashableColumnSet() map[string]bool {
	set := make(map[string]bool, len(models.CanonicalColumns))
	for _, c := range models.CanonicalColumns {
		set[c] = true
	}
	delete(set, "row_hash")
	delete(set, "created_ts")
	delete(set, "notes")
	return set
}

func validate(p *Profile) error {
	if len(p.Mapping.Columns) == 0 && len(p.Mapping.Constants) == 0 {
		return fmt.Errorf("mapping declares no columns and no constants")
	}
	switch p.Reader.NegativeFormat() {
	case "minus", "paren":
	default:
		return fmt.Errorf("unsupported negative format %q", p.Reader.NegativeFormat())
	}
	for _, f := range p.Mapping.HashFields {
		if !hashableColumns[f] {
			return fmt.Errorf("hash field %q is not a hashable canonical column", f)
		}
	}
	for _, rule := range p.Mapping.Rules {
		if !splitTargets[rule.Target] {
			return fmt.Errorf("split rule target %q must be withholding_tax or fees", rule.Target)
		}
		if strings.TrimSpace(rule.Match) == "" {
			return fmt.Errorf("split rule for %q has an empty match pattern", rule.Target)
		}
	}
	if len(p.Mapping.Derived) > 0 {
		p.Mapping.exprs = make(map[string]Expr, len(p.Mapping.Derived))
		for col, raw := range p.Mapping.Derived {
			expr, err := ParseExpr(raw)
			if err != nil {
				return fmt.Errorf("derived field %q: %w", col, err)
			}
			p.Mapping.exprs[col] = expr
		}
	}
	return nil
}
