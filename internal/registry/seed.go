package registry

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	perrors "github.com/orizon-lang/refinement/internal/errors"
)

// Pack is a YAML seed file that registers a feature package's brands.
//
//	name: geometry
//	version: 1.0.0
//	requires: ">= 0.1.0"
//	predicates:
//	  Angle: "$ >= 0 && $ < 360"
//	subtyping:
//	  - {from: Angle, to: NonNegative, proof_id: angle-nn, justification: "0 <= x"}
//	decidability:
//	  - {brand: Angle, decidability: compile-time, strategy: linear}
//	generators:
//	  - {pattern: '^Below<(\d+)>$', template: "$ < {1}"}
type Pack struct {
	Name         string             `yaml:"name"`
	Version      string             `yaml:"version"`
	Requires     string             `yaml:"requires"`
	Predicates   map[string]string  `yaml:"predicates"`
	Subtyping    []SubtypingRule    `yaml:"subtyping"`
	Decidability []DecidabilityInfo `yaml:"decidability"`
	Generators   []GeneratorSpec    `yaml:"generators"`
}

// GeneratorSpec declares a dynamic predicate family.
type GeneratorSpec struct {
	Pattern  string `yaml:"pattern"`
	Template string `yaml:"template"`
}

// ParsePack decodes and validates a seed pack.
func ParsePack(data []byte) (*Pack, error) {
	var p Pack
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode seed pack: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadPack reads and parses the seed pack at path.
func LoadPack(path string) (*Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, perrors.InvalidPack(path, err)
	}
	p, err := ParsePack(data)
	if err != nil {
		return nil, perrors.InvalidPack(path, err)
	}
	if p.Name == "" {
		p.Name = path
	}
	return p, nil
}

func (p *Pack) validate() error {
	if p.Version != "" {
		if _, err := semver.NewVersion(p.Version); err != nil {
			return fmt.Errorf("version %q: %w", p.Version, err)
		}
	}
	if p.Requires != "" {
		if _, err := semver.NewConstraint(p.Requires); err != nil {
			return fmt.Errorf("requires %q: %w", p.Requires, err)
		}
	}
	for _, r := range p.Subtyping {
		if r.From == "" || r.To == "" {
			return fmt.Errorf("subtyping rule %q needs both from and to", r.ProofID)
		}
	}
	for _, d := range p.Decidability {
		switch d.Decidability {
		case CompileTime, Decidable, Runtime, Undecidable:
		default:
			return fmt.Errorf("brand %s: unknown decidability %q", d.Brand, d.Decidability)
		}
	}
	return nil
}

// Compatible checks the pack's requires constraint against the running
// prover version.
func (p *Pack) Compatible(version string) error {
	if p.Requires == "" {
		return nil
	}

	c, err := semver.NewConstraint(p.Requires)
	if err != nil {
		return perrors.InvalidPack(p.Name, err)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return perrors.InvalidPack(p.Name, fmt.Errorf("prover version %q: %w", version, err))
	}
	if !c.Check(v) {
		return perrors.IncompatiblePack(p.Name, p.Requires, version)
	}
	return nil
}

// Apply registers every entry of p. Entries for keys already present
// replace them.
func (r *Registry) Apply(p *Pack) error {
	for _, g := range p.Generators {
		if err := r.RegisterDynamicTemplate(g.Pattern, g.Template); err != nil {
			return perrors.InvalidPack(p.Name, fmt.Errorf("generator %q: %w", g.Pattern, err))
		}
	}

	brands := make([]string, 0, len(p.Predicates))
	for b := range p.Predicates {
		brands = append(brands, b)
	}
	sort.Strings(brands)
	for _, b := range brands {
		r.RegisterRefinementPredicate(b, p.Predicates[b])
	}

	for _, rule := range p.Subtyping {
		r.RegisterSubtypingRule(rule)
	}
	for _, info := range p.Decidability {
		r.RegisterDecidability(info)
	}
	return nil
}

// LoadSeeds expands each doublestar pattern, checks every matched pack
// against version, and applies the compatible ones. It returns the number
// of packs applied; the first error stops loading.
func (r *Registry) LoadSeeds(patterns []string, version string, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	applied := 0
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return applied, perrors.InvalidPack(pattern, err)
		}
		sort.Strings(matches)

		for _, path := range matches {
			if err := r.loadPack(path, version); err != nil {
				return applied, err
			}
			logger.Debug("Applied seed pack", slog.String("path", path))
			applied++
		}
	}

	return applied, nil
}

func (r *Registry) loadPack(path, version string) error {
	p, err := LoadPack(path)
	if err != nil {
		return err
	}
	if err := p.Compatible(version); err != nil {
		return err
	}
	return r.Apply(p)
}
