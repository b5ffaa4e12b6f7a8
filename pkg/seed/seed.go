// Package seed loads initial knowledge, goals and episodes from YAML.
//
// A seed file looks like:
//
//	version: 1
//	symbols: [saturn]
//	triples:
//	  - [jupiter, has_moon, io]
//	  - {subject: io, predicate: is_a, object: moon, confidence: 0.8}
//	goals:
//	  - description: find the moons of jupiter
//	    priority: 200
//	episodes:
//	  - summary: jupiter is the largest planet
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/goclaw/hyperagent/pkg/goal"
	"github.com/goclaw/hyperagent/pkg/kg"
	"github.com/goclaw/hyperagent/pkg/memory"
)

// Version is the seed format this package reads.
const Version = 1

// File is a parsed seed document.
type File struct {
	Version  int       `yaml:"version" validate:"eq=1"`
	Symbols  []string  `yaml:"symbols" validate:"dive,required"`
	Triples  []Triple  `yaml:"triples" validate:"dive"`
	Goals    []Goal    `yaml:"goals" validate:"dive"`
	Episodes []Episode `yaml:"episodes" validate:"dive"`
}

// Triple is one fact. It decodes from a mapping or a three-element list.
// A zero confidence is stored as 1.
type Triple struct {
	Subject    string  `yaml:"subject" validate:"required"`
	Predicate  string  `yaml:"predicate" validate:"required"`
	Object     string  `yaml:"object" validate:"required"`
	Confidence float64 `yaml:"confidence" validate:"gte=0,lte=1"`
}

// UnmarshalYAML accepts [subject, predicate, object] as shorthand.
func (t *Triple) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		var parts []string
		if err := node.Decode(&parts); err != nil {
			return err
		}
		if len(parts) != 3 {
			return fmt.Errorf("line %d: triple needs 3 elements, got %d", node.Line, len(parts))
		}
		*t = Triple{Subject: parts[0], Predicate: parts[1], Object: parts[2]}
		return nil
	}
	type plain Triple
	return node.Decode((*plain)(t))
}

// Goal is a goal to create. BlockedBy names other goals by description.
type Goal struct {
	Description     string   `yaml:"description" validate:"required"`
	SuccessCriteria string   `yaml:"success_criteria"`
	Priority        uint8    `yaml:"priority"`
	BlockedBy       []string `yaml:"blocked_by"`
}

// Episode is a remembered summary loaded straight into episodic memory.
type Episode struct {
	Summary string `yaml:"summary" validate:"required"`
}

// Target is what a seed is applied to.
type Target interface {
	Graph() *kg.Graph
	CreateGoal(ctx context.Context, spec goal.Spec) (*goal.Goal, error)
	AddEpisode(ctx context.Context, ep memory.Episode) (*memory.Episode, error)
}

// Result counts what Apply added.
type Result struct {
	Symbols      int
	Triples      int
	Goals        int
	SkippedGoals int
	Episodes     int
}

// ErrInvalid wraps every structural problem in a seed file.
var ErrInvalid = errors.New("seed: invalid file")

var validate = validator.New()

// Load reads and validates the seed file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read %s: %w", path, err)
	}
	f, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a seed document. Unknown keys are rejected.
// A missing version means the current one.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &File{Version: Version}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if f.Version == 0 {
		f.Version = Version
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks field constraints and that every blocked_by reference
// names a goal declared earlier in the file.
func (f *File) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	declared := make(map[string]bool, len(f.Goals))
	for _, g := range f.Goals {
		desc := strings.TrimSpace(g.Description)
		if declared[desc] {
			return fmt.Errorf("%w: duplicate goal %q", ErrInvalid, desc)
		}
		for _, dep := range g.BlockedBy {
			if !declared[strings.TrimSpace(dep)] {
				return fmt.Errorf("%w: goal %q is blocked by undeclared goal %q", ErrInvalid, desc, dep)
			}
		}
		declared[desc] = true
	}
	return nil
}

// Apply adds the seed's content to t. Goals that already exist are skipped,
// so applying the same seed to a restored engine adds nothing twice.
func (f *File) Apply(ctx context.Context, t Target) (Result, error) {
	var res Result
	graph := t.Graph()

	for _, label := range f.Symbols {
		if _, ok := graph.Lookup(label); ok {
			continue
		}
		if _, err := graph.Intern(label); err != nil {
			return res, fmt.Errorf("seed: symbol %q: %w", label, err)
		}
		res.Symbols++
	}

	for _, tr := range f.Triples {
		if _, err := graph.AssertLabels(tr.Subject, tr.Predicate, tr.Object, tr.Confidence); err != nil {
			return res, fmt.Errorf("seed: triple %s %s %s: %w", tr.Subject, tr.Predicate, tr.Object, err)
		}
		res.Triples++
	}

	for _, g := range f.Goals {
		spec := goal.Spec{
			Description:     g.Description,
			SuccessCriteria: g.SuccessCriteria,
			Priority:        g.Priority,
		}
		for _, dep := range g.BlockedBy {
			id, ok := graph.Lookup(goal.Label(strings.TrimSpace(dep)))
			if !ok {
				return res, fmt.Errorf("seed: goal %q: unknown blocker %q", g.Description, dep)
			}
			spec.BlockedBy = append(spec.BlockedBy, id)
		}
		if _, err := t.CreateGoal(ctx, spec); err != nil {
			if errors.Is(err, goal.ErrExists) {
				res.SkippedGoals++
				continue
			}
			return res, fmt.Errorf("seed: goal %q: %w", g.Description, err)
		}
		res.Goals++
	}

	for _, ep := range f.Episodes {
		if _, err := t.AddEpisode(ctx, memory.Episode{Summary: ep.Summary}); err != nil {
			return res, fmt.Errorf("seed: episode: %w", err)
		}
		res.Episodes++
	}
	return res, nil
}
