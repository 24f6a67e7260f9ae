// Package config loads and validates run plans.
//
// A plan is a YAML file naming the store, the scan archive, the grid of
// conditions to compute, and the features to compute at each condition:
//
//	database: cache/features.db
//	archive: lidc
//	window: {lower: -1350, upper: 150}
//	num_levels: [32, 64, 128, 256]
//	noise_scales: [0]
//	classes: [firstorder, glcm]
//
// Relative paths are resolved against the plan file's directory.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/radcache/internal/extract"
	"github.com/roach88/radcache/internal/feature"
	"github.com/roach88/radcache/internal/model"
	"github.com/roach88/radcache/internal/volume"
)

//go:embed schema.cue
var schemaSource string

// DefaultNumLevels is the level count used when a plan names none.
const DefaultNumLevels = 256

// Plan is a decoded run plan.
type Plan struct {
	Database    string         `yaml:"database" json:"database"`
	Archive     string         `yaml:"archive" json:"archive"`
	WorkDir     string         `yaml:"work_dir" json:"work_dir,omitempty"`
	Window      *volume.Window `yaml:"window" json:"window"`
	NumLevels   []int          `yaml:"num_levels" json:"num_levels"`
	NoiseScales []float64      `yaml:"noise_scales" json:"noise_scales"`
	Features    []string       `yaml:"features" json:"features,omitempty"`
	Classes     []string       `yaml:"classes" json:"classes,omitempty"`
	Patients    []string       `yaml:"patients" json:"patients,omitempty"`
	Consensus   *bool          `yaml:"consensus" json:"consensus"`
	Annotations *bool          `yaml:"annotations" json:"annotations"`
	Seed        *int64         `yaml:"seed" json:"seed,omitempty"`
	Engine      Engine         `yaml:"engine" json:"engine"`
}

// Engine configures the external feature engine.
type Engine struct {
	Command string   `yaml:"command" json:"command"`
	Args    []string `yaml:"args" json:"args,omitempty"`
	Timeout string   `yaml:"timeout" json:"timeout,omitempty"`
}

// ValidationError reports a plan that does not satisfy the schema.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("invalid plan %s: %s", e.Path, e.Message)
	}
	return "invalid plan: " + e.Message
}

// IsValidationError returns true if err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Load reads, defaults, and validates the plan at path.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		if ve, ok := err.(*ValidationError); ok {
			ve.Path = path
		}
		return nil, err
	}
	p.resolvePaths(filepath.Dir(path))
	return p, nil
}

// Parse decodes and validates a plan. Unknown keys are rejected.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ValidationError{Message: "empty plan"}
		}
		return nil, &ValidationError{Message: err.Error()}
	}
	p.applyDefaults()
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Plan) applyDefaults() {
	if p.Window == nil {
		w := volume.DefaultWindow
		p.Window = &w
	}
	if len(p.NumLevels) == 0 {
		p.NumLevels = []int{DefaultNumLevels}
	}
	if len(p.NoiseScales) == 0 {
		p.NoiseScales = []float64{0}
	}
	if p.Consensus == nil {
		t := true
		p.Consensus = &t
	}
	if p.Annotations == nil {
		t := true
		p.Annotations = &t
	}
	if p.Engine.Command == "" {
		p.Engine.Command = extract.DefaultCommand
	}
}

func (p *Plan) validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile plan schema: %w", err)
	}
	v := schema.LookupPath(cue.ParsePath("#Plan")).Unify(ctx.Encode(p))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Message: formatCUEError(err)}
	}
	if len(p.Features) == 0 && len(p.Classes) == 0 {
		return &ValidationError{Message: "plan names no features or classes"}
	}
	if !*p.Consensus && !*p.Annotations {
		return &ValidationError{Message: "consensus and annotations are both disabled"}
	}
	if _, err := FeatureIDs(p, feature.Default()); err != nil {
		return &ValidationError{Message: err.Error()}
	}
	return nil
}

// formatCUEError flattens CUE errors into one line per error.
func formatCUEError(err error) string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}
	var buf bytes.Buffer
	for i, e := range errs {
		if i > 0 {
			buf.WriteString("; ")
		}
		buf.WriteString(e.Error())
	}
	return buf.String()
}

func (p *Plan) resolvePaths(base string) {
	abs := func(s string) string {
		if s == "" || filepath.IsAbs(s) {
			return s
		}
		return filepath.Join(base, s)
	}
	p.Database = abs(p.Database)
	p.Archive = abs(p.Archive)
	p.WorkDir = abs(p.WorkDir)
}

// FeatureIDs expands the plan's features and classes into identifiers, in
// the order given with classes following explicit features, without repeats.
func FeatureIDs(p *Plan, reg *feature.Registry) ([]model.FeatureID, error) {
	seen := make(map[model.FeatureID]bool)
	var out []model.FeatureID
	add := func(id model.FeatureID) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, f := range p.Features {
		id := model.FeatureID(f)
		if _, ok := reg.Lookup(id); !ok {
			return nil, &feature.InvalidFeatureError{ID: id}
		}
		add(id)
	}
	for _, c := range p.Classes {
		ids := reg.ByClass(c)
		if len(ids) == 0 {
			return nil, fmt.Errorf("unknown feature class %q", c)
		}
		for _, id := range ids {
			add(id)
		}
	}
	return out, nil
}

// EngineTimeout parses the engine timeout. Zero means no timeout.
func (p *Plan) EngineTimeout() time.Duration {
	if p.Engine.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(p.Engine.Timeout)
	if err != nil {
		return 0
	}
	return d
}
