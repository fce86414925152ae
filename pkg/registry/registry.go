// Package registry loads the pre-trained scoring models once at startup and
// holds them read-only for the lifetime of the process.
package registry

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/hed1ad/wqguard/pkg/detectors"
	"github.com/hed1ad/wqguard/pkg/detectors/iforest"
	"github.com/hed1ad/wqguard/pkg/water"
)

// Selection chooses which model layout Load looks for.
type Selection string

const (
	// Auto uses per-parameter artifacts when all are present, else the joint one.
	Auto         Selection = "auto"
	PerParameter Selection = "per_parameter"
	Joint        Selection = "joint"
)

// ParseSelection validates a configured selection; empty means Auto.
func ParseSelection(s string) (Selection, error) {
	switch Selection(strings.ToLower(strings.TrimSpace(s))) {
	case "", Auto:
		return Auto, nil
	case PerParameter:
		return PerParameter, nil
	case Joint:
		return Joint, nil
	}
	return "", fmt.Errorf("invalid model variant %q (use auto, per_parameter or joint)", s)
}

// Decoder turns artifact bytes into a model.
type Decoder func(data []byte) (detectors.Model, error)

// DecodeIsolationForest decodes an iforest artifact.
func DecodeIsolationForest(data []byte) (detectors.Model, error) {
	f := iforest.New()
	if err := f.Load(data); err != nil {
		return nil, err
	}
	return f, nil
}

// Options control Load.
type Options struct {
	Selection Selection
	Decoder   Decoder
	Logger    *log.Logger
}

// ModelLoadError reports an artifact that is missing or cannot be decoded.
// It is fatal: a process without a complete registry must not serve.
type ModelLoadError struct {
	Name     string
	Location string
	Err      error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %s from %s: %v", e.Name, e.Location, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// Artifact describes one loaded model.
type Artifact struct {
	Name        string `json:"name"`
	Location    string `json:"location"`
	Parameter   string `json:"parameter,omitempty"`
	NumFeatures int    `json:"num_features"`
}

// Registry is the immutable set of scoring models. Exactly one layout is
// active: per-parameter models or a single joint model.
type Registry struct {
	variant   water.Variant
	models    map[water.Parameter]detectors.Model
	joint     detectors.Model
	artifacts []Artifact
}

// Load reads every artifact the selected layout needs from src. Any missing
// or corrupt artifact yields a *ModelLoadError.
func Load(ctx context.Context, src Source, opts Options) (*Registry, error) {
	if opts.Decoder == nil {
		opts.Decoder = DecodeIsolationForest
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Selection == "" {
		opts.Selection = Auto
	}

	variant, err := resolveVariant(ctx, src, opts.Selection)
	if err != nil {
		return nil, err
	}

	if variant == water.Joint {
		m, a, err := loadOne(ctx, src, opts.Decoder, water.JointArtifactName)
		if err != nil {
			return nil, err
		}
		r, err := NewJoint(m)
		if err != nil {
			return nil, &ModelLoadError{Name: a.Name, Location: a.Location, Err: err}
		}
		r.artifacts = []Artifact{a}
		opts.Logger.Printf("loaded joint model from %s (%d features)", a.Location, a.NumFeatures)
		return r, nil
	}

	models := make(map[water.Parameter]detectors.Model)
	var artifacts []Artifact
	for _, spec := range water.Specs() {
		m, a, err := loadOne(ctx, src, opts.Decoder, spec.ArtifactName)
		if err != nil {
			return nil, err
		}
		if m.NumFeatures() != 1 {
			return nil, &ModelLoadError{
				Name:     a.Name,
				Location: a.Location,
				Err:      fmt.Errorf("model for %s expects %d features, want 1", spec.ID, m.NumFeatures()),
			}
		}
		a.Parameter = string(spec.ID)
		models[spec.ID] = m
		artifacts = append(artifacts, a)
		opts.Logger.Printf("loaded %s model from %s", spec.ID, a.Location)
	}

	r, err := NewPerParameter(models)
	if err != nil {
		return nil, err
	}
	r.artifacts = artifacts
	return r, nil
}

func resolveVariant(ctx context.Context, src Source, sel Selection) (water.Variant, error) {
	switch sel {
	case PerParameter:
		return water.PerParameter, nil
	case Joint:
		return water.Joint, nil
	case Auto:
	default:
		return 0, fmt.Errorf("invalid model variant %q", sel)
	}

	var missing []string
	for _, spec := range water.Specs() {
		ok, err := src.Exists(ctx, spec.ArtifactName)
		if err != nil {
			return 0, &ModelLoadError{Name: spec.ArtifactName, Location: src.Location(spec.ArtifactName), Err: err}
		}
		if !ok {
			missing = append(missing, spec.ArtifactName)
		}
	}
	if len(missing) == 0 {
		return water.PerParameter, nil
	}

	ok, err := src.Exists(ctx, water.JointArtifactName)
	if err != nil {
		return 0, &ModelLoadError{Name: water.JointArtifactName, Location: src.Location(water.JointArtifactName), Err: err}
	}
	if ok {
		return water.Joint, nil
	}
	return 0, &ModelLoadError{
		Name:     water.JointArtifactName,
		Location: src.Location(water.JointArtifactName),
		Err:      fmt.Errorf("no complete model set: per-parameter artifacts missing %s and no joint artifact", strings.Join(missing, ", ")),
	}
}

func loadOne(ctx context.Context, src Source, decode Decoder, name string) (detectors.Model, Artifact, error) {
	a := Artifact{Name: name, Location: src.Location(name)}
	b, err := src.Fetch(ctx, name)
	if err != nil {
		return nil, a, &ModelLoadError{Name: name, Location: a.Location, Err: err}
	}
	m, err := decode(b)
	if err != nil {
		return nil, a, &ModelLoadError{Name: name, Location: a.Location, Err: err}
	}
	a.NumFeatures = m.NumFeatures()
	return m, a, nil
}

// NewPerParameter builds a registry from one single-feature model per
// required parameter.
func NewPerParameter(models map[water.Parameter]detectors.Model) (*Registry, error) {
	r := &Registry{
		variant: water.PerParameter,
		models:  make(map[water.Parameter]detectors.Model, len(models)),
	}
	for _, p := range water.Parameters() {
		m, ok := models[p]
		if !ok || m == nil {
			return nil, fmt.Errorf("no model for parameter %s", p)
		}
		r.models[p] = m
		r.artifacts = append(r.artifacts, Artifact{Parameter: string(p), NumFeatures: m.NumFeatures()})
	}
	return r, nil
}

// NewJoint builds a registry around a single model over all parameters.
func NewJoint(m detectors.Model) (*Registry, error) {
	if m == nil {
		return nil, fmt.Errorf("no joint model")
	}
	want := len(water.Parameters())
	if m.NumFeatures() != want {
		return nil, fmt.Errorf("joint model expects %d features, want %d", m.NumFeatures(), want)
	}
	return &Registry{
		variant:   water.Joint,
		joint:     m,
		artifacts: []Artifact{{NumFeatures: m.NumFeatures()}},
	}, nil
}

// Variant returns the active model layout.
func (r *Registry) Variant() water.Variant { return r.variant }

// Model returns the per-parameter model for p.
func (r *Registry) Model(p water.Parameter) (detectors.Model, bool) {
	m, ok := r.models[p]
	return m, ok
}

// Joint returns the joint model, nil for per-parameter registries.
func (r *Registry) Joint() detectors.Model { return r.joint }

// Artifacts describes the loaded models.
func (r *Registry) Artifacts() []Artifact {
	return append([]Artifact(nil), r.artifacts...)
}
