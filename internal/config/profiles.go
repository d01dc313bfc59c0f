package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/parcel-routing/route-optimizer/backend/internal/domain"
	"gopkg.in/yaml.v3"
)

var ErrProfileNotFound = errors.New("optimizer profile not found")

// Profiles are named parameter presets read from YAML:
//
//	profiles:
//	  quick:
//	    population_size: 20
//	    generations: 30
//
// Keys a profile leaves out keep the value of the base parameters.
type Profiles struct {
	nodes map[string]yaml.Node
}

func LoadProfiles(path string) (*Profiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Profiles{nodes: map[string]yaml.Node{}}, nil
		}
		return nil, err
	}
	return ParseProfiles(data)
}

func ParseProfiles(data []byte) (*Profiles, error) {
	var doc struct {
		Profiles map[string]yaml.Node `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	if doc.Profiles == nil {
		doc.Profiles = map[string]yaml.Node{}
	}

	p := &Profiles{nodes: doc.Profiles}
	for _, name := range p.Names() {
		if _, err := p.Resolve(name, domain.RunParameters{}); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Profiles) Names() []string {
	names := make([]string, 0, len(p.nodes))
	for name := range p.nodes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Resolve overlays the named profile on base.
func (p *Profiles) Resolve(name string, base domain.RunParameters) (domain.RunParameters, error) {
	node, ok := p.nodes[name]
	if !ok {
		return domain.RunParameters{}, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}

	params := base
	params.DepartureTimes = slices.Clone(base.DepartureTimes)
	// Decode writes through non-nil pointers, so give params its own.
	params.LatePenalty = clonePenalty(base.LatePenalty)
	params.VehiclePenalty = clonePenalty(base.VehiclePenalty)
	if err := node.Decode(&params); err != nil {
		return domain.RunParameters{}, fmt.Errorf("profile %s: %w", name, err)
	}
	return params, nil
}

// DefaultRunParameters is the OPTIMIZER_ section as run parameters.
func (c *Config) DefaultRunParameters() domain.RunParameters {
	o := c.Optimizer
	return domain.RunParameters{
		TruckCount:     o.TruckCount,
		TruckCapacity:  o.TruckCapacity,
		TruckSpeed:     o.TruckSpeed,
		DepartureTimes: slices.Clone(o.DepartureTimes),
		PopulationSize: o.PopulationSize,
		Generations:    o.Generations,
		CrossoverRate:  o.CrossoverRate,
		MutationRate:   o.MutationRate,
		LatePenalty:    clonePenalty(&o.LatePenalty),
		VehiclePenalty: clonePenalty(&o.VehiclePenalty),
		Seed:           1,
	}
}

func clonePenalty(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
