package mediation

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"midi-bridge/bus"
	"midi-bridge/midi"
)

//go:embed mappings/knobs.yaml
var defaultMappings []byte

// MaxKnobs bounds the knobs per device so every index fits a knob message.
const MaxKnobs = 256

var ErrInvalidMapping = errors.New("invalid knob mapping")

// KnobMapping declares one logical knob. A nil Channel matches any channel.
type KnobMapping struct {
	Channel    *int
	Controller midi.ControllerLabel
}

// DeviceMapping is the knob list for one device, keyed by port display name.
type DeviceMapping struct {
	Name  string
	Knobs []KnobMapping
}

// MappingTable is the static set of known devices.
type MappingTable []DeviceMapping

type labelDoc struct {
	Numbered *int    `yaml:"Numbered"`
	Special  *string `yaml:"Special"`
}

type knobDoc struct {
	Channel    *int     `yaml:"channel"`
	Controller labelDoc `yaml:"controller"`
}

type deviceDoc struct {
	Name  string    `yaml:"name"`
	Knobs []knobDoc `yaml:"knobs"`
}

// ParseMappings decodes and validates a YAML mapping table.
func ParseMappings(data []byte) (MappingTable, error) {
	var docs []deviceDoc
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMapping, err)
	}

	table := make(MappingTable, 0, len(docs))
	for _, d := range docs {
		if d.Name == "" {
			return nil, fmt.Errorf("%w: device without a name", ErrInvalidMapping)
		}
		if len(d.Knobs) > MaxKnobs {
			return nil, fmt.Errorf("%w: %s has %d knobs, max %d", ErrInvalidMapping, d.Name, len(d.Knobs), MaxKnobs)
		}
		dev := DeviceMapping{Name: d.Name, Knobs: make([]KnobMapping, 0, len(d.Knobs))}
		for i, k := range d.Knobs {
			m, err := k.mapping()
			if err != nil {
				return nil, fmt.Errorf("%w: %s knob %d: %v", ErrInvalidMapping, d.Name, i, err)
			}
			dev.Knobs = append(dev.Knobs, m)
		}
		table = append(table, dev)
	}
	return table, nil
}

func (k knobDoc) mapping() (KnobMapping, error) {
	if k.Channel != nil && (*k.Channel < 1 || *k.Channel > 16) {
		return KnobMapping{}, fmt.Errorf("channel %d out of range 1-16", *k.Channel)
	}
	c := k.Controller
	switch {
	case c.Numbered != nil && c.Special != nil:
		return KnobMapping{}, errors.New("controller is both Numbered and Special")
	case c.Numbered != nil:
		if *c.Numbered < 0 || *c.Numbered > 127 {
			return KnobMapping{}, fmt.Errorf("controller number %d out of range 0-127", *c.Numbered)
		}
		return KnobMapping{Channel: k.Channel, Controller: midi.Numbered(uint8(*c.Numbered))}, nil
	case c.Special != nil:
		if *c.Special == "" {
			return KnobMapping{}, errors.New("empty Special controller name")
		}
		return KnobMapping{Channel: k.Channel, Controller: midi.Special(*c.Special)}, nil
	}
	return KnobMapping{}, errors.New("controller must be Numbered or Special")
}

// DefaultMappings returns the built-in table.
func DefaultMappings() (MappingTable, error) {
	return ParseMappings(defaultMappings)
}

// LoadMappingsFile reads a table from disk.
func LoadMappingsFile(path string) (MappingTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseMappings(data)
}

// Lookup finds the knobs for an exact device name.
func (t MappingTable) Lookup(name string) ([]KnobMapping, bool) {
	for _, d := range t {
		if d.Name == name {
			return d.Knobs, true
		}
	}
	return nil, false
}

// Resolver maps controller updates onto a device's logical knobs.
type Resolver struct {
	knobs []KnobMapping
}

func NewResolver(knobs []KnobMapping) *Resolver {
	return &Resolver{knobs: knobs}
}

func (r *Resolver) Len() int {
	if r == nil {
		return 0
	}
	return len(r.knobs)
}

// Match returns the index of the first knob declared for the controller on
// a 1-based channel.
func (r *Resolver) Match(channel int, label midi.ControllerLabel) (int, bool) {
	if r == nil {
		return 0, false
	}
	for i, k := range r.knobs {
		if k.Channel != nil && *k.Channel != channel {
			continue
		}
		if k.Controller.Equal(label) {
			return i, true
		}
	}
	return 0, false
}

// Resolve builds the knob message for an update, if a knob is declared for it.
func (r *Resolver) Resolve(channel int, label midi.ControllerLabel, value midi.Value) (bus.Knob, bool) {
	i, ok := r.Match(channel, label)
	if !ok {
		return bus.Knob{}, false
	}
	return bus.Knob{Index: uint8(i), Position: float32(value.Normalized())}, true
}
