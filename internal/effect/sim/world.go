package sim

import (
	"fmt"
	"os"

	"github.com/vk/stagecue/internal/effect"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

// World is the YAML seed file for a headless stage: where actors start,
// what the variable store holds, and what the inventory contains before any
// list runs.
type World struct {
	Actors    map[string]WorldPosition `yaml:"actors"`
	Variables map[string]any           `yaml:"variables"`
	Inventory map[string]int           `yaml:"inventory"`
	Objects   map[string]WorldObject   `yaml:"objects"`
}

// WorldPosition is an authored point in world space.
type WorldPosition struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// WorldObject is the authored state of a scene object.
type WorldObject struct {
	Visible bool `yaml:"visible"`
}

// LoadWorld reads and parses a world file.
func LoadWorld(path string) (*World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read world file: %w", err)
	}
	return ParseWorld(data)
}

// ParseWorld parses world YAML.
func ParseWorld(data []byte) (*World, error) {
	var w World
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse world file: %w", err)
	}
	return &w, nil
}

// Apply seeds a stage from the world description.
func (w *World) Apply(s *Stage) error {
	for id, pos := range w.Actors {
		s.AddActor(id, effect.Position{X: pos.X, Y: pos.Y, Z: pos.Z})
	}
	for name, raw := range w.Variables {
		v, err := yamlToCty(raw)
		if err != nil {
			return fmt.Errorf("variable %q: %w", name, err)
		}
		s.Write(name, v)
	}
	for item, count := range w.Inventory {
		if count > 0 {
			s.Add(item, count)
		}
	}
	for obj, st := range w.Objects {
		if err := s.SetVisible(obj, st.Visible); err != nil {
			return err
		}
	}
	return nil
}

// yamlToCty maps the scalar types a world file may hold onto engine values.
func yamlToCty(raw any) (cty.Value, error) {
	switch v := raw.(type) {
	case bool:
		return cty.BoolVal(v), nil
	case int:
		return cty.NumberIntVal(int64(v)), nil
	case int64:
		return cty.NumberIntVal(v), nil
	case float64:
		return cty.NumberFloatVal(v), nil
	case string:
		return cty.StringVal(v), nil
	default:
		return cty.NilVal, fmt.Errorf("unsupported value %T", raw)
	}
}
