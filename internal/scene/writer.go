package scene

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Write writes a scene to a YAML file.
func Write(sc *Scene, path string) error {
	data, err := yaml.Marshal(sc)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Read reads a scene from a YAML file and validates it. Definition problems
// (unknown references and the like) are returned alongside the scene; only
// structural errors (unreadable YAML, cyclic parent chains) fail the load.
func Read(path string) (*Scene, []Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return Parse(data)
}

// Parse decodes and validates a YAML scene document.
func Parse(data []byte) (*Scene, []Problem, error) {
	var sc Scene
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, nil, fmt.Errorf("scene decode error: %w", err)
	}

	problems := Validate(&sc)
	for _, p := range problems {
		if p.Fatal {
			return nil, problems, fmt.Errorf("scene definition error: %s", p.Message)
		}
	}
	return &sc, problems, nil
}
