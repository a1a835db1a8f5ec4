package workflow

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	// ErrWorkflowNotFound is raised when the definition file is absent
	ErrWorkflowNotFound = errors.New("workflow file not found")

	// ErrInvalidWorkflow is raised when the definition source can't be
	// decoded or lacks required fields
	ErrInvalidWorkflow = errors.New("invalid workflow definition")
)

// Load reads a workflow definition from a YAML file, applies defaults,
// and normalizes it
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, path)
		}
		return nil, err
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Parse decodes a workflow definition from YAML source, applies
// defaults, and normalizes it
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidWorkflow, err)
	}
	if def.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidWorkflow)
	}
	if def.Platform == "" {
		return nil, fmt.Errorf("%w: platform is required", ErrInvalidWorkflow)
	}
	if err := def.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidWorkflow, err)
	}
	return &def, nil
}

// UnmarshalYAML decodes a Definition with defaults pre-applied, so an
// absent field keeps its default while an explicit zero survives
func (d *Definition) UnmarshalYAML(node *yaml.Node) error {
	type raw Definition
	out := raw{
		DefaultRetries: DefaultRetries,
		TimeoutSeconds: DefaultTimeoutSeconds,
	}
	if err := node.Decode(&out); err != nil {
		return err
	}
	*d = Definition(out)
	return nil
}
