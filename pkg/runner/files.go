package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/opsforge/taskkit/pkg/api"
)

var (
	// ErrReadFile is raised when an input file is missing or malformed
	ErrReadFile = errors.New("failed to read file")

	// ErrWriteFile is raised when an output file cannot be written
	ErrWriteFile = errors.New("failed to write file")
)

// ReadParams reads a JSON object of workflow parameters
func ReadParams(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(
			"%w: params file not found: %s", ErrReadFile, path,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrReadFile, err)
	}

	var params map[string]any
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf(
			"%w: invalid JSON in params file %s: %s", ErrReadFile, path, err,
		)
	}
	if params == nil {
		params = map[string]any{}
	}
	return params, nil
}

// WriteStepOutput writes a step result as the JSON output-file
// contract: a messages list plus optional output, context updates and
// flow control
func WriteStepOutput(path string, res *api.StepResult) error {
	if res.Messages == nil {
		res.Messages = []*api.Message{}
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %s", ErrWriteFile, err)
	}
	return writeFile(path, data)
}

// WriteFlowControl writes the flow-control updates alone, for direct
// consumption by the orchestrator's conditional-execution mechanism
func WriteFlowControl(path string, control map[string]any) error {
	if control == nil {
		control = map[string]any{}
	}
	data, err := json.MarshalIndent(control, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %s", ErrWriteFile, err)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %s", ErrWriteFile, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %s", ErrWriteFile, err)
	}
	return nil
}
