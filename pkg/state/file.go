package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/opsforge/taskkit/pkg/api"
)

// FileStore keeps vars in a YAML file, written atomically so that a
// concurrently starting step container never reads a partial write
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a Store backed by the YAML file at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the location of the backing file
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the vars file. A missing file yields empty vars, and so
// does a file whose document is valid YAML but not a mapping. Only an
// unreadable or unparsable file is an error
func (s *FileStore) Load(context.Context) (api.Vars, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return api.Vars{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrLoadVars, err)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf(
			"%w: invalid YAML in %s: %s", ErrLoadVars, s.path, err,
		)
	}
	vars, ok := doc.(map[string]any)
	if !ok {
		return api.Vars{}, nil
	}
	return api.Vars(vars), nil
}

// Save writes the vars file by writing a temp file in the same
// directory and renaming it over the target
func (s *FileStore) Save(_ context.Context, vars api.Vars) error {
	if vars == nil {
		vars = api.Vars{}
	}
	data, err := yaml.Marshal(vars)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrSaveVars, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %s", ErrSaveVars, err)
	}

	tmp, err := os.CreateTemp(dir, ".vars-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %s", ErrSaveVars, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: %s", ErrSaveVars, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: %s", ErrSaveVars, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: %s", ErrSaveVars, err)
	}
	return nil
}
