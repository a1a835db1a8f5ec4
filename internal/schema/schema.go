// Package schema validates step params against per-handler JSON
// Schema files before a handler is invoked. Schemas live in a single
// directory, one <handler-name>.json file per handler, and a handler
// without a schema file is never gated
package schema

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Validator resolves and applies params schemas. Compiled schemas are
// cached per handler name, so repeated steps pay the compile cost once
type Validator struct {
	mu    sync.Mutex
	root  string
	cache map[string]*gojsonschema.Schema
}

// ErrSchemaInvalid is raised when a schema file exists but cannot be
// read or compiled
var ErrSchemaInvalid = errors.New("failed to load params schema")

// New creates a Validator over a directory of schema files
func New(root string) *Validator {
	return &Validator{
		root:  root,
		cache: map[string]*gojsonschema.Schema{},
	}
}

// Root returns the schema directory this Validator resolves against
func (v *Validator) Root() string {
	return v.root
}

// Validate checks params against the handler's schema. The result is
// one diagnostic per violation, empty when params conform or when no
// schema file exists for the handler
func (v *Validator) Validate(
	handlerName string, params map[string]any,
) []string {
	schema, err := v.schemaFor(handlerName)
	if err != nil {
		return []string{err.Error()}
	}
	if schema == nil {
		return nil
	}

	res, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return []string{fmt.Sprintf("schema validation failed: %s", err)}
	}
	if res.Valid() {
		return nil
	}

	diags := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		diags = append(diags, fmt.Sprintf(
			"At '%s': %s", e.Field(), e.Description(),
		))
	}
	return diags
}

func (v *Validator) schemaFor(
	handlerName string,
) (*gojsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if s, ok := v.cache[handlerName]; ok {
		return s, nil
	}

	path := filepath.Join(v.root, handlerName+".json")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		v.cache[handlerName] = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSchemaInvalid, err)
	}

	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrSchemaInvalid, path, err)
	}
	v.cache[handlerName] = s
	return s, nil
}
