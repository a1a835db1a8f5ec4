// Package smoketest bundles the handlers for the built-in smoke-test
// workflow: resolve DNS names and probe HTTP endpoints for a set of
// targets, then report. It doubles as a working example of the step
// contract
package smoketest

import (
	"maps"

	"github.com/opsforge/taskkit/pkg/api"
	"github.com/opsforge/taskkit/pkg/registry"
)

const (
	// System tags every message the smoke-test handlers emit
	System = "smoke-test"

	// ReportFileName is the summary report the finalize step writes
	// into the working directory
	ReportFileName = "smoke-test-report.json"

	// varsKey is the vars block the suite accumulates results under
	varsKey = "smoke_test"
)

// Register installs the smoke-test handlers
func Register(reg *registry.Registry) error {
	for _, h := range []struct {
		name    string
		handler api.Handler
	}{
		{"smoke-test-init", Init},
		{"smoke-test-check-dns", CheckDNS},
		{"smoke-test-check-http", CheckHTTP},
		{"smoke-test-finalize", Finalize},
	} {
		if err := reg.Register(h.name, h.handler); err != nil {
			return err
		}
	}
	return nil
}

// targets extracts the targets list from params, keeping only entries
// shaped as objects. The init handler reports malformed entries; the
// check handlers just work with what is usable
func targets(params map[string]any) []map[string]any {
	list, _ := params["targets"].([]any)
	out := make([]map[string]any, 0, len(list))
	for _, t := range list {
		if m, ok := t.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// resultsBlock returns a mutable copy of the suite's vars block
func resultsBlock(vars api.Vars) map[string]any {
	block, _ := vars[varsKey].(map[string]any)
	out := make(map[string]any, len(block))
	maps.Copy(out, block)
	return out
}

// subMap returns a mutable copy of a nested map field
func subMap(block map[string]any, key string) map[string]any {
	m, _ := block[key].(map[string]any)
	out := make(map[string]any, len(m))
	maps.Copy(out, m)
	return out
}

// stringValue reads a string field, falling back when absent or not a
// string
func stringValue(m map[string]any, key, def string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return def
}

// intValue reads a numeric field that may have crossed a JSON or YAML
// boundary, falling back when absent or not numeric
func intValue(m map[string]any, key string, def int) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// floatValue reads a float field with the same boundary tolerance as
// intValue
func floatValue(m map[string]any, key string, def float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}
