package smoketest

import (
	"context"
	"fmt"

	"github.com/opsforge/taskkit/pkg/api"
)

// Init validates the targets param and seeds the vars block the check
// steps accumulate results into. Each target carries a name plus
// optional dns_host, http_url, and expected_status fields
func Init(
	_ context.Context, in *api.StepInput, _ *api.StepDeps,
) (*api.StepResult, error) {
	res := api.NewResult()

	for _, text := range validateTargets(in.Params) {
		res.AddError(System, text)
	}
	if res.HasErrors() {
		return res, nil
	}

	list, _ := in.Params["targets"].([]any)
	res.SetVar(varsKey, map[string]any{
		"total_targets": len(list),
		"passed_checks": 0,
		"failed_checks": 0,
		"dns_results":   map[string]any{},
		"http_results":  map[string]any{},
	})
	res.AddInfo(System, fmt.Sprintf(
		"Workflow initialized with %d targets", len(list),
	))
	return res, nil
}

func validateTargets(params map[string]any) []string {
	var errs []string

	raw, ok := params["targets"]
	if !ok {
		errs = append(errs, "Missing required parameter: targets")
		raw = []any{}
	}

	list, isList := raw.([]any)
	switch {
	case !isList:
		errs = append(errs, "Parameter 'targets' must be a list")
	case len(list) == 0:
		errs = append(errs, "Parameter 'targets' must not be empty")
	default:
		for i, t := range list {
			m, isMap := t.(map[string]any)
			if !isMap {
				errs = append(errs, fmt.Sprintf(
					"Target %d must be an object", i,
				))
				continue
			}
			if _, ok := m["name"]; !ok {
				errs = append(errs, fmt.Sprintf(
					"Target %d missing 'name' field", i,
				))
			}
		}
	}
	return errs
}
