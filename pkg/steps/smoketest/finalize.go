package smoketest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opsforge/taskkit/pkg/api"
)

// Finalize summarizes every check result, writes the report file into
// the working directory, and marks the run failed when any check
// failed. As a finalize-template step it runs even after earlier
// failures
func Finalize(
	_ context.Context, in *api.StepInput, deps *api.StepDeps,
) (*api.StepResult, error) {
	res := api.NewResult()

	block := resultsBlock(in.Vars)
	passedChecks := intValue(block, "passed_checks", 0)
	failedChecks := intValue(block, "failed_checks", 0)

	status := "passed"
	if failedChecks != 0 {
		status = "failed"
	}
	summary := map[string]any{
		"total_targets":  intValue(block, "total_targets", 0),
		"passed_checks":  passedChecks,
		"failed_checks":  failedChecks,
		"dns_results":    subMap(block, "dns_results"),
		"http_results":   subMap(block, "http_results"),
		"overall_status": status,
	}

	reportPath := filepath.Join(deps.WorkDir, ReportFileName)
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(reportPath, data, 0o644); err != nil {
		return nil, err
	}
	res.AddInfo(System, fmt.Sprintf("Report written to: %s", reportPath))

	if failedChecks == 0 {
		res.AddInfo(System, fmt.Sprintf(
			"Smoke test completed: %d/%d checks passed",
			passedChecks, passedChecks+failedChecks,
		))
	} else {
		res.AddWarning(System, fmt.Sprintf(
			"Smoke test completed with failures: %d passed, %d failed",
			passedChecks, failedChecks,
		))
		res.SetFlowControl(api.FlowMarkFailed, true)
	}

	res.Output = summary
	return res, nil
}
