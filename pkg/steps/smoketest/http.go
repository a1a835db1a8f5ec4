package smoketest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/opsforge/taskkit/pkg/api"
)

// CheckHTTP probes each target's http_url and compares the response
// status against expected_status. Targets without an http_url are
// skipped
func CheckHTTP(
	ctx context.Context, in *api.StepInput, deps *api.StepDeps,
) (*api.StepResult, error) {
	res := api.NewResult()

	block := resultsBlock(in.Vars)
	httpResults := subMap(block, "http_results")

	passed, failed := 0, 0
	for _, target := range targets(in.Params) {
		name := stringValue(target, "name", "unknown")
		url := stringValue(target, "http_url", "")
		if url == "" {
			deps.Log.Debug("Skipping HTTP check",
				slog.String("target", name))
			continue
		}
		expected := intValue(target, "expected_status", 200)
		timeout := time.Duration(
			floatValue(target, "timeout", 10) * float64(time.Second),
		)

		entry, ok := checkEndpoint(ctx, deps.HTTP, res, url, expected, timeout)
		httpResults[name] = entry
		if ok {
			passed++
		} else {
			failed++
		}
	}

	block["http_results"] = httpResults
	block["passed_checks"] = intValue(block, "passed_checks", 0) + passed
	block["failed_checks"] = intValue(block, "failed_checks", 0) + failed
	res.SetVar(varsKey, block)

	if failed > 0 {
		res.AddWarning(System, fmt.Sprintf(
			"HTTP checks: %d passed, %d failed", passed, failed,
		))
	} else {
		res.AddInfo(System, fmt.Sprintf("HTTP checks: %d passed", passed))
	}
	return res, nil
}

func checkEndpoint(
	ctx context.Context, client *http.Client, res *api.StepResult,
	url string, expected int, timeout time.Duration,
) (map[string]any, bool) {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(tctx, http.MethodGet, url, nil)
	if err != nil {
		res.AddError(System, fmt.Sprintf(
			"HTTP request error: %s - %s", url, err,
		))
		return failedEntry(url, expected, err.Error()), false
	}

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		if isTimeout(err) {
			res.AddError(System, fmt.Sprintf(
				"HTTP timeout: %s - %s", url, err,
			))
			return failedEntry(
				url, expected, fmt.Sprintf("Timeout: %s", err),
			), false
		}
		res.AddError(System, fmt.Sprintf(
			"HTTP request error: %s - %s", url, err,
		))
		return failedEntry(url, expected, err.Error()), false
	}
	defer func() { _ = resp.Body.Close() }()

	ms := float64(elapsed) / float64(time.Millisecond)
	ok := resp.StatusCode == expected
	entry := map[string]any{
		"url":              url,
		"success":          ok,
		"status_code":      resp.StatusCode,
		"expected_status":  expected,
		"response_time_ms": ms,
		"error":            nil,
	}
	if ok {
		res.AddInfo(System, fmt.Sprintf(
			"HTTP check passed: %s -> %d (%.0fms)", url, resp.StatusCode, ms,
		))
	} else {
		res.AddError(System, fmt.Sprintf(
			"HTTP check failed: %s -> %d (expected %d)",
			url, resp.StatusCode, expected,
		))
	}
	return entry, ok
}

func failedEntry(url string, expected int, msg string) map[string]any {
	return map[string]any{
		"url":              url,
		"success":          false,
		"status_code":      nil,
		"expected_status":  expected,
		"response_time_ms": nil,
		"error":            msg,
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
