package smoketest

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/opsforge/taskkit/pkg/api"
)

// CheckDNS resolves each target's dns_host and records the outcome in
// the suite's vars block. Targets without a dns_host are skipped
func CheckDNS(
	ctx context.Context, in *api.StepInput, deps *api.StepDeps,
) (*api.StepResult, error) {
	res := api.NewResult()

	block := resultsBlock(in.Vars)
	dnsResults := subMap(block, "dns_results")

	passed, failed := 0, 0
	for _, target := range targets(in.Params) {
		name := stringValue(target, "name", "unknown")
		host := stringValue(target, "dns_host", "")
		if host == "" {
			deps.Log.Debug("Skipping DNS check",
				slog.String("target", name))
			continue
		}

		addrs, err := net.DefaultResolver.LookupHost(ctx, host)
		if err != nil {
			dnsResults[name] = map[string]any{
				"host":      host,
				"resolved":  false,
				"addresses": []string{},
				"error":     err.Error(),
			}
			res.AddError(System, fmt.Sprintf(
				"DNS resolution failed: %s - %s", host, err,
			))
			failed++
			continue
		}

		dnsResults[name] = map[string]any{
			"host":      host,
			"resolved":  true,
			"addresses": addrs,
			"error":     nil,
		}
		res.AddInfo(System, fmt.Sprintf(
			"DNS resolved: %s -> %s", host, strings.Join(addrs, ", "),
		))
		passed++
	}

	block["dns_results"] = dnsResults
	block["passed_checks"] = intValue(block, "passed_checks", 0) + passed
	block["failed_checks"] = intValue(block, "failed_checks", 0) + failed
	res.SetVar(varsKey, block)

	if failed > 0 {
		res.AddWarning(System, fmt.Sprintf(
			"DNS checks: %d passed, %d failed", passed, failed,
		))
	} else {
		res.AddInfo(System, fmt.Sprintf("DNS checks: %d passed", passed))
	}
	return res, nil
}
