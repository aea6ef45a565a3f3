package jobcreator

import (
	"fmt"
	"strings"
)

const planCSuiteAppCrawl = "csuite-app-crawl"

// BuildCommandArgs assembles one job's command-args string, joining
// flags in the fixed order the harness expects. When plan is
// "csuite-app-crawl", --skip-device-info is omitted.
func BuildCommandArgs(plan, module string, req SessionRequestInfo) string {
	var parts []string

	if module != "" {
		parts = append(parts, "-m", module)
	}
	if req.TestName != "" {
		parts = append(parts, "-t", req.TestName)
	}
	if req.ShardCount > 0 {
		parts = append(parts, "--shard-count", fmt.Sprintf("%d", req.ShardCount))
	}
	for _, f := range req.IncludeFilters {
		parts = append(parts, "--include-filter", f)
	}
	for _, f := range req.ExcludeFilters {
		parts = append(parts, "--exclude-filter", f)
	}
	for _, f := range req.ModuleMetadataIncludeFilters {
		parts = append(parts, "--module-metadata-include-filter", f)
	}
	for _, f := range req.ModuleMetadataExcludeFilters {
		parts = append(parts, "--module-metadata-exclude-filter", f)
	}
	parts = append(parts, "--report-system-checkers")
	if plan != planCSuiteAppCrawl {
		parts = append(parts, "--skip-device-info")
	}
	for _, a := range req.ModuleArgs {
		parts = append(parts, "--module-arg", a)
	}
	parts = append(parts, req.ExtraArgs...)

	return strings.Join(parts, " ")
}
