package jobcreator

import (
	"context"
	"fmt"

	"github.com/omnilab/atsconsole/internal/device"
)

// Creator turns a SessionRequestInfo into job specs.
type Creator struct {
	filters *FilterManager
	retry   RetrySource
	devices device.Pool
}

// NewCreator returns a Creator. retry may be nil if retry-mode requests are
// never expected. devices may be nil, in which case no shard-count
// adjustment is performed.
func NewCreator(filters *FilterManager, retry RetrySource, devices device.Pool) *Creator {
	return &Creator{filters: filters, retry: retry, devices: devices}
}

// adjustedShardCount halves req's configured shard count (minimum 1) when
// the device pool reports the host is busy, so a loaded machine doesn't get
// handed the same parallel shard count as an idle one.
func (c *Creator) adjustedShardCount(ctx context.Context, req SessionRequestInfo) int {
	if c.devices == nil || req.ShardCount <= 1 {
		return req.ShardCount
	}
	status, err := c.devices.Sample(ctx)
	if err != nil || !status.Busy {
		return req.ShardCount
	}
	if half := req.ShardCount / 2; half > 0 {
		return half
	}
	return 1
}

// CreateJobs builds the job specs for req. Fatal errors are returned as
// err; known-benign conditions (see IsSkippable) are returned as warnings
// alongside whatever jobs could still be created.
func (c *Creator) CreateJobs(ctx context.Context, req SessionRequestInfo) (jobs []JobSpec, warnings []error, err error) {
	includeFilters := append([]string(nil), req.IncludeFilters...)
	excludeFilters := append([]string(nil), req.ExcludeFilters...)

	if req.Mode() == ModeRetry {
		if c.retry == nil || req.PreviousSubPlan == "" {
			return nil, []error{&SkippableError{
				Identity: "missing_filters_in_retry",
				Message:  "retry requested without a previous sub-plan to load filters from",
			}}, nil
		}
		prev, loadErr := c.retry.LoadPreviousSubPlan(req.PreviousSubPlan)
		if loadErr != nil {
			return nil, nil, fmt.Errorf("loading previous sub-plan %q: %w", req.PreviousSubPlan, loadErr)
		}
		includeFilters = append(includeFilters, prev.IncludeFilters...)
		excludeFilters = append(excludeFilters, prev.ExcludeFilters...)
	}

	split, splitErr := c.filters.Split(ctx, includeFilters, excludeFilters)
	if splitErr != nil {
		if se, ok := splitErr.(*SkippableError); ok {
			return nil, []error{se}, nil
		}
		return nil, nil, splitErr
	}

	req.IncludeFilters = includeFilters
	req.ExcludeFilters = excludeFilters
	req.ShardCount = c.adjustedShardCount(ctx, req)

	for _, m := range split.Tradefed {
		jobs = append(jobs, JobSpec{Module: m, Tradefed: true, CommandArgs: BuildCommandArgs(req.Plan, m, req)})
	}
	for _, m := range split.NonTradefed {
		jobs = append(jobs, JobSpec{Module: m, Tradefed: false, CommandArgs: BuildCommandArgs(req.Plan, m, req)})
	}

	if len(split.NonTradefed) == 0 {
		warnings = append(warnings, &SkippableError{
			Identity: "no_matched_non_tradefed_modules",
			Message:  "no non-Tradefed modules matched the given filters",
		})
	}

	return jobs, warnings, nil
}
