// Package device provides the minimal device/resource-sampling contract the
// job creator consults for shard-placement decisions. The out-of-scope
// device/scheduler internals are represented only by this narrow interface
// and one concrete local-host adapter.
package device

import "context"

// Status is a point-in-time resource sample.
type Status struct {
	CPUPercent float64
	MemPercent float64
	Busy       bool
}

// Pool reports current resource utilization for the host(s) available to
// run jobs.
type Pool interface {
	Sample(ctx context.Context) (Status, error)
}
