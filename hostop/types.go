package hostop

import "github.com/wippyai/profiling-runtime/resource"

// Resource types stored in the execution table.
var (
	CounterType           = resource.Type{Name: "counter", ID: 1}
	CounterGroupType      = resource.Type{Name: "counter-group", ID: 2}
	CounterGuardType      = resource.Type{Name: "counter-guard", ID: 3}
	FixedCounterGroupType = resource.Type{Name: "fixed-counter-group", ID: 4}
)
