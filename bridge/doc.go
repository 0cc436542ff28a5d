// Package bridge moves data between host and guest linear memory and
// implements the output-area calling convention shared by every raw host
// operation.
//
// # Output Area
//
// Every raw operation receives the guest address of a three-slot area of
// little-endian u32 values as its first argument:
//
//	status  a       b
//	1       value   0       success, scalar result
//	1       ptr     len     success, payload written into guest memory
//	0       ptr     len     failure, UTF-8 error text in guest memory
//
// Payloads and error text are placed in memory obtained from the guest's
// exported cabi_realloc, so the guest owns and frees them.
//
// # Memory Safety
//
// Every guest range is checked against the current memory size before any
// byte is touched. A range that does not fit yields a memory-safety error,
// which callers treat as fatal to the run rather than reporting it to the
// guest.
package bridge
