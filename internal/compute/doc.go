// Package compute provides the accelerator backends grid buffers live on.
//
// The package automatically selects the best available backend:
//
//   - OpenCL: device memory is reserved for every grid buffer, so
//     allocation failures surface exactly where the device runs out
//   - CPU: host buffers with an optional byte budget
//
// Cell loops are split over rows with [Backend.ParallelRows]; the call joins
// before returning, which keeps every dispatched operation ordered after the
// previous one.
//
// Build with OpenCL support:
//
//	go build -tags opencl ./...
package compute
