//go:build !opencl

package compute

import "fmt"

type OpenCLBackend struct{}

func NewOpenCLBackend() (*OpenCLBackend, error) {
	return nil, fmt.Errorf("%w: OpenCL support is not enabled; rebuild with -tags opencl", ErrUnavailable)
}

func (o *OpenCLBackend) Name() string    { return "opencl (not available)" }
func (o *OpenCLBackend) Available() bool { return false }
func (o *OpenCLBackend) Cleanup()        {}

func (o *OpenCLBackend) Alloc(n int) ([]float32, error) {
	return nil, ErrUnavailable
}

func (o *OpenCLBackend) Free(buf []float32) {}

func (o *OpenCLBackend) ParallelRows(rows int, fn func(start, end int)) {
	parallelRows(1, rows, fn)
}
