//go:build opencl

package compute

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"
)

// OpenCLBackend reserves a device buffer for every grid buffer it hands out.
// Cell loops still run on host workers; the device allocation is what bounds
// how large a simulation may grow.
type OpenCLBackend struct {
	context    *cl.Context
	queue      *cl.CommandQueue
	deviceName string
	globalMem  int64
	maxAlloc   int64
	workers    int

	mu      sync.Mutex
	used    int64
	mirrors map[*float32]*cl.MemObject
}

func NewOpenCLBackend() (*OpenCLBackend, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		msg := "querying OpenCL platforms"
		if strings.Contains(err.Error(), "-1001") {
			msg += ": no ICD loader reported any platforms"
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, msg, err)
	}
	if len(platforms) == 0 {
		return nil, fmt.Errorf("%w: no OpenCL platforms", ErrUnavailable)
	}

	device := pickDevice(platforms, cl.DeviceTypeGPU)
	if device == nil {
		device = pickDevice(platforms, cl.DeviceTypeCPU)
	}
	if device == nil {
		return nil, fmt.Errorf("%w: no suitable OpenCL devices", ErrUnavailable)
	}

	context, err := cl.CreateContext([]*cl.Device{device})
	if err != nil {
		return nil, fmt.Errorf("creating OpenCL context: %w", err)
	}
	queue, err := context.CreateCommandQueue(device, 0)
	if err != nil {
		context.Release()
		return nil, fmt.Errorf("creating OpenCL command queue: %w", err)
	}

	return &OpenCLBackend{
		context:    context,
		queue:      queue,
		deviceName: device.Name(),
		globalMem:  device.GlobalMemSize(),
		maxAlloc:   device.MaxMemAllocSize(),
		workers:    runtime.NumCPU(),
		mirrors:    make(map[*float32]*cl.MemObject),
	}, nil
}

func pickDevice(platforms []*cl.Platform, kind cl.DeviceType) *cl.Device {
	for _, p := range platforms {
		devices, err := p.GetDevices(kind)
		if err != nil && !errors.Is(err, cl.ErrDeviceNotFound) {
			continue
		}
		if len(devices) > 0 {
			return devices[0]
		}
	}
	return nil
}

func (o *OpenCLBackend) Name() string    { return "opencl (" + o.deviceName + ")" }
func (o *OpenCLBackend) Available() bool { return o.context != nil }

func (o *OpenCLBackend) Alloc(n int) ([]float32, error) {
	if n <= 0 {
		return nil, fmt.Errorf("compute: invalid allocation of %d elements", n)
	}
	size := int64(n) * int64(unsafe.Sizeof(float32(0)))

	o.mu.Lock()
	defer o.mu.Unlock()
	if size > o.maxAlloc || o.used+size > o.globalMem {
		return nil, fmt.Errorf("%w: requested %d bytes, %d of %d in use", ErrOutOfMemory, size, o.used, o.globalMem)
	}

	mem, err := o.context.CreateEmptyBuffer(cl.MemReadWrite, int(size))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}
	host := make([]float32, n)
	// A blocking write forces the driver to commit the allocation now rather
	// than on first kernel use.
	if _, err := o.queue.EnqueueWriteBufferFloat32(mem, true, 0, host, nil); err != nil {
		mem.Release()
		return nil, fmt.Errorf("%w: committing buffer: %v", ErrOutOfMemory, err)
	}

	o.used += size
	o.mirrors[&host[0]] = mem
	return host, nil
}

func (o *OpenCLBackend) Free(buf []float32) {
	if len(buf) == 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	mem, ok := o.mirrors[&buf[0]]
	if !ok {
		return
	}
	mem.Release()
	delete(o.mirrors, &buf[0])
	o.used -= int64(len(buf)) * int64(unsafe.Sizeof(float32(0)))
}

func (o *OpenCLBackend) ParallelRows(rows int, fn func(start, end int)) {
	parallelRows(o.workers, rows, fn)
}

func (o *OpenCLBackend) Cleanup() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for key, mem := range o.mirrors {
		mem.Release()
		delete(o.mirrors, key)
	}
	o.used = 0
	if o.queue != nil {
		o.queue.Release()
		o.queue = nil
	}
	if o.context != nil {
		o.context.Release()
		o.context = nil
	}
}
