package grid

// Field is one padded 2D array stored row-major. Interior cells occupy
// columns [Gx, Gx+Nx) and rows [Gy, Gy+Ny); everything else is halo.
type Field struct {
	Nx, Ny int
	Gx, Gy int
	Data   []float32
}

// Pitch is the padded row length.
func (f *Field) Pitch() int { return f.Nx + 2*f.Gx }

// Rows is the padded row count.
func (f *Field) Rows() int { return f.Ny + 2*f.Gy }

// Len is the number of elements including halo.
func (f *Field) Len() int { return f.Pitch() * f.Rows() }

// Index maps padded coordinates to an offset into Data.
func (f *Field) Index(i, j int) int { return j*f.Pitch() + i }

func (f *Field) At(i, j int) float32     { return f.Data[j*f.Pitch()+i] }
func (f *Field) Set(i, j int, v float32) { f.Data[j*f.Pitch()+i] = v }

// Row returns the padded row j as a slice aliasing Data.
func (f *Field) Row(j int) []float32 {
	p := f.Pitch()
	return f.Data[j*p : (j+1)*p]
}

// Interior copies the non-halo cells into a fresh ny x nx array.
func (f *Field) Interior() [][]float32 {
	out := make([][]float32, f.Ny)
	for j := 0; j < f.Ny; j++ {
		row := f.Row(j + f.Gy)
		out[j] = make([]float32, f.Nx)
		copy(out[j], row[f.Gx:f.Gx+f.Nx])
	}
	return out
}

// Triple groups the three conserved quantities of one buffer set.
type Triple struct {
	H, HU, HV *Field
}

func (t Triple) Fields() [3]*Field { return [3]*Field{t.H, t.HU, t.HV} }

// Clone deep-copies the triple. Test and diagnostics helper; simulation code
// never copies buffers.
func (t Triple) Clone() Triple {
	var out Triple
	dst := [3]**Field{&out.H, &out.HU, &out.HV}
	for k, f := range t.Fields() {
		c := *f
		c.Data = append([]float32(nil), f.Data...)
		*dst[k] = &c
	}
	return out
}
