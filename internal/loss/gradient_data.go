package loss

import "gorgonia.org/tensor"

// GradientData holds the gradient (and, for every loss but SquaredError, the
// hessian) of one training iteration, laid out as a (K, N) plane in a
// *tensor.Dense rather than a slice of slices.
type GradientData struct {
	K, N     int
	gradient *tensor.Dense
	hessian  *tensor.Dense
}

// NewGradientData allocates a GradientData for K gradient dimensions over N
// examples. withHessian is false only for SquaredError, whose Newton step is
// degenerate.
func NewGradientData(k, n int, withHessian bool) *GradientData {
	gd := &GradientData{
		K:        k,
		N:        n,
		gradient: tensor.New(tensor.WithShape(k, n), tensor.Of(tensor.Float64)),
	}
	if withHessian {
		gd.hessian = tensor.New(tensor.WithShape(k, n), tensor.Of(tensor.Float64))
	}
	return gd
}

// HasHessian reports whether this GradientData carries hessians.
func (gd *GradientData) HasHessian() bool { return gd.hessian != nil }

// Gradient returns the mutable gradient slice for dimension d.
func (gd *GradientData) Gradient(d int) []float64 {
	data := gd.gradient.Data().([]float64)
	return data[d*gd.N : (d+1)*gd.N]
}

// Hessian returns the mutable hessian slice for dimension d, or nil if this
// GradientData carries no hessians.
func (gd *GradientData) Hessian(d int) []float64 {
	if gd.hessian == nil {
		return nil
	}
	data := gd.hessian.Data().([]float64)
	return data[d*gd.N : (d+1)*gd.N]
}
