// Package localization estimates a robot's pose from its own motion and from
// ranges to known beacons.
//
// KFLocalizer is a linear Kalman filter whose transition is an arbitrary
// motion function: the state transition matrix is taken as identity and the
// control term is whatever the motion function returns. This is only a good
// approximation when the tick is short.
package localization

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrNotSquare          = errors.New("localization: matrix is not square")
	ErrDimensionMismatch  = errors.New("localization: dimension mismatch")
	ErrSingularInnovation = errors.New("localization: innovation covariance is not positive definite")
)

// MotionFunc maps a state and an action over dt to the next state.
type MotionFunc func(state, action mat.Vector, dt float64) *mat.VecDense

// KFLocalizer holds a Gaussian state estimate.
type KFLocalizer struct {
	mu      *mat.VecDense
	sigma   *mat.SymDense
	q       *mat.SymDense // Process noise
	r       *mat.SymDense // Measurement noise
	motion  MotionFunc
	angle   int // Index of a heading component, or -1
	eye     *mat.DiagDense
	updates int
}

// Option configures a KFLocalizer.
type Option func(*KFLocalizer)

// WithAngleComponent marks state component i as a heading. Its innovation
// is wrapped to [-π, π] and its mean kept in [0, 2π).
func WithAngleComponent(i int) Option {
	return func(kf *KFLocalizer) { kf.angle = i }
}

// NewKFLocalizer builds a filter with initial mean mu and covariance sigma.
// Every matrix must be square with the dimension of mu. Non-symmetric
// inputs are symmetrized.
func NewKFLocalizer(mu mat.Vector, sigma, processNoise, measurementNoise mat.Matrix, motion MotionFunc, opts ...Option) (*KFLocalizer, error) {
	n := mu.Len()
	named := []struct {
		name string
		m    mat.Matrix
	}{
		{"initial covariance", sigma},
		{"process noise", processNoise},
		{"measurement noise", measurementNoise},
	}
	syms := make([]*mat.SymDense, len(named))
	for i, nm := range named {
		r, c := nm.m.Dims()
		if r != c {
			return nil, fmt.Errorf("%s is %dx%d: %w", nm.name, r, c, ErrNotSquare)
		}
		if r != n {
			return nil, fmt.Errorf("%s is %dx%d for a %d-state filter: %w", nm.name, r, c, n, ErrDimensionMismatch)
		}
		syms[i] = symmetrize(nm.m)
	}
	if motion == nil {
		return nil, errors.New("localization: motion function is required")
	}

	kf := &KFLocalizer{
		mu:     mat.VecDenseCopyOf(mu),
		sigma:  syms[0],
		q:      syms[1],
		r:      syms[2],
		motion: motion,
		angle:  -1,
		eye:    identity(n),
	}
	for _, opt := range opts {
		opt(kf)
	}
	if kf.angle >= n {
		return nil, fmt.Errorf("angle component %d for a %d-state filter: %w", kf.angle, n, ErrDimensionMismatch)
	}
	kf.wrapMean()
	return kf, nil
}

// NewDiagonal is NewKFLocalizer with diagonal covariances built from per
// component standard deviations.
func NewDiagonal(mu, sigma, processNoise, measurementNoise []float64, motion MotionFunc, opts ...Option) (*KFLocalizer, error) {
	n := len(mu)
	if n == 0 {
		return nil, fmt.Errorf("empty state: %w", ErrDimensionMismatch)
	}
	for _, std := range [][]float64{sigma, processNoise, measurementNoise} {
		if len(std) != n {
			return nil, fmt.Errorf("%d deviations for a %d-state filter: %w", len(std), n, ErrDimensionMismatch)
		}
	}
	return NewKFLocalizer(
		mat.NewVecDense(n, append([]float64(nil), mu...)),
		variances(sigma), variances(processNoise), variances(measurementNoise),
		motion, opts...,
	)
}

func variances(std []float64) *mat.DiagDense {
	v := make([]float64, len(std))
	for i, s := range std {
		v[i] = s * s
	}
	return mat.NewDiagDense(len(v), v)
}

// Predict pushes the mean through the motion function and inflates the
// covariance by the process noise.
func (kf *KFLocalizer) Predict(action mat.Vector, dt float64) error {
	next := kf.motion(kf.mu, action, dt)
	if next == nil || next.Len() != kf.mu.Len() {
		return fmt.Errorf("motion function returned %d components, want %d: %w", lenOf(next), kf.mu.Len(), ErrDimensionMismatch)
	}
	kf.mu.CopyVec(next)
	kf.wrapMean()
	kf.sigma.AddSym(kf.sigma, kf.q)
	return nil
}

// Correct fuses a direct measurement z of the full state. Callers skip it
// on ticks without a measurement.
//
//	K = Σ (Σ + R)⁻¹
//	μ = μ + K (z - μ)
//	Σ = (I - K) Σ
func (kf *KFLocalizer) Correct(z mat.Vector) error {
	n := kf.mu.Len()
	if z.Len() != n {
		return fmt.Errorf("measurement has %d components, want %d: %w", z.Len(), n, ErrDimensionMismatch)
	}

	var s mat.SymDense
	s.AddSym(kf.sigma, kf.r)
	var chol mat.Cholesky
	if ok := chol.Factorize(&s); !ok {
		return ErrSingularInnovation
	}

	// Σ and S are symmetric, so Kᵀ = S⁻¹ Σ
	var kt mat.Dense
	if err := chol.SolveTo(&kt, kf.sigma); err != nil {
		return fmt.Errorf("kalman gain: %w", err)
	}
	k := kt.T()

	var innovation mat.VecDense
	innovation.SubVec(z, kf.mu)
	if kf.angle >= 0 {
		innovation.SetVec(kf.angle, wrapPi(innovation.AtVec(kf.angle)))
	}
	var step mat.VecDense
	step.MulVec(k, &innovation)
	kf.mu.AddVec(kf.mu, &step)
	kf.wrapMean()

	var ik, next mat.Dense
	ik.Sub(kf.eye, k)
	next.Mul(&ik, kf.sigma)
	kf.sigma = symmetrize(&next)
	kf.updates++
	return nil
}

// State returns a copy of the mean.
func (kf *KFLocalizer) State() []float64 {
	out := make([]float64, kf.mu.Len())
	for i := range out {
		out[i] = kf.mu.AtVec(i)
	}
	return out
}

// Covariance returns a copy of Σ.
func (kf *KFLocalizer) Covariance() *mat.SymDense {
	var c mat.SymDense
	c.CopySym(kf.sigma)
	return &c
}

// Uncertainty returns the trace of Σ.
func (kf *KFLocalizer) Uncertainty() float64 {
	return mat.Trace(kf.sigma)
}

// Corrections returns how many times Correct succeeded.
func (kf *KFLocalizer) Corrections() int { return kf.updates }

func (kf *KFLocalizer) wrapMean() {
	if kf.angle < 0 {
		return
	}
	a := math.Mod(kf.mu.AtVec(kf.angle), 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	if a >= 2*math.Pi {
		a = 0
	}
	kf.mu.SetVec(kf.angle, a)
}

// symmetrize returns (m + mᵀ) / 2.
func symmetrize(m mat.Matrix) *mat.SymDense {
	n, _ := m.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, (m.At(i, j)+m.At(j, i))/2)
		}
	}
	return s
}

func identity(n int) *mat.DiagDense {
	d := make([]float64, n)
	for i := range d {
		d[i] = 1
	}
	return mat.NewDiagDense(n, d)
}

func lenOf(v *mat.VecDense) int {
	if v == nil {
		return 0
	}
	return v.Len()
}

// wrapPi wraps a into [-π, π].
func wrapPi(a float64) float64 {
	return math.Remainder(a, 2*math.Pi)
}
