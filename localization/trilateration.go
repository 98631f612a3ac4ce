package localization

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// singularTolerance is the smallest |det| accepted relative to the product
// of the row norms of a trilateration system.
const singularTolerance = 1e-10

// Observation is a measured range (and bearing, relative to the robot's
// heading) to a beacon at a known position.
type Observation struct {
	Position mgl64.Vec2
	Range    float64
	Bearing  float64
}

// Triangulate recovers the position whose distances to a, b and c are
// their ranges. Subtracting a's circle equation from the other two gives a
// linear 2x2 system; ok is false when it is singular, which happens when the
// three beacons are collinear. Callers should retry with another triple.
func Triangulate(a, b, c Observation) (mgl64.Vec2, bool) {
	A, rhs := circleDifferences(a, []Observation{b, c})

	det := mat.Det(A)
	scale := rowNorm(A, 0) * rowNorm(A, 1)
	if scale == 0 || math.Abs(det) <= singularTolerance*scale {
		return mgl64.Vec2{}, false
	}

	var x mat.VecDense
	if err := x.SolveVec(A, rhs); err != nil {
		return mgl64.Vec2{}, false
	}
	return mgl64.Vec2{x.AtVec(0), x.AtVec(1)}, true
}

// TriangulateAny tries every triple of observations in lexicographic index
// order and returns the first non-singular fix.
func TriangulateAny(obs []Observation) (mgl64.Vec2, bool) {
	for i := 0; i < len(obs); i++ {
		for j := i + 1; j < len(obs); j++ {
			for k := j + 1; k < len(obs); k++ {
				if p, ok := Triangulate(obs[i], obs[j], obs[k]); ok {
					return p, true
				}
			}
		}
	}
	return mgl64.Vec2{}, false
}

// Multilaterate solves the over-determined circle-difference system for
// three or more observations in the least-squares sense.
func Multilaterate(obs []Observation) (mgl64.Vec2, bool) {
	if len(obs) < 3 {
		return mgl64.Vec2{}, false
	}
	A, rhs := circleDifferences(obs[0], obs[1:])

	// Reject systems whose rows are all parallel
	var ata mat.Dense
	ata.Mul(A.T(), A)
	if math.Abs(mat.Det(&ata)) <= singularTolerance*ata.At(0, 0)*ata.At(1, 1) {
		return mgl64.Vec2{}, false
	}

	var x mat.VecDense
	if err := x.SolveVec(A, rhs); err != nil {
		return mgl64.Vec2{}, false
	}
	return mgl64.Vec2{x.AtVec(0), x.AtVec(1)}, true
}

// circleDifferences builds 2(pᵢ - p₀)·x = r₀² - rᵢ² + |pᵢ|² - |p₀|² for
// each observation i against the reference.
func circleDifferences(ref Observation, others []Observation) (*mat.Dense, *mat.VecDense) {
	A := mat.NewDense(len(others), 2, nil)
	rhs := mat.NewVecDense(len(others), nil)
	p0 := ref.Position
	for i, o := range others {
		pi := o.Position
		A.Set(i, 0, 2*(pi.X()-p0.X()))
		A.Set(i, 1, 2*(pi.Y()-p0.Y()))
		rhs.SetVec(i, ref.Range*ref.Range-o.Range*o.Range+pi.Dot(pi)-p0.Dot(p0))
	}
	return A, rhs
}

func rowNorm(m *mat.Dense, i int) float64 {
	return mat.Norm(m.RowView(i), 2)
}

// RefineFix polishes a position fix by minimizing the sum of squared range
// residuals with Nelder-Mead.
func RefineFix(initial mgl64.Vec2, obs []Observation) (mgl64.Vec2, error) {
	if len(obs) == 0 {
		return initial, nil
	}
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			p := mgl64.Vec2{x[0], x[1]}
			var sum float64
			for _, o := range obs {
				r := p.Sub(o.Position).Len() - o.Range
				sum += r * r
			}
			return sum
		},
	}
	settings := &optimize.Settings{
		MajorIterations: 500,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-14,
			Iterations: 50,
		},
	}

	result, err := optimize.Minimize(problem, []float64{initial.X(), initial.Y()}, settings, &optimize.NelderMead{})
	if err != nil {
		return initial, fmt.Errorf("refine fix: %w", err)
	}
	return mgl64.Vec2{result.X[0], result.X[1]}, nil
}

// EstimateHeading recovers the robot heading from bearings taken at fix as
// the circular mean of atan2(beacon - fix) - bearing. ok is false without
// observations or when the candidates cancel out.
func EstimateHeading(fix mgl64.Vec2, obs []Observation) (float64, bool) {
	var sinSum, cosSum float64
	for _, o := range obs {
		d := o.Position.Sub(fix)
		h := math.Atan2(d.Y(), d.X()) - o.Bearing
		s, c := math.Sincos(h)
		sinSum += s
		cosSum += c
	}
	if len(obs) == 0 || math.Hypot(sinSum, cosSum) < 1e-9*float64(len(obs)) {
		return 0, false
	}
	h := math.Atan2(sinSum, cosSum)
	if h < 0 {
		h += 2 * math.Pi
	}
	if h >= 2*math.Pi {
		h = 0
	}
	return h, true
}
