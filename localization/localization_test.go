package localization

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

// shift moves the state by action*dt.
func shift(state, action mat.Vector, dt float64) *mat.VecDense {
	next := mat.VecDenseCopyOf(state)
	next.AddScaledVec(next, dt, action)
	return next
}

func newPoseFilter(t *testing.T, mu []float64) *KFLocalizer {
	t.Helper()
	kf, err := NewDiagonal(mu, []float64{1, 1, 0.5}, []float64{0.1, 0.1, 0.05}, []float64{1, 1, 0.5}, shift, WithAngleComponent(2))
	if err != nil {
		t.Fatal(err)
	}
	return kf
}

func TestNewKFLocalizerValidation(t *testing.T) {
	mu := mat.NewVecDense(3, nil)
	eye3 := mat.NewDiagDense(3, []float64{1, 1, 1})
	tests := []struct {
		name    string
		sigma   mat.Matrix
		wantErr error
	}{
		{"not square", mat.NewDense(3, 2, nil), ErrNotSquare},
		{"wrong size", mat.NewDiagDense(2, []float64{1, 1}), ErrDimensionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewKFLocalizer(mu, tt.sigma, eye3, eye3, shift)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := NewDiagonal([]float64{0, 0}, []float64{1}, []float64{1, 1}, []float64{1, 1}, shift); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("NewDiagonal short sigma: error = %v", err)
	}
	if _, err := NewKFLocalizer(mu, eye3, eye3, eye3, shift, WithAngleComponent(3)); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("angle component out of range: error = %v", err)
	}
	if _, err := NewKFLocalizer(mu, eye3, eye3, eye3, nil); err == nil {
		t.Error("nil motion: expected error")
	}
}

func TestPredict(t *testing.T) {
	kf := newPoseFilter(t, []float64{1, 2, 0.5})
	before := kf.Uncertainty()

	if err := kf.Predict(mat.NewVecDense(3, []float64{10, -4, 1}), 0.5); err != nil {
		t.Fatal(err)
	}
	if got, want := kf.State(), []float64{6, 0, 1}; !floats.EqualApprox(got, want, 1e-12) {
		t.Errorf("State = %v, want %v", got, want)
	}
	if got, want := kf.Uncertainty(), before+0.01+0.01+0.0025; !scalar.EqualWithinAbs(got, want, 1e-12) {
		t.Errorf("trace = %g, want %g", got, want)
	}

	// Heading wraps after the motion step
	if err := kf.Predict(mat.NewVecDense(3, []float64{0, 0, -2}), 1); err != nil {
		t.Fatal(err)
	}
	if h := kf.State()[2]; !scalar.EqualWithinAbs(h, 2*math.Pi-1, 1e-12) {
		t.Errorf("heading = %g, want 2π-1", h)
	}
}

func TestCorrectZeroInnovation(t *testing.T) {
	kf := newPoseFilter(t, []float64{3, 4, 1})
	mu := kf.State()
	before := kf.Uncertainty()

	if err := kf.Correct(mat.NewVecDense(3, append([]float64(nil), mu...))); err != nil {
		t.Fatal(err)
	}
	if got := kf.State(); !floats.Equal(got, mu) {
		t.Errorf("State = %v, want unchanged %v", got, mu)
	}
	if after := kf.Uncertainty(); after >= before {
		t.Errorf("trace %g -> %g, want a decrease", before, after)
	}
	if kf.Corrections() != 1 {
		t.Errorf("Corrections = %d, want 1", kf.Corrections())
	}
}

func TestCorrectBlendsTowardMeasurement(t *testing.T) {
	eye := mat.NewDiagDense(2, []float64{1, 1})
	kf, err := NewKFLocalizer(mat.NewVecDense(2, []float64{0, 0}), eye, eye, eye, shift)
	if err != nil {
		t.Fatal(err)
	}
	if err := kf.Correct(mat.NewVecDense(2, []float64{4, -2})); err != nil {
		t.Fatal(err)
	}
	// Equal prior and measurement variance: K = I/2
	if got := kf.State(); !floats.EqualApprox(got, []float64{2, -1}, 1e-12) {
		t.Errorf("State = %v, want [2 -1]", got)
	}
	cov := kf.Covariance()
	if !scalar.EqualWithinAbs(cov.At(0, 0), 0.5, 1e-12) || !scalar.EqualWithinAbs(cov.At(0, 1), 0, 1e-12) {
		t.Errorf("Covariance = %v, want I/2", mat.Formatted(cov))
	}
}

func TestCorrectWrapsHeadingInnovation(t *testing.T) {
	kf, err := NewDiagonal([]float64{0, 0, 0.1}, []float64{1, 1, 1}, []float64{0, 0, 0}, []float64{1, 1, 1}, shift, WithAngleComponent(2))
	if err != nil {
		t.Fatal(err)
	}
	if err := kf.Correct(mat.NewVecDense(3, []float64{0, 0, 2*math.Pi - 0.1})); err != nil {
		t.Fatal(err)
	}
	// The shortest way from 0.1 to -0.1 passes through zero, not π
	h := kf.State()[2]
	if d := math.Abs(math.Remainder(h, 2*math.Pi)); d > 1e-12 {
		t.Errorf("heading = %g, want 0", h)
	}
}

func TestCorrectSingular(t *testing.T) {
	zero := mat.NewDiagDense(2, []float64{0, 0})
	kf, err := NewKFLocalizer(mat.NewVecDense(2, nil), zero, zero, zero, shift)
	if err != nil {
		t.Fatal(err)
	}
	if err := kf.Correct(mat.NewVecDense(2, []float64{1, 1})); !errors.Is(err, ErrSingularInnovation) {
		t.Errorf("error = %v, want ErrSingularInnovation", err)
	}
	if err := kf.Correct(mat.NewVecDense(3, nil)); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("short measurement: error = %v", err)
	}
}

func TestCovarianceStaysSymmetricPSD(t *testing.T) {
	kf := newPoseFilter(t, []float64{0, 0, 0})
	action := mat.NewVecDense(3, []float64{1, 0.5, 0.3})

	for i := 0; i < 1000; i++ {
		if err := kf.Predict(action, 0.05); err != nil {
			t.Fatal(err)
		}
		mu := kf.State()
		z := mat.NewVecDense(3, []float64{mu[0] + math.Sin(float64(i)), mu[1] - 0.5, mu[2] + 0.01})
		if err := kf.Correct(z); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
	}

	cov := kf.Covariance()
	var eig mat.EigenSym
	if ok := eig.Factorize(cov, false); !ok {
		t.Fatal("eigen decomposition failed")
	}
	for i, v := range eig.Values(nil) {
		if v < -1e-12 {
			t.Errorf("eigenvalue %d = %g, want >= 0", i, v)
		}
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if cov.At(i, j) != cov.At(j, i) {
				t.Errorf("Σ[%d][%d] = %g, Σ[%d][%d] = %g", i, j, cov.At(i, j), j, i, cov.At(j, i))
			}
		}
	}
}

func observe(p mgl64.Vec2, heading float64, beacons ...mgl64.Vec2) []Observation {
	out := make([]Observation, len(beacons))
	for i, b := range beacons {
		d := b.Sub(p)
		out[i] = Observation{
			Position: b,
			Range:    d.Len(),
			Bearing:  math.Atan2(d.Y(), d.X()) - heading,
		}
	}
	return out
}

func TestTriangulateRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		robot   mgl64.Vec2
		beacons []mgl64.Vec2
	}{
		{"axis beacons", mgl64.Vec2{37.5, 62.25}, []mgl64.Vec2{{0, 0}, {100, 0}, {0, 100}}},
		{"outside the triangle", mgl64.Vec2{-20, 140}, []mgl64.Vec2{{10, 10}, {90, 30}, {40, 80}}},
		{"negative quadrant", mgl64.Vec2{-3.25, -7.5}, []mgl64.Vec2{{-50, 20}, {60, -40}, {5, 5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := observe(tt.robot, 0, tt.beacons...)
			got, ok := Triangulate(obs[0], obs[1], obs[2])
			if !ok {
				t.Fatal("unexpected singular system")
			}
			if !got.ApproxEqualThreshold(tt.robot, 1e-9) {
				t.Errorf("Triangulate = %v, want %v", got, tt.robot)
			}
		})
	}
}

func TestTriangulateCollinear(t *testing.T) {
	obs := observe(mgl64.Vec2{5, 5}, 0, mgl64.Vec2{0, 0}, mgl64.Vec2{10, 10}, mgl64.Vec2{20, 20})
	if p, ok := Triangulate(obs[0], obs[1], obs[2]); ok {
		t.Errorf("collinear beacons: got fix %v", p)
	}
}

func TestTriangulateAnyRetries(t *testing.T) {
	robot := mgl64.Vec2{12, -8}
	// The first triple is collinear; (0, 1, 3) is not
	obs := observe(robot, 0,
		mgl64.Vec2{0, 0}, mgl64.Vec2{10, 0}, mgl64.Vec2{20, 0}, mgl64.Vec2{5, 30})

	got, ok := TriangulateAny(obs)
	if !ok {
		t.Fatal("expected a fix")
	}
	if !got.ApproxEqualThreshold(robot, 1e-9) {
		t.Errorf("TriangulateAny = %v, want %v", got, robot)
	}

	if _, ok := TriangulateAny(obs[:3]); ok {
		t.Error("only collinear beacons: expected no fix")
	}
	if _, ok := TriangulateAny(obs[:2]); ok {
		t.Error("two beacons: expected no fix")
	}
}

func TestMultilaterate(t *testing.T) {
	robot := mgl64.Vec2{41, 17}
	obs := observe(robot, 0,
		mgl64.Vec2{0, 0}, mgl64.Vec2{100, 0}, mgl64.Vec2{100, 80}, mgl64.Vec2{0, 80}, mgl64.Vec2{50, 40})

	got, ok := Multilaterate(obs)
	if !ok {
		t.Fatal("expected a fix")
	}
	if !got.ApproxEqualThreshold(robot, 1e-9) {
		t.Errorf("Multilaterate = %v, want %v", got, robot)
	}

	if _, ok := Multilaterate(obs[:2]); ok {
		t.Error("two observations: expected no fix")
	}
	line := observe(robot, 0, mgl64.Vec2{0, 0}, mgl64.Vec2{1, 1}, mgl64.Vec2{2, 2}, mgl64.Vec2{3, 3})
	if _, ok := Multilaterate(line); ok {
		t.Error("collinear beacons: expected no fix")
	}
}

func TestRefineFix(t *testing.T) {
	robot := mgl64.Vec2{30, 45}
	obs := observe(robot, 0, mgl64.Vec2{0, 0}, mgl64.Vec2{100, 0}, mgl64.Vec2{0, 100})

	got, err := RefineFix(robot.Add(mgl64.Vec2{0.8, -0.5}), obs)
	if err != nil {
		t.Fatal(err)
	}
	if !got.ApproxEqualThreshold(robot, 1e-4) {
		t.Errorf("RefineFix = %v, want %v", got, robot)
	}
}

func TestEstimateHeading(t *testing.T) {
	robot := mgl64.Vec2{10, 20}
	for _, heading := range []float64{0, 1.2, math.Pi, 5.9} {
		obs := observe(robot, heading, mgl64.Vec2{0, 0}, mgl64.Vec2{80, 5}, mgl64.Vec2{-30, 60})
		got, ok := EstimateHeading(robot, obs)
		if !ok {
			t.Fatalf("heading %g: no estimate", heading)
		}
		if d := math.Abs(math.Remainder(got-heading, 2*math.Pi)); d > 1e-9 {
			t.Errorf("EstimateHeading = %g, want %g", got, heading)
		}
	}

	if _, ok := EstimateHeading(robot, nil); ok {
		t.Error("no observations: expected no estimate")
	}
}
