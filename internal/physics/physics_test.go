package physics

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

type mockBlockStore struct {
	solid map[[3]int]bool
}

func newMockBlockStore() *mockBlockStore {
	return &mockBlockStore{solid: make(map[[3]int]bool)}
}

func (m *mockBlockStore) IsSolid(x, y, z int) bool {
	return m.solid[[3]int{x, y, z}]
}

func (m *mockBlockStore) setSolid(x, y, z int) {
	m.solid[[3]int{x, y, z}] = true
}

func addFloor(store *mockBlockStore, minX, maxX, minZ, maxZ, y int) {
	for x := minX; x <= maxX; x++ {
		for z := minZ; z <= maxZ; z++ {
			store.setSolid(x, y, z)
		}
	}
}

func approxEqual(t *testing.T, got, want, tol float64, field string) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Fatalf("%s = %.8f, want %.8f (tol=%.8f)", field, got, want, tol)
	}
}

var down = mgl64.Vec3{0, -1, 0}

func TestPlaneRaycast_HitsFromFrontOnly(t *testing.T) {
	p := NewPlane(mgl64.Vec3{0, 0, 0}, WorldUp)

	hit, ok := p.Raycast(mgl64.Vec3{1, 2, 3}, down, 5, AllLayers)
	if !ok {
		t.Fatalf("raycast from above missed")
	}
	approxEqual(t, hit.Distance, 2, 1e-9, "distance")
	approxEqual(t, hit.Point.Y(), 0, 1e-9, "point.y")

	if _, ok := p.Raycast(mgl64.Vec3{0, -1, 0}, WorldUp, 5, AllLayers); ok {
		t.Fatalf("raycast from below should miss a one-sided plane")
	}
	if _, ok := p.Raycast(mgl64.Vec3{0, 10, 0}, down, 5, AllLayers); ok {
		t.Fatalf("raycast beyond maxDist should miss")
	}
}

func TestPlaneRaycast_LayerMaskFilters(t *testing.T) {
	p := NewPlane(mgl64.Vec3{}, WorldUp)
	if _, ok := p.Raycast(mgl64.Vec3{0, 1, 0}, down, 5, LayerMask(LayerProps)); ok {
		t.Fatalf("terrain plane should be filtered by a props-only mask")
	}
	if _, ok := p.Raycast(mgl64.Vec3{0, 1, 0}, down, 5, LayerMask(LayerTerrain)); !ok {
		t.Fatalf("terrain mask should hit terrain plane")
	}
}

func TestPlaneSphereCast_ContactPointOnSurface(t *testing.T) {
	p := NewPlane(mgl64.Vec3{}, WorldUp)
	hit, ok := SphereCast(p, mgl64.Vec3{0, 1, 0}, 0.1, down, 2, AllLayers)
	if !ok {
		t.Fatalf("sphere cast missed")
	}
	approxEqual(t, hit.Distance, 0.9, 1e-9, "distance")
	approxEqual(t, hit.Point.Y(), 0, 1e-9, "point.y")
}

func TestSphereCastRing_AveragesNormalsOverSeam(t *testing.T) {
	// Two planes meeting at x=0: flat on the left, tilted on the right.
	tilted := SafeNormalize(mgl64.Vec3{-0.5, 1, 0}, WorldUp)
	s := seamSurface{left: NewPlane(mgl64.Vec3{}, WorldUp), right: NewPlane(mgl64.Vec3{}, tilted)}

	hit, ok := SphereCast(s, mgl64.Vec3{0, 1, 0}, 0.2, down, 3, AllLayers)
	if !ok {
		t.Fatalf("ring sphere cast missed")
	}
	if hit.Normal.Dot(WorldUp) >= 1-1e-9 || hit.Normal.Dot(tilted) >= 1-1e-9 {
		t.Fatalf("normal %v should blend both faces", hit.Normal)
	}
	approxEqual(t, hit.Normal.Len(), 1, 1e-9, "normal length")
}

type seamSurface struct {
	left, right Plane
}

func (s seamSurface) Raycast(origin, dir mgl64.Vec3, maxDist float64, mask LayerMask) (Hit, bool) {
	if origin.X() < 0 {
		return s.left.Raycast(origin, dir, maxDist, mask)
	}
	return s.right.Raycast(origin, dir, maxDist, mask)
}

func TestHeightfield_BilinearHeightAndRaycast(t *testing.T) {
	hf, err := SampleHeightfield(-4, -4, 0.5, 17, 17, func(x, z float64) float64 {
		return 0.25 * x
	})
	if err != nil {
		t.Fatalf("SampleHeightfield: %v", err)
	}

	h, ok := hf.HeightAt(1.3, 0.7)
	if !ok {
		t.Fatalf("HeightAt inside grid reported outside")
	}
	approxEqual(t, h, 0.325, 1e-9, "height")

	hit, ok := hf.Raycast(mgl64.Vec3{1, 3, 0}, down, 10, AllLayers)
	if !ok {
		t.Fatalf("raycast onto slope missed")
	}
	approxEqual(t, hit.Point.Y(), 0.25, 1e-6, "hit.y")
	want := SafeNormalize(mgl64.Vec3{-0.25, 1, 0}, WorldUp)
	if !hit.Normal.ApproxEqualThreshold(want, 1e-6) {
		t.Fatalf("normal = %v, want %v", hit.Normal, want)
	}

	if _, ok := hf.Raycast(mgl64.Vec3{10, 3, 0}, down, 10, AllLayers); ok {
		t.Fatalf("raycast outside footprint should miss")
	}
}

func TestHeightfield_RejectsBadDimensions(t *testing.T) {
	if _, err := NewHeightfield(0, 0, 0, 2, 2, make([]float64, 4)); err == nil {
		t.Fatalf("zero cell size accepted")
	}
	if _, err := NewHeightfield(0, 0, 1, 2, 2, make([]float64, 3)); err == nil {
		t.Fatalf("short heights slice accepted")
	}
}

func TestVoxelSurface_RaycastReportsEnteredFace(t *testing.T) {
	store := newMockBlockStore()
	addFloor(store, -2, 2, -2, 2, -1)
	store.setSolid(1, 0, 0)
	v := NewVoxelSurface(store)

	hit, ok := v.Raycast(mgl64.Vec3{0.5, 2.5, 0.5}, down, 5, AllLayers)
	if !ok {
		t.Fatalf("downward ray missed the floor")
	}
	approxEqual(t, hit.Point.Y(), 0, 1e-9, "floor y")
	if !hit.Normal.ApproxEqual(WorldUp) {
		t.Fatalf("floor normal = %v, want up", hit.Normal)
	}

	hit, ok = v.Raycast(mgl64.Vec3{0.5, 0.5, 0.5}, WorldRight, 5, AllLayers)
	if !ok {
		t.Fatalf("sideways ray missed the wall block")
	}
	approxEqual(t, hit.Point.X(), 1, 1e-9, "wall x")
	if !hit.Normal.ApproxEqual(mgl64.Vec3{-1, 0, 0}) {
		t.Fatalf("wall normal = %v, want -X", hit.Normal)
	}
}

func TestVoxelSurface_StartInsideSolidMisses(t *testing.T) {
	store := newMockBlockStore()
	store.setSolid(0, 0, 0)
	if _, ok := NewVoxelSurface(store).Raycast(mgl64.Vec3{0.5, 0.5, 0.5}, down, 5, AllLayers); ok {
		t.Fatalf("ray starting inside a block should miss")
	}
}

func TestGroup_ReturnsNearest(t *testing.T) {
	g := Group{
		NewPlane(mgl64.Vec3{0, 0, 0}, WorldUp),
		NewPlane(mgl64.Vec3{0, 1, 0}, WorldUp),
		nil,
	}
	hit, ok := g.Raycast(mgl64.Vec3{0, 3, 0}, down, 5, AllLayers)
	if !ok {
		t.Fatalf("group raycast missed")
	}
	approxEqual(t, hit.Point.Y(), 1, 1e-9, "nearest plane")
}

func TestFrame_TransformRoundTrip(t *testing.T) {
	f := Frame{
		Position: mgl64.Vec3{1, 2, 3},
		Rotation: mgl64.QuatRotate(math.Pi/2, WorldUp),
	}
	local := mgl64.Vec3{0.5, -0.2, 1.5}
	back := f.InverseTransformPoint(f.TransformPoint(local))
	if !back.ApproxEqualThreshold(local, 1e-9) {
		t.Fatalf("round trip = %v, want %v", back, local)
	}
	if !f.Forward().ApproxEqualThreshold(mgl64.Vec3{1, 0, 0}, 1e-9) {
		t.Fatalf("forward after +90deg yaw = %v, want +X", f.Forward())
	}
}

func TestLookRotation_AxesMatchInputs(t *testing.T) {
	fwd := SafeNormalize(mgl64.Vec3{1, 0, 1}, WorldForward)
	q := LookRotation(fwd, WorldUp)
	f := Frame{Rotation: q}
	if !f.Forward().ApproxEqualThreshold(fwd, 1e-9) {
		t.Fatalf("forward = %v, want %v", f.Forward(), fwd)
	}
	if !f.Up().ApproxEqualThreshold(WorldUp, 1e-9) {
		t.Fatalf("up = %v, want world up", f.Up())
	}
}

func TestRotateTowards_LimitsStep(t *testing.T) {
	from := mgl64.QuatIdent()
	to := mgl64.QuatRotate(mgl64.DegToRad(90), WorldUp)
	got := RotateTowards(from, to, 30)
	approxEqual(t, AngleBetween(from, got), 30, 1e-6, "step angle")
	got = RotateTowards(from, to, 120)
	approxEqual(t, AngleBetween(got, to), 0, 1e-6, "overshoot angle")
}

func TestIntegrate_GravityOnlyWhenEnabled(t *testing.T) {
	s := &State{Position: mgl64.Vec3{0, 10, 0}, Rotation: mgl64.QuatIdent()}
	Integrate(s, DefaultGravity, 0.1)
	approxEqual(t, s.Position.Y(), 10, 1e-12, "position.y without gravity")

	s.UseGravity = true
	Integrate(s, DefaultGravity, 0.1)
	approxEqual(t, s.Velocity.Y(), -0.981, 1e-9, "velocity.y")
	approxEqual(t, s.Position.Y(), 10-0.0981, 1e-9, "position.y")
}

func TestProjectOnPlane_RemovesNormalComponent(t *testing.T) {
	v := ProjectOnPlane(mgl64.Vec3{1, 2, 3}, WorldUp)
	if !v.ApproxEqual(mgl64.Vec3{1, 0, 3}) {
		t.Fatalf("ProjectOnPlane = %v", v)
	}
	if got := SafeNormalize(mgl64.Vec3{}, WorldUp); !got.ApproxEqual(WorldUp) {
		t.Fatalf("SafeNormalize(zero) = %v, want fallback", got)
	}
}

func TestIntegrateSwept_StopsOnContact(t *testing.T) {
	ground := NewPlane(mgl64.Vec3{}, WorldUp)
	state := State{Position: mgl64.Vec3{0, 1, 0}, Velocity: mgl64.Vec3{0, -20, 3}, Rotation: mgl64.QuatIdent(), UseGravity: true}

	hit, ok := IntegrateSwept(&state, DefaultGravity, 0.1, ground, 0.1, AllLayers)
	if !ok {
		t.Fatalf("expected contact with the ground")
	}
	if hit.Normal != WorldUp {
		t.Fatalf("hit.Normal = %v, want up", hit.Normal)
	}
	if math.Abs(state.Position.Y()-0.1) > 1e-9 {
		t.Fatalf("position y = %v, want sphere resting at 0.1", state.Position.Y())
	}
	if state.Velocity.Y() != 0 || state.Velocity.Z() != 3 {
		t.Fatalf("velocity = %v, want normal component removed", state.Velocity)
	}

	free := State{Position: mgl64.Vec3{0, 5, 0}, Velocity: mgl64.Vec3{0, 1, 0}}
	if _, ok := IntegrateSwept(&free, DefaultGravity, 0.1, ground, 0.1, AllLayers); ok {
		t.Fatalf("moving away from the ground should not collide")
	}
	if math.Abs(free.Position.Y()-5.1) > 1e-9 {
		t.Fatalf("free position y = %v, want 5.1", free.Position.Y())
	}
}

func TestPlaneSphereCast_OverlapOnlyBlocksMotionInto(t *testing.T) {
	p := NewPlane(mgl64.Vec3{}, WorldUp)
	// 球心离平面 0.05，小于半径 0.1
	origin := mgl64.Vec3{0, 0.05, 0}
	tests := []struct {
		name    string
		dir     mgl64.Vec3
		wantHit bool
	}{
		{name: "into the plane", dir: down, wantHit: true},
		{name: "away from the plane", dir: WorldUp, wantHit: false},
		{name: "along the plane", dir: WorldForward, wantHit: false},
		{name: "up and forward", dir: SafeNormalize(mgl64.Vec3{0, 1, 1}, WorldUp), wantHit: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit, ok := p.SphereCast(origin, 0.1, tt.dir, 1, AllLayers)
			if ok != tt.wantHit {
				t.Fatalf("SphereCast ok = %v, want %v (hit %+v)", ok, tt.wantHit, hit)
			}
			if ok && hit.Distance != 0 {
				t.Fatalf("overlap hit distance = %v, want 0", hit.Distance)
			}
		})
	}
}

func TestIntegrateSwept_LeavesGroundInsideRadius(t *testing.T) {
	ground := NewPlane(mgl64.Vec3{}, WorldUp)
	state := State{Position: mgl64.Vec3{0, 0.05, 0}, Velocity: mgl64.Vec3{0, 1.27, 1.59}, Rotation: mgl64.QuatIdent(), UseGravity: true}

	if _, ok := IntegrateSwept(&state, DefaultGravity, 0.02, ground, 0.1, AllLayers); ok {
		t.Fatalf("rising away from the ground should not collide")
	}
	if state.Position.Y() <= 0.05 || state.Position.Z() <= 0 {
		t.Fatalf("position = %v, want the body to rise and move forward", state.Position)
	}
}

// leavingSurface reports a zero-distance contact whose normal faces along any motion.
type leavingSurface struct{}

func (leavingSurface) Raycast(origin, dir mgl64.Vec3, maxDist float64, mask LayerMask) (Hit, bool) {
	return Hit{Point: origin, Normal: dir, Distance: 0, Layer: LayerTerrain}, true
}

func TestIntegrateSwept_IgnoresContactFacingMotion(t *testing.T) {
	state := State{Position: mgl64.Vec3{}, Velocity: mgl64.Vec3{0, 2, 0}, Rotation: mgl64.QuatIdent()}
	if _, ok := IntegrateSwept(&state, DefaultGravity, 0.1, leavingSurface{}, 0, AllLayers); ok {
		t.Fatalf("a contact facing along the motion should be ignored")
	}
	approxEqual(t, state.Position.Y(), 0.2, 1e-9, "position.y")
}
