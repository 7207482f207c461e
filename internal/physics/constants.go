package physics

const (
	DefaultGravity = 9.81

	MinimumResidualSpeed   = 1e-4
	CollisionAxisTolerance = 1e-9

	// Sphere casts on surfaces without an analytic shape sample a ring of parallel rays.
	SphereCastRingSamples = 8

	HeightfieldMarchFraction  = 0.25
	HeightfieldBisectionSteps = 24
)
