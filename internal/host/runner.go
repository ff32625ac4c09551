package host

// Body is one iteration of an instrumented loop. It executes entirely
// through the frame's operation methods and reports whether the loop should
// continue, typically via f.Guard on its own loop condition.
type Body func(f *Frame) bool

// Run executes the loop fully unspecialized, with no control point and no
// recording. Tests use it as the ground truth traced execution must match.
func Run(env *Env, body Body) {
	f := &Frame{Env: env}
	for body(f) {
	}
}
