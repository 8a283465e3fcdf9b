package node

// Result is the outcome of one Run call. It is a two-case sum: either the
// node finished and named its successor edge, or its effect is still in
// flight and the interpreter should call Run again after a delay.
//
// Suspension is explicit in this type rather than implied by a numeric
// convention, so every wait point in the engine is visible at the call site.
type Result struct {
	done  bool
	next  Edge
	delay float64
}

// Done reports that the node finished and control should follow next.
func Done(next Edge) Result {
	return Result{done: true, next: next}
}

// Running reports that the node's effect is still in flight. The interpreter
// suspends the list for delay seconds before calling Run again; a zero delay
// means poll again next frame.
func Running(delay float64) Result {
	return Result{delay: delay}
}

// Finished returns the successor edge when the node has completed.
func (r Result) Finished() (Edge, bool) {
	return r.next, r.done
}

// Delay returns the requested suspension in seconds for an in-flight result.
func (r Result) Delay() float64 {
	return r.delay
}
