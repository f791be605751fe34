package httpmodel

// Expectation is an opaque identity plus the Action to run when its matcher
// accepts a request. The matching predicate itself lives outside this
// package, in internal/matcher.
type Expectation struct {
	ID     string
	Action Action
}
