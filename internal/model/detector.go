package model

// Detector is the common interface for a behavioral detector. Implementations
// must be pure functions of their inputs: they read the flow table and the
// aligned feature vectors and emit findings without mutating either or
// keeping state across calls.
type Detector interface {
	// Name returns the stable registry name of the detector.
	Name() string

	// Detect analyzes the table and returns its findings. An error means the
	// detector could not run at all (e.g. invalid configuration); it never
	// returns partial findings alongside an error.
	Detect(table *FlowTable, features []FeatureVector) ([]Finding, error)
}
