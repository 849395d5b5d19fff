package model

import (
	"fmt"
	"sort"
	"strings"
)

// InvalidFlowError reports a malformed input row. Malformed input is fatal
// for the whole scenario: statistics over a partially-validated table would
// be corrupt.
type InvalidFlowError struct {
	Index  int    // position of the offending flow in the table
	Reason string // what was wrong with it
}

func (e *InvalidFlowError) Error() string {
	return fmt.Sprintf("invalid flow at index %d: %s", e.Index, e.Reason)
}

// InsufficientDataError reports that too few flows were supplied for the
// anomaly model to be meaningful.
type InsufficientDataError struct {
	Flows int
	Min   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for anomaly scoring: %d flows, need at least %d", e.Flows, e.Min)
}

// DetectorFailure reports that a single detector could not run. Other
// detectors are unaffected.
type DetectorFailure struct {
	Detector string
	Err      error
}

func (e *DetectorFailure) Error() string {
	return fmt.Sprintf("detector %q failed: %v", e.Detector, e.Err)
}

func (e *DetectorFailure) Unwrap() error {
	return e.Err
}

// PartialAnalysisError signals that one or more sub-analyses failed while
// the rest succeeded. The AnalysisResult returned alongside it still carries
// everything that was produced.
type PartialAnalysisError struct {
	Scenario string
	Failed   map[string]error // component name -> failure
}

func (e *PartialAnalysisError) Error() string {
	names := make([]string, 0, len(e.Failed))
	for name := range e.Failed {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("scenario %q: partial analysis, failed components: %s", e.Scenario, strings.Join(names, ", "))
}
