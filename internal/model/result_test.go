package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestSeverity_JSONRoundTrip(t *testing.T) {
	for _, sev := range []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		data, err := json.Marshal(sev)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		var back Severity
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("Unmarshal of %s failed: %v", data, err)
		}
		if back != sev {
			t.Errorf("Round trip changed %s into %s", sev, back)
		}
	}

	var sev Severity
	if err := json.Unmarshal([]byte(`"catastrophic"`), &sev); err == nil {
		t.Error("Expected error for unknown severity name")
	}
}

func TestDetectorFailure_Unwrap(t *testing.T) {
	cause := errors.New("bad threshold")
	err := &DetectorFailure{Detector: "beaconing", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("Expected DetectorFailure to unwrap to its cause")
	}
}

func TestPartialAnalysisError_NamesComponents(t *testing.T) {
	err := &PartialAnalysisError{
		Scenario: "capture20110810",
		Failed: map[string]error{
			"portscan":  errors.New("x"),
			"beaconing": errors.New("y"),
		},
	}

	msg := err.Error()
	if msg == "" {
		t.Fatal("Expected non-empty error message")
	}
	// Component names come out sorted, so the message is stable.
	if !strings.Contains(msg, "beaconing") || !strings.Contains(msg, "portscan") {
		t.Errorf("Expected component names in message %q", msg)
	}
}
