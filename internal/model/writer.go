package model

// Writer defines a generic interface for persisting analysis results.
type Writer interface {
	// Write persists one scenario's analysis result. The implementation is
	// expected to be lossless for the fields it stores.
	Write(result *AnalysisResult) error
}
