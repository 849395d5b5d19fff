package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"FlowTriage/internal/config"
	"FlowTriage/internal/model"
)

// JSONWriter writes analysis results to per-scenario directories on disk.
type JSONWriter struct {
	rootPath string
}

// NewJSONWriter creates a writer rooted at the configured output path.
func NewJSONWriter(cfg config.JSONWriterConfig) *JSONWriter {
	return &JSONWriter{rootPath: cfg.RootPath}
}

// Write serializes the full result and a standalone summary for one scenario.
// It creates a timestamped directory so repeated runs do not clobber each
// other.
func (w *JSONWriter) Write(result *model.AnalysisResult) error {
	// 1. Create the per-run directory
	timestamp := result.GeneratedAt.Format("2006-01-02_15-04-05")
	runDir := filepath.Join(w.rootPath, result.Scenario, timestamp)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return fmt.Errorf("failed to create result directory: %w", err)
	}

	// 2. Write the full result
	if err := writeJSON(filepath.Join(runDir, "result.json"), result); err != nil {
		return err
	}

	// 3. Write the summary on its own for quick inspection
	return writeJSON(filepath.Join(runDir, "summary.json"), result.Summary)
}

func writeJSON(path string, v any) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create result file '%s': %w", path, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode json for file '%s': %w", path, err)
	}
	return nil
}

// ReadResult loads a previously written result.json back into memory.
func ReadResult(path string) (*model.AnalysisResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open result file '%s': %w", path, err)
	}
	defer file.Close()

	var result model.AnalysisResult
	if err := json.NewDecoder(file).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode result file '%s': %w", path, err)
	}
	return &result, nil
}
