package survey

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Writer stores confirmed responses as JSON files
type Writer struct {
	dir string
}

// NewWriter creates a writer for dir. The directory is created on first save.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Save writes resp to <dir>/<user>_<timestamp>.json and returns the file path
func (w *Writer) Save(resp *Response) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create responses directory: %w", err)
	}

	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode response: %w", err)
	}

	name := fmt.Sprintf("%d_%s.json", resp.UserID, resp.ConfirmedAt.UTC().Format("20060102-150405"))
	path := filepath.Join(w.dir, name)
	if _, err := os.Stat(path); err == nil {
		name = fmt.Sprintf("%d_%s_%s.json", resp.UserID, resp.ConfirmedAt.UTC().Format("20060102-150405"), resp.ID[:8])
		path = filepath.Join(w.dir, name)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write response: %w", err)
	}
	return path, nil
}
