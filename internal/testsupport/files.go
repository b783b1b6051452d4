package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"stacks/internal/catalog"
)

// WriteDataset encodes dataset to path, creating parent directories.
func WriteDataset(t testing.TB, path string, dataset catalog.Dataset) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	data, err := json.MarshalIndent(dataset, "", "  ")
	if err != nil {
		t.Fatalf("encode dataset: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ReadDataset decodes the dataset stored at path.
func ReadDataset(t testing.TB, path string) catalog.Dataset {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var dataset catalog.Dataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return dataset
}
