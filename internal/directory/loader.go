package directory

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed seed/suppliers.yaml
var seedData []byte

// Loader reads the supplier directory file. An empty path means the embedded
// Gujarat dataset.
type Loader struct {
	filePath string
}

// NewLoader creates a new directory loader
func NewLoader(filePath string) *Loader {
	return &Loader{filePath: filePath}
}

// Path returns the configured file path, or "embedded" for the built-in dataset.
func (l *Loader) Path() string {
	if l.filePath == "" {
		return "embedded"
	}
	return l.filePath
}

// Load reads and parses the directory file
func (l *Loader) Load() (File, error) {
	if l.filePath == "" {
		return Seed()
	}

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read suppliers file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a directory document. JSON is accepted as it is valid YAML.
func Parse(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse suppliers file: %w", err)
	}
	if len(f) == 0 {
		return nil, fmt.Errorf("suppliers file is empty")
	}
	return f, nil
}

// Seed returns the embedded dataset.
func Seed() (File, error) {
	return Parse(seedData)
}

// Write stores f at path, as JSON when the extension is .json and as YAML otherwise.
func Write(path string, f File) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(f, "", "  ")
		if err == nil {
			data = append(data, '\n')
		}
	default:
		data, err = yaml.Marshal(f)
	}
	if err != nil {
		return fmt.Errorf("encode suppliers: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write suppliers file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace suppliers file: %w", err)
	}
	return nil
}
