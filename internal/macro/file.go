package macro

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Marshal encodes the macro in its persisted JSON shape
func Marshal(m *Macro) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// Unmarshal decodes the persisted JSON shape and validates it.
// Absent settings keep their defaults.
func Unmarshal(data []byte) (*Macro, error) {
	m := New("")
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to decode macro: %w", err)
	}
	return finish(m)
}

func finish(m *Macro) (*Macro, error) {
	if m.Actions == nil {
		m.Actions = []Action{}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadFile reads a macro from a .json, .yaml or .yml file. A missing name
// defaults to the file's base name.
func LoadFile(path string) (*Macro, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read macro file %s: %w", path, err)
	}

	var m *Macro
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		m = New("")
		if err := yaml.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal macro YAML: %w", err)
		}
		if m, err = finish(m); err != nil {
			return nil, err
		}
	case ".json":
		if m, err = Unmarshal(data); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported macro file extension %q", ext)
	}

	if m.Name == "" {
		m.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return m, nil
}

// SaveFile writes a macro as JSON or YAML depending on the extension
func SaveFile(path string, m *Macro) error {
	var (
		data []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(m)
	case ".json":
		data, err = Marshal(m)
	default:
		return fmt.Errorf("unsupported macro file extension %q", ext)
	}
	if err != nil {
		return fmt.Errorf("failed to encode macro: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create macro directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
