package api

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResourceLoader resolves a workflow resource locator to the raw bytes of
// a workflow document. It is a read-only collaborator and must be safe for
// concurrent use.
type ResourceLoader interface {
	Load(locator string) ([]byte, error)
}

// FileLoader resolves locators as file paths relative to a base directory.
// Absolute locators and locators escaping the base directory are rejected.
type FileLoader struct {
	Base string
}

// NewFileLoader returns a FileLoader rooted at base.
func NewFileLoader(base string) *FileLoader {
	return &FileLoader{Base: base}
}

func (l *FileLoader) Load(locator string) ([]byte, error) {
	if locator == "" {
		return nil, fmt.Errorf("empty resource locator")
	}
	if filepath.IsAbs(locator) {
		return nil, fmt.Errorf("absolute resource locator not allowed: %s", locator)
	}
	clean := filepath.Clean(locator)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("resource locator escapes base directory: %s", locator)
	}
	data, err := os.ReadFile(filepath.Join(l.Base, clean))
	if err != nil {
		return nil, fmt.Errorf("load workflow resource %s: %w", locator, err)
	}
	return data, nil
}

// MapLoader serves documents from an in-memory map keyed by locator.
// Intended for tests and embedded workflow bundles.
type MapLoader map[string][]byte

func (l MapLoader) Load(locator string) ([]byte, error) {
	data, ok := l[locator]
	if !ok {
		return nil, fmt.Errorf("unknown workflow resource: %s", locator)
	}
	return data, nil
}
