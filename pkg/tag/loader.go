package tag

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// catalogFile is the YAML layout of a catalog file.
type catalogFile struct {
	DefaultMinimumInterval time.Duration `yaml:"defaultMinimumInterval"`
	Tags                   []Definition  `yaml:"tags"`
}

// LoadError provides details about a catalog loading error.
type LoadError struct {
	// File is the path to the file that failed to load (empty for in-memory data).
	File string

	// Message describes the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.File == "" {
		return msg
	}
	return e.File + ": " + msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// ParseCatalog parses a catalog from YAML bytes.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &LoadError{
			Message: "failed to parse YAML",
			Cause:   err,
		}
	}

	if file.DefaultMinimumInterval < 0 {
		return nil, &LoadError{
			Message: "defaultMinimumInterval must not be negative",
			Cause:   ErrInvalidInterval,
		}
	}

	for i := range file.Tags {
		if file.Tags[i].MinimumInterval == 0 {
			file.Tags[i].MinimumInterval = file.DefaultMinimumInterval
		}
	}

	c, err := NewCatalog(file.Tags...)
	if err != nil {
		return nil, &LoadError{
			Message: "invalid catalog",
			Cause:   err,
		}
	}
	return c, nil
}

// LoadCatalog loads a catalog from a file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{
			File:    path,
			Message: "failed to read file",
			Cause:   err,
		}
	}

	c, err := ParseCatalog(data)
	if err != nil {
		if le, ok := err.(*LoadError); ok {
			le.File = path
			return nil, le
		}
		return nil, err
	}
	return c, nil
}
