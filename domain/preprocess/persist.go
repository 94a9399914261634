package preprocess

import (
	"fmt"
	"strings"

	"tabprep/domain/core"
)

// PersistMode is the tagged variant over what happens to an execution result.
// Only Preview, Versioned and Overwrite implement it.
type PersistMode interface {
	String() string
	persistMode()
}

// Preview returns the result without touching the store
type Preview struct{}

// Versioned writes the result as a new, separately addressable version
type Versioned struct{}

// Overwrite replaces the original dataset content in place
type Overwrite struct{}

func (Preview) String() string   { return "preview" }
func (Versioned) String() string { return "versioned" }
func (Overwrite) String() string { return "overwrite" }

func (Preview) persistMode()   {}
func (Versioned) persistMode() {}
func (Overwrite) persistMode() {}

// ParsePersistMode maps the exchange-format mode name to its variant
func ParsePersistMode(s string) (PersistMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "preview":
		return Preview{}, nil
	case "versioned":
		return Versioned{}, nil
	case "overwrite":
		return Overwrite{}, nil
	}
	return nil, fmt.Errorf("%w: %q", core.ErrInvalidMode, s)
}

// PersistOutcome reports the dataset a persist call produced. Path is empty
// for previews.
type PersistOutcome struct {
	Mode      string  `json:"mode"`
	DatasetID core.ID `json:"dataset_id"`
	Version   int     `json:"version"`
	Path      string  `json:"path,omitempty"`
}
