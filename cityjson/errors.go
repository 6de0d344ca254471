package cityjson

import (
	"errors"
	"fmt"
)

var (
	// ErrNotCityJSON is returned when a document's type tag is not "CityJSON".
	ErrNotCityJSON = errors.New("input is not a CityJSON document")
	// ErrUnsupportedVersion is returned for versions other than 1.1 and 2.0.
	ErrUnsupportedVersion = errors.New("unsupported CityJSON version")
	// ErrMissingObject is returned when a parent or child id is absent from
	// the CityObjects map.
	ErrMissingObject = errors.New("referenced city object not found")
)

// ValueError reports an appearance value outside its allowed range. It is
// raised at construction time: a corrupt material or texture would otherwise
// propagate silently into rendered output.
type ValueError struct {
	Field  string
	Reason string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("invalid value for %s: %s", e.Field, e.Reason)
}
