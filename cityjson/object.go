package cityjson

import (
	"encoding/json"
	"strings"
)

// CityObject is a named entity of the model. Identity is the key of the
// containing CityObjects map, not a field of the object itself.
type CityObject struct {
	Type               string          `json:"type"`
	GeographicalExtent []float64       `json:"geographicalExtent,omitempty"`
	Attributes         json.RawMessage `json:"attributes,omitempty"`
	Geometry           []Geometry      `json:"geometry,omitempty"`
	Children           []string        `json:"children,omitempty"`
	ChildrenRoles      []string        `json:"children_roles,omitempty"`
	Parents            []string        `json:"parents,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (co *CityObject) UnmarshalJSON(data []byte) error {
	type alias CityObject
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := extraFields(data,
		"type", "geographicalExtent", "attributes", "geometry",
		"children", "children_roles", "parents")
	if err != nil {
		return err
	}
	a.Extra = extra
	*co = CityObject(a)
	return nil
}

func (co CityObject) MarshalJSON() ([]byte, error) {
	type alias CityObject
	return marshalWithExtra(alias(co), co.Extra)
}

// IsTopLevel reports whether the object has no parent.
func (co *CityObject) IsTopLevel() bool {
	return len(co.Parents) == 0
}

// IsExtensionType reports whether the object's type comes from a CityJSON
// extension ("+"-prefixed).
func (co *CityObject) IsExtensionType() bool {
	return strings.HasPrefix(co.Type, "+")
}

func (co *CityObject) Clone() *CityObject {
	out := *co
	out.GeographicalExtent = append([]float64(nil), co.GeographicalExtent...)
	out.Children = append([]string(nil), co.Children...)
	out.ChildrenRoles = append([]string(nil), co.ChildrenRoles...)
	out.Parents = append([]string(nil), co.Parents...)
	if co.Geometry != nil {
		out.Geometry = make([]Geometry, len(co.Geometry))
		for i := range co.Geometry {
			out.Geometry[i] = co.Geometry[i].Clone()
		}
	}
	return &out
}
