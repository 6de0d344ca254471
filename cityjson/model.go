package cityjson

import (
	"encoding/json"
	"fmt"
	"math"
)

// Transform maps quantized vertex coordinates to real-world ones:
// real[i] = vertex[i]*Scale[i] + Translate[i]. Every document carries
// exactly one; vertex integers are meaningless without it.
type Transform struct {
	Scale     [3]float64 `json:"scale"`
	Translate [3]float64 `json:"translate"`
}

func DefaultTransform() Transform {
	return Transform{Scale: [3]float64{1, 1, 1}}
}

// Apply returns the real-world coordinates of v.
func (t Transform) Apply(v Vertex) [3]float64 {
	return [3]float64{
		float64(v[0])*t.Scale[0] + t.Translate[0],
		float64(v[1])*t.Scale[1] + t.Translate[1],
		float64(v[2])*t.Scale[2] + t.Translate[2],
	}
}

// ApplyXY returns the real-world x/y of an already averaged coordinate.
func (t Transform) ApplyXY(c [3]float64) (x, y float64) {
	return c[0]*t.Scale[0] + t.Translate[0], c[1]*t.Scale[1] + t.Translate[1]
}

// CityJSON is the monolithic document: one global vertex array, one global
// appearance catalog and the full CityObjects map.
type CityJSON struct {
	Type              string                 `json:"type"`
	Version           string                 `json:"version"`
	Transform         Transform              `json:"transform"`
	CityObjects       map[string]*CityObject `json:"CityObjects"`
	Vertices          Vertices               `json:"vertices"`
	Metadata          *Metadata              `json:"metadata,omitempty"`
	Appearance        *Appearance            `json:"appearance,omitempty"`
	GeometryTemplates *GeometryTemplates     `json:"geometry-templates,omitempty"`
	Extensions        map[string]Extension   `json:"extensions,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

func NewCityJSON() *CityJSON {
	return &CityJSON{
		Type:        "CityJSON",
		Version:     "2.0",
		Transform:   DefaultTransform(),
		CityObjects: map[string]*CityObject{},
		Vertices:    Vertices{},
	}
}

func (cj *CityJSON) UnmarshalJSON(data []byte) error {
	type alias CityJSON
	var a struct {
		alias
		// Older files carry extensions as arbitrary JSON; anything that is
		// not an object map is ignored.
		Extensions json.RawMessage `json:"extensions"`
	}
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if isJSONObject(a.Extensions) {
		if err := json.Unmarshal(a.Extensions, &a.alias.Extensions); err != nil {
			return err
		}
	}
	extra, err := extraFields(data,
		"type", "version", "transform", "CityObjects", "vertices",
		"metadata", "appearance", "geometry-templates", "extensions")
	if err != nil {
		return err
	}
	a.alias.Extra = extra
	*cj = CityJSON(a.alias)
	if cj.CityObjects == nil {
		cj.CityObjects = map[string]*CityObject{}
	}
	if cj.Vertices == nil {
		cj.Vertices = Vertices{}
	}
	return nil
}

func isJSONObject(raw json.RawMessage) bool {
	for _, c := range raw {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}

func (cj CityJSON) MarshalJSON() ([]byte, error) {
	type alias CityJSON
	return marshalWithExtra(alias(cj), cj.Extra)
}

// ParseCityJSON decodes one complete document.
func ParseCityJSON(data []byte) (*CityJSON, error) {
	cj := &CityJSON{}
	if err := json.Unmarshal(data, cj); err != nil {
		return nil, fmt.Errorf("parsing CityJSON: %w", err)
	}
	return cj, nil
}

// CheckSupported verifies the type tag and that the version is a supported
// release. Called before any split output is produced: the header line
// establishes invariants every subsequent line depends on.
func (cj *CityJSON) CheckSupported() error {
	if cj.Type != "CityJSON" {
		return fmt.Errorf("%w: type is %q", ErrNotCityJSON, cj.Type)
	}
	if cj.Version != "1.1" && cj.Version != "2.0" {
		return fmt.Errorf("%w: %q (want 1.1 or 2.0)", ErrUnsupportedVersion, cj.Version)
	}
	return nil
}

// EmptyCopy returns the document with CityObjects, vertices and appearance
// cleared, keeping transform, metadata, templates and extensions. This is
// the shape of a CityJSONSeq header line.
func (cj *CityJSON) EmptyCopy() *CityJSON {
	return &CityJSON{
		Type:              cj.Type,
		Version:           cj.Version,
		Transform:         cj.Transform,
		CityObjects:       map[string]*CityObject{},
		Vertices:          Vertices{},
		Metadata:          cj.Metadata,
		GeometryTemplates: cj.GeometryTemplates.Clone(),
		Extensions:        cj.Extensions,
		Extra:             cj.Extra,
	}
}

// TopLevelIDs returns the ids of objects without parents, in map order.
func (cj *CityJSON) TopLevelIDs() []string {
	ids := make([]string, 0, len(cj.CityObjects))
	for id, co := range cj.CityObjects {
		if co.IsTopLevel() {
			ids = append(ids, id)
		}
	}
	return ids
}

// NumTopLevel counts top-level city objects.
func (cj *CityJSON) NumTopLevel() int {
	n := 0
	for _, co := range cj.CityObjects {
		if co.IsTopLevel() {
			n++
		}
	}
	return n
}

func (cj *CityJSON) appearance() *Appearance {
	if cj.Appearance == nil {
		cj.Appearance = &Appearance{}
	}
	return cj.Appearance
}

// AddMaterial inserts m into the document catalog, deduplicating by name.
func (cj *CityJSON) AddMaterial(m Material) (int, error) {
	return cj.appearance().AddMaterial(m)
}

// AddTexture inserts t into the document catalog, deduplicating by image.
func (cj *CityJSON) AddTexture(t Texture) (int, error) {
	return cj.appearance().AddTexture(t)
}

// AddVerticesTexture appends texture coordinates and returns their offset.
func (cj *CityJSON) AddVerticesTexture(uvs []UV) int {
	return cj.appearance().AddVerticesTexture(uvs)
}

// RemoveDuplicateVertices collapses exactly equal vertices to their first
// occurrence and renumbers every boundary accordingly. Running it twice is a
// no-op.
func (cj *CityJSON) RemoveDuplicateVertices() {
	seen := make(map[Vertex]int, len(cj.Vertices))
	table := NewIndexMap(0)
	kept := make(Vertices, 0, len(cj.Vertices))
	for i, v := range cj.Vertices {
		if first, ok := seen[v]; ok {
			table.Put(i, first)
			continue
		}
		seen[v] = len(kept)
		table.Put(i, len(kept))
		kept = append(kept, v)
	}
	for _, co := range cj.CityObjects {
		for gi := range co.Geometry {
			co.Geometry[gi].RenumberBoundaries(table)
		}
	}
	cj.Vertices = kept
}

// RenormalizeTransform shifts all vertices so the per-axis minimum is zero
// and folds the removed offset into the translate, leaving real-world
// coordinates unchanged.
func (cj *CityJSON) RenormalizeTransform() {
	if len(cj.Vertices) == 0 {
		return
	}
	mins := Vertex{math.MaxInt64, math.MaxInt64, math.MaxInt64}
	for _, v := range cj.Vertices {
		for i := 0; i < 3; i++ {
			if v[i] < mins[i] {
				mins[i] = v[i]
			}
		}
	}
	for vi, v := range cj.Vertices {
		cj.Vertices[vi] = Vertex{v[0] - mins[0], v[1] - mins[1], v[2] - mins[2]}
	}
	for i := 0; i < 3; i++ {
		cj.Transform.Translate[i] += float64(mins[i]) * cj.Transform.Scale[i]
	}
}

// CityJSONFeature is one self-contained slice of a document: one top-level
// object plus its direct children, with a zero-based local vertex array and
// a sliced appearance catalog.
type CityJSONFeature struct {
	Type        string                 `json:"type"`
	ID          string                 `json:"id"`
	CityObjects map[string]*CityObject `json:"CityObjects"`
	Vertices    Vertices               `json:"vertices"`
	Appearance  *Appearance            `json:"appearance,omitempty"`
	Extensions  map[string]Extension   `json:"extensions,omitempty"`
}

func NewCityJSONFeature(id string) *CityJSONFeature {
	return &CityJSONFeature{
		Type:        "CityJSONFeature",
		ID:          id,
		CityObjects: map[string]*CityObject{},
		Vertices:    Vertices{},
	}
}

// ParseFeature decodes one CityJSONSeq feature line.
func ParseFeature(data []byte) (*CityJSONFeature, error) {
	f := &CityJSONFeature{}
	if err := json.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parsing CityJSONFeature: %w", err)
	}
	if f.CityObjects == nil {
		f.CityObjects = map[string]*CityObject{}
	}
	return f, nil
}

// Root returns the feature's top-level object.
func (f *CityJSONFeature) Root() (*CityObject, error) {
	co, ok := f.CityObjects[f.ID]
	if !ok {
		return nil, fmt.Errorf("%w: feature root %q", ErrMissingObject, f.ID)
	}
	return co, nil
}

// Centroid averages the feature's local vertices. The result is in the
// quantized space and must go through the header's transform for real-world
// coordinates.
func (f *CityJSONFeature) Centroid() [3]float64 {
	var totals [3]float64
	if len(f.Vertices) == 0 {
		return totals
	}
	for _, v := range f.Vertices {
		for i := 0; i < 3; i++ {
			totals[i] += float64(v[i])
		}
	}
	for i := 0; i < 3; i++ {
		totals[i] /= float64(len(f.Vertices))
	}
	return totals
}
