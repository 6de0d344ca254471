package cityjson

import "encoding/json"

type GeometryType string

const (
	MultiPoint       GeometryType = "MultiPoint"
	MultiLineString  GeometryType = "MultiLineString"
	MultiSurface     GeometryType = "MultiSurface"
	CompositeSurface GeometryType = "CompositeSurface"
	Solid            GeometryType = "Solid"
	MultiSolid       GeometryType = "MultiSolid"
	CompositeSolid   GeometryType = "CompositeSolid"
	GeometryInstance GeometryType = "GeometryInstance"
)

// MaterialRef is one theme's material assignment: either a single value for
// the whole geometry or a nested value array one level shallower than the
// boundary, never both.
type MaterialRef struct {
	Values *ValueRefs `json:"values,omitempty"`
	Value  *int       `json:"value,omitempty"`
}

// TextureRef is one theme's texture assignment. Its values nest at the same
// depth as the boundary; leaf position 0 is the texture id, the rest are
// texture-vertex ids.
type TextureRef struct {
	Values ValueRefs `json:"values"`
}

// SemanticSurface is one entry of a geometry's surface-class table.
type SemanticSurface struct {
	Type     string `json:"type"`
	Parent   *int   `json:"parent,omitempty"`
	Children []int  `json:"children,omitempty"`

	// Extra keeps unknown keys (extension attributes) intact.
	Extra map[string]json.RawMessage `json:"-"`
}

func (s *SemanticSurface) UnmarshalJSON(data []byte) error {
	type alias SemanticSurface
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := extraFields(data, "type", "parent", "children")
	if err != nil {
		return err
	}
	a.Extra = extra
	*s = SemanticSurface(a)
	return nil
}

func (s SemanticSurface) MarshalJSON() ([]byte, error) {
	type alias SemanticSurface
	return marshalWithExtra(alias(s), s.Extra)
}

// Semantics pairs a nested array of nullable surface-class ids with the
// surface-class table they index. The ids are geometry-local and are never
// renumbered by split or merge.
type Semantics struct {
	Values   ValueRefs         `json:"values"`
	Surfaces []SemanticSurface `json:"surfaces"`
}

func (s *Semantics) Clone() *Semantics {
	if s == nil {
		return nil
	}
	out := &Semantics{
		Values:   s.Values.Clone(),
		Surfaces: make([]SemanticSurface, len(s.Surfaces)),
	}
	for i, sf := range s.Surfaces {
		sf.Children = append([]int(nil), sf.Children...)
		if sf.Parent != nil {
			p := *sf.Parent
			sf.Parent = &p
		}
		out.Surfaces[i] = sf
	}
	return out
}

// Geometry is one geometric primitive of a city object.
type Geometry struct {
	Type       GeometryType           `json:"type"`
	LOD        string                 `json:"lod,omitempty"`
	Boundaries Boundaries             `json:"boundaries"`
	Semantics  *Semantics             `json:"semantics,omitempty"`
	Material   map[string]MaterialRef `json:"material,omitempty"`
	Texture    map[string]TextureRef  `json:"texture,omitempty"`

	// GeometryInstance only: index into the document's geometry templates
	// and a 4x4 transformation matrix stored row by row.
	Template             *int         `json:"template,omitempty"`
	TransformationMatrix *[16]float64 `json:"transformationMatrix,omitempty"`
}

// RenumberBoundaries rewrites every boundary leaf through m.
func (g *Geometry) RenumberBoundaries(m *IndexMap) {
	g.Boundaries.Renumber(m)
}

// OffsetBoundaries shifts every boundary leaf by k.
func (g *Geometry) OffsetBoundaries(k int) {
	g.Boundaries.Offset(k)
}

// RenumberMaterial rewrites material references of every theme through m.
func (g *Geometry) RenumberMaterial(m *IndexMap) {
	for theme, ref := range g.Material {
		if ref.Value != nil {
			n := m.Resolve(*ref.Value)
			ref.Value = &n
		} else if ref.Values != nil {
			ref.Values.Renumber(m)
		}
		g.Material[theme] = ref
	}
}

// RenumberTexture rewrites texture references of every theme: texture ids
// through tex, embedded texture-vertex ids through uv.
func (g *Geometry) RenumberTexture(tex, uv *IndexMap) {
	for theme, ref := range g.Texture {
		ref.Values.RenumberTexture(tex, uv)
		g.Texture[theme] = ref
	}
}

func (g Geometry) Clone() Geometry {
	out := g
	out.Boundaries = g.Boundaries.Clone()
	out.Semantics = g.Semantics.Clone()
	if g.Material != nil {
		out.Material = make(map[string]MaterialRef, len(g.Material))
		for theme, ref := range g.Material {
			cp := MaterialRef{}
			if ref.Value != nil {
				v := *ref.Value
				cp.Value = &v
			}
			if ref.Values != nil {
				vs := ref.Values.Clone()
				cp.Values = &vs
			}
			out.Material[theme] = cp
		}
	}
	if g.Texture != nil {
		out.Texture = make(map[string]TextureRef, len(g.Texture))
		for theme, ref := range g.Texture {
			out.Texture[theme] = TextureRef{Values: ref.Values.Clone()}
		}
	}
	if g.Template != nil {
		t := *g.Template
		out.Template = &t
	}
	if g.TransformationMatrix != nil {
		m := *g.TransformationMatrix
		out.TransformationMatrix = &m
	}
	return out
}
