package cityjson

import "fmt"

// UV is a texture coordinate pair.
type UV [2]float64

// Material is one entry of the appearance material catalog. All intensity
// and color components must lie in [0, 1].
type Material struct {
	Name             string      `json:"name"`
	AmbientIntensity *float64    `json:"ambientIntensity,omitempty"`
	DiffuseColor     *[3]float64 `json:"diffuseColor,omitempty"`
	EmissiveColor    *[3]float64 `json:"emissiveColor,omitempty"`
	SpecularColor    *[3]float64 `json:"specularColor,omitempty"`
	Shininess        *float64    `json:"shininess,omitempty"`
	Transparency     *float64    `json:"transparency,omitempty"`
	IsSmooth         *bool       `json:"isSmooth,omitempty"`
}

func unitRange(field string, vals ...float64) error {
	for i, v := range vals {
		if v < 0.0 || v > 1.0 {
			return &ValueError{
				Field:  field,
				Reason: fmt.Sprintf("component %d is %v, must be between 0.0 and 1.0", i, v),
			}
		}
	}
	return nil
}

func (m Material) Validate() error {
	if m.AmbientIntensity != nil {
		if err := unitRange("ambientIntensity", *m.AmbientIntensity); err != nil {
			return err
		}
	}
	for field, c := range map[string]*[3]float64{
		"diffuseColor":  m.DiffuseColor,
		"emissiveColor": m.EmissiveColor,
		"specularColor": m.SpecularColor,
	} {
		if c != nil {
			if err := unitRange(field, c[0], c[1], c[2]); err != nil {
				return err
			}
		}
	}
	if m.Shininess != nil {
		if err := unitRange("shininess", *m.Shininess); err != nil {
			return err
		}
	}
	if m.Transparency != nil {
		if err := unitRange("transparency", *m.Transparency); err != nil {
			return err
		}
	}
	return nil
}

// Texture is one entry of the appearance texture catalog.
type Texture struct {
	Type        string      `json:"type"` // PNG or JPG
	Image       string      `json:"image"`
	WrapMode    string      `json:"wrapMode,omitempty"`
	TextureType string      `json:"textureType,omitempty"`
	BorderColor *[4]float64 `json:"borderColor,omitempty"`
}

func (t Texture) Validate() error {
	if t.BorderColor != nil {
		return unitRange("borderColor", t.BorderColor[0], t.BorderColor[1], t.BorderColor[2], t.BorderColor[3])
	}
	return nil
}

// Appearance holds the materials, textures and texture coordinates of one
// document scope (whole document or single feature).
type Appearance struct {
	Materials            []Material `json:"materials,omitempty"`
	Textures             []Texture  `json:"textures,omitempty"`
	VerticesTexture      []UV       `json:"vertices-texture,omitempty"`
	DefaultThemeTexture  string     `json:"default-theme-texture,omitempty"`
	DefaultThemeMaterial string     `json:"default-theme-material,omitempty"`
}

func (a *Appearance) IsEmpty() bool {
	return a == nil || (len(a.Materials) == 0 && len(a.Textures) == 0 &&
		len(a.VerticesTexture) == 0 && a.DefaultThemeTexture == "" && a.DefaultThemeMaterial == "")
}

// AddMaterial inserts m and returns its index. Materials are deduplicated by
// name: an existing entry with the same name wins. The linear scan is fine
// here, appearance catalogs are tiny next to vertex and geometry volume.
func (a *Appearance) AddMaterial(m Material) (int, error) {
	if err := m.Validate(); err != nil {
		return 0, fmt.Errorf("invalid material %q: %w", m.Name, err)
	}
	for i, e := range a.Materials {
		if e.Name == m.Name {
			return i, nil
		}
	}
	a.Materials = append(a.Materials, m)
	return len(a.Materials) - 1, nil
}

// AddTexture inserts t and returns its index, deduplicating by image path.
func (a *Appearance) AddTexture(t Texture) (int, error) {
	if err := t.Validate(); err != nil {
		return 0, fmt.Errorf("invalid texture %q: %w", t.Image, err)
	}
	for i, e := range a.Textures {
		if e.Image == t.Image {
			return i, nil
		}
	}
	a.Textures = append(a.Textures, t)
	return len(a.Textures) - 1, nil
}

// AddVerticesTexture appends texture coordinates verbatim and returns the
// index the first appended entry received.
func (a *Appearance) AddVerticesTexture(uvs []UV) int {
	offset := len(a.VerticesTexture)
	a.VerticesTexture = append(a.VerticesTexture, uvs...)
	return offset
}

// SliceBy projects the catalog down to the entries recorded in the given
// tables: the result's entry new is the original's entry old for every
// (old, new) pair. Used when a feature (or the geometry templates) carries
// only a subset of the document's appearance.
func (a *Appearance) SliceBy(mats, texs, uvs *IndexMap) *Appearance {
	out := &Appearance{
		DefaultThemeTexture:  a.DefaultThemeTexture,
		DefaultThemeMaterial: a.DefaultThemeMaterial,
	}
	if a.Materials != nil && mats.Len() > 0 {
		out.Materials = make([]Material, mats.Len())
		mats.Each(func(old, new int) {
			out.Materials[new] = a.Materials[old]
		})
	}
	if a.Textures != nil && texs.Len() > 0 {
		out.Textures = make([]Texture, texs.Len())
		texs.Each(func(old, new int) {
			out.Textures[new] = a.Textures[old]
		})
	}
	if a.VerticesTexture != nil && uvs.Len() > 0 {
		out.VerticesTexture = make([]UV, uvs.Len())
		uvs.Each(func(old, new int) {
			out.VerticesTexture[new] = a.VerticesTexture[old]
		})
	}
	return out
}

func (a *Appearance) Clone() *Appearance {
	if a == nil {
		return nil
	}
	out := &Appearance{
		Materials:            append([]Material(nil), a.Materials...),
		Textures:             append([]Texture(nil), a.Textures...),
		VerticesTexture:      append([]UV(nil), a.VerticesTexture...),
		DefaultThemeTexture:  a.DefaultThemeTexture,
		DefaultThemeMaterial: a.DefaultThemeMaterial,
	}
	return out
}
