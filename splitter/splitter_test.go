package splitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/royalcat/cjstream/cityjson"
)

const testDoc = `{
	"type": "CityJSON",
	"version": "2.0",
	"transform": {"scale": [1.0, 1.0, 1.0], "translate": [0.0, 0.0, 0.0]},
	"CityObjects": {
		"building-b": {
			"type": "Building",
			"children": ["building-b-part"],
			"geometry": [{
				"type": "MultiSurface",
				"lod": "1",
				"boundaries": [[[4, 5, 6, 7]]],
				"material": {"default": {"value": 1}}
			}]
		},
		"building-b-part": {
			"type": "BuildingPart",
			"parents": ["building-b"],
			"geometry": [{
				"type": "MultiSurface",
				"lod": "1",
				"boundaries": [[[7, 6, 5]]]
			}]
		},
		"building-a": {
			"type": "Building",
			"geometry": [{
				"type": "MultiSurface",
				"lod": "1",
				"boundaries": [[[0, 1, 2, 3]]],
				"material": {"default": {"value": 0}},
				"texture": {"default": {"values": [[[0, 0, 1, 2]]]}}
			}]
		}
	},
	"vertices": [
		[0, 0, 0], [10, 0, 0], [10, 10, 0], [0, 10, 0],
		[100, 100, 0], [110, 100, 0], [110, 110, 0], [100, 110, 0]
	],
	"appearance": {
		"materials": [{"name": "walls"}, {"name": "roofs"}],
		"textures": [{"type": "PNG", "image": "wall.png"}],
		"vertices-texture": [[0.0, 0.0], [1.0, 0.0], [1.0, 1.0]]
	}
}`

func parseDoc(t *testing.T) *cityjson.CityJSON {
	t.Helper()
	cj, err := cityjson.ParseCityJSON([]byte(testDoc))
	if err != nil {
		t.Fatal(err)
	}
	return cj
}

func TestAlphabeticalOrder(t *testing.T) {
	s, err := New(parseDoc(t), WithOrder(OrderAlphabetical))
	if err != nil {
		t.Fatal(err)
	}
	if got := s.IDs(); !reflect.DeepEqual(got, []string{"building-a", "building-b"}) {
		t.Fatalf("got %v", got)
	}
}

func TestUnsupportedOrders(t *testing.T) {
	for _, order := range []Order{OrderMorton, OrderHilbert, Order("zcurve")} {
		if _, err := New(parseDoc(t), WithOrder(order)); !errors.Is(err, ErrUnsupportedOrder) {
			t.Fatalf("%s: got %v", order, err)
		}
	}
}

func TestRejectsUnsupportedDocuments(t *testing.T) {
	doc := parseDoc(t)
	doc.Version = "1.0"
	if _, err := New(doc); !errors.Is(err, cityjson.ErrUnsupportedVersion) {
		t.Fatalf("got %v", err)
	}
}

func TestHeaderIsStrippedDocument(t *testing.T) {
	s, err := New(parseDoc(t))
	if err != nil {
		t.Fatal(err)
	}

	header := s.Header()
	if len(header.CityObjects) != 0 || len(header.Vertices) != 0 {
		t.Fatal("header must not carry objects or vertices")
	}
	if header.Appearance != nil {
		t.Fatal("no templates, so no appearance in the header")
	}
}

func TestHeaderSlicesTemplateAppearance(t *testing.T) {
	doc := parseDoc(t)
	var tmpl cityjson.Geometry
	err := json.Unmarshal([]byte(`{
		"type": "MultiSurface",
		"lod": "1",
		"boundaries": [[[0, 1, 2]]],
		"material": {"default": {"value": 1}},
		"texture": {"default": {"values": [[[0, 0, 1, 2]]]}}
	}`), &tmpl)
	if err != nil {
		t.Fatal(err)
	}
	doc.GeometryTemplates = &cityjson.GeometryTemplates{
		Templates:         []cityjson.Geometry{tmpl},
		VerticesTemplates: [][3]float64{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}},
	}

	s, err := New(doc)
	if err != nil {
		t.Fatal(err)
	}
	header := s.Header()
	if header.GeometryTemplates == nil {
		t.Fatal("templates missing from the header")
	}

	// template references compacted into a catalog of just what they use
	g := header.GeometryTemplates.Templates[0]
	if *g.Material["default"].Value != 0 {
		t.Fatalf("material ref: %d", *g.Material["default"].Value)
	}
	if len(header.Appearance.Materials) != 1 || header.Appearance.Materials[0].Name != "roofs" {
		t.Fatalf("materials: %+v", header.Appearance.Materials)
	}
	if len(header.Appearance.Textures) != 1 || len(header.Appearance.VerticesTexture) != 3 {
		t.Fatalf("textures: %+v uvs: %+v", header.Appearance.Textures, header.Appearance.VerticesTexture)
	}

	if *doc.GeometryTemplates.Templates[0].Material["default"].Value != 1 {
		t.Fatal("source document mutated")
	}
}

func TestFeatureIsSelfContained(t *testing.T) {
	doc := parseDoc(t)
	s, err := New(doc, WithOrder(OrderAlphabetical))
	if err != nil {
		t.Fatal(err)
	}

	f, err := s.Feature(0) // building-a
	if err != nil {
		t.Fatal(err)
	}
	if f.ID != "building-a" || f.Type != "CityJSONFeature" {
		t.Fatalf("got %s %s", f.Type, f.ID)
	}

	// local vertex array is dense and zero based
	if len(f.Vertices) != 4 {
		t.Fatalf("vertices: %d", len(f.Vertices))
	}
	g := f.CityObjects["building-a"].Geometry[0]
	if got := g.Boundaries.MaxIndex(); got != len(f.Vertices)-1 {
		t.Fatalf("max index %d with %d vertices", got, len(f.Vertices))
	}
	if !reflect.DeepEqual(f.Vertices[0], cityjson.Vertex{0, 0, 0}) {
		t.Fatalf("vertex 0: %v", f.Vertices[0])
	}

	// appearance sliced down to what the feature uses
	if len(f.Appearance.Materials) != 1 || f.Appearance.Materials[0].Name != "walls" {
		t.Fatalf("materials: %+v", f.Appearance.Materials)
	}
	if *g.Material["default"].Value != 0 {
		t.Fatalf("material ref: %d", *g.Material["default"].Value)
	}
	if len(f.Appearance.Textures) != 1 || len(f.Appearance.VerticesTexture) != 3 {
		t.Fatalf("textures: %+v uvs: %+v", f.Appearance.Textures, f.Appearance.VerticesTexture)
	}
}

func TestFeatureCarriesDirectChildren(t *testing.T) {
	s, err := New(parseDoc(t), WithOrder(OrderAlphabetical))
	if err != nil {
		t.Fatal(err)
	}

	f, err := s.Feature(1) // building-b
	if err != nil {
		t.Fatal(err)
	}
	if len(f.CityObjects) != 2 {
		t.Fatalf("objects: %d", len(f.CityObjects))
	}
	if _, ok := f.CityObjects["building-b-part"]; !ok {
		t.Fatal("child missing")
	}

	// parent and child share the feature's vertex space
	if len(f.Vertices) != 4 {
		t.Fatalf("vertices: %d", len(f.Vertices))
	}
	child := f.CityObjects["building-b-part"].Geometry[0]
	if got := child.Boundaries.MaxIndex(); got >= len(f.Vertices) {
		t.Fatalf("dangling index %d", got)
	}
}

func TestFeatureCarriesUsedExtensions(t *testing.T) {
	doc := parseDoc(t)
	doc.Extensions = map[string]cityjson.Extension{
		"Noise": {URL: "https://example.com/noise.ext.json", Version: "1.0"},
		"Solar": {URL: "https://example.com/solar.ext.json", Version: "2.1"},
	}
	doc.CityObjects["building-a"].Type = "+NoiseBuilding"

	s, err := New(doc, WithOrder(OrderAlphabetical))
	if err != nil {
		t.Fatal(err)
	}

	f, err := s.Feature(0) // building-a
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Extensions) != 1 {
		t.Fatalf("extensions: %+v", f.Extensions)
	}
	if ext, ok := f.Extensions["Noise"]; !ok || ext.Version != "1.0" {
		t.Fatalf("extensions: %+v", f.Extensions)
	}

	f, err = s.Feature(1) // building-b, core types only
	if err != nil {
		t.Fatal(err)
	}
	if f.Extensions != nil {
		t.Fatalf("core-typed feature carries extensions: %+v", f.Extensions)
	}
}

func TestFeatureDoesNotMutateDocument(t *testing.T) {
	doc := parseDoc(t)
	s, err := New(doc, WithOrder(OrderAlphabetical))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Feature(0); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Feature(1); err != nil {
		t.Fatal(err)
	}

	g := doc.CityObjects["building-b"].Geometry[0]
	if !reflect.DeepEqual(g.Boundaries.Sub[0].Sub[0].Indices, []int{4, 5, 6, 7}) {
		t.Fatalf("source document mutated: %v", g.Boundaries.Sub[0].Sub[0].Indices)
	}
}

func TestMissingChildFails(t *testing.T) {
	doc := parseDoc(t)
	doc.CityObjects["building-b"].Children = append(doc.CityObjects["building-b"].Children, "nope")

	s, err := New(doc, WithOrder(OrderAlphabetical))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Feature(1); !errors.Is(err, cityjson.ErrMissingObject) {
		t.Fatalf("got %v", err)
	}
}

func TestWriteSeqShape(t *testing.T) {
	s, err := New(parseDoc(t), WithOrder(OrderAlphabetical))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := s.WriteSeq(context.Background(), &buf, 4); err != nil {
		t.Fatal(err)
	}

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte{'\n'})
	if len(lines) != 3 {
		t.Fatalf("lines: %d", len(lines))
	}

	var header map[string]json.RawMessage
	if err := json.Unmarshal(lines[0], &header); err != nil {
		t.Fatal(err)
	}
	if string(header["type"]) != `"CityJSON"` {
		t.Fatalf("header type: %s", header["type"])
	}

	f1, err := cityjson.ParseFeature(lines[1])
	if err != nil {
		t.Fatal(err)
	}
	f2, err := cityjson.ParseFeature(lines[2])
	if err != nil {
		t.Fatal(err)
	}
	if f1.ID != "building-a" || f2.ID != "building-b" {
		t.Fatalf("order: %s %s", f1.ID, f2.ID)
	}
}
