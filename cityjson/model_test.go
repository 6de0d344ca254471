package cityjson

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

const minimalDoc = `{
	"type": "CityJSON",
	"version": "2.0",
	"transform": {"scale": [0.001, 0.001, 0.001], "translate": [100.0, 200.0, 0.0]},
	"CityObjects": {
		"b1": {
			"type": "Building",
			"geometry": [{
				"type": "MultiSurface",
				"lod": "1",
				"boundaries": [[[0, 1, 2, 3]], [[1, 0, 3, 2]]]
			}]
		}
	},
	"vertices": [[0, 0, 0], [1000, 0, 0], [1000, 1000, 0], [0, 1000, 0]],
	"+custom-top-level": {"answer": 42}
}`

func TestParseCityJSONKeepsUnknownKeys(t *testing.T) {
	cj, err := ParseCityJSON([]byte(minimalDoc))
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := cj.Extra["+custom-top-level"]; !ok {
		t.Fatal("unknown top-level key lost on parse")
	}

	out, err := json.Marshal(cj)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatal(err)
	}
	if string(m["+custom-top-level"]) != `{"answer": 42}` {
		t.Fatalf("unknown key mangled: %s", m["+custom-top-level"])
	}
}

func TestCheckSupported(t *testing.T) {
	cj := NewCityJSON()
	if err := cj.CheckSupported(); err != nil {
		t.Fatal(err)
	}

	cj.Type = "GeoJSON"
	if err := cj.CheckSupported(); !errors.Is(err, ErrNotCityJSON) {
		t.Fatalf("got %v", err)
	}

	cj.Type = "CityJSON"
	cj.Version = "1.0"
	if err := cj.CheckSupported(); !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("got %v", err)
	}
}

func TestRemoveDuplicateVertices(t *testing.T) {
	cj, err := ParseCityJSON([]byte(minimalDoc))
	if err != nil {
		t.Fatal(err)
	}
	// duplicate of vertex 1 referenced by a second geometry
	cj.Vertices = append(cj.Vertices, Vertex{1000, 0, 0})
	co := cj.CityObjects["b1"]
	co.Geometry = append(co.Geometry, Geometry{
		Type:       MultiPoint,
		Boundaries: Boundaries{Indices: []int{4, 2}},
	})

	cj.RemoveDuplicateVertices()

	if len(cj.Vertices) != 4 {
		t.Fatalf("vertices: %d", len(cj.Vertices))
	}
	if got := co.Geometry[1].Boundaries.Indices; !reflect.DeepEqual(got, []int{1, 2}) {
		t.Fatalf("boundaries: %v", got)
	}

	// idempotent
	before := append(Vertices{}, cj.Vertices...)
	cj.RemoveDuplicateVertices()
	if !reflect.DeepEqual(cj.Vertices, before) {
		t.Fatal("second pass changed the vertices")
	}
}

func TestRenormalizeTransformKeepsRealWorldCoordinates(t *testing.T) {
	cj, err := ParseCityJSON([]byte(minimalDoc))
	if err != nil {
		t.Fatal(err)
	}
	for i := range cj.Vertices {
		cj.Vertices[i][0] += 5000
		cj.Vertices[i][2] -= 300
	}

	worldBefore := make([][3]float64, len(cj.Vertices))
	for i, v := range cj.Vertices {
		worldBefore[i] = cj.Transform.Apply(v)
	}

	cj.RenormalizeTransform()

	mins := [3]int64{1 << 62, 1 << 62, 1 << 62}
	for i, v := range cj.Vertices {
		got := cj.Transform.Apply(v)
		if got != worldBefore[i] {
			t.Fatalf("vertex %d moved: %v != %v", i, got, worldBefore[i])
		}
		for a := 0; a < 3; a++ {
			if v[a] < mins[a] {
				mins[a] = v[a]
			}
		}
	}
	if mins != ([3]int64{0, 0, 0}) {
		t.Fatalf("minimum not zeroed: %v", mins)
	}
}

func TestEmptyCopy(t *testing.T) {
	cj, err := ParseCityJSON([]byte(minimalDoc))
	if err != nil {
		t.Fatal(err)
	}

	header := cj.EmptyCopy()
	if len(header.CityObjects) != 0 || len(header.Vertices) != 0 {
		t.Fatal("header must not carry objects or vertices")
	}
	if header.Appearance != nil {
		t.Fatal("header must not carry appearance")
	}
	if header.Transform != cj.Transform {
		t.Fatal("transform must survive")
	}
	if _, ok := header.Extra["+custom-top-level"]; !ok {
		t.Fatal("extra keys must survive")
	}
}

func TestFeatureCentroid(t *testing.T) {
	f := NewCityJSONFeature("x")
	f.Vertices = Vertices{{0, 0, 0}, {10, 20, 30}}

	if got := f.Centroid(); got != ([3]float64{5, 10, 15}) {
		t.Fatalf("got %v", got)
	}

	empty := NewCityJSONFeature("y")
	if got := empty.Centroid(); got != ([3]float64{}) {
		t.Fatalf("got %v", got)
	}
}

func TestReferenceSystemURLRoundTrip(t *testing.T) {
	rs := NewReferenceSystem("EPSG", "0", "7415")
	url := rs.URL()
	if url != "https://www.opengis.net/def/crs/EPSG/0/7415" {
		t.Fatalf("got %s", url)
	}

	parsed, err := ParseReferenceSystem(url)
	if err != nil {
		t.Fatal(err)
	}
	if parsed != rs {
		t.Fatalf("got %+v", parsed)
	}

	if _, err := ParseReferenceSystem("urn:ogc:def:crs:EPSG::7415"); err == nil {
		t.Fatal("expected error for non-url form")
	}
}

func TestVerticesJSONRoundTrip(t *testing.T) {
	in := Vertices{{-1, 0, 1}, {1 << 40, 2, 3}}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out Vertices
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("got %v", out)
	}
}
