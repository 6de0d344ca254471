package filter

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/thejerf/slogassert"

	"github.com/royalcat/cjstream/cityjson"
)

const headerLine = `{"type": "CityJSON", "version": "2.0", "transform": {"scale": [1.0, 1.0, 1.0], "translate": [0.0, 0.0, 0.0]}, "CityObjects": {}, "vertices": []}`

// one building with centroid (5, 5, 0)
const buildingLine = `{"type": "CityJSONFeature", "id": "b1", "CityObjects": {"b1": {"type": "Building"}}, "vertices": [[4, 4, 0], [6, 6, 0]]}`

// one bridge with centroid (50, 50, 0)
const bridgeLine = `{"type": "CityJSONFeature", "id": "br1", "CityObjects": {"br1": {"type": "Bridge"}}, "vertices": [[50, 50, 0]]}`

func runFilter(t *testing.T, input string, build Builder) []string {
	t.Helper()
	var out bytes.Buffer
	err := Run(context.Background(), strings.NewReader(input), &out, build, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	ids := make([]string, 0, len(lines)-1)
	for _, l := range lines[1:] {
		if l == "" {
			continue
		}
		f, err := cityjson.ParseFeature([]byte(l))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, f.ID)
	}
	return ids
}

func stream(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

func TestBBoxKeepsStrictlyInside(t *testing.T) {
	in := stream(headerLine, buildingLine, bridgeLine)
	bound := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}

	ids := runFilter(t, in, BBox(bound))
	if len(ids) != 1 || ids[0] != "b1" {
		t.Fatalf("got %v", ids)
	}

	// a centroid on the boundary is out
	edge := orb.Bound{Min: orb.Point{5, 5}, Max: orb.Point{10, 10}}
	if ids := runFilter(t, stream(headerLine, buildingLine), BBox(edge)); len(ids) != 0 {
		t.Fatalf("got %v", ids)
	}
}

func TestBBoxExcludeInverts(t *testing.T) {
	in := stream(headerLine, buildingLine, bridgeLine)
	bound := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}

	ids := runFilter(t, in, Exclude(BBox(bound)))
	if len(ids) != 1 || ids[0] != "br1" {
		t.Fatalf("got %v", ids)
	}
}

func TestRadius(t *testing.T) {
	in := stream(headerLine, buildingLine)

	// centroid (5,5) is 5*sqrt(2) ~ 7.07 from the origin
	if ids := runFilter(t, in, Radius(orb.Point{0, 0}, 8)); len(ids) != 1 {
		t.Fatalf("radius 8: got %v", ids)
	}
	if ids := runFilter(t, in, Radius(orb.Point{0, 0}, 5)); len(ids) != 0 {
		t.Fatalf("radius 5: got %v", ids)
	}
}

func TestObjectType(t *testing.T) {
	in := stream(headerLine, buildingLine, bridgeLine)

	ids := runFilter(t, in, ObjectType("Building"))
	if len(ids) != 1 || ids[0] != "b1" {
		t.Fatalf("got %v", ids)
	}
}

func TestRandomOneKeepsEverything(t *testing.T) {
	in := stream(headerLine, buildingLine, bridgeLine)

	ids := runFilter(t, in, Random(1))
	if len(ids) != 2 {
		t.Fatalf("got %v", ids)
	}

	if _, err := Random(0)(cityjson.NewCityJSON()); err == nil {
		t.Fatal("expected error for n < 1")
	}
}

func TestHeaderAlwaysPassesThrough(t *testing.T) {
	in := stream(headerLine, buildingLine)
	var out bytes.Buffer
	err := Run(context.Background(), strings.NewReader(in), &out,
		Exclude(ObjectType("Building")), slog.Default())
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines", len(lines))
	}
	if _, err := cityjson.ParseCityJSON([]byte(lines[0])); err != nil {
		t.Fatalf("first line is not a document: %v", err)
	}
}

func TestMalformedLinesAreSkippedWithWarning(t *testing.T) {
	handler := slogassert.New(t, slog.LevelWarn, nil)
	log := slog.New(handler)

	in := stream(headerLine, `{not json`, buildingLine)
	var out bytes.Buffer
	err := Run(context.Background(), strings.NewReader(in), &out, ObjectType("Building"), log)
	if err != nil {
		t.Fatal(err)
	}

	handler.AssertMessage("skipping malformed feature line")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
}
