// Package objconv renders a CityJSON document as a Wavefront OBJ mesh.
package objconv

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/royalcat/cjstream/cityjson"
)

// WriteOBJ writes the document's real-world vertices and the faces of every
// object's highest-LOD geometries. Semantics, materials and textures are not
// carried over.
func WriteOBJ(cj *cityjson.CityJSON, w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "# Converted from CityJSON to OBJ")
	fmt.Fprintln(bw, "# by cjstream")
	fmt.Fprintln(bw)

	for _, v := range cj.Vertices {
		world := cj.Transform.Apply(v)
		fmt.Fprintf(bw, "v %s %s %s\n",
			formatCoord(world[0]), formatCoord(world[1]), formatCoord(world[2]))
	}
	fmt.Fprintln(bw)

	for _, co := range cj.CityObjects {
		for _, g := range highestLOD(co.Geometry) {
			writeFaces(bw, g.Boundaries)
		}
	}
	return bw.Flush()
}

// ToString renders the document to an in-memory OBJ string.
func ToString(cj *cityjson.CityJSON) string {
	var sb strings.Builder
	_ = WriteOBJ(cj, &sb)
	return sb.String()
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// highestLOD returns the geometries whose lod parses to the maximum value.
// When no lod parses, all geometries qualify.
func highestLOD(geoms []cityjson.Geometry) []*cityjson.Geometry {
	maxLOD, found := 0.0, false
	for i := range geoms {
		if lod, err := strconv.ParseFloat(geoms[i].LOD, 64); err == nil {
			if !found || lod > maxLOD {
				maxLOD, found = lod, true
			}
		}
	}

	out := make([]*cityjson.Geometry, 0, len(geoms))
	for i := range geoms {
		if !found {
			out = append(out, &geoms[i])
			continue
		}
		if lod, err := strconv.ParseFloat(geoms[i].LOD, 64); err == nil && lod == maxLOD {
			out = append(out, &geoms[i])
		}
	}
	return out
}

// writeFaces emits every boundary leaf as one 1-based OBJ face line. Rings
// beyond the exterior are emitted as their own faces; OBJ has no hole syntax.
func writeFaces(w io.Writer, b cityjson.Boundaries) {
	if b.Sub == nil {
		if len(b.Indices) == 0 {
			return
		}
		fmt.Fprint(w, "f")
		for _, idx := range b.Indices {
			fmt.Fprintf(w, " %d", idx+1)
		}
		fmt.Fprintln(w)
		return
	}
	for _, sub := range b.Sub {
		writeFaces(w, sub)
	}
}
