// Package filter selects features out of a CityJSONSeq stream. The header
// passes through untouched; every feature line is kept or dropped by a
// predicate evaluated on real-world coordinates.
package filter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"

	"github.com/paulmach/orb"

	"github.com/royalcat/cjstream/cityjson"
)

// Predicate decides whether a feature stays in the stream.
type Predicate func(f *cityjson.CityJSONFeature) bool

// Builder constructs a predicate once the stream header is known. Spatial
// predicates need the header's transform to place feature centroids in the
// real world.
type Builder func(header *cityjson.CityJSON) (Predicate, error)

// BBox keeps features whose 2D centroid lies strictly inside bound.
func BBox(bound orb.Bound) Builder {
	return func(header *cityjson.CityJSON) (Predicate, error) {
		t := header.Transform
		return func(f *cityjson.CityJSONFeature) bool {
			x, y := t.ApplyXY(f.Centroid())
			return x > bound.Min[0] && x < bound.Max[0] &&
				y > bound.Min[1] && y < bound.Max[1]
		}, nil
	}
}

// Radius keeps features whose 2D centroid lies within r of center.
func Radius(center orb.Point, r float64) Builder {
	return func(header *cityjson.CityJSON) (Predicate, error) {
		if r < 0 {
			return nil, &cityjson.ValueError{Field: "radius", Reason: "must be non-negative"}
		}
		t := header.Transform
		r2 := r * r
		return func(f *cityjson.CityJSONFeature) bool {
			x, y := t.ApplyXY(f.Centroid())
			dx, dy := x-center[0], y-center[1]
			return dx*dx+dy*dy <= r2
		}, nil
	}
}

// ObjectType keeps features whose root object is of type cotype.
func ObjectType(cotype string) Builder {
	return func(header *cityjson.CityJSON) (Predicate, error) {
		return func(f *cityjson.CityJSONFeature) bool {
			root, err := f.Root()
			if err != nil {
				return false
			}
			return root.Type == cotype
		}, nil
	}
}

// Random keeps each feature with probability 1/n, independently.
func Random(n int) Builder {
	return func(header *cityjson.CityJSON) (Predicate, error) {
		if n < 1 {
			return nil, &cityjson.ValueError{Field: "random", Reason: "must be at least 1"}
		}
		return func(f *cityjson.CityJSONFeature) bool {
			return rand.IntN(n) == 0
		}, nil
	}
}

// Exclude inverts a builder's predicate.
func Exclude(b Builder) Builder {
	return func(header *cityjson.CityJSON) (Predicate, error) {
		p, err := b(header)
		if err != nil {
			return nil, err
		}
		return func(f *cityjson.CityJSONFeature) bool { return !p(f) }, nil
	}
}

const maxLine = 1 << 30

// Run copies the stream from r to w, dropping features the predicate
// rejects. Lines that fail to parse are logged and skipped; the stream keeps
// going.
func Run(ctx context.Context, r io.Reader, w io.Writer, build Builder, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024*1024), maxLine)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return err
		}
		return fmt.Errorf("%w: empty stream", cityjson.ErrNotCityJSON)
	}
	header, err := cityjson.ParseCityJSON(sc.Bytes())
	if err != nil {
		return fmt.Errorf("stream header: %w", err)
	}
	if err := header.CheckSupported(); err != nil {
		return err
	}
	keep, err := build(header)
	if err != nil {
		return err
	}
	if _, err := w.Write(append(sc.Bytes(), '\n')); err != nil {
		return err
	}

	line, kept := 1, 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		f, err := cityjson.ParseFeature(sc.Bytes())
		if err != nil {
			log.Warn("skipping malformed feature line", "line", line, "error", err)
			continue
		}
		if !keep(f) {
			continue
		}
		if _, err := w.Write(append(sc.Bytes(), '\n')); err != nil {
			return err
		}
		kept++
	}
	if err := sc.Err(); err != nil {
		return err
	}
	log.Info("filtered stream", "lines", line, "kept", kept)
	return nil
}
