// Package collector merges a CityJSONSeq stream back into one monolithic
// CityJSON document.
package collector

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/dustin/go-humanize"

	"github.com/royalcat/cjstream/cityjson"
)

type options struct {
	log *slog.Logger
	// source, when set, is the transform the incoming features were
	// quantized with; their vertices are requantized into the target
	// document's transform on Add.
	source *cityjson.Transform
}

type Option func(*options)

func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithSourceTransform requantizes feature vertices from src into the header
// transform, so streams produced under different transforms can be merged.
func WithSourceTransform(src cityjson.Transform) Option {
	return func(o *options) { o.source = &src }
}

// Collector accumulates features into a growing document. Adds are
// sequential: every Add appends to the shared vertex array and appearance
// catalog.
type Collector struct {
	doc      *cityjson.CityJSON
	source   *cityjson.Transform
	log      *slog.Logger
	features int
}

// New starts a document from a stream header.
func New(header *cityjson.CityJSON, opts ...Option) (*Collector, error) {
	o := options{log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := header.CheckSupported(); err != nil {
		return nil, err
	}
	doc := header.EmptyCopy()
	if header.Appearance != nil {
		doc.Appearance = header.Appearance.Clone()
	}
	return &Collector{doc: doc, source: o.source, log: o.log}, nil
}

// Add folds one feature into the document: appearance entries are inserted
// into the shared catalog (deduplicating on the way), texture coordinates are
// appended, and every geometry's references are rewritten from the feature's
// local index space into the document's.
func (c *Collector) Add(f *cityjson.CityJSONFeature) error {
	vertexOffset := len(c.doc.Vertices)

	mats := cityjson.NewIndexMap(0)
	texs := cityjson.NewIndexMap(0)
	uvs := cityjson.NewIndexMap(0)
	if f.Appearance != nil {
		for i, m := range f.Appearance.Materials {
			n, err := c.doc.AddMaterial(m)
			if err != nil {
				return fmt.Errorf("feature %q: %w", f.ID, err)
			}
			mats.Put(i, n)
		}
		for i, t := range f.Appearance.Textures {
			n, err := c.doc.AddTexture(t)
			if err != nil {
				return fmt.Errorf("feature %q: %w", f.ID, err)
			}
			texs.Put(i, n)
		}
		if len(f.Appearance.VerticesTexture) > 0 {
			uvOffset := c.doc.AddVerticesTexture(f.Appearance.VerticesTexture)
			for i := range f.Appearance.VerticesTexture {
				uvs.Put(i, uvOffset+i)
			}
		}
	}

	for id, co := range f.CityObjects {
		cp := co.Clone()
		for gi := range cp.Geometry {
			g := &cp.Geometry[gi]
			g.OffsetBoundaries(vertexOffset)
			g.RenumberMaterial(mats)
			g.RenumberTexture(texs, uvs)
		}
		c.doc.CityObjects[id] = cp
	}

	if c.source != nil && *c.source != c.doc.Transform {
		for _, v := range f.Vertices {
			c.doc.Vertices = append(c.doc.Vertices, requantize(v, *c.source, c.doc.Transform))
		}
	} else {
		c.doc.Vertices = append(c.doc.Vertices, f.Vertices...)
	}

	for name, ext := range f.Extensions {
		if c.doc.Extensions == nil {
			c.doc.Extensions = map[string]cityjson.Extension{}
		}
		c.doc.Extensions[name] = ext
	}

	c.features++
	return nil
}

// requantize moves v from the src quantization grid onto dst, rounding to the
// nearest grid point.
func requantize(v cityjson.Vertex, src, dst cityjson.Transform) cityjson.Vertex {
	world := src.Apply(v)
	var out cityjson.Vertex
	for i := 0; i < 3; i++ {
		out[i] = int64(math.Round((world[i] - dst.Translate[i]) / dst.Scale[i]))
	}
	return out
}

// Finish deduplicates the shared vertex array and renormalizes the transform,
// then returns the completed document. The collector must not be used after.
func (c *Collector) Finish() *cityjson.CityJSON {
	before := len(c.doc.Vertices)
	c.doc.RemoveDuplicateVertices()
	c.doc.RenormalizeTransform()
	c.log.Info("collected document",
		"features", c.features,
		"objects", humanize.Comma(int64(len(c.doc.CityObjects))),
		"vertices", humanize.Comma(int64(len(c.doc.Vertices))),
		"deduplicated", humanize.Comma(int64(before-len(c.doc.Vertices))))
	return c.doc
}

// maxLine bounds a single stream line; city-scale features stay well under.
const maxLine = 1 << 30

// Collect reads a whole CityJSONSeq stream and returns the merged document.
// The first line must be the header; malformed feature lines abort the merge.
func Collect(ctx context.Context, r io.Reader, opts ...Option) (*cityjson.CityJSON, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024*1024), maxLine)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: empty stream", cityjson.ErrNotCityJSON)
	}
	header, err := cityjson.ParseCityJSON(sc.Bytes())
	if err != nil {
		return nil, fmt.Errorf("stream header: %w", err)
	}
	col, err := New(header, opts...)
	if err != nil {
		return nil, err
	}

	line := 1
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		f, err := cityjson.ParseFeature(sc.Bytes())
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if err := col.Add(f); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return col.Finish(), nil
}
