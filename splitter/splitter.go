// Package splitter turns a monolithic CityJSON document into a CityJSONSeq
// stream: one header line followed by one self-contained feature per
// top-level city object.
package splitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/btree"
	"github.com/sourcegraph/conc/pool"

	"github.com/royalcat/cjstream/cityjson"
)

// Order selects how top-level objects are sequenced in the output stream.
type Order string

const (
	// OrderRandom emits features in map iteration order.
	OrderRandom Order = "random"
	// OrderAlphabetical emits features sorted by object id.
	OrderAlphabetical Order = "alphabetical"
	// OrderMorton and OrderHilbert are reserved for space-filling-curve
	// ordering and are not implemented.
	OrderMorton  Order = "morton"
	OrderHilbert Order = "hilbert"
)

var ErrUnsupportedOrder = errors.New("unsupported feature order")

// ParseOrder maps a user-facing order name to an Order.
func ParseOrder(s string) (Order, error) {
	switch Order(strings.ToLower(s)) {
	case OrderRandom:
		return OrderRandom, nil
	case OrderAlphabetical:
		return OrderAlphabetical, nil
	case OrderMorton:
		return OrderMorton, ErrUnsupportedOrder
	case OrderHilbert:
		return OrderHilbert, ErrUnsupportedOrder
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedOrder, s)
	}
}

type options struct {
	order Order
	log   *slog.Logger
}

type Option func(*options)

func WithOrder(o Order) Option {
	return func(opts *options) { opts.order = o }
}

func WithLogger(log *slog.Logger) Option {
	return func(opts *options) { opts.log = log }
}

// Splitter slices one parsed document into features. It never mutates the
// document, so feature extraction is safe to run concurrently.
type Splitter struct {
	doc *cityjson.CityJSON
	ids []string
	log *slog.Logger
}

// New validates the document and fixes the feature order up front.
func New(doc *cityjson.CityJSON, opts ...Option) (*Splitter, error) {
	o := options{order: OrderRandom, log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := doc.CheckSupported(); err != nil {
		return nil, err
	}

	s := &Splitter{doc: doc, log: o.log}
	switch o.order {
	case OrderRandom:
		s.ids = doc.TopLevelIDs()
	case OrderAlphabetical:
		tree := btree.NewG(32, func(a, b string) bool { return a < b })
		for _, id := range doc.TopLevelIDs() {
			tree.ReplaceOrInsert(id)
		}
		s.ids = make([]string, 0, tree.Len())
		tree.Ascend(func(id string) bool {
			s.ids = append(s.ids, id)
			return true
		})
	case OrderMorton, OrderHilbert:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedOrder, o.order)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedOrder, o.order)
	}

	s.log.Debug("splitter ready",
		"features", len(s.ids),
		"vertices", len(doc.Vertices),
		"order", string(o.order))
	return s, nil
}

// Len returns the number of features the stream will carry.
func (s *Splitter) Len() int {
	return len(s.ids)
}

// IDs returns the feature ids in stream order.
func (s *Splitter) IDs() []string {
	return s.ids
}

// Header builds the first line of the stream: the document with city objects,
// vertices and appearance stripped. Geometry templates keep their vertices
// but their material and texture references are renumbered into a catalog
// sliced down to just the entries the templates use.
func (s *Splitter) Header() *cityjson.CityJSON {
	header := s.doc.EmptyCopy()
	if header.GeometryTemplates == nil {
		return header
	}

	mats := cityjson.NewIndexMap(0)
	texs := cityjson.NewIndexMap(0)
	uvs := cityjson.NewIndexMap(0)
	for i := range header.GeometryTemplates.Templates {
		g := &header.GeometryTemplates.Templates[i]
		g.RenumberMaterial(mats)
		g.RenumberTexture(texs, uvs)
	}
	if s.doc.Appearance != nil {
		if app := s.doc.Appearance.SliceBy(mats, texs, uvs); !app.IsEmpty() {
			header.Appearance = app
		}
	}
	return header
}

// Feature extracts the i-th feature of the stream: the top-level object and
// its direct children, with boundaries renumbered into a fresh zero-based
// vertex array and appearance references renumbered into a sliced catalog.
// Grandchildren are not descended into.
func (s *Splitter) Feature(i int) (*cityjson.CityJSONFeature, error) {
	id := s.ids[i]
	root, ok := s.doc.CityObjects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", cityjson.ErrMissingObject, id)
	}

	f := cityjson.NewCityJSONFeature(id)
	verts := cityjson.NewIndexMap(0)
	mats := cityjson.NewIndexMap(0)
	texs := cityjson.NewIndexMap(0)
	uvs := cityjson.NewIndexMap(0)

	add := func(coID string, co *cityjson.CityObject) {
		cp := co.Clone()
		for gi := range cp.Geometry {
			g := &cp.Geometry[gi]
			g.RenumberBoundaries(verts)
			g.RenumberMaterial(mats)
			g.RenumberTexture(texs, uvs)
		}
		f.CityObjects[coID] = cp
	}

	add(id, root)
	for _, childID := range root.Children {
		child, ok := s.doc.CityObjects[childID]
		if !ok {
			return nil, fmt.Errorf("%w: child %q of %q", cityjson.ErrMissingObject, childID, id)
		}
		add(childID, child)
	}

	f.Vertices = make(cityjson.Vertices, verts.Len())
	verts.Each(func(old, new int) {
		f.Vertices[new] = s.doc.Vertices[old]
	})

	if s.doc.Appearance != nil {
		if app := s.doc.Appearance.SliceBy(mats, texs, uvs); !app.IsEmpty() {
			f.Appearance = app
		}
	}

	s.attachExtensions(f)
	return f, nil
}

// attachExtensions copies the extension declarations a feature's objects
// actually use, so each line stays interpretable on its own. Declared names
// are matched as prefixes of the trimmed object type, since extensions name
// object types by appending to their own name ("Noise" declares
// "+NoiseBuilding").
func (s *Splitter) attachExtensions(f *cityjson.CityJSONFeature) {
	if len(s.doc.Extensions) == 0 {
		return
	}
	for _, co := range f.CityObjects {
		if !co.IsExtensionType() {
			continue
		}
		typeName := strings.TrimPrefix(co.Type, "+")
		for name, ext := range s.doc.Extensions {
			if name == "" || !strings.HasPrefix(typeName, name) {
				continue
			}
			if f.Extensions == nil {
				f.Extensions = map[string]cityjson.Extension{}
			}
			f.Extensions[name] = ext
		}
	}
}

// batchSize bounds how many encoded features are held in memory while
// preserving output order during parallel encoding.
const batchSize = 256

// WriteSeq writes the whole stream to w, encoding features on up to threads
// goroutines while keeping the chosen order on the wire.
func (s *Splitter) WriteSeq(ctx context.Context, w io.Writer, threads int) error {
	if threads < 1 {
		threads = 1
	}

	data, err := json.Marshal(s.Header())
	if err != nil {
		return fmt.Errorf("encoding header: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return err
	}

	lines := make([][]byte, batchSize)
	errs := make([]error, batchSize)
	for start := 0; start < s.Len(); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+batchSize, s.Len())

		p := pool.New().WithMaxGoroutines(threads)
		for i := start; i < end; i++ {
			i := i
			p.Go(func() {
				f, err := s.Feature(i)
				if err != nil {
					errs[i-start] = err
					return
				}
				lines[i-start], errs[i-start] = json.Marshal(f)
			})
		}
		p.Wait()

		for i := start; i < end; i++ {
			if err := errs[i-start]; err != nil {
				return fmt.Errorf("feature %q: %w", s.ids[i], err)
			}
			if _, err := w.Write(append(lines[i-start], '\n')); err != nil {
				return err
			}
			lines[i-start], errs[i-start] = nil, nil
		}
	}
	return nil
}
