package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sourcegraph/conc/pool"
	"github.com/tidwall/qtree"

	"github.com/royalcat/cjstream/splitter"
)

// Index is a split document prepared for serving: the encoded header line,
// every encoded feature line keyed by id and a spatial index over feature
// centroids in real-world coordinates. It is read-only after Build.
type Index struct {
	header []byte
	ids    []string
	lines  *xsync.MapOf[string, []byte]
	qt     qtree.QTree
}

// BuildIndex encodes every feature of the stream on up to threads goroutines
// and indexes their centroids.
func BuildIndex(ctx context.Context, s *splitter.Splitter, threads int) (*Index, error) {
	header := s.Header()
	headerLine, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("encoding header: %w", err)
	}

	idx := &Index{
		header: headerLine,
		ids:    s.IDs(),
		lines:  xsync.NewMapOf[string, []byte](),
	}

	transform := header.Transform
	centroids := make([][2]float64, s.Len())
	errs := make([]error, s.Len())

	p := pool.New().WithMaxGoroutines(threads)
	for i := 0; i < s.Len(); i++ {
		i := i
		p.Go(func() {
			f, err := s.Feature(i)
			if err != nil {
				errs[i] = err
				return
			}
			line, err := json.Marshal(f)
			if err != nil {
				errs[i] = err
				return
			}
			idx.lines.Store(f.ID, line)
			x, y := transform.ApplyXY(f.Centroid())
			centroids[i] = [2]float64{x, y}
		})
	}
	p.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("feature %q: %w", idx.ids[i], err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// qtree inserts are not safe to run concurrently, done after the pool.
	for i, c := range centroids {
		idx.qt.Insert(c, c, i)
	}
	return idx, nil
}

// Header returns the encoded stream header line.
func (idx *Index) Header() []byte {
	return idx.header
}

// Len returns the number of indexed features.
func (idx *Index) Len() int {
	return len(idx.ids)
}

// Feature returns the encoded line of one feature.
func (idx *Index) Feature(id string) ([]byte, bool) {
	return idx.lines.Load(id)
}

// SearchBBox visits every feature whose centroid falls inside the box, in
// unspecified order. Returning false from fn stops the search.
func (idx *Index) SearchBBox(min, max [2]float64, fn func(id string, line []byte) bool) {
	idx.qt.Search(min, max, func(_, _ [2]float64, data any) bool {
		id := idx.ids[data.(int)]
		line, ok := idx.lines.Load(id)
		if !ok {
			return true
		}
		return fn(id, line)
	})
}
