package cityjson

import (
	"bytes"
	"strconv"

	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

// Boundaries is the vertex-index tree of a geometry. The nesting depth is
// fixed by the owning geometry's type:
//
//	MultiPoint                    [i, i, ...]
//	MultiLineString               [[i, ...], ...]
//	MultiSurface/CompositeSurface [[[i, ...]], ...]
//	Solid                         [[[[i, ...]]], ...]
//	MultiSolid/CompositeSolid     [[[[[i, ...]]]], ...]
//
// A node is either a flat index run (Indices) or a list of sub-boundaries
// (Sub), never both. All traversals are depth-agnostic recursion.
type Boundaries struct {
	Indices []int
	Sub     []Boundaries
}

// UnmarshalJSON applies the structural rule: an array whose first element is
// not itself an array (or an empty array) is an index run, anything else
// nests. Elements that fail numeric coercion are dropped.
func (b *Boundaries) UnmarshalJSON(data []byte) error {
	l := jlexer.Lexer{Data: data}
	b.UnmarshalEasyJSON(&l)
	return l.Error()
}

func (b *Boundaries) UnmarshalEasyJSON(l *jlexer.Lexer) {
	b.Indices = nil
	b.Sub = nil
	l.Delim('[')
	if l.IsDelim(']') {
		l.Delim(']')
		b.Indices = []int{}
		return
	}
	if l.IsDelim('[') {
		for !l.IsDelim(']') {
			var sub Boundaries
			sub.UnmarshalEasyJSON(l)
			b.Sub = append(b.Sub, sub)
			l.WantComma()
		}
		l.Delim(']')
		return
	}
	b.Indices = []int{}
	for !l.IsDelim(']') {
		if n, err := strconv.Atoi(string(bytes.TrimSpace(l.Raw()))); err == nil {
			b.Indices = append(b.Indices, n)
		}
		l.WantComma()
	}
	l.Delim(']')
}

func (b Boundaries) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	b.MarshalEasyJSON(&w)
	return w.Buffer.BuildBytes(), w.Error
}

func (b Boundaries) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('[')
	if b.Sub != nil {
		for i := range b.Sub {
			if i > 0 {
				w.RawByte(',')
			}
			b.Sub[i].MarshalEasyJSON(w)
		}
	} else {
		for i, n := range b.Indices {
			if i > 0 {
				w.RawByte(',')
			}
			w.Int(n)
		}
	}
	w.RawByte(']')
}

// Renumber rewrites every leaf index through m, assigning compact new ids in
// document order on first sight.
func (b *Boundaries) Renumber(m *IndexMap) {
	for i, idx := range b.Indices {
		b.Indices[i] = m.Resolve(idx)
	}
	for i := range b.Sub {
		b.Sub[i].Renumber(m)
	}
}

// Offset shifts every leaf index by k. Used when a feature's already dense,
// zero-based vertex block is appended verbatim to a larger document.
func (b *Boundaries) Offset(k int) {
	for i := range b.Indices {
		b.Indices[i] += k
	}
	for i := range b.Sub {
		b.Sub[i].Offset(k)
	}
}

// EachIndex visits every leaf index in document order.
func (b *Boundaries) EachIndex(fn func(idx int)) {
	for _, idx := range b.Indices {
		fn(idx)
	}
	for i := range b.Sub {
		b.Sub[i].EachIndex(fn)
	}
}

// MaxIndex returns the largest leaf index, or -1 for an empty tree.
func (b *Boundaries) MaxIndex() int {
	max := -1
	b.EachIndex(func(idx int) {
		if idx > max {
			max = idx
		}
	})
	return max
}

func (b Boundaries) Clone() Boundaries {
	out := Boundaries{}
	if b.Indices != nil {
		out.Indices = make([]int, len(b.Indices))
		copy(out.Indices, b.Indices)
	}
	if b.Sub != nil {
		out.Sub = make([]Boundaries, len(b.Sub))
		for i := range b.Sub {
			out.Sub[i] = b.Sub[i].Clone()
		}
	}
	return out
}

// ValueRefs is the nested value array of material, texture and semantics
// references. It shares the Boundaries structure but leaves are nullable:
// a nil entry is a surface without a value.
type ValueRefs struct {
	Values []*int
	Sub    []ValueRefs
}

func (v *ValueRefs) UnmarshalJSON(data []byte) error {
	l := jlexer.Lexer{Data: data}
	v.UnmarshalEasyJSON(&l)
	return l.Error()
}

func (v *ValueRefs) UnmarshalEasyJSON(l *jlexer.Lexer) {
	v.Values = nil
	v.Sub = nil
	l.Delim('[')
	if l.IsDelim(']') {
		l.Delim(']')
		v.Values = []*int{}
		return
	}
	if l.IsDelim('[') {
		for !l.IsDelim(']') {
			var sub ValueRefs
			sub.UnmarshalEasyJSON(l)
			v.Sub = append(v.Sub, sub)
			l.WantComma()
		}
		l.Delim(']')
		return
	}
	v.Values = []*int{}
	for !l.IsDelim(']') {
		if l.IsNull() {
			l.Skip()
			v.Values = append(v.Values, nil)
		} else if n, err := strconv.Atoi(string(bytes.TrimSpace(l.Raw()))); err == nil {
			v.Values = append(v.Values, &n)
		}
		l.WantComma()
	}
	l.Delim(']')
}

func (v ValueRefs) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	v.MarshalEasyJSON(&w)
	return w.Buffer.BuildBytes(), w.Error
}

func (v ValueRefs) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('[')
	if v.Sub != nil {
		for i := range v.Sub {
			if i > 0 {
				w.RawByte(',')
			}
			v.Sub[i].MarshalEasyJSON(w)
		}
	} else {
		for i, p := range v.Values {
			if i > 0 {
				w.RawByte(',')
			}
			if p == nil {
				w.RawString("null")
			} else {
				w.Int(*p)
			}
		}
	}
	w.RawByte(']')
}

// Renumber rewrites every non-null leaf through m.
func (v *ValueRefs) Renumber(m *IndexMap) {
	for _, p := range v.Values {
		if p != nil {
			*p = m.Resolve(*p)
		}
	}
	for i := range v.Sub {
		v.Sub[i].Renumber(m)
	}
}

// RenumberTexture applies the texture leaf convention: position 0 of each
// leaf run is a texture id and goes through tex, the remaining positions are
// texture-vertex ids and go through uv.
func (v *ValueRefs) RenumberTexture(tex, uv *IndexMap) {
	for i, p := range v.Values {
		if p == nil {
			continue
		}
		if i == 0 {
			*p = tex.Resolve(*p)
		} else {
			*p = uv.Resolve(*p)
		}
	}
	for i := range v.Sub {
		v.Sub[i].RenumberTexture(tex, uv)
	}
}

func (v ValueRefs) Clone() ValueRefs {
	out := ValueRefs{}
	if v.Values != nil {
		out.Values = make([]*int, len(v.Values))
		for i, p := range v.Values {
			if p != nil {
				n := *p
				out.Values[i] = &n
			}
		}
	}
	if v.Sub != nil {
		out.Sub = make([]ValueRefs, len(v.Sub))
		for i := range v.Sub {
			out.Sub[i] = v.Sub[i].Clone()
		}
	}
	return out
}
